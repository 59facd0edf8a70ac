package contact

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"

	"github.com/webfolio/mail-infra/internal/mail"
	"github.com/webfolio/mail-infra/internal/store"
)

// Submission is one contact-form post from the public site
type Submission struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required"`
	Phone   string `json:"phone"`
	Topic   string `json:"topic"`
	Message string `json:"message" binding:"required"`

	// Website is a honeypot field; humans never fill it.
	Website string `json:"website"`
}

// ContactStore is the slice of the store the service writes to
type ContactStore interface {
	InsertContact(ctx context.Context, c store.Contact) (*store.Contact, error)
}

// Service records contact submissions and notifies the site owner by email
type Service struct {
	store     ContactStore
	source    mail.MailSource
	recipient string
}

// NewService creates a contact service
func NewService(contacts ContactStore, source mail.MailSource, recipient string) *Service {
	return &Service{store: contacts, source: source, recipient: recipient}
}

// Submit handles one contact-form post. Bot submissions (honeypot filled)
// are silently accepted. A store failure does not block the notification
// mail; the submission still reaches the owner's inbox.
func (s *Service) Submit(ctx context.Context, sub Submission) error {
	if strings.TrimSpace(sub.Website) != "" {
		return nil
	}

	sub.Name = strings.TrimSpace(sub.Name)
	sub.Email = strings.TrimSpace(sub.Email)
	sub.Message = strings.TrimSpace(sub.Message)
	if sub.Topic == "" {
		sub.Topic = "Contact"
	}

	if sub.Name == "" || sub.Email == "" || sub.Message == "" {
		return fmt.Errorf("name, email and message are required")
	}

	if _, err := s.store.InsertContact(ctx, store.Contact{
		Name:    sub.Name,
		Email:   sub.Email,
		Phone:   sub.Phone,
		Topic:   sub.Topic,
		Message: sub.Message,
	}); err != nil {
		log.Printf("contact: insert submission from %s: %v", sub.Email, err)
	}

	subject := fmt.Sprintf("New contact message: %s", sub.Topic)
	if _, err := s.source.SendMessage(ctx, "", mail.OutgoingMessage{
		To:       s.recipient,
		Subject:  subject,
		HTMLBody: notificationHTML(sub),
	}); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	return nil
}

// notificationHTML renders the owner notification. The visitor's text is
// wrapped in the "message" container the normalizer recovers plain text
// from when the owner replies to this mail.
func notificationHTML(sub Submission) string {
	message := strings.ReplaceAll(html.EscapeString(sub.Message), "\n", "<br/>")

	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString(fmt.Sprintf("<p><b>%s</b> &lt;%s&gt;", html.EscapeString(sub.Name), html.EscapeString(sub.Email)))
	if sub.Phone != "" {
		b.WriteString(fmt.Sprintf(" · %s", html.EscapeString(sub.Phone)))
	}
	b.WriteString("</p>")
	b.WriteString(fmt.Sprintf(`<div class="message">%s</div>`, message))
	b.WriteString("</body></html>")
	return b.String()
}
