package gmail

import (
	"context"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/webfolio/mail-infra/internal/mail"
)

// Credentials holds the long-lived OAuth material for the mailbox.
// The refresh token is exchanged for short-lived access tokens on demand.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Adapter implements mail.MailSource for Gmail
type Adapter struct {
	svc *gmail.Service
}

// New creates a new Gmail adapter authenticated via refresh token
func New(ctx context.Context, creds Credentials) (*Adapter, error) {
	config := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes: []string{
			gmail.GmailReadonlyScope,
			gmail.GmailSendScope,
			gmail.GmailModifyScope,
		},
	}

	httpClient := config.Client(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Adapter{svc: svc}, nil
}

// ListRecentMessageIDs lists recent message refs matching query
func (a *Adapter) ListRecentMessageIDs(ctx context.Context, query string, max int64) ([]mail.MessageRef, error) {
	res, err := a.svc.Users.Messages.List("me").Q(query).MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %v", mail.ErrProviderUnavailable, err)
	}

	refs := make([]mail.MessageRef, 0, len(res.Messages))
	for _, m := range res.Messages {
		refs = append(refs, mail.MessageRef{ID: m.Id, ThreadID: m.ThreadId})
	}
	return refs, nil
}

// FetchThread fetches all messages of a thread with full payloads
func (a *Adapter) FetchThread(ctx context.Context, threadID string) ([]mail.RawMessage, error) {
	thread, err := a.svc.Users.Threads.Get("me", threadID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: get thread %s: %v", mail.ErrProviderUnavailable, threadID, err)
	}

	msgs := make([]mail.RawMessage, 0, len(thread.Messages))
	for _, m := range thread.Messages {
		msgs = append(msgs, convert(m))
	}
	return msgs, nil
}

// SendMessage sends an HTML message inside an existing thread. An empty
// threadID starts a new thread.
func (a *Adapter) SendMessage(ctx context.Context, threadID string, msg mail.OutgoingMessage) (string, error) {
	profile, err := a.svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: get profile: %v", mail.ErrSendFailed, err)
	}

	raw := mail.BuildRawMIME(profile.EmailAddress, msg.To, msg.Subject, msg.HTMLBody)
	sent, err := a.svc.Users.Messages.Send("me", &gmail.Message{
		Raw:      base64.RawURLEncoding.EncodeToString([]byte(raw)),
		ThreadId: threadID,
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: %v", mail.ErrSendFailed, err)
	}

	return sent.Id, nil
}

// ModifyLabels adds/removes labels on the given messages
func (a *Adapter) ModifyLabels(ctx context.Context, messageIDs []string, add, remove []string) error {
	for _, id := range messageIDs {
		_, err := a.svc.Users.Messages.Modify("me", id, &gmail.ModifyMessageRequest{
			AddLabelIds:    add,
			RemoveLabelIds: remove,
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%w: modify message %s: %v", mail.ErrProviderUnavailable, id, err)
		}
	}
	return nil
}

// TrashThread moves an entire thread to the Gmail trash
func (a *Adapter) TrashThread(ctx context.Context, threadID string) error {
	if _, err := a.svc.Users.Threads.Trash("me", threadID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: trash thread %s: %v", mail.ErrProviderUnavailable, threadID, err)
	}
	return nil
}

// Profile returns the authenticated mailbox address
func (a *Adapter) Profile(ctx context.Context) (string, error) {
	profile, err := a.svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: get profile: %v", mail.ErrProviderUnavailable, err)
	}
	return profile.EmailAddress, nil
}

// convert maps a Gmail message onto the provider-agnostic raw form.
// Part payloads stay base64url-encoded; the normalizer decodes them.
func convert(m *gmail.Message) mail.RawMessage {
	raw := mail.RawMessage{
		ID:           m.Id,
		ThreadID:     m.ThreadId,
		Snippet:      m.Snippet,
		LabelIDs:     m.LabelIds,
		InternalDate: m.InternalDate,
	}

	if m.Payload != nil {
		for _, h := range m.Payload.Headers {
			raw.Headers = append(raw.Headers, mail.Header{Name: h.Name, Value: h.Value})
		}
		body := convertPart(m.Payload)
		raw.Body = &body
	}

	return raw
}

func convertPart(p *gmail.MessagePart) mail.BodyPart {
	part := mail.BodyPart{MimeType: p.MimeType}
	if p.Body != nil {
		part.Data = p.Body.Data
	}
	for _, child := range p.Parts {
		part.Parts = append(part.Parts, convertPart(child))
	}
	return part
}
