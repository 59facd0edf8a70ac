package inbox

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/webfolio/mail-infra/internal/mail"
)

// Dispatcher sends outbound mail through the provider and mirrors the
// result into the canonical store.
type Dispatcher struct {
	source mail.MailSource
	store  MessageStore
	events EventRecorder // optional
	owner  string
}

// NewDispatcher creates a dispatcher. events may be nil.
func NewDispatcher(source mail.MailSource, store MessageStore, events EventRecorder, ownerAddress string) *Dispatcher {
	return &Dispatcher{source: source, store: store, events: events, owner: ownerAddress}
}

// SendReply sends an HTML reply inside an existing thread and inserts the
// local mirror row. The provider send happens first: a rejected send
// leaves the store untouched, so the caller can retry with the same
// inputs without creating duplicates.
func (d *Dispatcher) SendReply(ctx context.Context, threadID, to, subject, html string) error {
	if threadID == "" || to == "" || html == "" {
		return fmt.Errorf("threadID, to and html are required")
	}

	sentID, err := d.source.SendMessage(ctx, threadID, mail.OutgoingMessage{
		To:       to,
		Subject:  subject,
		HTMLBody: html,
	})
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}

	msg := Message{
		ID:                uuid.NewString(),
		ProviderMessageID: sentID,
		ProviderThreadID:  threadID,
		Direction:         DirectionOutbound,
		FromEmail:         d.owner,
		ToEmail:           to,
		Subject:           subject,
		BodyHTML:          &html,
		IsRead:            true, // self-authored
		CreatedAt:         time.Now().UTC(),
	}

	if err := d.store.InsertMessage(ctx, msg); err != nil {
		return fmt.Errorf("mirror reply: %w", err)
	}

	if d.events != nil {
		if err := d.events.RecordMessageEvent(ctx, "mail.replied", msg); err != nil {
			log.Printf("reply: record event for %s: %v", sentID, err)
		}
	}

	return nil
}

// DeleteThread trashes the thread at the provider and removes every local
// row sharing the thread id. Terminal for the local state machine; the
// provider-side trash remains recoverable through the provider's own UI.
func (d *Dispatcher) DeleteThread(ctx context.Context, threadID string) error {
	if threadID == "" {
		return fmt.Errorf("threadID is required")
	}

	if err := d.source.TrashThread(ctx, threadID); err != nil {
		return fmt.Errorf("trash thread: %w", err)
	}

	if err := d.store.DeleteThread(ctx, threadID); err != nil {
		return fmt.Errorf("delete thread rows: %w", err)
	}

	return nil
}

// MarkRead removes the unread label at the provider and mirrors
// is_read locally. An empty id list is a no-op.
func (d *Dispatcher) MarkRead(ctx context.Context, providerMessageIDs []string) error {
	if len(providerMessageIDs) == 0 {
		return nil
	}

	if err := d.source.ModifyLabels(ctx, providerMessageIDs, nil, []string{mail.LabelUnread}); err != nil {
		return fmt.Errorf("remove unread label: %w", err)
	}

	if err := d.store.MarkMessagesRead(ctx, providerMessageIDs); err != nil {
		return fmt.Errorf("mirror read flags: %w", err)
	}

	return nil
}

// SetStarred toggles the starred label at the provider and mirrors it
func (d *Dispatcher) SetStarred(ctx context.Context, providerMessageID string, starred bool) error {
	if providerMessageID == "" {
		return fmt.Errorf("messageId is required")
	}

	var add, remove []string
	if starred {
		add = []string{mail.LabelStarred}
	} else {
		remove = []string{mail.LabelStarred}
	}

	if err := d.source.ModifyLabels(ctx, []string{providerMessageID}, add, remove); err != nil {
		return fmt.Errorf("modify star label: %w", err)
	}

	if err := d.store.SetStarred(ctx, providerMessageID, starred); err != nil {
		return fmt.Errorf("mirror star flag: %w", err)
	}

	return nil
}
