package inbox

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/webfolio/mail-infra/internal/mail"
)

// SyncConfig carries the per-deployment knobs for a sync run
type SyncConfig struct {
	// OwnerAddress is the mailbox address treated as "self"; messages sent
	// from it are classified outbound.
	OwnerAddress string

	// Query is the provider search query for the listing call.
	Query string

	// MaxMessages bounds one run's listing.
	MaxMessages int64
}

const (
	defaultQuery       = "in:anywhere -in:trash"
	defaultMaxMessages = 20
)

// Reconciler ingests provider messages into the canonical store
type Reconciler struct {
	source mail.MailSource
	store  MessageStore
	events EventRecorder // optional
	cfg    SyncConfig
}

// NewReconciler creates a reconciler. events may be nil.
func NewReconciler(source mail.MailSource, store MessageStore, events EventRecorder, cfg SyncConfig) *Reconciler {
	if cfg.Query == "" {
		cfg.Query = defaultQuery
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = defaultMaxMessages
	}
	return &Reconciler{source: source, store: store, events: events, cfg: cfg}
}

// RunSync performs one synchronization pass and returns the number of
// distinct threads touched. Ingestion is additive-only and idempotent:
// existing rows are never updated, and a failure on one message skips
// that message without aborting the run. Only the initial listing call
// is fatal.
func (r *Reconciler) RunSync(ctx context.Context) (int, error) {
	refs, err := r.source.ListRecentMessageIDs(ctx, r.cfg.Query, r.cfg.MaxMessages)
	if err != nil {
		return 0, fmt.Errorf("list recent messages: %w", err)
	}

	// Local to this run; a multi-message thread is fetched once.
	processedThreads := make(map[string]bool)

	for _, ref := range refs {
		if processedThreads[ref.ThreadID] {
			continue
		}
		processedThreads[ref.ThreadID] = true

		if err := r.syncThread(ctx, ref.ThreadID); err != nil {
			log.Printf("sync: thread %s: %v", ref.ThreadID, err)
		}
	}

	return len(processedThreads), nil
}

func (r *Reconciler) syncThread(ctx context.Context, threadID string) error {
	messages, err := r.source.FetchThread(ctx, threadID)
	if err != nil {
		return fmt.Errorf("fetch thread: %w", err)
	}

	// Skip the whole thread when every message is trashed
	allTrashed := len(messages) > 0
	for i := range messages {
		if !messages[i].HasLabel(mail.LabelTrash) {
			allTrashed = false
			break
		}
	}
	if allTrashed {
		return nil
	}

	for i := range messages {
		raw := &messages[i]
		if raw.HasLabel(mail.LabelTrash) || raw.HasLabel(mail.LabelSpam) {
			continue
		}

		if err := r.ingest(ctx, raw); err != nil {
			// Per-message isolation: log and move on
			log.Printf("sync: message %s: %v", raw.ID, err)
		}
	}

	return nil
}

func (r *Reconciler) ingest(ctx context.Context, raw *mail.RawMessage) error {
	exists, err := r.store.MessageExists(ctx, raw.ID)
	if err != nil {
		return fmt.Errorf("existence check: %w", err)
	}
	if exists {
		return nil
	}

	normalized, err := Normalize(*raw)
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}

	direction := DirectionInbound
	if strings.EqualFold(normalized.FromEmail, r.cfg.OwnerAddress) {
		direction = DirectionOutbound
	}

	msg := Message{
		ID:                uuid.NewString(),
		ProviderMessageID: raw.ID,
		ProviderThreadID:  raw.ThreadID,
		Direction:         direction,
		FromName:          normalized.FromName,
		FromEmail:         normalized.FromEmail,
		ToEmail:           normalized.ToEmail,
		Subject:           normalized.Subject,
		BodyText:          normalized.BodyText,
		BodyHTML:          normalized.BodyHTML,
		Snippet:           normalized.Snippet,
		IsRead:            !raw.HasLabel(mail.LabelUnread),
		IsStarred:         raw.HasLabel(mail.LabelStarred),
		CreatedAt:         normalized.Date,
	}

	// Insert-or-skip: overlapping runs may race the existence check, but
	// the store's unique index turns the loser into a silent no-op.
	if err := r.store.InsertMessage(ctx, msg); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if r.events != nil {
		if err := r.events.RecordMessageEvent(ctx, "mail.received", msg); err != nil {
			log.Printf("sync: record event for %s: %v", msg.ProviderMessageID, err)
		}
	}

	return nil
}
