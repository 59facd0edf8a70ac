package events

import (
	"context"
	"errors"
	"testing"

	"github.com/webfolio/mail-infra/internal/eventstore/sqlite"
	"github.com/webfolio/mail-infra/internal/inbox"
)

type stubPublisher struct {
	published []string
	err       error
}

func (p *stubPublisher) Publish(subject string, payload []byte, msgID string) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, msgID)
	return nil
}

func newOutbox(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open outbox: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(t *testing.T, s *sqlite.Store, eventType, providerID string) {
	t.Helper()
	err := s.RecordMessageEvent(context.Background(), eventType, inbox.Message{
		ID:                "uuid-" + providerID,
		ProviderMessageID: providerID,
	})
	if err != nil {
		t.Fatalf("record event: %v", err)
	}
}

func TestDrainOncePublishesAndClears(t *testing.T) {
	s := newOutbox(t)
	pub := &stubPublisher{}
	d := NewDispatcher(s, pub)
	ctx := context.Background()

	record(t, s, "mail.received", "m1")
	record(t, s, "mail.received", "m2")

	n, err := d.drainOnce(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if n != 2 || len(pub.published) != 2 {
		t.Fatalf("published %d of %d messages, want 2", len(pub.published), n)
	}
	if pub.published[0] != "mail.received|m1" {
		t.Errorf("msg id = %s", pub.published[0])
	}

	n, err = d.drainOnce(ctx)
	if err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if n != 0 {
		t.Errorf("second drain saw %d messages, want 0", n)
	}
}

func TestDrainOnceBacksOffFailedPublish(t *testing.T) {
	s := newOutbox(t)
	pub := &stubPublisher{err: errors.New("nats down")}
	d := NewDispatcher(s, pub)
	ctx := context.Background()

	record(t, s, "mail.received", "m1")

	if _, err := d.drainOnce(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	// The entry is still unpublished but scheduled for a later attempt.
	msgs, err := s.DequeueOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if len(msgs) != 0 {
		t.Error("failed entry should be backed off, not immediately pending")
	}
}
