package events

import (
	"context"
	"log"
	"time"

	"github.com/webfolio/mail-infra/internal/eventstore/sqlite"
)

// MessagePublisher is what the dispatcher needs from a publisher
type MessagePublisher interface {
	Publish(subject string, payload []byte, msgID string) error
}

// Dispatcher drains the local outbox into JetStream. Publication is
// at-least-once; consumers rely on the msg-id dedup window.
type Dispatcher struct {
	store     *sqlite.Store
	publisher MessagePublisher
}

// NewDispatcher creates a dispatcher over the given outbox and publisher
func NewDispatcher(store *sqlite.Store, publisher MessagePublisher) *Dispatcher {
	return &Dispatcher{store: store, publisher: publisher}
}

// Run loops until the context is cancelled, publishing pending outbox
// entries and backing off failed ones.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if n, err := d.drainOnce(ctx); err != nil {
			log.Printf("events: dequeue outbox: %v", err)
			time.Sleep(time.Second)
		} else if n == 0 {
			time.Sleep(500 * time.Millisecond)
		}
	}
}

// drainOnce publishes one batch of pending entries and returns how many
// entries it saw.
func (d *Dispatcher) drainOnce(ctx context.Context) (int, error) {
	messages, err := d.store.DequeueOutbox(ctx, 100)
	if err != nil {
		return 0, err
	}

	for _, msg := range messages {
		if err := d.publisher.Publish(msg.Subject, msg.Payload, msg.MsgID); err != nil {
			log.Printf("events: publish %d: %v", msg.ID, err)
			_ = d.store.MarkRetry(ctx, msg.ID, 10*time.Second)
			continue
		}

		if err := d.store.MarkPublished(ctx, msg.ID); err != nil {
			log.Printf("events: mark %d published: %v", msg.ID, err)
		}
	}

	return len(messages), nil
}
