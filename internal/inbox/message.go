package inbox

import (
	"context"
	"time"
)

// Direction classifies a message relative to the mailbox owner
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// ThreadStatus is the operator-facing state of a conversation.
// Progression is one-way: new -> read -> replied.
type ThreadStatus string

const (
	StatusNew     ThreadStatus = "new"
	StatusRead    ThreadStatus = "read"
	StatusReplied ThreadStatus = "replied"
)

// Message is the canonical, storage-ready form of one provider message
type Message struct {
	ID                string    `json:"id"`
	ProviderMessageID string    `json:"provider_message_id"`
	ProviderThreadID  string    `json:"provider_thread_id"`
	Direction         Direction `json:"direction"`
	FromName          string    `json:"from_name"`
	FromEmail         string    `json:"from_email"`
	ToEmail           string    `json:"to_email"`
	Subject           string    `json:"subject"`
	BodyText          *string   `json:"body_text"`
	BodyHTML          *string   `json:"body_html"`
	Snippet           *string   `json:"snippet"`
	IsRead            bool      `json:"is_read"`
	IsStarred         bool      `json:"is_starred"`
	CreatedAt         time.Time `json:"created_at"`
}

// ThreadSummary is one row of the operator's inbox list
type ThreadSummary struct {
	ProviderThreadID string       `json:"provider_thread_id"`
	Subject          string       `json:"subject"`
	FromName         string       `json:"from_name"`
	FromEmail        string       `json:"from_email"`
	Snippet          *string      `json:"snippet"`
	MessageCount     int          `json:"message_count"`
	Status           ThreadStatus `json:"status"`
	LastMessageAt    time.Time    `json:"last_message_at"`
}

// ThreadStatusOf derives the display status from a thread's messages
func ThreadStatusOf(messages []Message) ThreadStatus {
	status := StatusRead
	for _, m := range messages {
		if m.Direction == DirectionOutbound {
			return StatusReplied
		}
		if !m.IsRead {
			status = StatusNew
		}
	}
	return status
}

// MessageStore is the slice of the persistent store the pipeline writes to.
// Implementations must enforce uniqueness on ProviderMessageID and treat a
// duplicate insert as a silent no-op.
type MessageStore interface {
	MessageExists(ctx context.Context, providerMessageID string) (bool, error)
	InsertMessage(ctx context.Context, msg Message) error
	ThreadMessages(ctx context.Context, threadID string) ([]Message, error)
	MarkMessagesRead(ctx context.Context, providerMessageIDs []string) error
	SetStarred(ctx context.Context, providerMessageID string, starred bool) error
	DeleteThread(ctx context.Context, threadID string) error
}

// EventRecorder receives pipeline events for asynchronous fan-out.
// Recording must not fail the write that triggered it.
type EventRecorder interface {
	RecordMessageEvent(ctx context.Context, eventType string, msg Message) error
}
