package mail

import (
	"context"
	"errors"
)

// ProviderName represents email provider types
type ProviderName string

const (
	ProviderGoogle    ProviderName = "GOOGLE"
	ProviderMicrosoft ProviderName = "MICROSOFT"
)

// Gmail-style label ids. The Outlook adapter maps Graph state onto the same
// vocabulary so callers never branch on the provider.
const (
	LabelTrash   = "TRASH"
	LabelSpam    = "SPAM"
	LabelUnread  = "UNREAD"
	LabelStarred = "STARRED"
)

var (
	// ErrProviderUnavailable means the provider API could not be reached or
	// rejected our credentials. Fatal to the current sync run.
	ErrProviderUnavailable = errors.New("mail provider unavailable")

	// ErrSendFailed means the provider rejected an outbound send.
	ErrSendFailed = errors.New("mail send failed")
)

// Header is one raw message header as the provider returned it.
type Header struct {
	Name  string
	Value string
}

// BodyPart is one node of a message's body-part tree. Data is the
// provider's base64url-encoded payload for leaf parts; nested parts
// carry their own Data.
type BodyPart struct {
	MimeType string
	Data     string
	Parts    []BodyPart
}

// RawMessage is one provider message before normalization.
type RawMessage struct {
	ID           string
	ThreadID     string
	Snippet      string
	LabelIDs     []string
	Headers      []Header
	Body         *BodyPart
	InternalDate int64 // ms since epoch
}

// HasLabel reports whether the message carries the given label id.
func (m *RawMessage) HasLabel(label string) bool {
	for _, l := range m.LabelIDs {
		if l == label {
			return true
		}
	}
	return false
}

// MessageRef identifies one provider message inside its thread.
type MessageRef struct {
	ID       string
	ThreadID string
}

// OutgoingMessage is a message to be sent through a provider. Each adapter
// builds its own wire format from it (Gmail: base64url raw MIME).
type OutgoingMessage struct {
	To       string
	Subject  string
	HTMLBody string
}

// MailSource abstracts the external mail provider API.
type MailSource interface {
	// ListRecentMessageIDs returns refs for recent messages matching a
	// provider search query, bounded by max. Errors wrap
	// ErrProviderUnavailable.
	ListRecentMessageIDs(ctx context.Context, query string, max int64) ([]MessageRef, error)

	// FetchThread returns every raw message in a thread, including label
	// metadata, in the provider's order.
	FetchThread(ctx context.Context, threadID string) ([]RawMessage, error)

	// SendMessage dispatches msg inside an existing thread (or a new one
	// when threadID is empty) and returns the new provider message id.
	// Errors wrap ErrSendFailed.
	SendMessage(ctx context.Context, threadID string, msg OutgoingMessage) (string, error)

	// ModifyLabels adds/removes labels on the given messages.
	ModifyLabels(ctx context.Context, messageIDs []string, add, remove []string) error

	// TrashThread moves an entire thread to the provider's trash.
	TrashThread(ctx context.Context, threadID string) error

	// Profile returns the authenticated mailbox address, used as a
	// connectivity probe.
	Profile(ctx context.Context) (string, error)
}
