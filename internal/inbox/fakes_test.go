package inbox

import (
	"context"
	"fmt"
	"sort"

	"github.com/webfolio/mail-infra/internal/mail"
)

// fakeSource is an in-memory mail.MailSource
type fakeSource struct {
	refs    []mail.MessageRef
	threads map[string][]mail.RawMessage

	listErr error
	sendErr error

	sentIDs   []string
	trashed   []string
	modified  [][]string
	nextSent  int
	sentTo    []mail.OutgoingMessage
	sentInTID []string
}

func (f *fakeSource) ListRecentMessageIDs(ctx context.Context, query string, max int64) ([]mail.MessageRef, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if int64(len(f.refs)) > max {
		return f.refs[:max], nil
	}
	return f.refs, nil
}

func (f *fakeSource) FetchThread(ctx context.Context, threadID string) ([]mail.RawMessage, error) {
	msgs, ok := f.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown thread %s", mail.ErrProviderUnavailable, threadID)
	}
	return msgs, nil
}

func (f *fakeSource) SendMessage(ctx context.Context, threadID string, msg mail.OutgoingMessage) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.nextSent++
	id := fmt.Sprintf("sent-%d", f.nextSent)
	f.sentIDs = append(f.sentIDs, id)
	f.sentTo = append(f.sentTo, msg)
	f.sentInTID = append(f.sentInTID, threadID)
	return id, nil
}

func (f *fakeSource) ModifyLabels(ctx context.Context, messageIDs []string, add, remove []string) error {
	f.modified = append(f.modified, messageIDs)
	return nil
}

func (f *fakeSource) TrashThread(ctx context.Context, threadID string) error {
	f.trashed = append(f.trashed, threadID)
	return nil
}

func (f *fakeSource) Profile(ctx context.Context) (string, error) {
	return "owner@example.com", nil
}

// fakeStore is an in-memory MessageStore keyed by provider message id
type fakeStore struct {
	messages  map[string]Message
	insertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{messages: make(map[string]Message)}
}

func (f *fakeStore) MessageExists(ctx context.Context, providerMessageID string) (bool, error) {
	_, ok := f.messages[providerMessageID]
	return ok, nil
}

func (f *fakeStore) InsertMessage(ctx context.Context, msg Message) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	// insert-or-skip
	if _, ok := f.messages[msg.ProviderMessageID]; ok {
		return nil
	}
	f.messages[msg.ProviderMessageID] = msg
	return nil
}

func (f *fakeStore) ThreadMessages(ctx context.Context, threadID string) ([]Message, error) {
	var msgs []Message
	for _, m := range f.messages {
		if m.ProviderThreadID == threadID {
			msgs = append(msgs, m)
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

func (f *fakeStore) MarkMessagesRead(ctx context.Context, providerMessageIDs []string) error {
	for _, id := range providerMessageIDs {
		if m, ok := f.messages[id]; ok {
			m.IsRead = true
			f.messages[id] = m
		}
	}
	return nil
}

func (f *fakeStore) SetStarred(ctx context.Context, providerMessageID string, starred bool) error {
	if m, ok := f.messages[providerMessageID]; ok {
		m.IsStarred = starred
		f.messages[providerMessageID] = m
	}
	return nil
}

func (f *fakeStore) DeleteThread(ctx context.Context, threadID string) error {
	for id, m := range f.messages {
		if m.ProviderThreadID == threadID {
			delete(f.messages, id)
		}
	}
	return nil
}

// fakeRecorder captures pipeline events
type fakeRecorder struct {
	events []string
}

func (f *fakeRecorder) RecordMessageEvent(ctx context.Context, eventType string, msg Message) error {
	f.events = append(f.events, fmt.Sprintf("%s|%s", eventType, msg.ProviderMessageID))
	return nil
}
