package inbox

import (
	"context"
	"errors"
	"testing"

	"github.com/webfolio/mail-infra/internal/mail"
)

const owner = "owner@example.com"

func inboundRaw(id, threadID, from string, labels ...string) mail.RawMessage {
	return mail.RawMessage{
		ID:       id,
		ThreadID: threadID,
		Snippet:  "snippet",
		LabelIDs: labels,
		Headers: []mail.Header{
			{Name: "Subject", Value: "Subject " + id},
			{Name: "From", Value: from},
			{Name: "To", Value: owner},
		},
		Body:         &mail.BodyPart{MimeType: "text/plain", Data: b64("body " + id)},
		InternalDate: 1700000000000,
	}
}

// rec must be a plain nil (not a typed-nil pointer) when no recorder is
// wanted; the reconciler's optional-events guard is an interface nil check.
func newTestReconciler(source *fakeSource, st *fakeStore, rec EventRecorder) *Reconciler {
	return NewReconciler(source, st, rec, SyncConfig{OwnerAddress: owner})
}

func TestRunSyncStoresInboundMessages(t *testing.T) {
	source := &fakeSource{
		refs: []mail.MessageRef{{ID: "m1", ThreadID: "t1"}, {ID: "m2", ThreadID: "t1"}},
		threads: map[string][]mail.RawMessage{
			"t1": {
				inboundRaw("m1", "t1", "visitor@example.com", mail.LabelUnread),
				inboundRaw("m2", "t1", owner),
			},
		},
	}
	st := newFakeStore()
	rec := &fakeRecorder{}

	threads, err := newTestReconciler(source, st, rec).RunSync(context.Background())
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}
	if threads != 1 {
		t.Errorf("threadsSynced = %d, want 1", threads)
	}
	if len(st.messages) != 2 {
		t.Fatalf("stored %d messages, want 2", len(st.messages))
	}

	m1 := st.messages["m1"]
	if m1.Direction != DirectionInbound {
		t.Errorf("m1 direction = %s, want inbound", m1.Direction)
	}
	if m1.IsRead {
		t.Error("m1 should be unread")
	}

	m2 := st.messages["m2"]
	if m2.Direction != DirectionOutbound {
		t.Errorf("m2 direction = %s, want outbound (from owner)", m2.Direction)
	}
	if !m2.IsRead {
		t.Error("m2 carries no UNREAD label, should be read")
	}

	if len(rec.events) != 2 {
		t.Errorf("recorded %d events, want 2", len(rec.events))
	}
}

func TestRunSyncWithoutRecorderStoresMessages(t *testing.T) {
	source := &fakeSource{
		refs: []mail.MessageRef{{ID: "m1", ThreadID: "t1"}},
		threads: map[string][]mail.RawMessage{
			"t1": {inboundRaw("m1", "t1", "visitor@example.com")},
		},
	}
	st := newFakeStore()

	r := NewReconciler(source, st, nil, SyncConfig{OwnerAddress: owner})
	threads, err := r.RunSync(context.Background())
	if err != nil {
		t.Fatalf("RunSync without recorder: %v", err)
	}
	if threads != 1 || len(st.messages) != 1 {
		t.Errorf("threads = %d, stored = %d; want 1 and 1", threads, len(st.messages))
	}
}

func TestRunSyncIsIdempotent(t *testing.T) {
	source := &fakeSource{
		refs: []mail.MessageRef{{ID: "m1", ThreadID: "t1"}},
		threads: map[string][]mail.RawMessage{
			"t1": {inboundRaw("m1", "t1", "visitor@example.com")},
		},
	}
	st := newFakeStore()
	r := newTestReconciler(source, st, nil)

	for i := 0; i < 2; i++ {
		if _, err := r.RunSync(context.Background()); err != nil {
			t.Fatalf("RunSync run %d: %v", i, err)
		}
	}

	if len(st.messages) != 1 {
		t.Errorf("stored %d messages after two runs, want 1", len(st.messages))
	}
}

func TestRunSyncSkipsFullyTrashedThread(t *testing.T) {
	source := &fakeSource{
		refs: []mail.MessageRef{{ID: "m1", ThreadID: "t1"}},
		threads: map[string][]mail.RawMessage{
			"t1": {
				inboundRaw("m1", "t1", "a@example.com", mail.LabelTrash),
				inboundRaw("m2", "t1", "b@example.com", mail.LabelTrash),
			},
		},
	}
	st := newFakeStore()

	if _, err := newTestReconciler(source, st, nil).RunSync(context.Background()); err != nil {
		t.Fatalf("RunSync: %v", err)
	}
	if len(st.messages) != 0 {
		t.Errorf("stored %d messages from a fully trashed thread, want 0", len(st.messages))
	}
}

func TestRunSyncSkipsTrashedAndSpamMessagesIndividually(t *testing.T) {
	source := &fakeSource{
		refs: []mail.MessageRef{{ID: "m1", ThreadID: "t1"}},
		threads: map[string][]mail.RawMessage{
			"t1": {
				inboundRaw("m1", "t1", "a@example.com", mail.LabelTrash),
				inboundRaw("m2", "t1", "b@example.com"),
				inboundRaw("m3", "t1", "c@example.com", mail.LabelSpam),
			},
		},
	}
	st := newFakeStore()

	if _, err := newTestReconciler(source, st, nil).RunSync(context.Background()); err != nil {
		t.Fatalf("RunSync: %v", err)
	}

	if len(st.messages) != 1 {
		t.Fatalf("stored %d messages, want 1", len(st.messages))
	}
	if _, ok := st.messages["m2"]; !ok {
		t.Error("the one clean message should survive")
	}
}

func TestRunSyncFetchesEachThreadOnce(t *testing.T) {
	source := &fakeSource{
		refs: []mail.MessageRef{
			{ID: "m1", ThreadID: "t1"},
			{ID: "m2", ThreadID: "t1"},
			{ID: "m3", ThreadID: "t2"},
		},
		threads: map[string][]mail.RawMessage{
			"t1": {inboundRaw("m1", "t1", "a@example.com")},
			"t2": {inboundRaw("m3", "t2", "b@example.com")},
		},
	}
	st := newFakeStore()

	threads, err := newTestReconciler(source, st, nil).RunSync(context.Background())
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}
	if threads != 2 {
		t.Errorf("threadsSynced = %d, want 2 distinct threads", threads)
	}
}

func TestRunSyncAbortsOnListingFailure(t *testing.T) {
	source := &fakeSource{listErr: mail.ErrProviderUnavailable}
	st := newFakeStore()

	_, err := newTestReconciler(source, st, nil).RunSync(context.Background())
	if !errors.Is(err, mail.ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
	if len(st.messages) != 0 {
		t.Error("no writes expected when listing fails")
	}
}

func TestRunSyncSkipsMalformedMessages(t *testing.T) {
	malformed := inboundRaw("bad", "t1", "a@example.com")
	malformed.Headers = nil // no From: normalization fails

	source := &fakeSource{
		refs: []mail.MessageRef{{ID: "bad", ThreadID: "t1"}},
		threads: map[string][]mail.RawMessage{
			"t1": {malformed, inboundRaw("good", "t1", "b@example.com")},
		},
	}
	st := newFakeStore()

	threads, err := newTestReconciler(source, st, nil).RunSync(context.Background())
	if err != nil {
		t.Fatalf("malformed message must not fail the run: %v", err)
	}
	if threads != 1 {
		t.Errorf("threadsSynced = %d, want 1", threads)
	}
	if _, ok := st.messages["good"]; !ok || len(st.messages) != 1 {
		t.Errorf("stored %d messages, want only the good one", len(st.messages))
	}
}
