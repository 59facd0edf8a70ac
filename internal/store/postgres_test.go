package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/webfolio/mail-infra/internal/inbox"
)

// These tests need a real database. Point TEST_DATABASE_URL at a scratch
// Postgres instance to run them; they create their own rows and clean up
// by thread id.
func newTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(s.Close)

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func testRow(threadID, providerID string, direction inbox.Direction, at time.Time) inbox.Message {
	return inbox.Message{
		ID:                uuid.NewString(),
		ProviderMessageID: providerID,
		ProviderThreadID:  threadID,
		Direction:         direction,
		FromName:          "Jane",
		FromEmail:         "jane@example.com",
		ToEmail:           "owner@example.com",
		Subject:           "Hello",
		CreatedAt:         at,
	}
}

func TestInsertMessageIgnoresDuplicates(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()

	threadID := "t-" + uuid.NewString()
	providerID := "m-" + uuid.NewString()
	t.Cleanup(func() { s.DeleteThread(ctx, threadID) })

	msg := testRow(threadID, providerID, inbox.DirectionInbound, time.Now().UTC())
	if err := s.InsertMessage(ctx, msg); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	dup := msg
	dup.ID = uuid.NewString()
	if err := s.InsertMessage(ctx, dup); err != nil {
		t.Fatalf("duplicate insert should be a no-op: %v", err)
	}

	msgs, err := s.ThreadMessages(ctx, threadID)
	if err != nil {
		t.Fatalf("thread messages: %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("thread holds %d rows, want 1", len(msgs))
	}

	exists, err := s.MessageExists(ctx, providerID)
	if err != nil || !exists {
		t.Errorf("MessageExists = %v, %v; want true", exists, err)
	}
}

func TestThreadMessagesChronological(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()

	threadID := "t-" + uuid.NewString()
	t.Cleanup(func() { s.DeleteThread(ctx, threadID) })

	base := time.Now().UTC().Truncate(time.Second)
	for i := 2; i >= 0; i-- {
		msg := testRow(threadID, fmt.Sprintf("m-%s-%d", threadID, i), inbox.DirectionInbound, base.Add(time.Duration(i)*time.Minute))
		if err := s.InsertMessage(ctx, msg); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	msgs, err := s.ThreadMessages(ctx, threadID)
	if err != nil {
		t.Fatalf("thread messages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("thread holds %d rows, want 3", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatal("rows out of chronological order")
		}
	}
}

func TestListThreadsStatusDerivation(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()

	threadID := "t-" + uuid.NewString()
	t.Cleanup(func() { s.DeleteThread(ctx, threadID) })

	now := time.Now().UTC()
	in := testRow(threadID, "m-"+uuid.NewString(), inbox.DirectionInbound, now)
	in.IsRead = false
	if err := s.InsertMessage(ctx, in); err != nil {
		t.Fatalf("insert inbound: %v", err)
	}

	findThread := func() *inbox.ThreadSummary {
		t.Helper()
		threads, err := s.ListThreads(ctx, 200, 0)
		if err != nil {
			t.Fatalf("list threads: %v", err)
		}
		for i := range threads {
			if threads[i].ProviderThreadID == threadID {
				return &threads[i]
			}
		}
		return nil
	}

	if ts := findThread(); ts == nil || ts.Status != inbox.StatusNew {
		t.Fatalf("fresh unread thread = %+v, want status new", ts)
	}

	if err := s.MarkMessagesRead(ctx, []string{in.ProviderMessageID}); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if ts := findThread(); ts == nil || ts.Status != inbox.StatusRead {
		t.Fatalf("read thread = %+v, want status read", ts)
	}

	out := testRow(threadID, "m-"+uuid.NewString(), inbox.DirectionOutbound, now.Add(time.Minute))
	out.IsRead = true
	if err := s.InsertMessage(ctx, out); err != nil {
		t.Fatalf("insert outbound: %v", err)
	}
	if ts := findThread(); ts == nil || ts.Status != inbox.StatusReplied {
		t.Fatalf("replied thread = %+v, want status replied", ts)
	}
}

func TestDeleteThreadRemovesOnlyItsRows(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()

	keep := "t-" + uuid.NewString()
	gone := "t-" + uuid.NewString()
	t.Cleanup(func() {
		s.DeleteThread(ctx, keep)
		s.DeleteThread(ctx, gone)
	})

	now := time.Now().UTC()
	if err := s.InsertMessage(ctx, testRow(keep, "m-"+uuid.NewString(), inbox.DirectionInbound, now)); err != nil {
		t.Fatalf("insert keep: %v", err)
	}
	if err := s.InsertMessage(ctx, testRow(gone, "m-"+uuid.NewString(), inbox.DirectionInbound, now)); err != nil {
		t.Fatalf("insert gone: %v", err)
	}

	if err := s.DeleteThread(ctx, gone); err != nil {
		t.Fatalf("delete thread: %v", err)
	}

	msgs, err := s.ThreadMessages(ctx, gone)
	if err != nil {
		t.Fatalf("thread messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("deleted thread still holds %d rows", len(msgs))
	}

	msgs, err = s.ThreadMessages(ctx, keep)
	if err != nil || len(msgs) != 1 {
		t.Errorf("unrelated thread = %d rows, %v; want 1 row", len(msgs), err)
	}
}

func TestSetStarred(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()

	threadID := "t-" + uuid.NewString()
	t.Cleanup(func() { s.DeleteThread(ctx, threadID) })

	msg := testRow(threadID, "m-"+uuid.NewString(), inbox.DirectionInbound, time.Now().UTC())
	if err := s.InsertMessage(ctx, msg); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := s.SetStarred(ctx, msg.ProviderMessageID, true); err != nil {
		t.Fatalf("star: %v", err)
	}

	msgs, err := s.ThreadMessages(ctx, threadID)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("thread messages = %d, %v", len(msgs), err)
	}
	if !msgs[0].IsStarred {
		t.Error("row should be starred")
	}
}

func TestInsertContact(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()

	c, err := s.InsertContact(ctx, Contact{
		Name:    "Jane",
		Email:   "jane@example.com",
		Topic:   "Contact",
		Message: "hello",
	})
	if err != nil {
		t.Fatalf("insert contact: %v", err)
	}
	if c.ID == "" {
		t.Error("contact id not assigned")
	}
}
