package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/webfolio/mail-infra/internal/inbox"
)

//go:embed schema.sql
var schemaSQL string

// Store is the local outbox and sync-run ledger
type Store struct {
	db *sqlx.DB
}

// OutboxMessage is one pending event waiting for NATS publication
type OutboxMessage struct {
	ID      int64  `db:"id"`
	Subject string `db:"subject"`
	Payload []byte `db:"payload"`
	MsgID   string `db:"msg_id"`
}

// SyncRun is one recorded synchronization pass
type SyncRun struct {
	ID            int64  `db:"id" json:"id"`
	StartedAt     int64  `db:"started_at" json:"started_at"`
	FinishedAt    *int64 `db:"finished_at" json:"finished_at"`
	ThreadsSynced int    `db:"threads_synced" json:"threads_synced"`
	Status        string `db:"status" json:"status"`
	LastError     string `db:"last_error" json:"last_error"`
}

// Open opens or creates the local database and applies the schema
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dbPath += "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dbPath == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordMessageEvent appends a pipeline event to the outbox. The msg_id is
// derived from the provider message id so redelivered events dedupe both
// here and at the JetStream level.
func (s *Store) RecordMessageEvent(ctx context.Context, eventType string, msg inbox.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	msgID := fmt.Sprintf("%s|%s", eventType, msg.ProviderMessageID)
	now := time.Now().Unix()

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO outbox (ts, subject, event_type, payload, msg_id, next_attempt_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, now, eventType, eventType, payload, msgID, now)
	if err != nil {
		return fmt.Errorf("failed to insert outbox entry: %w", err)
	}

	return nil
}

// DequeueOutbox fetches unpublished messages whose retry backoff elapsed
func (s *Store) DequeueOutbox(ctx context.Context, limit int) ([]OutboxMessage, error) {
	var messages []OutboxMessage
	err := s.db.SelectContext(ctx, &messages, `
		SELECT id, subject, payload, msg_id
		FROM outbox
		WHERE published_at IS NULL
		  AND next_attempt_at <= ?
		ORDER BY id
		LIMIT ?
	`, time.Now().Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}

	return messages, nil
}

// MarkPublished marks an outbox message as published
func (s *Store) MarkPublished(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE outbox SET published_at = ? WHERE id = ?",
		time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to mark published: %w", err)
	}
	return nil
}

// MarkRetry bumps the retry count and schedules the next attempt
func (s *Store) MarkRetry(ctx context.Context, id int64, backoff time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox
		SET retries = retries + 1,
		    next_attempt_at = ?
		WHERE id = ?
	`, time.Now().Add(backoff).Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to mark retry: %w", err)
	}
	return nil
}

// BeginRun records the start of a sync pass and returns its id
func (s *Store) BeginRun(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO sync_runs (started_at, status) VALUES (?, 'SYNCING')",
		time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to record run start: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun records the outcome of a sync pass
func (s *Store) FinishRun(ctx context.Context, id int64, threadsSynced int, runErr error) error {
	status := "OK"
	lastError := ""
	if runErr != nil {
		status = "ERROR"
		lastError = runErr.Error()
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_runs
		SET finished_at = ?, threads_synced = ?, status = ?, last_error = ?
		WHERE id = ?
	`, time.Now().Unix(), threadsSynced, status, lastError, id)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	return nil
}

// LastRun returns the most recent sync run, or nil when none exist
func (s *Store) LastRun(ctx context.Context) (*SyncRun, error) {
	var run SyncRun
	err := s.db.GetContext(ctx, &run,
		"SELECT * FROM sync_runs ORDER BY id DESC LIMIT 1")
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load last run: %w", err)
	}
	return &run, nil
}
