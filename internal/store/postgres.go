package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/webfolio/mail-infra/internal/inbox"
)

// Contact is one contact-form submission
type Contact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Topic     string    `json:"topic"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Postgres persists canonical messages and contacts in the hosted database
type Postgres struct {
	pool *pgxpool.Pool
}

// New creates a store backed by a pgx connection pool
func New(ctx context.Context, connString string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool
func (s *Postgres) Close() {
	s.pool.Close()
}

// Migrate creates the tables and indexes. The unique index on
// provider_message_id is what makes ingestion idempotent under
// overlapping sync runs.
func (s *Postgres) Migrate(ctx context.Context) error {
	const migrationSQL = `
		CREATE TABLE IF NOT EXISTS emails (
		    id UUID PRIMARY KEY,
		    provider_message_id TEXT NOT NULL,
		    provider_thread_id TEXT NOT NULL,
		    direction TEXT NOT NULL,
		    from_name TEXT NOT NULL DEFAULT '',
		    from_email TEXT NOT NULL,
		    to_email TEXT NOT NULL DEFAULT '',
		    subject TEXT NOT NULL DEFAULT '',
		    body_text TEXT,
		    body_html TEXT,
		    snippet TEXT,
		    is_read BOOLEAN NOT NULL DEFAULT FALSE,
		    is_starred BOOLEAN NOT NULL DEFAULT FALSE,
		    created_at TIMESTAMP WITH TIME ZONE NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_emails_provider_message_id
		    ON emails(provider_message_id);
		CREATE INDEX IF NOT EXISTS idx_emails_thread_created
		    ON emails(provider_thread_id, created_at);

		CREATE TABLE IF NOT EXISTS contacts (
		    id UUID PRIMARY KEY,
		    name TEXT NOT NULL,
		    email TEXT NOT NULL,
		    phone TEXT NOT NULL DEFAULT '',
		    topic TEXT NOT NULL DEFAULT 'Contact',
		    message TEXT NOT NULL,
		    status TEXT NOT NULL DEFAULT 'new',
		    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);
	`

	if _, err := s.pool.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// MessageExists reports whether a provider message id is already stored
func (s *Postgres) MessageExists(ctx context.Context, providerMessageID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM emails WHERE provider_message_id = $1)",
		providerMessageID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check message existence: %w", err)
	}
	return exists, nil
}

// InsertMessage inserts one canonical message. A duplicate
// provider_message_id is a silent no-op, never an error.
func (s *Postgres) InsertMessage(ctx context.Context, msg inbox.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO emails
		    (id, provider_message_id, provider_thread_id, direction,
		     from_name, from_email, to_email, subject,
		     body_text, body_html, snippet,
		     is_read, is_starred, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (provider_message_id) DO NOTHING
	`, msg.ID, msg.ProviderMessageID, msg.ProviderThreadID, string(msg.Direction),
		msg.FromName, msg.FromEmail, msg.ToEmail, msg.Subject,
		msg.BodyText, msg.BodyHTML, msg.Snippet,
		msg.IsRead, msg.IsStarred, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ThreadMessages returns every message of a thread, oldest first
func (s *Postgres) ThreadMessages(ctx context.Context, threadID string) ([]inbox.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, provider_message_id, provider_thread_id, direction,
		       from_name, from_email, to_email, subject,
		       body_text, body_html, snippet,
		       is_read, is_starred, created_at
		FROM emails
		WHERE provider_thread_id = $1
		ORDER BY created_at ASC
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query thread: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListThreads returns paginated thread summaries, newest activity first
func (s *Postgres) ListThreads(ctx context.Context, limit, offset int) ([]inbox.ThreadSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		WITH latest AS (
		    SELECT DISTINCT ON (provider_thread_id)
		        provider_thread_id, subject, from_name, from_email, snippet
		    FROM emails
		    ORDER BY provider_thread_id, created_at DESC
		), agg AS (
		    SELECT provider_thread_id,
		           COUNT(*) AS message_count,
		           BOOL_OR(direction = 'outbound') AS has_outbound,
		           BOOL_OR(direction = 'inbound' AND NOT is_read) AS has_unread,
		           MAX(created_at) AS last_message_at
		    FROM emails
		    GROUP BY provider_thread_id
		)
		SELECT l.provider_thread_id, l.subject, l.from_name, l.from_email, l.snippet,
		       a.message_count, a.has_outbound, a.has_unread, a.last_message_at
		FROM latest l
		JOIN agg a USING (provider_thread_id)
		ORDER BY a.last_message_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query threads: %w", err)
	}
	defer rows.Close()

	var summaries []inbox.ThreadSummary
	for rows.Next() {
		var (
			summary     inbox.ThreadSummary
			hasOutbound bool
			hasUnread   bool
		)
		err := rows.Scan(&summary.ProviderThreadID, &summary.Subject,
			&summary.FromName, &summary.FromEmail, &summary.Snippet,
			&summary.MessageCount, &hasOutbound, &hasUnread, &summary.LastMessageAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan thread summary: %w", err)
		}

		switch {
		case hasOutbound:
			summary.Status = inbox.StatusReplied
		case hasUnread:
			summary.Status = inbox.StatusNew
		default:
			summary.Status = inbox.StatusRead
		}
		summaries = append(summaries, summary)
	}

	return summaries, rows.Err()
}

// MarkMessagesRead flips is_read for the given provider message ids
func (s *Postgres) MarkMessagesRead(ctx context.Context, providerMessageIDs []string) error {
	if len(providerMessageIDs) == 0 {
		return nil
	}

	_, err := s.pool.Exec(ctx,
		"UPDATE emails SET is_read = TRUE WHERE provider_message_id = ANY($1)",
		providerMessageIDs)
	if err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}

// SetStarred sets the starred flag on one message
func (s *Postgres) SetStarred(ctx context.Context, providerMessageID string, starred bool) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE emails SET is_starred = $2 WHERE provider_message_id = $1",
		providerMessageID, starred)
	if err != nil {
		return fmt.Errorf("failed to set starred flag: %w", err)
	}
	return nil
}

// DeleteThread removes every row sharing a thread id
func (s *Postgres) DeleteThread(ctx context.Context, threadID string) error {
	_, err := s.pool.Exec(ctx,
		"DELETE FROM emails WHERE provider_thread_id = $1", threadID)
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	return nil
}

// InsertContact stores one contact-form submission
func (s *Postgres) InsertContact(ctx context.Context, c Contact) (*Contact, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = "new"
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO contacts (id, name, email, phone, topic, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.Name, c.Email, c.Phone, c.Topic, c.Message, c.Status, c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert contact: %w", err)
	}

	return &c, nil
}

func scanMessages(rows pgx.Rows) ([]inbox.Message, error) {
	var messages []inbox.Message
	for rows.Next() {
		var (
			msg       inbox.Message
			direction string
		)
		err := rows.Scan(&msg.ID, &msg.ProviderMessageID, &msg.ProviderThreadID,
			&direction, &msg.FromName, &msg.FromEmail, &msg.ToEmail, &msg.Subject,
			&msg.BodyText, &msg.BodyHTML, &msg.Snippet,
			&msg.IsRead, &msg.IsStarred, &msg.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msg.Direction = inbox.Direction(direction)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
