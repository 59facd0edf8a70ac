package server

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/webfolio/mail-infra/internal/auth"
	"github.com/webfolio/mail-infra/internal/contact"
	"github.com/webfolio/mail-infra/internal/eventstore/sqlite"
	"github.com/webfolio/mail-infra/internal/inbox"
)

// SyncService runs one synchronization pass
type SyncService interface {
	RunSync(ctx context.Context) (int, error)
}

// MailOps covers the operator actions that touch both the provider and
// the store
type MailOps interface {
	SendReply(ctx context.Context, threadID, to, subject, html string) error
	DeleteThread(ctx context.Context, threadID string) error
	MarkRead(ctx context.Context, providerMessageIDs []string) error
	SetStarred(ctx context.Context, providerMessageID string, starred bool) error
}

// ThreadReader serves the operator's inbox views
type ThreadReader interface {
	ListThreads(ctx context.Context, limit, offset int) ([]inbox.ThreadSummary, error)
	ThreadMessages(ctx context.Context, threadID string) ([]inbox.Message, error)
}

// ContactIntake accepts public contact-form submissions
type ContactIntake interface {
	Submit(ctx context.Context, sub contact.Submission) error
}

// RunLog exposes the sync-run ledger
type RunLog interface {
	LastRun(ctx context.Context) (*sqlite.SyncRun, error)
}

// Prober checks provider connectivity
type Prober interface {
	Profile(ctx context.Context) (string, error)
}

// Server bundles the HTTP surface's collaborators
type Server struct {
	Sync     SyncService
	Ops      MailOps
	Threads  ThreadReader
	Contacts ContactIntake
	Runs     RunLog
	Probe    Prober
}

// Router builds the gin engine. verifier may come from any JWKS-backed
// auth provider; adminEmail gates the back-office group.
func (s *Server) Router(verifier auth.Verifier, adminEmail string) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", s.handleHealthz)
	r.POST("/api/contact", s.handleContact)

	admin := r.Group("/api/admin")
	admin.Use(auth.RequireAdmin(verifier, adminEmail))

	admin.POST("/sync-emails", s.handleSync)
	admin.POST("/reply", s.handleReply)
	admin.POST("/delete-thread", s.handleDeleteThread)
	admin.POST("/mark-read", s.handleMarkRead)
	admin.POST("/star", s.handleStar)
	admin.GET("/threads", s.handleListThreads)
	admin.GET("/threads/:threadId", s.handleThread)
	admin.GET("/sync-status", s.handleSyncStatus)
	admin.GET("/ping", s.handlePing)

	return r
}
