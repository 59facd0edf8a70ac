package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/webfolio/mail-infra/internal/contact"
	"github.com/webfolio/mail-infra/internal/mail"
)

type replyRequest struct {
	ThreadID string `json:"threadId" binding:"required"`
	To       string `json:"to" binding:"required"`
	Subject  string `json:"subject"`
	HTML     string `json:"html" binding:"required"`
}

type deleteThreadRequest struct {
	ThreadID string `json:"threadId" binding:"required"`
}

type markReadRequest struct {
	MessageIDs []string `json:"messageIds"`
}

type starRequest struct {
	MessageID string `json:"messageId" binding:"required"`
	Starred   bool   `json:"starred"`
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleContact(c *gin.Context) {
	var sub contact.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	if err := s.Contacts.Submit(c.Request.Context(), sub); err != nil {
		log.Printf("contact: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "could not deliver message"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleSync(c *gin.Context) {
	threadsSynced, err := s.Sync.RunSync(c.Request.Context())
	if err != nil {
		log.Printf("sync: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "threadsSynced": threadsSynced})
}

func (s *Server) handleReply(c *gin.Context) {
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "missing required fields"})
		return
	}

	if err := s.Ops.SendReply(c.Request.Context(), req.ThreadID, req.To, req.Subject, req.HTML); err != nil {
		log.Printf("reply: %v", err)
		status := http.StatusInternalServerError
		if errors.Is(err, mail.ErrSendFailed) {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleDeleteThread(c *gin.Context) {
	var req deleteThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "threadId required"})
		return
	}

	if err := s.Ops.DeleteThread(c.Request.Context(), req.ThreadID); err != nil {
		log.Printf("delete thread: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleMarkRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if len(req.MessageIDs) == 0 {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	if err := s.Ops.MarkRead(c.Request.Context(), req.MessageIDs); err != nil {
		log.Printf("mark read: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleStar(c *gin.Context) {
	var req starRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "messageId required"})
		return
	}

	if err := s.Ops.SetStarred(c.Request.Context(), req.MessageID, req.Starred); err != nil {
		log.Printf("star: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleListThreads(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	threads, err := s.Threads.ListThreads(c.Request.Context(), limit, offset)
	if err != nil {
		log.Printf("list threads: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

func (s *Server) handleThread(c *gin.Context) {
	threadID := c.Param("threadId")

	messages, err := s.Threads.ThreadMessages(c.Request.Context(), threadID)
	if err != nil {
		log.Printf("thread %s: %v", threadID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (s *Server) handleSyncStatus(c *gin.Context) {
	run, err := s.Runs.LastRun(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if run == nil {
		c.JSON(http.StatusOK, gin.H{"status": "never"})
		return
	}

	c.JSON(http.StatusOK, run)
}

func (s *Server) handlePing(c *gin.Context) {
	address, err := s.Probe.Profile(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "address": address})
}
