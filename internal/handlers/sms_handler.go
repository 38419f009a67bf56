package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"study-sms-server/internal/db"
	"study-sms-server/internal/models"
	"study-sms-server/internal/services"
	"study-sms-server/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SMSHandler handles send history, delivery callbacks, and run triggers
type SMSHandler struct {
	messages     MessageServiceInterface
	participants ParticipantServiceInterface
	runner       RunTrigger
}

// NewSMSHandler creates a new SMS handler
func NewSMSHandler(messages MessageServiceInterface, participants ParticipantServiceInterface, runner RunTrigger) *SMSHandler {
	return &SMSHandler{
		messages:     messages,
		participants: participants,
		runner:       runner,
	}
}

// History handles GET /api/sms/history, newest first
func (h *SMSHandler) History(c *gin.Context) {
	filter := db.MessageFilter{
		Status: c.Query("status"),
		Limit:  intQuery(c, "limit", 100),
		Offset: intQuery(c, "offset", 0),
	}
	if v := c.Query("participant_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid participant_id filter"})
			return
		}
		filter.ParticipantID = &id
	}
	if v := c.Query("sent_after"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sent_after filter"})
			return
		}
		filter.SentAfter = &ts
	}
	if v := c.Query("sent_before"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sent_before filter"})
			return
		}
		filter.SentBefore = &ts
	}

	messages, err := h.messages.History(filter)
	if err != nil {
		logger.Error("Failed to load message history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}

	if messages == nil {
		messages = []*models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"count":    len(messages),
	})
}

// Stats handles GET /api/sms/stats
func (h *SMSHandler) Stats(c *gin.Context) {
	filter := db.MessageFilter{}
	if v := c.Query("sent_after"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sent_after filter"})
			return
		}
		filter.SentAfter = &ts
	}

	stats, err := h.messages.Stats(filter)
	if err != nil {
		logger.Error("Failed to load message stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Resend handles POST /api/sms/resend/:id. Only failed or undelivered
// messages qualify; the frozen body is dispatched again as a new record.
func (h *SMSHandler) Resend(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	msg, err := h.messages.Resend(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		case errors.Is(err, services.ErrNotResendable):
			c.JSON(http.StatusConflict, gin.H{"error": "Only failed or undelivered messages can be resent"})
		case errors.Is(err, services.ErrParticipantNotFound):
			c.JSON(http.StatusConflict, gin.H{"error": "Participant no longer exists"})
		default:
			logger.Error("Resend failed", zap.Int64("message_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Resend failed"})
		}
		return
	}

	c.JSON(http.StatusOK, msg)
}

// WindowTimes handles GET /api/sms/window-times, the distribution of
// configured send windows across participants
func (h *SMSHandler) WindowTimes(c *gin.Context) {
	starts, ends, err := h.participants.WindowTimes()
	if err != nil {
		logger.Error("Failed to load window times", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load window times"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"window_starts": starts,
		"window_ends":   ends,
	})
}

// StatusCallback handles POST /api/sms/status-callback/:id. Twilio posts
// form-encoded delivery updates here; the route is public because the
// provider cannot carry a bearer token, and an unknown message ID gets a 200
// so the provider stops retrying.
func (h *SMSHandler) StatusCallback(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return
	}

	status := c.PostForm("MessageStatus")
	errorMessage := c.PostForm("ErrorMessage")

	if _, err := h.messages.UpdateStatus(id, status, errorMessage); err != nil {
		if errors.Is(err, services.ErrMessageNotFound) {
			logger.Warn("Callback for unknown message", zap.Int64("message_id", id))
			c.JSON(http.StatusOK, gin.H{"message": "Ignored"})
			return
		}
		logger.Error("Failed to apply status callback",
			zap.Int64("message_id", id),
			zap.String("status", status),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Status updated"})
}

// SendScheduled handles POST /api/sms/send-scheduled, triggering one batch
// run immediately instead of waiting for the cron tick
func (h *SMSHandler) SendScheduled(c *gin.Context) {
	sent, err := h.runner.RunOnce(c.Request.Context())
	if err != nil {
		logger.Error("Manual run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Scheduled run failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sent": sent})
}
