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

// ParticipantHandler handles participant management requests
type ParticipantHandler struct {
	participants ParticipantServiceInterface
}

// NewParticipantHandler creates a new participant handler
func NewParticipantHandler(participants ParticipantServiceInterface) *ParticipantHandler {
	return &ParticipantHandler{participants: participants}
}

// Create handles POST /api/participants
func (h *ParticipantHandler) Create(c *gin.Context) {
	var req models.CreateParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid participant create request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	p, err := h.participants.Create(&req)
	if err != nil {
		if errors.Is(err, services.ErrDuplicatePID) {
			c.JSON(http.StatusConflict, gin.H{"error": "Participant ID already exists"})
			return
		}
		logger.Warn("Participant creation failed",
			zap.String("pid", req.PID),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, p)
}

// Get handles GET /api/participants/:id
func (h *ParticipantHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	p, err := h.participants.GetByID(id)
	if err != nil {
		if errors.Is(err, services.ErrParticipantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Participant not found"})
			return
		}
		logger.Error("Failed to get participant", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get participant"})
		return
	}

	c.JSON(http.StatusOK, p)
}

// GetByPID handles GET /api/participants/pid/:pid
func (h *ParticipantHandler) GetByPID(c *gin.Context) {
	pid := c.Param("pid")
	if pid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Participant ID is required"})
		return
	}

	p, err := h.participants.GetByPID(pid)
	if err != nil {
		if errors.Is(err, services.ErrParticipantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Participant not found"})
			return
		}
		logger.Error("Failed to get participant", zap.String("pid", pid), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get participant"})
		return
	}

	c.JSON(http.StatusOK, p)
}

// Update handles PATCH /api/participants/:id
func (h *ParticipantHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req models.UpdateParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	p, err := h.participants.Update(id, &req)
	if err != nil {
		if errors.Is(err, services.ErrParticipantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Participant not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, p)
}

// Delete handles DELETE /api/participants/:id
func (h *ParticipantHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.participants.Delete(id); err != nil {
		if errors.Is(err, services.ErrParticipantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Participant not found"})
			return
		}
		logger.Error("Failed to delete participant", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete participant"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Participant deleted"})
}

// List handles GET /api/participants
func (h *ParticipantHandler) List(c *gin.Context) {
	filter := db.ParticipantFilter{
		StudyGroup: c.Query("study_group"),
		Limit:      intQuery(c, "limit", 100),
		Offset:     intQuery(c, "offset", 0),
	}
	if v := c.Query("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid active filter"})
			return
		}
		filter.Active = &active
	}

	participants, err := h.participants.List(filter)
	if err != nil {
		logger.Error("Failed to list participants", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list participants"})
		return
	}

	if participants == nil {
		participants = []*models.Participant{}
	}
	c.JSON(http.StatusOK, gin.H{
		"participants": participants,
		"count":        len(participants),
	})
}

// parseID extracts the numeric :id route parameter, writing the error
// response itself on failure
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return id, true
}

// intQuery reads an integer query parameter with a fallback
func intQuery(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
