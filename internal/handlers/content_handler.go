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

// ContentHandler handles message template management requests
type ContentHandler struct {
	contents ContentServiceInterface
}

// NewContentHandler creates a new content handler
func NewContentHandler(contents ContentServiceInterface) *ContentHandler {
	return &ContentHandler{contents: contents}
}

// Create handles POST /api/templates
func (h *ContentHandler) Create(c *gin.Context) {
	var req models.CreateMessageContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	mc, err := h.contents.Create(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, mc)
}

// Get handles GET /api/templates/:id
func (h *ContentHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	mc, err := h.contents.GetByID(id)
	if err != nil {
		if errors.Is(err, services.ErrContentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}
		logger.Error("Failed to get template", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get template"})
		return
	}

	c.JSON(http.StatusOK, mc)
}

// Update handles PATCH /api/templates/:id
func (h *ContentHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req models.UpdateMessageContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	mc, err := h.contents.Update(id, &req)
	if err != nil {
		if errors.Is(err, services.ErrContentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, mc)
}

// Delete handles DELETE /api/templates/:id. History keeps its frozen copy of
// the text, so deleting a template never breaks past send records.
func (h *ContentHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.contents.Delete(id); err != nil {
		if errors.Is(err, services.ErrContentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}
		logger.Error("Failed to delete template", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete template"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Template deleted"})
}

// List handles GET /api/templates
func (h *ContentHandler) List(c *gin.Context) {
	filter := db.ContentFilter{
		Bucket: c.Query("bucket"),
		Limit:  intQuery(c, "limit", 100),
		Offset: intQuery(c, "offset", 0),
	}
	if v := c.Query("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid active filter"})
			return
		}
		filter.Active = &active
	}

	templates, err := h.contents.List(filter)
	if err != nil {
		logger.Error("Failed to list templates", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list templates"})
		return
	}

	if templates == nil {
		templates = []*models.MessageContent{}
	}
	c.JSON(http.StatusOK, gin.H{
		"templates": templates,
		"count":     len(templates),
	})
}
