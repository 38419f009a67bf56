package handlers

import (
	"errors"
	"net/http"

	"study-sms-server/internal/services"
	"study-sms-server/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FitbitHandler handles the participant Fitbit connection flow
type FitbitHandler struct {
	fitbit FitbitServiceInterface
}

// NewFitbitHandler creates a new Fitbit handler
func NewFitbitHandler(fitbit FitbitServiceInterface) *FitbitHandler {
	return &FitbitHandler{fitbit: fitbit}
}

// Authorize handles GET /api/fitbit/authorize/:pid and redirects the
// participant's browser to the Fitbit consent page
func (h *FitbitHandler) Authorize(c *gin.Context) {
	pid := c.Param("pid")
	if pid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Participant ID is required"})
		return
	}

	authURL, err := h.fitbit.AuthorizeURL(pid)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrParticipantNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Participant not found"})
		case errors.Is(err, services.ErrFitbitNotConfigured):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Fitbit integration is not configured"})
		default:
			logger.Error("Failed to build authorize URL", zap.String("pid", pid), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start authorization"})
		}
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

// Callback handles GET /api/fitbit/callback, the OAuth redirect target. The
// route is public: the participant arrives here from Fitbit's consent page
// with only the code and state.
func (h *FitbitHandler) Callback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		logger.Warn("Fitbit authorization denied",
			zap.String("error", errParam),
			zap.String("state", c.Query("state")),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Authorization was denied"})
		return
	}

	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing code or state"})
		return
	}

	p, err := h.fitbit.HandleCallback(c.Request.Context(), code, state)
	if err != nil {
		if errors.Is(err, services.ErrParticipantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Participant not found"})
			return
		}
		logger.Error("Fitbit callback failed", zap.String("state", state), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to complete authorization"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Fitbit account connected",
		"pid":     p.PID,
	})
}

// Refresh handles POST /api/fitbit/refresh/:pid and forces a token refresh
// ahead of the natural expiry
func (h *FitbitHandler) Refresh(c *gin.Context) {
	pid := c.Param("pid")
	if pid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Participant ID is required"})
		return
	}

	status, err := h.fitbit.RefreshByPID(c.Request.Context(), pid)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrParticipantNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Participant not found"})
		case errors.Is(err, services.ErrFitbitNotConnected):
			c.JSON(http.StatusConflict, gin.H{"error": "Participant has no Fitbit connection"})
		default:
			logger.Error("Token refresh failed", zap.String("pid", pid), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to refresh token"})
		}
		return
	}

	c.JSON(http.StatusOK, status)
}

// Status handles GET /api/fitbit/status/:pid
func (h *FitbitHandler) Status(c *gin.Context) {
	pid := c.Param("pid")
	if pid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Participant ID is required"})
		return
	}

	status, err := h.fitbit.Status(pid)
	if err != nil {
		if errors.Is(err, services.ErrParticipantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Participant not found"})
			return
		}
		logger.Error("Failed to load fitbit status", zap.String("pid", pid), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load status"})
		return
	}

	c.JSON(http.StatusOK, status)
}

// Disconnect handles DELETE /api/fitbit/:pid
func (h *FitbitHandler) Disconnect(c *gin.Context) {
	pid := c.Param("pid")
	if pid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Participant ID is required"})
		return
	}

	if err := h.fitbit.Disconnect(pid); err != nil {
		if errors.Is(err, services.ErrParticipantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Participant not found"})
			return
		}
		logger.Error("Failed to disconnect fitbit", zap.String("pid", pid), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to disconnect"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Fitbit account disconnected"})
}
