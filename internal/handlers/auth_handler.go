package handlers

import (
	"net/http"

	"study-sms-server/internal/config"
	"study-sms-server/internal/services"
	"study-sms-server/pkg/logger"
	"study-sms-server/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthHandler handles researcher authentication
type AuthHandler struct {
	credentials services.CredentialStore
	config      *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(credentials services.CredentialStore, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		credentials: credentials,
		config:      cfg,
	}
}

// Token handles POST /api/auth/token and returns a JWT for the researcher
func (h *AuthHandler) Token(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	if err := h.credentials.Verify(req.Username, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := middleware.GenerateToken(req.Username, h.config)
	if err != nil {
		logger.Error("Failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	logger.Info("Researcher authenticated", zap.String("username", req.Username))
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(h.config.JWT.TokenExpiry.Seconds()),
	})
}
