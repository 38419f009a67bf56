package services

import (
	"errors"

	"study-sms-server/internal/config"
	"study-sms-server/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials indicates authentication failure
var ErrInvalidCredentials = errors.New("invalid username or password")

// CredentialStore verifies operator credentials
type CredentialStore interface {
	Verify(username, password string) error
}

// ConfigCredentialStore verifies credentials against the single researcher
// identity carried in the config: one username and one bcrypt password hash.
type ConfigCredentialStore struct {
	username     string
	passwordHash string
}

// NewConfigCredentialStore creates a CredentialStore backed by the config
func NewConfigCredentialStore(cfg *config.Config) *ConfigCredentialStore {
	return &ConfigCredentialStore{
		username:     cfg.Auth.ResearcherUsername,
		passwordHash: cfg.Auth.ResearcherPasswordHash,
	}
}

// Verify checks the username and password. Both the identity mismatch and a
// wrong password collapse into the same error so the response never reveals
// which half was wrong.
func (s *ConfigCredentialStore) Verify(username, password string) error {
	if s.username == "" || s.passwordHash == "" {
		logger.Error("Researcher credentials are not configured")
		return ErrInvalidCredentials
	}

	if username != s.username {
		return ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		logger.Warn("Failed login attempt", zap.String("username", username))
		return ErrInvalidCredentials
	}

	return nil
}
