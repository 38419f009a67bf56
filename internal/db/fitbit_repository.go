package db

import (
	"database/sql"
	"fmt"
	"time"

	"study-sms-server/internal/models"
	"study-sms-server/pkg/utils"
)

// FitbitTokenRepository defines the interface for OAuth token storage.
// Token values are encrypted at rest when an encryption key is configured.
type FitbitTokenRepository interface {
	Upsert(token *models.FitbitToken) error
	GetByParticipantID(participantID int64) (*models.FitbitToken, error)
	DeleteByParticipantID(participantID int64) error
}

type fitbitTokenRepository struct {
	db            *sql.DB
	encryptionKey string
}

// NewFitbitTokenRepository creates a new FitbitTokenRepository. An empty
// encryptionKey stores token values in plaintext (development only).
func NewFitbitTokenRepository(db *sql.DB, encryptionKey string) FitbitTokenRepository {
	return &fitbitTokenRepository{db: db, encryptionKey: encryptionKey}
}

func (r *fitbitTokenRepository) seal(value string) (string, error) {
	if r.encryptionKey == "" {
		return value, nil
	}
	return utils.EncryptSecret(value, r.encryptionKey)
}

func (r *fitbitTokenRepository) open(value string) (string, error) {
	if r.encryptionKey == "" {
		return value, nil
	}
	return utils.DecryptSecret(value, r.encryptionKey)
}

// Upsert stores or replaces the token pair for a participant
func (r *fitbitTokenRepository) Upsert(token *models.FitbitToken) error {
	if token == nil {
		return fmt.Errorf("token cannot be nil")
	}
	if token.ParticipantID <= 0 {
		return fmt.Errorf("token participant ID must be positive")
	}
	if token.AccessToken == "" || token.RefreshToken == "" {
		return fmt.Errorf("token values cannot be empty")
	}

	access, err := r.seal(token.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refresh, err := r.seal(token.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	now := time.Now().Unix()
	token.UpdatedAt = now
	if token.CreatedAt == 0 {
		token.CreatedAt = now
	}

	_, err = r.db.Exec(`
		INSERT INTO fitbit_tokens (participant_id, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(participant_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		token.ParticipantID, access, refresh, token.ExpiresAt, token.CreatedAt, token.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert fitbit token: %w", err)
	}

	return nil
}

// GetByParticipantID retrieves and decrypts the token pair for a participant
func (r *fitbitTokenRepository) GetByParticipantID(participantID int64) (*models.FitbitToken, error) {
	if participantID <= 0 {
		return nil, fmt.Errorf("participant ID must be positive")
	}

	token := &models.FitbitToken{}
	err := r.db.QueryRow(`
		SELECT id, participant_id, access_token, refresh_token, expires_at, created_at, updated_at
		FROM fitbit_tokens WHERE participant_id = ?`, participantID,
	).Scan(
		&token.ID,
		&token.ParticipantID,
		&token.AccessToken,
		&token.RefreshToken,
		&token.ExpiresAt,
		&token.CreatedAt,
		&token.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fitbit token: %w", err)
	}

	if token.AccessToken, err = r.open(token.AccessToken); err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	if token.RefreshToken, err = r.open(token.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	return token, nil
}

// DeleteByParticipantID removes the stored token pair for a participant
func (r *fitbitTokenRepository) DeleteByParticipantID(participantID int64) error {
	if participantID <= 0 {
		return fmt.Errorf("participant ID must be positive")
	}

	_, err := r.db.Exec("DELETE FROM fitbit_tokens WHERE participant_id = ?", participantID)
	if err != nil {
		return fmt.Errorf("failed to delete fitbit token: %w", err)
	}
	return nil
}
