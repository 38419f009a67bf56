package models

// FitbitToken holds the OAuth token pair for one participant. Token values
// are stored AES-encrypted at rest; the fields here carry plaintext only
// in memory after the repository has decrypted them.
type FitbitToken struct {
	ID            int64  `json:"id"`
	ParticipantID int64  `json:"participant_id"`
	AccessToken   string `json:"-"` // EXCLUDED from JSON
	RefreshToken  string `json:"-"` // EXCLUDED from JSON
	ExpiresAt     int64  `json:"expires_at"` // Unix timestamp
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
}

// FitbitStatusResponse is the connection status reported to operators
type FitbitStatusResponse struct {
	ParticipantID int64  `json:"participant_id"`
	PID           string `json:"pid"`
	Connected     bool   `json:"connected"`
	ExpiresAt     *int64 `json:"expires_at,omitempty"`
}
