package models

// Message status vocabulary. "sending" and "queued" are initial, "sent" means
// the provider accepted the dispatch, and the remaining three are terminal.
const (
	StatusSending     = "sending"
	StatusQueued      = "queued"
	StatusSent        = "sent"
	StatusDelivered   = "delivered"
	StatusFailed      = "failed"
	StatusUndelivered = "undelivered"
)

// IsTerminalStatus reports whether a status admits no further transitions
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusDelivered, StatusFailed, StatusUndelivered:
		return true
	}
	return false
}

// IsResendableStatus reports whether a message in this status may be resent
func IsResendableStatus(status string) bool {
	return status == StatusFailed || status == StatusUndelivered
}

// MessageContent is a reusable message template. The body may contain the %F
// token, replaced with the participant's friendly name at send time.
type MessageContent struct {
	ID        int64  `json:"id"`
	Content   string `json:"content" binding:"required"`
	Bucket    string `json:"bucket" binding:"required"` // Must match Participant.StudyGroup to be eligible
	Active    bool   `json:"active"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// CreateMessageContentRequest is the request body for creating a template
type CreateMessageContentRequest struct {
	Content string `json:"content" binding:"required"`
	Bucket  string `json:"bucket" binding:"required"`
	Active  *bool  `json:"active,omitempty"`
}

// UpdateMessageContentRequest is the request body for partial template updates
type UpdateMessageContentRequest struct {
	Content *string `json:"content,omitempty"`
	Bucket  *string `json:"bucket,omitempty"`
	Active  *bool   `json:"active,omitempty"`
}

// Message is the send record for one SMS to one participant. It freezes the
// text and bucket at send time so template edits and deletions never corrupt
// history; ContentID is only a weak reference back to the template.
type Message struct {
	ID            int64   `json:"id"`
	ParticipantID int64   `json:"participant_id"`
	ContentID     *int64  `json:"content_id,omitempty"`
	Content       string  `json:"content"`
	Bucket        string  `json:"bucket"`
	Status        string  `json:"status"`
	SentAt        int64   `json:"sent_at"`                // Unix timestamp, set at creation, never changes
	DeliveredAt   *int64  `json:"delivered_at,omitempty"` // Unix timestamp, set on delivery confirmation
	TwilioSID     *string `json:"twilio_sid,omitempty"`
	Error         *string `json:"error,omitempty"`
}

// IsTerminal reports whether the message status admits no further transitions
func (m *Message) IsTerminal() bool {
	return IsTerminalStatus(m.Status)
}
