package models

import "time"

// Participant represents a study participant enrolled for scheduled messaging
// Window times are stored as "HH:MM" strings and the start date as "YYYY-MM-DD"
// All times are interpreted against the participant's timezone offset
type Participant struct {
	ID           int64   `json:"id"`
	PID          string  `json:"pid" binding:"required,min=1,max=100"` // Operator-assigned external participant ID, unique
	FriendlyName *string `json:"friendly_name,omitempty"`              // Used for %F token substitution in templates
	PhoneNumber  string  `json:"phone_number" binding:"required"`

	// Study information
	StudyGroup string  `json:"study_group" binding:"required"` // Bucket label matching MessageContent.Bucket
	StartDate  *string `json:"start_date,omitempty"`           // Messages suppressed before this UTC date

	// Daily local send window; both must be set for the participant to be scheduled
	SMSWindowStart *string `json:"sms_window_start,omitempty"`
	SMSWindowEnd   *string `json:"sms_window_end,omitempty"`

	// Minutes from UTC, signed (e.g. -300 for UTC-5)
	TimezoneOffset int `json:"timezone_offset"`

	Active          bool `json:"active"`
	FitbitConnected bool `json:"fitbit_connected"`

	CreatedAt int64 `json:"created_at"` // Unix timestamp
	UpdatedAt int64 `json:"updated_at"` // Unix timestamp
}

// HasSchedule reports whether the participant carries all fields required for
// scheduled messaging. Participants without a full schedule are never batched.
func (p *Participant) HasSchedule() bool {
	return p.StartDate != nil && p.SMSWindowStart != nil && p.SMSWindowEnd != nil
}

// CreateParticipantRequest is the request body for creating a participant
type CreateParticipantRequest struct {
	PID            string  `json:"pid" binding:"required,min=1,max=100"`
	FriendlyName   *string `json:"friendly_name,omitempty"`
	PhoneNumber    string  `json:"phone_number" binding:"required"`
	StudyGroup     string  `json:"study_group" binding:"required"`
	StartDate      *string `json:"start_date,omitempty"`
	SMSWindowStart *string `json:"sms_window_start,omitempty"`
	SMSWindowEnd   *string `json:"sms_window_end,omitempty"`
	TimezoneOffset *int    `json:"timezone_offset,omitempty"`
	Active         *bool   `json:"active,omitempty"`
}

// UpdateParticipantRequest is the request body for partial participant updates
// Nil fields are left unchanged
type UpdateParticipantRequest struct {
	FriendlyName   *string `json:"friendly_name,omitempty"`
	PhoneNumber    *string `json:"phone_number,omitempty"`
	StudyGroup     *string `json:"study_group,omitempty"`
	StartDate      *string `json:"start_date,omitempty"`
	SMSWindowStart *string `json:"sms_window_start,omitempty"`
	SMSWindowEnd   *string `json:"sms_window_end,omitempty"`
	TimezoneOffset *int    `json:"timezone_offset,omitempty"`
	Active         *bool   `json:"active,omitempty"`
}

// NewParticipant creates a participant with defaults applied
func NewParticipant(req *CreateParticipantRequest) *Participant {
	now := time.Now().Unix()
	p := &Participant{
		PID:            req.PID,
		FriendlyName:   req.FriendlyName,
		PhoneNumber:    req.PhoneNumber,
		StudyGroup:     req.StudyGroup,
		StartDate:      req.StartDate,
		SMSWindowStart: req.SMSWindowStart,
		SMSWindowEnd:   req.SMSWindowEnd,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.TimezoneOffset != nil {
		p.TimezoneOffset = *req.TimezoneOffset
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	return p
}
