package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"study-sms-server/internal/db"
	"study-sms-server/internal/models"
	"study-sms-server/internal/twilio"
	"study-sms-server/pkg/logger"

	"go.uber.org/zap"
)

var (
	// ErrMessageNotFound indicates the send record does not exist
	ErrMessageNotFound = errors.New("message not found")

	// ErrNotResendable indicates the message is not in a failed state
	ErrNotResendable = errors.New("only failed or undelivered messages can be resent")
)

// friendlyNameToken is replaced with the participant's friendly name in
// template bodies. Left untouched when no friendly name is set.
const friendlyNameToken = "%F"

// MessageStats summarizes send activity for the operator dashboard
type MessageStats struct {
	Total        int            `json:"total"`
	ByStatus     map[string]int `json:"by_status"`
	Participants int            `json:"participants"`
}

// MessageService orchestrates one-message delivery: it personalizes the
// template body, persists the send record, dispatches through the provider,
// and reconciles status callbacks.
type MessageService struct {
	messages        db.MessageRepository
	participants    db.ParticipantRepository
	dispatcher      twilio.Dispatcher
	externalBaseURL string
	clock           func() time.Time
}

// NewMessageService creates a MessageService. externalBaseURL is the public
// address the provider can reach for status callbacks; empty disables them.
func NewMessageService(messages db.MessageRepository, participants db.ParticipantRepository, dispatcher twilio.Dispatcher, externalBaseURL string) *MessageService {
	return &MessageService{
		messages:        messages,
		participants:    participants,
		dispatcher:      dispatcher,
		externalBaseURL: strings.TrimRight(externalBaseURL, "/"),
		clock:           time.Now,
	}
}

// WithClock replaces the time source, for tests
func (s *MessageService) WithClock(clock func() time.Time) *MessageService {
	s.clock = clock
	return s
}

// Personalize substitutes the friendly-name token into a template body. The
// token stays as written when the participant has no friendly name.
func Personalize(content string, p *models.Participant) string {
	if p == nil || p.FriendlyName == nil || *p.FriendlyName == "" {
		return content
	}
	return strings.ReplaceAll(content, friendlyNameToken, *p.FriendlyName)
}

// Send delivers one message to one participant. The send record is written
// before dispatch so a crash mid-send leaves an auditable "sending" row; the
// dispatch outcome is recorded on the returned Message rather than returned
// as an error.
func (s *MessageService) Send(ctx context.Context, p *models.Participant, content, bucket string, contentID *int64) (*models.Message, error) {
	if p == nil {
		return nil, fmt.Errorf("participant cannot be nil")
	}
	if content == "" {
		return nil, fmt.Errorf("message content cannot be empty")
	}

	body := Personalize(content, p)

	msg := &models.Message{
		ParticipantID: p.ID,
		ContentID:     contentID,
		Content:       body,
		Bucket:        bucket,
		Status:        models.StatusSending,
		SentAt:        s.clock().Unix(),
	}
	if err := s.messages.Create(msg); err != nil {
		return nil, fmt.Errorf("failed to record message: %w", err)
	}

	s.dispatch(ctx, msg, p)
	return msg, nil
}

// Resend dispatches a fresh copy of a failed message. The frozen body is sent
// verbatim, so the participant receives exactly what the failed attempt
// carried; the new record references the same template.
func (s *MessageService) Resend(ctx context.Context, messageID int64) (*models.Message, error) {
	original, err := s.messages.GetByID(messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if original == nil {
		return nil, ErrMessageNotFound
	}
	if !models.IsResendableStatus(original.Status) {
		return nil, ErrNotResendable
	}

	p, err := s.participants.GetByID(original.ParticipantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	if p == nil {
		return nil, ErrParticipantNotFound
	}

	msg := &models.Message{
		ParticipantID: p.ID,
		ContentID:     original.ContentID,
		Content:       original.Content,
		Bucket:        original.Bucket,
		Status:        models.StatusSending,
		SentAt:        s.clock().Unix(),
	}
	if err := s.messages.Create(msg); err != nil {
		return nil, fmt.Errorf("failed to record resend: %w", err)
	}

	logger.Info("Resending message",
		zap.Int64("original_id", original.ID),
		zap.Int64("message_id", msg.ID),
		zap.String("pid", p.PID),
	)

	s.dispatch(ctx, msg, p)
	return msg, nil
}

// dispatch pushes the recorded message through the provider and reconciles
// the record with the outcome
func (s *MessageService) dispatch(ctx context.Context, msg *models.Message, p *models.Participant) {
	sid, err := s.dispatcher.SendSMS(ctx, p.PhoneNumber, msg.Content, s.callbackURL(msg.ID))
	if err != nil {
		msg.Status = models.StatusFailed
		errText := err.Error()
		msg.Error = &errText
		logger.Error("Dispatch failed",
			zap.Int64("message_id", msg.ID),
			zap.String("pid", p.PID),
			zap.Error(err),
		)
	} else {
		msg.Status = models.StatusSent
		msg.TwilioSID = &sid
		logger.Info("Message dispatched",
			zap.Int64("message_id", msg.ID),
			zap.String("pid", p.PID),
			zap.String("twilio_sid", sid),
		)
	}

	if err := s.messages.Update(msg); err != nil {
		logger.Error("Failed to record dispatch outcome",
			zap.Int64("message_id", msg.ID),
			zap.Error(err),
		)
	}
}

// callbackURL builds the public status-callback address for one message.
// Returns empty when no external base URL is configured, which disables
// provider callbacks for that message.
func (s *MessageService) callbackURL(messageID int64) string {
	if s.externalBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/api/sms/status-callback/%d", s.externalBaseURL, messageID)
}

// UpdateStatus applies a provider delivery callback to a send record.
// Terminal statuses are sticky: late or duplicate callbacks against a
// delivered, failed, or undelivered message are logged and ignored.
func (s *MessageService) UpdateStatus(messageID int64, providerStatus, errorMessage string) (*models.Message, error) {
	msg, err := s.messages.GetByID(messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}

	if msg.IsTerminal() {
		logger.Warn("Ignoring callback for terminal message",
			zap.Int64("message_id", msg.ID),
			zap.String("current_status", msg.Status),
			zap.String("callback_status", providerStatus),
		)
		return msg, nil
	}

	status := strings.ToLower(strings.TrimSpace(providerStatus))
	if status == "" {
		status = "unknown"
	}

	msg.Status = status
	switch status {
	case models.StatusDelivered:
		deliveredAt := s.clock().Unix()
		msg.DeliveredAt = &deliveredAt
		msg.Error = nil
	case models.StatusFailed, models.StatusUndelivered:
		if errorMessage == "" {
			errorMessage = "Unknown error"
		}
		msg.Error = &errorMessage
	}

	if err := s.messages.Update(msg); err != nil {
		return nil, fmt.Errorf("failed to update message status: %w", err)
	}

	logger.Info("Message status updated",
		zap.Int64("message_id", msg.ID),
		zap.String("status", msg.Status),
	)
	return msg, nil
}

// GetByID retrieves a send record by ID
func (s *MessageService) GetByID(id int64) (*models.Message, error) {
	msg, err := s.messages.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	return msg, nil
}

// History retrieves send records matching the filter, newest first
func (s *MessageService) History(filter db.MessageFilter) ([]*models.Message, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.messages.List(filter)
}

// Stats summarizes send activity matching the filter
func (s *MessageService) Stats(filter db.MessageFilter) (*MessageStats, error) {
	byStatus, err := s.messages.CountByStatus(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	participants, err := s.messages.CountDistinctParticipants(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}

	total := 0
	for _, count := range byStatus {
		total += count
	}

	return &MessageStats{
		Total:        total,
		ByStatus:     byStatus,
		Participants: participants,
	}, nil
}
