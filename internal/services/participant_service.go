package services

import (
	"errors"
	"fmt"
	"time"

	"study-sms-server/internal/db"
	"study-sms-server/internal/models"
	"study-sms-server/internal/schedule"
	"study-sms-server/pkg/logger"

	"go.uber.org/zap"
)

var (
	// ErrParticipantNotFound indicates the participant does not exist
	ErrParticipantNotFound = errors.New("participant not found")

	// ErrDuplicatePID indicates the external participant ID is already in use
	ErrDuplicatePID = errors.New("participant ID already exists")
)

// ParticipantService provides business logic for participant management
type ParticipantService struct {
	repo db.ParticipantRepository
}

// NewParticipantService creates a new ParticipantService
func NewParticipantService(repo db.ParticipantRepository) *ParticipantService {
	return &ParticipantService{repo: repo}
}

// Create registers a new participant. The PID must be unique; schedule fields
// are optional but validated for format when present.
func (s *ParticipantService) Create(req *models.CreateParticipantRequest) (*models.Participant, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	p := models.NewParticipant(req)
	if err := validateScheduleFields(p); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByPID(p.PID)
	if err != nil {
		return nil, fmt.Errorf("failed to check participant ID: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicatePID
	}

	if err := s.repo.Create(p); err != nil {
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}

	logger.Info("Participant created",
		zap.String("pid", p.PID),
		zap.String("study_group", p.StudyGroup),
	)
	return p, nil
}

// GetByID retrieves a participant by internal ID
func (s *ParticipantService) GetByID(id int64) (*models.Participant, error) {
	p, err := s.repo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	if p == nil {
		return nil, ErrParticipantNotFound
	}
	return p, nil
}

// GetByPID retrieves a participant by their operator-assigned external ID
func (s *ParticipantService) GetByPID(pid string) (*models.Participant, error) {
	if pid == "" {
		return nil, fmt.Errorf("participant ID cannot be empty")
	}
	p, err := s.repo.GetByPID(pid)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	if p == nil {
		return nil, ErrParticipantNotFound
	}
	return p, nil
}

// Update applies a partial update to a participant. Nil request fields are
// left unchanged; the PID is immutable.
func (s *ParticipantService) Update(id int64, req *models.UpdateParticipantRequest) (*models.Participant, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	p, err := s.repo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	if p == nil {
		return nil, ErrParticipantNotFound
	}

	if req.FriendlyName != nil {
		p.FriendlyName = req.FriendlyName
	}
	if req.PhoneNumber != nil {
		if *req.PhoneNumber == "" {
			return nil, fmt.Errorf("phone number cannot be empty")
		}
		p.PhoneNumber = *req.PhoneNumber
	}
	if req.StudyGroup != nil {
		if *req.StudyGroup == "" {
			return nil, fmt.Errorf("study group cannot be empty")
		}
		p.StudyGroup = *req.StudyGroup
	}
	if req.StartDate != nil {
		p.StartDate = req.StartDate
	}
	if req.SMSWindowStart != nil {
		p.SMSWindowStart = req.SMSWindowStart
	}
	if req.SMSWindowEnd != nil {
		p.SMSWindowEnd = req.SMSWindowEnd
	}
	if req.TimezoneOffset != nil {
		p.TimezoneOffset = *req.TimezoneOffset
	}
	if req.Active != nil {
		p.Active = *req.Active
	}

	if err := validateScheduleFields(p); err != nil {
		return nil, err
	}

	p.UpdatedAt = time.Now().Unix()
	if err := s.repo.Update(p); err != nil {
		return nil, fmt.Errorf("failed to update participant: %w", err)
	}

	return p, nil
}

// Delete removes a participant; their message history and stored tokens go
// with them via the schema's cascade.
func (s *ParticipantService) Delete(id int64) error {
	p, err := s.repo.GetByID(id)
	if err != nil {
		return fmt.Errorf("failed to get participant: %w", err)
	}
	if p == nil {
		return ErrParticipantNotFound
	}

	if err := s.repo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}

	logger.Info("Participant deleted", zap.String("pid", p.PID))
	return nil
}

// List retrieves participants matching the filter
func (s *ParticipantService) List(filter db.ParticipantFilter) ([]*models.Participant, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(filter)
}

// WindowTimes returns the distribution of configured window start and end
// times across all participants
func (s *ParticipantService) WindowTimes() (map[string]int, map[string]int, error) {
	return s.repo.WindowTimes()
}

// validateScheduleFields checks date and clock formats on whatever schedule
// fields are set. The timezone offset must stay within one day of UTC.
func validateScheduleFields(p *models.Participant) error {
	if p.StartDate != nil {
		if _, err := time.Parse("2006-01-02", *p.StartDate); err != nil {
			return fmt.Errorf("invalid start date %q: expected YYYY-MM-DD", *p.StartDate)
		}
	}
	if p.SMSWindowStart != nil {
		if _, err := schedule.ParseClock(*p.SMSWindowStart); err != nil {
			return fmt.Errorf("invalid window start: %w", err)
		}
	}
	if p.SMSWindowEnd != nil {
		if _, err := schedule.ParseClock(*p.SMSWindowEnd); err != nil {
			return fmt.Errorf("invalid window end: %w", err)
		}
	}
	if (p.SMSWindowStart == nil) != (p.SMSWindowEnd == nil) {
		return fmt.Errorf("window start and end must be set together")
	}
	if p.TimezoneOffset < -14*60 || p.TimezoneOffset > 14*60 {
		return fmt.Errorf("timezone offset %d out of range", p.TimezoneOffset)
	}
	return nil
}
