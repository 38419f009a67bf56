package services

import (
	"errors"
	"fmt"
	"time"

	"study-sms-server/internal/db"
	"study-sms-server/internal/models"
	"study-sms-server/pkg/logger"

	"go.uber.org/zap"
)

// ErrContentNotFound indicates the message template does not exist
var ErrContentNotFound = errors.New("message template not found")

// ContentService provides business logic for message template management
type ContentService struct {
	repo db.ContentRepository
}

// NewContentService creates a new ContentService
func NewContentService(repo db.ContentRepository) *ContentService {
	return &ContentService{repo: repo}
}

// Create adds a new message template. Templates default to active.
func (s *ContentService) Create(req *models.CreateMessageContentRequest) (*models.MessageContent, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	if req.Content == "" {
		return nil, fmt.Errorf("template content cannot be empty")
	}
	if req.Bucket == "" {
		return nil, fmt.Errorf("template bucket cannot be empty")
	}

	now := time.Now().Unix()
	mc := &models.MessageContent{
		Content:   req.Content,
		Bucket:    req.Bucket,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Active != nil {
		mc.Active = *req.Active
	}

	if err := s.repo.Create(mc); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	logger.Info("Template created",
		zap.Int64("id", mc.ID),
		zap.String("bucket", mc.Bucket),
	)
	return mc, nil
}

// GetByID retrieves a template by ID
func (s *ContentService) GetByID(id int64) (*models.MessageContent, error) {
	mc, err := s.repo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	if mc == nil {
		return nil, ErrContentNotFound
	}
	return mc, nil
}

// Update applies a partial update to a template. Edits never touch already
// sent messages, whose text is frozen at send time.
func (s *ContentService) Update(id int64, req *models.UpdateMessageContentRequest) (*models.MessageContent, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	mc, err := s.repo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	if mc == nil {
		return nil, ErrContentNotFound
	}

	if req.Content != nil {
		if *req.Content == "" {
			return nil, fmt.Errorf("template content cannot be empty")
		}
		mc.Content = *req.Content
	}
	if req.Bucket != nil {
		if *req.Bucket == "" {
			return nil, fmt.Errorf("template bucket cannot be empty")
		}
		mc.Bucket = *req.Bucket
	}
	if req.Active != nil {
		mc.Active = *req.Active
	}

	mc.UpdatedAt = time.Now().Unix()
	if err := s.repo.Update(mc); err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}

	return mc, nil
}

// Delete removes a template. Send records keep their frozen copy of the text.
func (s *ContentService) Delete(id int64) error {
	mc, err := s.repo.GetByID(id)
	if err != nil {
		return fmt.Errorf("failed to get template: %w", err)
	}
	if mc == nil {
		return ErrContentNotFound
	}

	if err := s.repo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	logger.Info("Template deleted", zap.Int64("id", id))
	return nil
}

// List retrieves templates matching the filter
func (s *ContentService) List(filter db.ContentFilter) ([]*models.MessageContent, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(filter)
}
