package handlers

import (
	"context"

	"study-sms-server/internal/db"
	"study-sms-server/internal/models"
	"study-sms-server/internal/services"
)

// ParticipantServiceInterface defines the contract for participant operations
// This interface is used for dependency injection and testing
type ParticipantServiceInterface interface {
	Create(req *models.CreateParticipantRequest) (*models.Participant, error)
	GetByID(id int64) (*models.Participant, error)
	GetByPID(pid string) (*models.Participant, error)
	Update(id int64, req *models.UpdateParticipantRequest) (*models.Participant, error)
	Delete(id int64) error
	List(filter db.ParticipantFilter) ([]*models.Participant, error)
	WindowTimes() (map[string]int, map[string]int, error)
}

// ContentServiceInterface defines the contract for template operations
type ContentServiceInterface interface {
	Create(req *models.CreateMessageContentRequest) (*models.MessageContent, error)
	GetByID(id int64) (*models.MessageContent, error)
	Update(id int64, req *models.UpdateMessageContentRequest) (*models.MessageContent, error)
	Delete(id int64) error
	List(filter db.ContentFilter) ([]*models.MessageContent, error)
}

// MessageServiceInterface defines the contract for send-record operations
type MessageServiceInterface interface {
	GetByID(id int64) (*models.Message, error)
	History(filter db.MessageFilter) ([]*models.Message, error)
	Stats(filter db.MessageFilter) (*services.MessageStats, error)
	Resend(ctx context.Context, messageID int64) (*models.Message, error)
	UpdateStatus(messageID int64, providerStatus, errorMessage string) (*models.Message, error)
}

// FitbitServiceInterface defines the contract for the OAuth connection flow
type FitbitServiceInterface interface {
	AuthorizeURL(pid string) (string, error)
	HandleCallback(ctx context.Context, code, state string) (*models.Participant, error)
	RefreshByPID(ctx context.Context, pid string) (*models.FitbitStatusResponse, error)
	Status(pid string) (*models.FitbitStatusResponse, error)
	Disconnect(pid string) error
}

// RunTrigger starts one scheduled-send batch and reports how many
// participants were dispatched to
type RunTrigger interface {
	RunOnce(ctx context.Context) (int, error)
}
