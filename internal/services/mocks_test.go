package services

import (
	"context"
	"fmt"

	"study-sms-server/internal/db"
	"study-sms-server/internal/models"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func int64Ptr(i int64) *int64 { return &i }
func boolPtr(b bool) *bool    { return &b }

type mockParticipantRepository struct {
	createFunc             func(p *models.Participant) error
	getByIDFunc            func(id int64) (*models.Participant, error)
	getByPIDFunc           func(pid string) (*models.Participant, error)
	updateFunc             func(p *models.Participant) error
	deleteFunc             func(id int64) error
	listFunc               func(filter db.ParticipantFilter) ([]*models.Participant, error)
	listSchedulableFunc    func() ([]*models.Participant, error)
	setFitbitConnectedFunc func(id int64, connected bool) error
	windowTimesFunc        func() (map[string]int, map[string]int, error)
}

func (m *mockParticipantRepository) Create(p *models.Participant) error {
	if m.createFunc != nil {
		return m.createFunc(p)
	}
	return nil
}

func (m *mockParticipantRepository) GetByID(id int64) (*models.Participant, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(id)
	}
	return nil, nil
}

func (m *mockParticipantRepository) GetByPID(pid string) (*models.Participant, error) {
	if m.getByPIDFunc != nil {
		return m.getByPIDFunc(pid)
	}
	return nil, nil
}

func (m *mockParticipantRepository) Update(p *models.Participant) error {
	if m.updateFunc != nil {
		return m.updateFunc(p)
	}
	return nil
}

func (m *mockParticipantRepository) Delete(id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(id)
	}
	return nil
}

func (m *mockParticipantRepository) List(filter db.ParticipantFilter) ([]*models.Participant, error) {
	if m.listFunc != nil {
		return m.listFunc(filter)
	}
	return nil, nil
}

func (m *mockParticipantRepository) ListSchedulable() ([]*models.Participant, error) {
	if m.listSchedulableFunc != nil {
		return m.listSchedulableFunc()
	}
	return nil, nil
}

func (m *mockParticipantRepository) SetFitbitConnected(id int64, connected bool) error {
	if m.setFitbitConnectedFunc != nil {
		return m.setFitbitConnectedFunc(id, connected)
	}
	return nil
}

func (m *mockParticipantRepository) WindowTimes() (map[string]int, map[string]int, error) {
	if m.windowTimesFunc != nil {
		return m.windowTimesFunc()
	}
	return nil, nil, nil
}

type mockContentRepository struct {
	createFunc             func(mc *models.MessageContent) error
	getByIDFunc            func(id int64) (*models.MessageContent, error)
	updateFunc             func(mc *models.MessageContent) error
	deleteFunc             func(id int64) error
	listFunc               func(filter db.ContentFilter) ([]*models.MessageContent, error)
	listActiveByBucketFunc func(bucket string) ([]*models.MessageContent, error)
}

func (m *mockContentRepository) Create(mc *models.MessageContent) error {
	if m.createFunc != nil {
		return m.createFunc(mc)
	}
	return nil
}

func (m *mockContentRepository) GetByID(id int64) (*models.MessageContent, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(id)
	}
	return nil, nil
}

func (m *mockContentRepository) Update(mc *models.MessageContent) error {
	if m.updateFunc != nil {
		return m.updateFunc(mc)
	}
	return nil
}

func (m *mockContentRepository) Delete(id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(id)
	}
	return nil
}

func (m *mockContentRepository) List(filter db.ContentFilter) ([]*models.MessageContent, error) {
	if m.listFunc != nil {
		return m.listFunc(filter)
	}
	return nil, nil
}

func (m *mockContentRepository) ListActiveByBucket(bucket string) ([]*models.MessageContent, error) {
	if m.listActiveByBucketFunc != nil {
		return m.listActiveByBucketFunc(bucket)
	}
	return nil, nil
}

type mockMessageRepository struct {
	createFunc                    func(msg *models.Message) error
	getByIDFunc                   func(id int64) (*models.Message, error)
	updateFunc                    func(msg *models.Message) error
	listFunc                      func(filter db.MessageFilter) ([]*models.Message, error)
	contentIDsSentSinceFunc       func(participantID, since int64) ([]int64, error)
	contentIDsEverSentFunc        func(participantID int64) ([]int64, error)
	countByStatusFunc             func(filter db.MessageFilter) (map[string]int, error)
	countDistinctParticipantsFunc func(filter db.MessageFilter) (int, error)
}

func (m *mockMessageRepository) Create(msg *models.Message) error {
	if m.createFunc != nil {
		return m.createFunc(msg)
	}
	msg.ID = 1
	return nil
}

func (m *mockMessageRepository) GetByID(id int64) (*models.Message, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(id)
	}
	return nil, nil
}

func (m *mockMessageRepository) Update(msg *models.Message) error {
	if m.updateFunc != nil {
		return m.updateFunc(msg)
	}
	return nil
}

func (m *mockMessageRepository) List(filter db.MessageFilter) ([]*models.Message, error) {
	if m.listFunc != nil {
		return m.listFunc(filter)
	}
	return nil, nil
}

func (m *mockMessageRepository) ContentIDsSentSince(participantID, since int64) ([]int64, error) {
	if m.contentIDsSentSinceFunc != nil {
		return m.contentIDsSentSinceFunc(participantID, since)
	}
	return nil, nil
}

func (m *mockMessageRepository) ContentIDsEverSent(participantID int64) ([]int64, error) {
	if m.contentIDsEverSentFunc != nil {
		return m.contentIDsEverSentFunc(participantID)
	}
	return nil, nil
}

func (m *mockMessageRepository) CountByStatus(filter db.MessageFilter) (map[string]int, error) {
	if m.countByStatusFunc != nil {
		return m.countByStatusFunc(filter)
	}
	return nil, nil
}

func (m *mockMessageRepository) CountDistinctParticipants(filter db.MessageFilter) (int, error) {
	if m.countDistinctParticipantsFunc != nil {
		return m.countDistinctParticipantsFunc(filter)
	}
	return 0, nil
}

type mockFitbitTokenRepository struct {
	upsertFunc                func(token *models.FitbitToken) error
	getByParticipantIDFunc    func(participantID int64) (*models.FitbitToken, error)
	deleteByParticipantIDFunc func(participantID int64) error
}

func (m *mockFitbitTokenRepository) Upsert(token *models.FitbitToken) error {
	if m.upsertFunc != nil {
		return m.upsertFunc(token)
	}
	return nil
}

func (m *mockFitbitTokenRepository) GetByParticipantID(participantID int64) (*models.FitbitToken, error) {
	if m.getByParticipantIDFunc != nil {
		return m.getByParticipantIDFunc(participantID)
	}
	return nil, nil
}

func (m *mockFitbitTokenRepository) DeleteByParticipantID(participantID int64) error {
	if m.deleteByParticipantIDFunc != nil {
		return m.deleteByParticipantIDFunc(participantID)
	}
	return nil
}

type mockDispatcher struct {
	sendSMSFunc func(ctx context.Context, to, body, statusCallback string) (string, error)
	calls       []dispatchCall
}

type dispatchCall struct {
	to             string
	body           string
	statusCallback string
}

func (m *mockDispatcher) SendSMS(ctx context.Context, to, body, statusCallback string) (string, error) {
	m.calls = append(m.calls, dispatchCall{to: to, body: body, statusCallback: statusCallback})
	if m.sendSMSFunc != nil {
		return m.sendSMSFunc(ctx, to, body, statusCallback)
	}
	return "", fmt.Errorf("sendSMSFunc not set")
}

func testParticipant() *models.Participant {
	return &models.Participant{
		ID:             1,
		PID:            "VET001",
		FriendlyName:   strPtr("Alex"),
		PhoneNumber:    "+15551234567",
		StudyGroup:     "Intervention",
		StartDate:      strPtr("2024-01-01"),
		SMSWindowStart: strPtr("09:00"),
		SMSWindowEnd:   strPtr("17:00"),
		Active:         true,
	}
}
