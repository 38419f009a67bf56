package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"study-sms-server/internal/db"
	"study-sms-server/internal/models"
	"study-sms-server/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func strPtr(s string) *string { return &s }

func performJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func performForm(t *testing.T, router *gin.Engine, method, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

type mockParticipantService struct {
	createFunc      func(req *models.CreateParticipantRequest) (*models.Participant, error)
	getByIDFunc     func(id int64) (*models.Participant, error)
	getByPIDFunc    func(pid string) (*models.Participant, error)
	updateFunc      func(id int64, req *models.UpdateParticipantRequest) (*models.Participant, error)
	deleteFunc      func(id int64) error
	listFunc        func(filter db.ParticipantFilter) ([]*models.Participant, error)
	windowTimesFunc func() (map[string]int, map[string]int, error)
}

func (m *mockParticipantService) Create(req *models.CreateParticipantRequest) (*models.Participant, error) {
	if m.createFunc != nil {
		return m.createFunc(req)
	}
	return nil, fmt.Errorf("createFunc not set")
}

func (m *mockParticipantService) GetByID(id int64) (*models.Participant, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(id)
	}
	return nil, services.ErrParticipantNotFound
}

func (m *mockParticipantService) GetByPID(pid string) (*models.Participant, error) {
	if m.getByPIDFunc != nil {
		return m.getByPIDFunc(pid)
	}
	return nil, services.ErrParticipantNotFound
}

func (m *mockParticipantService) Update(id int64, req *models.UpdateParticipantRequest) (*models.Participant, error) {
	if m.updateFunc != nil {
		return m.updateFunc(id, req)
	}
	return nil, services.ErrParticipantNotFound
}

func (m *mockParticipantService) Delete(id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(id)
	}
	return services.ErrParticipantNotFound
}

func (m *mockParticipantService) List(filter db.ParticipantFilter) ([]*models.Participant, error) {
	if m.listFunc != nil {
		return m.listFunc(filter)
	}
	return nil, nil
}

func (m *mockParticipantService) WindowTimes() (map[string]int, map[string]int, error) {
	if m.windowTimesFunc != nil {
		return m.windowTimesFunc()
	}
	return nil, nil, nil
}

type mockContentService struct {
	createFunc  func(req *models.CreateMessageContentRequest) (*models.MessageContent, error)
	getByIDFunc func(id int64) (*models.MessageContent, error)
	updateFunc  func(id int64, req *models.UpdateMessageContentRequest) (*models.MessageContent, error)
	deleteFunc  func(id int64) error
	listFunc    func(filter db.ContentFilter) ([]*models.MessageContent, error)
}

func (m *mockContentService) Create(req *models.CreateMessageContentRequest) (*models.MessageContent, error) {
	if m.createFunc != nil {
		return m.createFunc(req)
	}
	return nil, fmt.Errorf("createFunc not set")
}

func (m *mockContentService) GetByID(id int64) (*models.MessageContent, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(id)
	}
	return nil, services.ErrContentNotFound
}

func (m *mockContentService) Update(id int64, req *models.UpdateMessageContentRequest) (*models.MessageContent, error) {
	if m.updateFunc != nil {
		return m.updateFunc(id, req)
	}
	return nil, services.ErrContentNotFound
}

func (m *mockContentService) Delete(id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(id)
	}
	return services.ErrContentNotFound
}

func (m *mockContentService) List(filter db.ContentFilter) ([]*models.MessageContent, error) {
	if m.listFunc != nil {
		return m.listFunc(filter)
	}
	return nil, nil
}

type mockMessageService struct {
	getByIDFunc      func(id int64) (*models.Message, error)
	historyFunc      func(filter db.MessageFilter) ([]*models.Message, error)
	statsFunc        func(filter db.MessageFilter) (*services.MessageStats, error)
	resendFunc       func(ctx context.Context, messageID int64) (*models.Message, error)
	updateStatusFunc func(messageID int64, providerStatus, errorMessage string) (*models.Message, error)
}

func (m *mockMessageService) GetByID(id int64) (*models.Message, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(id)
	}
	return nil, services.ErrMessageNotFound
}

func (m *mockMessageService) History(filter db.MessageFilter) ([]*models.Message, error) {
	if m.historyFunc != nil {
		return m.historyFunc(filter)
	}
	return nil, nil
}

func (m *mockMessageService) Stats(filter db.MessageFilter) (*services.MessageStats, error) {
	if m.statsFunc != nil {
		return m.statsFunc(filter)
	}
	return &services.MessageStats{ByStatus: map[string]int{}}, nil
}

func (m *mockMessageService) Resend(ctx context.Context, messageID int64) (*models.Message, error) {
	if m.resendFunc != nil {
		return m.resendFunc(ctx, messageID)
	}
	return nil, services.ErrMessageNotFound
}

func (m *mockMessageService) UpdateStatus(messageID int64, providerStatus, errorMessage string) (*models.Message, error) {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(messageID, providerStatus, errorMessage)
	}
	return nil, services.ErrMessageNotFound
}

type mockFitbitService struct {
	authorizeURLFunc   func(pid string) (string, error)
	handleCallbackFunc func(ctx context.Context, code, state string) (*models.Participant, error)
	refreshByPIDFunc   func(ctx context.Context, pid string) (*models.FitbitStatusResponse, error)
	statusFunc         func(pid string) (*models.FitbitStatusResponse, error)
	disconnectFunc     func(pid string) error
}

func (m *mockFitbitService) RefreshByPID(ctx context.Context, pid string) (*models.FitbitStatusResponse, error) {
	if m.refreshByPIDFunc != nil {
		return m.refreshByPIDFunc(ctx, pid)
	}
	return nil, services.ErrFitbitNotConnected
}

func (m *mockFitbitService) AuthorizeURL(pid string) (string, error) {
	if m.authorizeURLFunc != nil {
		return m.authorizeURLFunc(pid)
	}
	return "", services.ErrParticipantNotFound
}

func (m *mockFitbitService) HandleCallback(ctx context.Context, code, state string) (*models.Participant, error) {
	if m.handleCallbackFunc != nil {
		return m.handleCallbackFunc(ctx, code, state)
	}
	return nil, services.ErrParticipantNotFound
}

func (m *mockFitbitService) Status(pid string) (*models.FitbitStatusResponse, error) {
	if m.statusFunc != nil {
		return m.statusFunc(pid)
	}
	return nil, services.ErrParticipantNotFound
}

func (m *mockFitbitService) Disconnect(pid string) error {
	if m.disconnectFunc != nil {
		return m.disconnectFunc(pid)
	}
	return services.ErrParticipantNotFound
}

type mockRunTrigger struct {
	runOnceFunc func(ctx context.Context) (int, error)
}

func (m *mockRunTrigger) RunOnce(ctx context.Context) (int, error) {
	if m.runOnceFunc != nil {
		return m.runOnceFunc(ctx)
	}
	return 0, nil
}

func testParticipant() *models.Participant {
	return &models.Participant{
		ID:          1,
		PID:         "VET001",
		PhoneNumber: "+15551234567",
		StudyGroup:  "Intervention",
		Active:      true,
	}
}
