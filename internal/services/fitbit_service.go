package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"study-sms-server/internal/config"
	"study-sms-server/internal/db"
	"study-sms-server/internal/models"
	"study-sms-server/pkg/logger"

	"go.uber.org/zap"
)

const (
	fitbitAuthorizeURL = "https://www.fitbit.com/oauth2/authorize"
	fitbitTokenURL     = "https://api.fitbit.com/oauth2/token"
	fitbitScopes       = "activity heartrate sleep"
)

var (
	// ErrFitbitNotConfigured indicates the OAuth client credentials are missing
	ErrFitbitNotConfigured = errors.New("fitbit client credentials are not configured")

	// ErrFitbitNotConnected indicates no token pair is stored for the participant
	ErrFitbitNotConnected = errors.New("participant has no fitbit connection")
)

// FitbitService manages the OAuth authorization flow and token lifecycle for
// participant Fitbit accounts. Data sync itself runs elsewhere; this service
// only keeps a valid token pair on file per connected participant.
type FitbitService struct {
	tokens       db.FitbitTokenRepository
	participants db.ParticipantRepository

	clientID     string
	clientSecret string
	redirectURI  string

	authorizeURL string
	tokenURL     string
	client       *http.Client
	clock        func() time.Time
}

// NewFitbitService creates a FitbitService from the config
func NewFitbitService(tokens db.FitbitTokenRepository, participants db.ParticipantRepository, cfg *config.Config) *FitbitService {
	base := strings.TrimRight(cfg.Server.ExternalBaseURL, "/")
	return &FitbitService{
		tokens:       tokens,
		participants: participants,
		clientID:     cfg.Fitbit.ClientID,
		clientSecret: cfg.Fitbit.ClientSecret,
		redirectURI:  base + "/api/fitbit/callback",
		authorizeURL: fitbitAuthorizeURL,
		tokenURL:     fitbitTokenURL,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		clock: time.Now,
	}
}

// WithEndpoints overrides the OAuth endpoints, for tests
func (s *FitbitService) WithEndpoints(authorizeURL, tokenURL string) *FitbitService {
	s.authorizeURL = authorizeURL
	s.tokenURL = tokenURL
	return s
}

// AuthorizeURL builds the consent page address for one participant. The
// participant's PID rides along as the OAuth state so the callback can tie
// the returned code back to them.
func (s *FitbitService) AuthorizeURL(pid string) (string, error) {
	if s.clientID == "" || s.clientSecret == "" {
		return "", ErrFitbitNotConfigured
	}

	p, err := s.participants.GetByPID(pid)
	if err != nil {
		return "", fmt.Errorf("failed to get participant: %w", err)
	}
	if p == nil {
		return "", ErrParticipantNotFound
	}

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", s.clientID)
	q.Set("redirect_uri", s.redirectURI)
	q.Set("scope", fitbitScopes)
	q.Set("state", p.PID)

	return s.authorizeURL + "?" + q.Encode(), nil
}

type fitbitTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	UserID       string `json:"user_id"`
	Errors       []struct {
		ErrorType string `json:"errorType"`
		Message   string `json:"message"`
	} `json:"errors"`
}

// HandleCallback exchanges an authorization code for a token pair and stores
// it for the participant named by the OAuth state
func (s *FitbitService) HandleCallback(ctx context.Context, code, state string) (*models.Participant, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code cannot be empty")
	}
	if state == "" {
		return nil, fmt.Errorf("state cannot be empty")
	}

	p, err := s.participants.GetByPID(state)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	if p == nil {
		return nil, ErrParticipantNotFound
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", s.clientID)
	form.Set("redirect_uri", s.redirectURI)

	tr, err := s.tokenRequest(ctx, form)
	if err != nil {
		return nil, err
	}

	if err := s.storeTokens(p.ID, tr); err != nil {
		return nil, err
	}

	if err := s.participants.SetFitbitConnected(p.ID, true); err != nil {
		return nil, fmt.Errorf("failed to mark participant connected: %w", err)
	}
	p.FitbitConnected = true

	logger.Info("Fitbit account connected",
		zap.String("pid", p.PID),
		zap.String("fitbit_user", tr.UserID),
	)
	return p, nil
}

// RefreshToken exchanges the stored refresh token for a fresh pair. Fitbit
// rotates refresh tokens on every exchange, so the stored pair is replaced.
func (s *FitbitService) RefreshToken(ctx context.Context, participantID int64) (*models.FitbitToken, error) {
	stored, err := s.tokens.GetByParticipantID(participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stored token: %w", err)
	}
	if stored == nil {
		return nil, ErrFitbitNotConnected
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", stored.RefreshToken)

	tr, err := s.tokenRequest(ctx, form)
	if err != nil {
		return nil, err
	}

	if err := s.storeTokens(participantID, tr); err != nil {
		return nil, err
	}

	return s.tokens.GetByParticipantID(participantID)
}

// RefreshByPID refreshes the stored token pair for the participant with the
// given external ID and reports the new expiry
func (s *FitbitService) RefreshByPID(ctx context.Context, pid string) (*models.FitbitStatusResponse, error) {
	p, err := s.participants.GetByPID(pid)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	if p == nil {
		return nil, ErrParticipantNotFound
	}

	token, err := s.RefreshToken(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	logger.Info("Fitbit token refreshed", zap.String("pid", p.PID))
	return &models.FitbitStatusResponse{
		ParticipantID: p.ID,
		PID:           p.PID,
		Connected:     true,
		ExpiresAt:     &token.ExpiresAt,
	}, nil
}

// Status reports the connection state for a participant
func (s *FitbitService) Status(pid string) (*models.FitbitStatusResponse, error) {
	p, err := s.participants.GetByPID(pid)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	if p == nil {
		return nil, ErrParticipantNotFound
	}

	resp := &models.FitbitStatusResponse{
		ParticipantID: p.ID,
		PID:           p.PID,
	}

	token, err := s.tokens.GetByParticipantID(p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stored token: %w", err)
	}
	if token != nil {
		resp.Connected = true
		resp.ExpiresAt = &token.ExpiresAt
	}

	return resp, nil
}

// Disconnect removes the stored token pair and clears the connected flag
func (s *FitbitService) Disconnect(pid string) error {
	p, err := s.participants.GetByPID(pid)
	if err != nil {
		return fmt.Errorf("failed to get participant: %w", err)
	}
	if p == nil {
		return ErrParticipantNotFound
	}

	if err := s.tokens.DeleteByParticipantID(p.ID); err != nil {
		return fmt.Errorf("failed to delete stored token: %w", err)
	}
	if err := s.participants.SetFitbitConnected(p.ID, false); err != nil {
		return fmt.Errorf("failed to mark participant disconnected: %w", err)
	}

	logger.Info("Fitbit account disconnected", zap.String("pid", pid))
	return nil
}

// tokenRequest posts a form to the token endpoint with client Basic auth
func (s *FitbitService) tokenRequest(ctx context.Context, form url.Values) (*fitbitTokenResponse, error) {
	if s.clientID == "" || s.clientSecret == "" {
		return nil, ErrFitbitNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.clientID, s.clientSecret)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var tr fitbitTokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(tr.Errors) > 0 {
			return nil, fmt.Errorf("fitbit rejected token request: %s (%s)", tr.Errors[0].Message, tr.Errors[0].ErrorType)
		}
		return nil, fmt.Errorf("fitbit token endpoint returned status %d body=%q", resp.StatusCode, string(body))
	}

	if tr.AccessToken == "" || tr.RefreshToken == "" {
		return nil, fmt.Errorf("incomplete token response body=%q", string(body))
	}

	return &tr, nil
}

// storeTokens persists a fresh token pair for the participant
func (s *FitbitService) storeTokens(participantID int64, tr *fitbitTokenResponse) error {
	token := &models.FitbitToken{
		ParticipantID: participantID,
		AccessToken:   tr.AccessToken,
		RefreshToken:  tr.RefreshToken,
		ExpiresAt:     s.clock().Unix() + tr.ExpiresIn,
	}
	if err := s.tokens.Upsert(token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}
