package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"study-sms-server/internal/config"
)

const defaultBaseURL = "https://api.twilio.com"

// Dispatcher sends one SMS through the provider and returns the provider's
// message SID. A non-nil error means the provider did not accept the dispatch.
type Dispatcher interface {
	SendSMS(ctx context.Context, to, body, statusCallback string) (string, error)
}

// Client is the Twilio Messages API dispatcher
type Client struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	client     *http.Client
}

// NewClient creates a Client from the Twilio credentials in the config
func NewClient(cfg *config.Config) *Client {
	return &Client{
		accountSID: cfg.Twilio.AccountSID,
		authToken:  cfg.Twilio.AuthToken,
		fromNumber: cfg.Twilio.FromNumber,
		baseURL:    defaultBaseURL,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// WithBaseURL points the client at a different API host, for tests
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type messageResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"` // Error description on non-2xx responses
	Code    int    `json:"code"`
}

// SendSMS posts one message to the Twilio Messages endpoint. statusCallback
// may be empty, in which case Twilio sends no delivery callbacks.
func (c *Client) SendSMS(ctx context.Context, to, body, statusCallback string) (string, error) {
	if c.accountSID == "" || c.authToken == "" {
		return "", fmt.Errorf("twilio credentials are not configured")
	}
	if to == "" {
		return "", fmt.Errorf("recipient number cannot be empty")
	}
	if body == "" {
		return "", fmt.Errorf("message body cannot be empty")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.fromNumber)
	form.Set("Body", body)
	if statusCallback != "" {
		form.Set("StatusCallback", statusCallback)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	var mr messageResponse
	if err := json.Unmarshal(respBody, &mr); err != nil {
		return "", fmt.Errorf("failed to decode twilio response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if mr.Message != "" {
			return "", fmt.Errorf("twilio rejected message (code %d): %s", mr.Code, mr.Message)
		}
		return "", fmt.Errorf("twilio returned status %d body=%q", resp.StatusCode, string(respBody))
	}

	if mr.SID == "" {
		return "", fmt.Errorf("missing sid in twilio response body=%q", string(respBody))
	}

	return mr.SID, nil
}
