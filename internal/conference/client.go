// Package conference talks to the remote function that mints conferencing
// links for meetings.
package conference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const createMeetingPath = "/create-teams-meeting"

// Attendee identifies one meeting participant.
type Attendee struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// MeetingRequest is the payload for the create-teams-meeting function.
type MeetingRequest struct {
	Subject   string     `json:"subject"`
	Attendees []Attendee `json:"attendees"`
	StartTime time.Time  `json:"startTime"`
	EndTime   time.Time  `json:"endTime"`
}

type meetingResponse struct {
	Meeting struct {
		JoinURL string `json:"joinUrl"`
	} `json:"meeting"`
	Error string `json:"error"`
}

// Client creates conferencing meetings.
type Client interface {
	CreateMeeting(ctx context.Context, req MeetingRequest) (string, error)
}

// HTTPClient invokes the hosted function over HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

// NewHTTPClient builds a client against the given base URL.
func NewHTTPClient(baseURL string, timeout time.Duration, log *zap.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

// CreateMeeting requests a conferencing link and returns the join URL.
func (c *HTTPClient) CreateMeeting(ctx context.Context, reqBody MeetingRequest) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("conference endpoint not configured")
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal meeting request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createMeetingPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build meeting request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("conference call failed", zap.Error(err))
		return "", fmt.Errorf("create meeting: %w", err)
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read meeting response: %w", err)
	}

	var parsed meetingResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return "", fmt.Errorf("create meeting: http %d", res.StatusCode)
		}
		return "", fmt.Errorf("parse meeting response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.log.Warn("conference call rejected",
			zap.Int("status", res.StatusCode),
			zap.String("error", parsed.Error))
		if parsed.Error != "" {
			return "", fmt.Errorf("create meeting: %s", parsed.Error)
		}
		return "", fmt.Errorf("create meeting: http %d", res.StatusCode)
	}
	if parsed.Meeting.JoinURL == "" {
		return "", fmt.Errorf("create meeting: response missing join url")
	}
	return parsed.Meeting.JoinURL, nil
}
