package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/medflow/shift-timer/internal/timer/domain"
	"github.com/medflow/shift-timer/pkg/config"
	apperrors "github.com/medflow/shift-timer/pkg/errors"
	"github.com/medflow/shift-timer/pkg/logger"
	"github.com/medflow/shift-timer/pkg/messaging"
	"github.com/medflow/shift-timer/pkg/session"
)

// BackendClient calls the REST backend that owns users, entries and leave requests
type BackendClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewBackendClient creates a new backend client
func NewBackendClient(cfg *config.BackendConfig, log *logger.Logger) *BackendClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &BackendClient{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.WithComponent("backend-client"),
	}
}

type userFilter struct {
	ID int `json:"id"`
}

type userSearchRequest struct {
	SearchField string     `json:"searchField"`
	Filter      userFilter `json:"filter"`
}

type leaveRequestQuery struct {
	ID   int       `json:"id"`
	Date time.Time `json:"date"`
}

// GetUser fetches a user together with their weekly schedule
func (c *BackendClient) GetUser(ctx context.Context, userID int) (*domain.User, error) {
	var users []domain.User
	req := userSearchRequest{Filter: userFilter{ID: userID}}
	if err := c.post(ctx, "/users", req, &users); err != nil {
		return nil, err
	}

	// The search endpoint filters loosely, so pick the exact id
	for i := range users {
		if users[i].ID == userID {
			return &users[i], nil
		}
	}

	return nil, apperrors.NotFound("user")
}

// ListEntries fetches the user's entries for a date range
func (c *BackendClient) ListEntries(ctx context.Context, q domain.EntryQuery) ([]domain.TimeEntry, error) {
	var resp struct {
		Entries []domain.TimeEntry `json:"entries"`
	}
	if err := c.post(ctx, "/entries", q, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Entries {
		resp.Entries[i] = resp.Entries[i].UTC()
	}
	return resp.Entries, nil
}

// LeaveRequestsOn fetches the leave requests covering the given date
func (c *BackendClient) LeaveRequestsOn(ctx context.Context, userID int, date time.Time) ([]domain.LeaveRequest, error) {
	var requests []domain.LeaveRequest
	if err := c.post(ctx, "/leave_requests/get", leaveRequestQuery{ID: userID, Date: date}, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

func (c *BackendClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// Calls are made on behalf of whoever opened the timer
	if token := session.Token(ctx); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if id := messaging.CorrelationID(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error().Err(err).Str("path", path).Msg("failed to call backend")
		return apperrors.Unavailable("backend", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("body", string(snippet)).
			Msg("backend call failed")

		switch resp.StatusCode {
		case http.StatusNotFound:
			return apperrors.NotFound(strings.TrimPrefix(path, "/"))
		case http.StatusUnauthorized:
			return apperrors.Unauthorized("backend rejected the session token")
		case http.StatusForbidden:
			return apperrors.Forbidden("backend denied access")
		default:
			return apperrors.Unavailable("backend", fmt.Errorf("%s returned status %d", path, resp.StatusCode))
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Unavailable("backend", fmt.Errorf("failed to decode %s response: %w", path, err))
	}

	return nil
}
