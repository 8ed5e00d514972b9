package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/medflow/shift-timer/internal/timer/client"
	"github.com/medflow/shift-timer/internal/timer/domain"
	"github.com/medflow/shift-timer/pkg/config"
	apperrors "github.com/medflow/shift-timer/pkg/errors"
	"github.com/medflow/shift-timer/pkg/logger"
	"github.com/medflow/shift-timer/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, handler http.HandlerFunc) *client.BackendClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return client.NewBackendClient(&config.BackendConfig{URL: srv.URL + "/", Timeout: time.Second}, logger.Nop())
}

func ownerContext() context.Context {
	return session.WithSession(context.Background(), session.Session{UserID: 1, Role: session.AdminRole, Token: "tok"})
}

func TestBackendClient_GetUser(t *testing.T) {
	var gotBody map[string]interface{}
	var gotAuth string

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 3, "name": "Other", "last_name": "Person"},
			{"id": 7, "name": "Ana", "last_name": "Pérez",
			 "employee": {"schedule": [{"days": [{"id": 1}, {"id": 2}], "start_time": "09:00:00", "end_time": "17:00:00"}]}}
		]`))
	})

	user, err := c.GetUser(ownerContext(), 7)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "", gotBody["searchField"])
	assert.Equal(t, map[string]interface{}{"id": float64(7)}, gotBody["filter"])

	assert.Equal(t, "Ana Pérez", user.FullName())
	require.Len(t, user.Schedules(), 1)
	assert.True(t, user.Schedules()[0].HasDay(2))
	assert.Equal(t, "17:00:00", user.Schedules()[0].EndTime)
}

func TestBackendClient_GetUser_NotFound(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := c.GetUser(context.Background(), 7)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestBackendClient_ListEntries(t *testing.T) {
	var gotQuery domain.EntryQuery

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entries", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotQuery))

		w.Write([]byte(`{"entries": [
			{"id": 1, "user_id": 7, "start_time": "2024-03-04T09:00:00Z", "end_time": "2024-03-04T10:00:00Z", "status": 1},
			{"id": 2, "user_id": 7, "start_time": "2024-03-04T11:00:00Z", "end_time": null, "status": 0}
		]}`))
	})

	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	entries, err := c.ListEntries(ownerContext(), domain.EntryQuery{UserID: 7, StartTime: day, EndTime: day})
	require.NoError(t, err)

	assert.Equal(t, 7, gotQuery.UserID)
	assert.True(t, gotQuery.StartTime.Equal(day))

	require.Len(t, entries, 2)
	assert.False(t, entries[0].IsOpen())
	assert.True(t, entries[1].IsOpen())
	assert.Nil(t, entries[1].EndTime)
}

func TestBackendClient_ListEntries_NormalizesOffsets(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"entries": [
			{"id": 1, "user_id": 7, "start_time": "2024-03-04T05:00:00-04:00", "end_time": "2024-03-04T09:30:00-04:00", "status": 1}
		]}`))
	})

	entries, err := c.ListEntries(ownerContext(), domain.EntryQuery{UserID: 7})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), entries[0].StartTime)
	require.NotNil(t, entries[0].EndTime)
	assert.Equal(t, time.Date(2024, 3, 4, 13, 30, 0, 0, time.UTC), *entries[0].EndTime)
}

func TestBackendClient_LeaveRequestsOn(t *testing.T) {
	var gotBody map[string]interface{}

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/leave_requests/get", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`[{"id": 4, "user_id": 7, "date": "2024-03-04T00:00:00Z", "leave_type": "vacation"}]`))
	})

	reqs, err := c.LeaveRequestsOn(ownerContext(), 7, time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, float64(7), gotBody["id"])
	assert.Equal(t, "2024-03-04T12:00:00Z", gotBody["date"])
	require.Len(t, reqs, 1)
	assert.Equal(t, "vacation", reqs[0].LeaveType)
}

func TestBackendClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, apperrors.ErrUnavailable},
		{"unauthorized", http.StatusUnauthorized, ``, apperrors.ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ``, apperrors.ErrForbidden},
		{"not found", http.StatusNotFound, ``, apperrors.ErrNotFound},
		{"bad json", http.StatusOK, `{"entries": [`, apperrors.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.ListEntries(context.Background(), domain.EntryQuery{UserID: 1})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBackendClient_Unreachable(t *testing.T) {
	c := client.NewBackendClient(&config.BackendConfig{URL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond}, logger.Nop())

	_, err := c.GetUser(context.Background(), 1)
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}
