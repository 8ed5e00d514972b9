package consumers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/medflow/shift-timer/pkg/logger"
	"github.com/medflow/shift-timer/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTimers struct {
	mu    sync.Mutex
	users []int
}

func (r *recordingTimers) EntriesChanged(ctx context.Context, userID int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
	return 1
}

func TestHandleEntryChanged(t *testing.T) {
	userID := 42

	tests := []struct {
		name    string
		event   *messaging.Event
		want    []int
		wantErr bool
	}{
		{
			name:  "closed entry for a user",
			event: mustEvent(t, messaging.EventEntryClosed, messaging.EntryChangedEvent{EntryID: 7, UserID: &userID}),
			want:  []int{42},
		},
		{
			name:  "new entry without a user refreshes everyone",
			event: mustEvent(t, messaging.EventEntryCreated, messaging.EntryChangedEvent{EntryID: 8}),
			want:  []int{0},
		},
		{
			name:  "empty payload",
			event: &messaging.Event{Type: messaging.EventEntryCreated},
			want:  []int{0},
		},
		{
			name:    "malformed payload",
			event:   &messaging.Event{Type: messaging.EventEntryClosed, Data: json.RawMessage(`{"user_id":"x"}`)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timers := &recordingTimers{}
			c := newEntryEventConsumer(timers, logger.Nop())

			err := c.handleEntryChanged(context.Background(), tt.event)
			if tt.wantErr {
				require.Error(t, err)
				assert.Empty(t, timers.users)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, timers.users)
		})
	}
}

func mustEvent(t *testing.T, eventType string, data interface{}) *messaging.Event {
	t.Helper()
	event, err := messaging.NewEvent(eventType, "entries-service", "corr-1", data)
	require.NoError(t, err)
	return event
}
