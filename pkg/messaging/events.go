package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Entry events, published by the time-entry backend
	EventEntryCreated = "entries.entry.created"
	EventEntryClosed  = "entries.entry.closed"

	// Timer events, published by this service
	EventScheduleMissing = "timer.schedule.missing"
)

// Exchange names
const (
	ExchangeEntryEvents = "entries.events"
	ExchangeTimerEvents = "timer.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// GenerateEventID returns a fresh event id
func GenerateEventID() string {
	return uuid.NewString()
}

// Entry Events

// EntryChangedEvent is carried by both entries.entry.created and
// entries.entry.closed. A nil UserID means "some user", so every
// open timer refreshes.
type EntryChangedEvent struct {
	EntryID int        `json:"entry_id,omitempty"`
	UserID  *int       `json:"user_id,omitempty"`
	EndTime *time.Time `json:"end_time,omitempty"`
}

// Timer Events

// ScheduleMissingEvent is published once per timer session when the user
// has no weekly schedule at all.
type ScheduleMissingEvent struct {
	UserID   int    `json:"user_id"`
	FullName string `json:"full_name"`
	Timezone string `json:"timezone"`
	Message  string `json:"message"`
}
