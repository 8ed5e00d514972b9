package consumers

import (
	"context"

	"github.com/medflow/shift-timer/pkg/logger"
	"github.com/medflow/shift-timer/pkg/messaging"
)

// QueueEntryEvents is the queue this service reads entry events from
const QueueEntryEvents = "timer-service.entry-events"

// EntryRefresher is told which user's entries changed; 0 means unknown
type EntryRefresher interface {
	EntriesChanged(ctx context.Context, userID int) int
}

// EntryEventConsumer refreshes open timers when entries are created or closed
type EntryEventConsumer struct {
	consumer *messaging.Consumer
	timers   EntryRefresher
	logger   *logger.Logger
}

// NewEntryEventConsumer creates a new entry event consumer
func NewEntryEventConsumer(rmq *messaging.RabbitMQ, timers EntryRefresher, log *logger.Logger) (*EntryEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, QueueEntryEvents, log)
	if err != nil {
		return nil, err
	}

	// Subscribe to entry events
	if err := consumer.Subscribe(messaging.ExchangeEntryEvents, "entries.entry.*"); err != nil {
		return nil, err
	}

	c := newEntryEventConsumer(timers, log)
	c.consumer = consumer

	consumer.RegisterHandler(messaging.EventEntryClosed, c.handleEntryChanged)
	consumer.RegisterHandler(messaging.EventEntryCreated, c.handleEntryChanged)

	return c, nil
}

func newEntryEventConsumer(timers EntryRefresher, log *logger.Logger) *EntryEventConsumer {
	return &EntryEventConsumer{
		timers: timers,
		logger: log.WithComponent("entry-consumer"),
	}
}

// Start starts consuming messages
func (c *EntryEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *EntryEventConsumer) handleEntryChanged(ctx context.Context, event *messaging.Event) error {
	var data messaging.EntryChangedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	userID := 0
	if data.UserID != nil {
		userID = *data.UserID
	}

	refreshed := c.timers.EntriesChanged(ctx, userID)

	c.logger.Debug().
		Str("event_type", event.Type).
		Int("entry_id", data.EntryID).
		Int("user_id", userID).
		Int("sessions", refreshed).
		Msg("entry event applied")

	return nil
}
