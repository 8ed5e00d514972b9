package events

import (
	"context"
	"fmt"

	"github.com/medflow/shift-timer/internal/timer/domain"
	"github.com/medflow/shift-timer/pkg/logger"
	"github.com/medflow/shift-timer/pkg/messaging"
)

// ServiceName is the event source of everything this service publishes
const ServiceName = "timer-service"

// TimerEventPublisher publishes timer events
type TimerEventPublisher struct {
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

// NewTimerEventPublisher creates a publisher on the timer events exchange
func NewTimerEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*TimerEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeTimerEvents, ServiceName, log)
	if err != nil {
		return nil, err
	}

	return NewTimerEventPublisherWith(publisher, log), nil
}

// NewTimerEventPublisherWith wraps an existing publisher
func NewTimerEventPublisherWith(publisher messaging.EventPublisher, log *logger.Logger) *TimerEventPublisher {
	return &TimerEventPublisher{
		publisher: publisher,
		logger:    log,
	}
}

// ScheduleMissing publishes the notice that a user has no weekly schedule
func (p *TimerEventPublisher) ScheduleMissing(ctx context.Context, user *domain.User, timezone string) error {
	data := messaging.ScheduleMissingEvent{
		UserID:   user.ID,
		FullName: user.FullName(),
		Timezone: timezone,
		Message:  fmt.Sprintf("%s doesn't have a defined schedule", user.FullName()),
	}

	if err := p.publisher.Publish(ctx, messaging.EventScheduleMissing, data); err != nil {
		p.logger.Error().Err(err).Int("user_id", user.ID).Msg("failed to publish schedule missing event")
		return err
	}

	p.logger.Info().Int("user_id", user.ID).Msg("schedule missing notice published")
	return nil
}
