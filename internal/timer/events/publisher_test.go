package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/medflow/shift-timer/internal/timer/events"
	"github.com/medflow/shift-timer/pkg/logger"
	"github.com/medflow/shift-timer/pkg/messaging"
	"github.com/medflow/shift-timer/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleMissing(t *testing.T) {
	mock := testutil.NewMockPublisher()
	publisher := events.NewTimerEventPublisherWith(mock, logger.Nop())

	user := testutil.NewFixtureFactory().User(testutil.WithName("Ana", "Pérez"), testutil.WithSchedules())
	require.NoError(t, publisher.ScheduleMissing(context.Background(), user, "America/Caracas"))

	mock.AssertEventPublished(t, messaging.EventScheduleMissing)
	published := mock.Events()
	require.Len(t, published, 1)

	data, ok := published[0].Payload.(messaging.ScheduleMissingEvent)
	require.True(t, ok)
	assert.Equal(t, user.ID, data.UserID)
	assert.Equal(t, "Ana Pérez", data.FullName)
	assert.Equal(t, "America/Caracas", data.Timezone)
	assert.Equal(t, "Ana Pérez doesn't have a defined schedule", data.Message)
}

func TestScheduleMissing_PublishFailure(t *testing.T) {
	mock := testutil.NewMockPublisher()
	mock.Err = errors.New("channel closed")
	publisher := events.NewTimerEventPublisherWith(mock, logger.Nop())

	err := publisher.ScheduleMissing(context.Background(), testutil.NewFixtureFactory().User(), "UTC")
	assert.Error(t, err)
	mock.AssertNoEventsPublished(t)
}
