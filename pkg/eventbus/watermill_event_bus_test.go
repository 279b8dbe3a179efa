package eventbus

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floworc/floworc/pkg/channels/gochannel"
	"github.com/floworc/floworc/pkg/events"
	"github.com/floworc/floworc/pkg/models"
)

func newTestBus(t *testing.T) EventBus {
	t.Helper()

	logger := watermill.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	pub, sub, err := gochannel.CreateTestChannel(logger)
	require.NoError(t, err)

	return NewWatermillEventBus(pub, sub)
}

func TestWatermillEventBus_PublishAndSubscribe(t *testing.T) {
	bus := newTestBus(t)
	defer func() { assert.NoError(t, bus.Close()) }()

	received := make(chan *events.ExecutionUpdated, 1)

	err := bus.Handle(events.ExecutionUpdatedEvent, func(_ context.Context, event any) error {
		updated, ok := event.(*events.ExecutionUpdated)
		if assert.True(t, ok) {
			received <- updated
		}

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(t.Context()))

	outbound := events.ExecutionUpdated{
		BaseEvent: events.NewBaseEvent(events.ExecutionUpdatedEvent, "tenant-1"),
		Execution: &models.Execution{
			ID:        "exec-1",
			Namespace: "company.team",
			FlowID:    "flow-a",
			State:     models.State{Current: models.StateSuccess},
		},
	}

	require.NoError(t, bus.Publish(t.Context(), "exec-1", outbound))

	select {
	case got := <-received:
		assert.Equal(t, "exec-1", got.Execution.ID)
		assert.Equal(t, models.StateSuccess, got.Execution.State.Current)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newTestBus(t)
	defer func() { assert.NoError(t, bus.Close()) }()

	assert.NotEmpty(t, bus.GenerateID())
	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
