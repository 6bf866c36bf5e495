package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/botgrid/botgrid/pkg/channels/gochannel"
	"github.com/botgrid/botgrid/pkg/eventbus"
	"github.com/botgrid/botgrid/pkg/events"
	"github.com/botgrid/botgrid/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	publisher, subscriber, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(publisher, subscriber)
	t.Cleanup(func() {
		if err := bus.Close(); err != nil {
			t.Logf("Failed to close event bus: %v", err)
		}
	})

	return bus
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan *events.MessageSent, 1)

	err := bus.Handle(events.MessageSentEvent, func(_ context.Context, event any) error {
		sent, ok := event.(*events.MessageSent)
		if ok {
			received <- sent
		}

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(t.Context()))

	sent := events.MessageSent{
		BaseEvent: events.BaseEvent{
			ID:             bus.GenerateID(),
			Type:           events.MessageSentEvent,
			Timestamp:      time.Now().UTC(),
			ConversationID: 42,
		},
		MessageID: 7,
		Sender:    models.MessageSenderBot,
		Content:   "Welcome aboard!",
		Platform:  "web",
	}
	require.NoError(t, bus.Publish(t.Context(), "42", sent))

	select {
	case got := <-received:
		assert.Equal(t, int64(42), got.ConversationID)
		assert.Equal(t, "Welcome aboard!", got.Content)
		assert.Equal(t, "web", got.Platform)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBus_UnhandledTypesAreIgnored(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan *events.HandoffChanged, 1)

	err := bus.Handle(events.HandoffChangedEvent, func(_ context.Context, event any) error {
		changed, ok := event.(*events.HandoffChanged)
		if ok {
			received <- changed
		}

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(t.Context()))

	// No handler registered for flow.completed; the handoff handler must
	// still see its own event afterwards.
	require.NoError(t, bus.Publish(t.Context(), "1", events.FlowCompleted{
		BaseEvent: events.BaseEvent{ID: bus.GenerateID(), Type: events.FlowCompletedEvent, ConversationID: 1},
		FlowID:    "welcome",
	}))
	require.NoError(t, bus.Publish(t.Context(), "1", events.HandoffChanged{
		BaseEvent: events.BaseEvent{ID: bus.GenerateID(), Type: events.HandoffChangedEvent, ConversationID: 1},
		Enabled:   true,
	}))

	select {
	case got := <-received:
		assert.True(t, got.Enabled)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
