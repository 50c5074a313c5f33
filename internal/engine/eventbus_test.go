package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	gameID := uuid.New()
	bus.Publish(Event{Type: EventGameStarted, GameID: gameID})

	select {
	case ev := <-ch:
		assert.Equal(t, EventGameStarted, ev.Type)
		assert.Equal(t, gameID, ev.GameID)
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestBus_PublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ {
			bus.Publish(Event{Type: EventQuestionOpened, GameID: uuid.New()})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber channel")
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	_, ok := <-ch
	require.False(t, ok, "channel should be closed after Unsubscribe")
}
