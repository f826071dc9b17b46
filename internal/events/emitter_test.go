package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cardsChanged(t *testing.T, userID uuid.UUID) *Event {
	t.Helper()
	event, err := NewEvent(TypeCardsChanged, userID, CardsChangedPayload{Reason: "import"}, time.Now())
	require.NoError(t, err)
	return event
}

func TestEmitWithoutHandlers(t *testing.T) {
	t.Parallel()
	emitter := NewInMemoryEventEmitter(nil)
	assert.NoError(t, emitter.EmitEvent(context.Background(), cardsChanged(t, uuid.New())))
}

func TestEmitReachesEveryHandlerDespiteFailures(t *testing.T) {
	t.Parallel()
	emitter := NewInMemoryEventEmitter(nil)

	failing := &MockEventHandler{HandlerError: errors.New("queue full")}
	second := &MockEventHandler{HandlerError: errors.New("also failed")}
	healthy := &MockEventHandler{}
	emitter.RegisterHandler(failing)
	emitter.RegisterHandler(second)
	emitter.RegisterHandler(healthy)

	event := cardsChanged(t, uuid.New())
	err := emitter.EmitEvent(context.Background(), event)

	require.EqualError(t, err, "queue full")
	for _, h := range []*MockEventHandler{failing, second, healthy} {
		assert.Equal(t, 1, h.HandledCount)
		assert.Same(t, event, h.LastEvent)
	}
}

func TestNopEmitter(t *testing.T) {
	t.Parallel()
	var emitter EventEmitter = NopEmitter{}
	assert.NoError(t, emitter.EmitEvent(context.Background(), cardsChanged(t, uuid.New())))
}
