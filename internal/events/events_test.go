package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	now := time.Date(2025, 4, 2, 12, 0, 0, 0, time.UTC)
	payload := SessionFlushedPayload{
		SessionID:      uuid.New(),
		CardIDs:        []uuid.UUID{uuid.New()},
		CorrectCount:   2,
		IncorrectCount: 1,
	}

	event, err := NewEvent(TypeSessionFlushed, userID, payload, now)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, TypeSessionFlushed, event.Type)
	assert.Equal(t, userID, event.UserID)
	assert.Equal(t, now, event.CreatedAt)

	var decoded SessionFlushedPayload
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, payload, decoded)
}

func TestNewEventWithUnmarshalablePayload(t *testing.T) {
	t.Parallel()

	_, err := NewEvent(TypeCardsChanged, uuid.New(), make(chan int), time.Now())
	assert.Error(t, err)
}

func TestUnmarshalPayloadError(t *testing.T) {
	t.Parallel()

	event := &Event{Payload: json.RawMessage(`{"card_ids": 5}`)}
	var decoded CardsChangedPayload
	assert.Error(t, event.UnmarshalPayload(&decoded))
}

// MockEventHandler records the events it receives.
type MockEventHandler struct {
	// The last event received by this handler
	LastEvent *Event
	// Error to return from HandleEvent
	HandlerError error
	// Count of events handled
	HandledCount int
}

// HandleEvent implements the EventHandler interface
func (h *MockEventHandler) HandleEvent(ctx context.Context, event *Event) error {
	h.LastEvent = event
	h.HandledCount++
	return h.HandlerError
}

func TestHandlerFunc(t *testing.T) {
	t.Parallel()

	want := errors.New("boom")
	var got *Event
	handler := HandlerFunc(func(ctx context.Context, event *Event) error {
		got = event
		return want
	})

	event := &Event{ID: uuid.New()}
	assert.ErrorIs(t, handler.HandleEvent(context.Background(), event), want)
	assert.Same(t, event, got)
	assert.NoError(t, NopEmitter{}.EmitEvent(context.Background(), event))
}
