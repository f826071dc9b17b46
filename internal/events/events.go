package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	// TypeSessionFlushed is emitted after a study session flush commits.
	TypeSessionFlushed = "session_flushed"

	// TypeCardsChanged is emitted after cards or programs are edited
	// outside a study session.
	TypeCardsChanged = "cards_changed"
)

// Event notifies handlers that a user's data changed.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Type constants
	Type string `json:"type"`

	// UserID is the user whose data changed
	UserID uuid.UUID `json:"user_id"`

	// Payload contains the event-specific data serialized as JSON
	Payload json.RawMessage `json:"payload,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// SessionFlushedPayload is the payload of TypeSessionFlushed.
type SessionFlushedPayload struct {
	SessionID       uuid.UUID   `json:"session_id"`
	CardIDs         []uuid.UUID `json:"card_ids"`
	CorrectCount    int         `json:"correct_count"`
	IncorrectCount  int         `json:"incorrect_count"`
	NewAchievements []string    `json:"new_achievements,omitempty"`
}

// CardsChangedPayload is the payload of TypeCardsChanged.
type CardsChangedPayload struct {
	CardIDs []uuid.UUID `json:"card_ids"`
	Reason  string      `json:"reason"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates an Event with the specified type, user and payload.
func NewEvent(eventType string, userID uuid.UUID, payload any, now time.Time) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		UserID:    userID,
		Payload:   payloadBytes,
		CreatedAt: now,
	}, nil
}

// EventHandler defines an interface for components that can handle events.
// Handlers run on the emitter's goroutine and must not block.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *Event) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function into an EventHandler.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent implements EventHandler.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// NopEmitter discards every event.
type NopEmitter struct{}

// EmitEvent implements EventEmitter.
func (NopEmitter) EmitEvent(context.Context, *Event) error { return nil }
