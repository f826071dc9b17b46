package syncer

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/events"
	"github.com/phrazzld/flashdeck/internal/task"
)

// TaskTypePush identifies push tasks on the worker pool.
const TaskTypePush = "sync_push"

// EventHandler schedules a push for every event that changed a user's
// data. It never blocks the emitter: when the queue is full the user is
// left for the sweep.
type EventHandler struct {
	syncer *Syncer
	queue  task.TaskQueueWriter
	logger *slog.Logger
}

var _ events.EventHandler = (*EventHandler)(nil)

// NewEventHandler creates an EventHandler.
func NewEventHandler(syncer *Syncer, queue task.TaskQueueWriter, logger *slog.Logger) *EventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandler{
		syncer: syncer,
		queue:  queue,
		logger: logger.With(slog.String("component", "sync_event_handler")),
	}
}

// HandleEvent implements events.EventHandler.
func (h *EventHandler) HandleEvent(ctx context.Context, event *events.Event) error {
	switch event.Type {
	case events.TypeSessionFlushed, events.TypeCardsChanged:
	default:
		h.logger.Debug("ignoring event with unsupported type",
			slog.String("event_type", event.Type),
			slog.String("event_id", event.ID.String()))
		return nil
	}

	if err := h.queue.Enqueue(h.pushTask(event.UserID)); err != nil {
		h.logger.Warn("could not queue push, leaving it for the sweep",
			slog.String("user_id", event.UserID.String()),
			slog.String("error", err.Error()))
		h.syncer.MarkPending(event.UserID)
	}
	return nil
}

func (h *EventHandler) pushTask(userID uuid.UUID) task.Task {
	return task.NewFunc(TaskTypePush, func(ctx context.Context) error {
		if _, err := h.syncer.Push(ctx, userID); err != nil {
			h.syncer.MarkPending(userID)
			return err
		}
		return nil
	})
}
