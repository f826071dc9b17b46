package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/api/shared"
	"github.com/phrazzld/flashdeck/internal/syncer"
)

// Synchronizer runs one synchronization with the remote store.
type Synchronizer interface {
	Push(ctx context.Context, userID uuid.UUID) (syncer.PushResult, error)
	Pull(ctx context.Context, userID uuid.UUID) (syncer.PullResult, error)
}

// SyncHandler triggers synchronization for the calling user.
type SyncHandler struct {
	syncer Synchronizer
	logger *slog.Logger
}

// NewSyncHandler creates a new SyncHandler. A nil syncer means no remote
// store is configured and every request is answered with 503.
func NewSyncHandler(s Synchronizer, logger *slog.Logger) *SyncHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncHandler{
		syncer: s,
		logger: logger.With(slog.String("component", "sync_handler")),
	}
}

// Pull handles POST /sync/pull requests.
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.prepare(w, r)
	if !ok {
		return
	}

	result, err := h.syncer.Pull(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to pull from remote store")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// Push handles POST /sync/push requests.
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.prepare(w, r)
	if !ok {
		return
	}

	result, err := h.syncer.Push(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to push to remote store")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

func (h *SyncHandler) prepare(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if h.syncer == nil {
		shared.RespondWithError(w, r, http.StatusServiceUnavailable, "Remote sync is not configured")
		return uuid.Nil, false
	}
	return handleUserID(w, r)
}
