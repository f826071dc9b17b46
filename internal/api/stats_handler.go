package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/flashdeck/internal/api/shared"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/phrazzld/flashdeck/internal/service/study"
)

// StatsHandler serves a user's aggregate stats and achievements.
type StatsHandler struct {
	study  *study.Service
	logger *slog.Logger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(studyService *study.Service, logger *slog.Logger) *StatsHandler {
	if studyService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("study service cannot be nil for StatsHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsHandler{
		study:  studyService,
		logger: logger.With(slog.String("component", "stats_handler")),
	}
}

// GetStats handles GET /stats requests.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := handleUserID(w, r)
	if !ok {
		return
	}

	stats, err := h.study.Stats(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get stats")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// AcknowledgeAchievement handles POST /stats/achievements/{id}/ack requests.
func (h *StatsHandler) AcknowledgeAchievement(w http.ResponseWriter, r *http.Request) {
	userID, ok := handleUserID(w, r)
	if !ok {
		return
	}

	id := domain.AchievementID(chi.URLParam(r, "id"))
	stats, err := h.study.AcknowledgeAchievement(r.Context(), userID, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to acknowledge achievement")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}
