package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/flashdeck/internal/api/shared"
	"github.com/phrazzld/flashdeck/internal/platform/logger"
	"github.com/phrazzld/flashdeck/internal/service/deck"
)

// ShareHandler creates and redeems share codes.
type ShareHandler struct {
	deck   *deck.Service
	logger *slog.Logger
}

// NewShareHandler creates a new ShareHandler.
func NewShareHandler(deckService *deck.Service, logger *slog.Logger) *ShareHandler {
	if deckService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("deck service cannot be nil for ShareHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ShareHandler{
		deck:   deckService,
		logger: logger.With(slog.String("component", "share_handler")),
	}
}

// CreateShare handles POST /shares requests.
func (h *ShareHandler) CreateShare(w http.ResponseWriter, r *http.Request) {
	userID, ok := handleUserID(w, r)
	if !ok {
		return
	}

	var req ShareRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	share, err := h.deck.CreateShare(r.Context(), userID, req.CardIDs)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create share")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, ShareResponse{
		Code:      share.Code,
		CardCount: len(share.CardIDs),
		CreatedAt: share.CreatedAt,
	})
}

// ImportShare handles POST /shares/{code}/import requests.
func (h *ShareHandler) ImportShare(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := handleUserID(w, r)
	if !ok {
		return
	}

	code := chi.URLParam(r, "code")
	cards, err := h.deck.ImportShare(r.Context(), userID, code)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to import share")
		return
	}

	log.Info("imported shared cards", slog.Int("count", len(cards)))
	shared.RespondWithJSON(w, r, http.StatusCreated, nonNilCards(cards))
}
