package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/flashdeck/internal/api/shared"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/phrazzld/flashdeck/internal/platform/logger"
	"github.com/phrazzld/flashdeck/internal/service/deck"
	"github.com/phrazzld/flashdeck/internal/service/study"
	"github.com/phrazzld/flashdeck/internal/store"
)

// CardHandler handles card-related HTTP requests
type CardHandler struct {
	deck   *deck.Service
	study  *study.Service
	logger *slog.Logger
}

// NewCardHandler creates a new CardHandler
func NewCardHandler(deckService *deck.Service, studyService *study.Service, logger *slog.Logger) *CardHandler {
	if deckService == nil || studyService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("services cannot be nil for CardHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CardHandler{
		deck:   deckService,
		study:  studyService,
		logger: logger.With(slog.String("component", "card_handler")),
	}
}

// ListCards handles GET /cards requests, filtered by the optional
// category, topic, difficulty and program query parameters.
func (h *CardHandler) ListCards(w http.ResponseWriter, r *http.Request) {
	userID, ok := handleUserID(w, r)
	if !ok {
		return
	}

	difficulty, err := queryDifficulty(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	programID, err := queryUUID(r, "program")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	q := r.URL.Query()
	cards, err := h.deck.ListCards(r.Context(), userID, store.CardFilter{
		CategoryID:  q.Get("category"),
		Subcategory: q.Get("topic"),
		Difficulty:  difficulty,
		ProgramID:   programID,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list cards")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, nonNilCards(cards))
}

// DueCards handles GET /cards/due requests. The category parameter is
// required; program, difficulty, topic and limit narrow the result.
func (h *CardHandler) DueCards(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := handleUserID(w, r)
	if !ok {
		return
	}

	difficulty, err := queryDifficulty(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	programID, err := queryUUID(r, "program")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	scope := domain.StudyScope{
		CategoryID: r.URL.Query().Get("category"),
		ProgramID:  programID,
		Difficulty: difficulty,
		Topic:      r.URL.Query().Get("topic"),
	}

	cards, err := h.study.DueCards(r.Context(), userID, scope, limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get due cards")
		return
	}

	log.Debug("selected due cards", slog.Int("count", len(cards)))
	shared.RespondWithJSON(w, r, http.StatusOK, nonNilCards(cards))
}

// Topics handles GET /categories/{category}/topics requests.
func (h *CardHandler) Topics(w http.ResponseWriter, r *http.Request) {
	userID, ok := handleUserID(w, r)
	if !ok {
		return
	}

	topics, err := h.deck.Topics(r.Context(), userID, chi.URLParam(r, "category"))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list topics")
		return
	}
	if topics == nil {
		topics = []string{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, topics)
}

// GetCard handles GET /cards/{id} requests.
func (h *CardHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	userID, cardID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	card, err := h.deck.GetCard(r.Context(), userID, cardID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get card")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, card)
}

// CreateCard handles POST /cards requests.
func (h *CardHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := handleUserID(w, r)
	if !ok {
		return
	}

	var req CardRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	card, err := h.deck.CreateCard(r.Context(), userID, req.toInput())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create card")
		return
	}

	log.Debug("card created", slog.String("card_id", card.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, card)
}

// SaveCard handles PUT /cards/{id} requests. The card is created when it
// does not exist; its review state is kept when it does.
func (h *CardHandler) SaveCard(w http.ResponseWriter, r *http.Request) {
	userID, cardID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req CardRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	card, err := h.deck.SaveCard(r.Context(), userID, cardID, req.toInput())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to save card")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, card)
}

// DeleteCard handles DELETE /cards/{id} requests.
func (h *CardHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	userID, cardID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.deck.DeleteCard(r.Context(), userID, cardID); err != nil {
		HandleAPIError(w, r, err, "Failed to delete card")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetReviewLater handles POST /cards/{id}/review-later requests.
func (h *CardHandler) SetReviewLater(w http.ResponseWriter, r *http.Request) {
	userID, cardID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req ReviewLaterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	card, err := h.deck.SetReviewLater(r.Context(), userID, cardID, *req.ReviewLater)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update card")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, card)
}

// Postpone handles POST /cards/{id}/postpone requests.
func (h *CardHandler) Postpone(w http.ResponseWriter, r *http.Request) {
	userID, cardID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req PostponeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	card, err := h.deck.Postpone(r.Context(), userID, cardID, req.Days)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to postpone card")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, card)
}

func nonNilCards(cards []domain.Flashcard) []domain.Flashcard {
	if cards == nil {
		return []domain.Flashcard{}
	}
	return cards
}
