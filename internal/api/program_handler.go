package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/flashdeck/internal/api/shared"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/phrazzld/flashdeck/internal/platform/logger"
	"github.com/phrazzld/flashdeck/internal/service/deck"
)

// ProgramHandler handles study program requests.
type ProgramHandler struct {
	deck   *deck.Service
	logger *slog.Logger
}

// NewProgramHandler creates a new ProgramHandler.
func NewProgramHandler(deckService *deck.Service, logger *slog.Logger) *ProgramHandler {
	if deckService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("deck service cannot be nil for ProgramHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgramHandler{
		deck:   deckService,
		logger: logger.With(slog.String("component", "program_handler")),
	}
}

// ListPrograms handles GET /programs requests.
func (h *ProgramHandler) ListPrograms(w http.ResponseWriter, r *http.Request) {
	userID, ok := handleUserID(w, r)
	if !ok {
		return
	}

	programs, err := h.deck.ListPrograms(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list programs")
		return
	}
	if programs == nil {
		programs = []domain.Program{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, programs)
}

// SaveProgram handles PUT /programs/{id} requests.
func (h *ProgramHandler) SaveProgram(w http.ResponseWriter, r *http.Request) {
	userID, programID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req ProgramRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	program, err := h.deck.SaveProgram(r.Context(), userID, req.toProgram(programID))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to save program")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, program)
}

// DeleteProgram handles DELETE /programs/{id} requests.
func (h *ProgramHandler) DeleteProgram(w http.ResponseWriter, r *http.Request) {
	userID, programID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.deck.DeleteProgram(r.Context(), userID, programID); err != nil {
		HandleAPIError(w, r, err, "Failed to delete program")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ProgramCards handles GET /programs/{id}/cards requests.
func (h *ProgramHandler) ProgramCards(w http.ResponseWriter, r *http.Request) {
	userID, programID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	cards, err := h.deck.ProgramCards(r.Context(), userID, programID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get program cards")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, nonNilCards(cards))
}

// EnrollProgram handles POST /programs/{id}/enroll requests. It copies a
// generic program and its cards into the user's deck.
func (h *ProgramHandler) EnrollProgram(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, programID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	program, err := h.deck.EnrollProgram(r.Context(), userID, programID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to enroll in program")
		return
	}

	log.Info("enrolled in program",
		slog.String("source_program_id", programID.String()),
		slog.String("program_id", program.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, program)
}
