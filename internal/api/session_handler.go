package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/flashdeck/internal/api/shared"
	"github.com/phrazzld/flashdeck/internal/platform/logger"
	"github.com/phrazzld/flashdeck/internal/service/study"
)

// SessionHandler handles study session requests. Open sessions live in
// the registry until they are deleted.
type SessionHandler struct {
	study    *study.Service
	sessions *study.SessionRegistry
	logger   *slog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(studyService *study.Service, sessions *study.SessionRegistry, logger *slog.Logger) *SessionHandler {
	if studyService == nil || sessions == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("study service and session registry cannot be nil for SessionHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{
		study:    studyService,
		sessions: sessions,
		logger:   logger.With(slog.String("component", "session_handler")),
	}
}

// StartSession handles POST /sessions requests.
func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := handleUserID(w, r)
	if !ok {
		return
	}

	var req StartSessionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session, err := h.study.StartSession(userID, req.toScope())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to start session")
		return
	}
	h.sessions.Add(session)

	log.Debug("session started", slog.String("session_id", session.ID().String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, sessionToResponse(session))
}

// GetSession handles GET /sessions/{id} requests.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	session, err := h.sessions.Get(sessionID, userID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, sessionToResponse(session))
}

// RecordOutcome handles POST /sessions/{id}/outcomes requests. The answer
// is held in memory until the session is flushed.
func (h *SessionHandler) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req OutcomeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session, err := h.sessions.Get(sessionID, userID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := session.Record(req.CardID, *req.Correct); err != nil {
		HandleAPIError(w, r, err, "Failed to record outcome")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, sessionToResponse(session))
}

// FlushSession handles POST /sessions/{id}/flush requests.
func (h *SessionHandler) FlushSession(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, sessionID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	session, err := h.sessions.Get(sessionID, userID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	result, err := session.Flush(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to save session")
		return
	}

	log.Debug("session flushed",
		slog.String("session_id", sessionID.String()),
		slog.Int("correct", result.Summary.CorrectCount),
		slog.Int("incorrect", result.Summary.IncorrectCount))
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// DeleteSession handles DELETE /sessions/{id} requests. Unflushed answers
// are discarded.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.sessions.Remove(sessionID, userID); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
