package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/phrazzld/flashdeck/internal/platform/logger"
	"github.com/phrazzld/flashdeck/internal/service"
	"github.com/phrazzld/flashdeck/internal/service/auth"
	"github.com/phrazzld/flashdeck/internal/service/deck"
	"github.com/phrazzld/flashdeck/internal/service/study"
	"github.com/phrazzld/flashdeck/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized, "Token expired"},
		{"wrong token type", auth.ErrWrongTokenType, http.StatusUnauthorized, "Invalid token"},
		{"card not owned", service.NewServiceError("deck", "get_card", deck.ErrCardNotOwned), http.StatusForbidden, "You do not own this resource"},
		{"card not found", fmt.Errorf("lookup: %w", store.ErrCardNotFound), http.StatusNotFound, "Card not found"},
		{"share not found", store.ErrShareNotFound, http.StatusNotFound, "Share code not found"},
		{"achievement not found", &domain.NotFoundError{Entity: "achievement", ID: "x"}, http.StatusNotFound, "Resource not found"},
		{"session not found", study.ErrSessionNotFound, http.StatusNotFound, "Session not found"},
		{"session closed", study.ErrSessionClosed, http.StatusConflict, "Session is closed"},
		{"integrity", &domain.IntegrityError{ProgramID: uuid.New(), CardID: uuid.New()}, http.StatusConflict, "Program references missing cards"},
		{"duplicate", store.ErrDuplicate, http.StatusConflict, "Resource already exists"},
		{"validation", domain.NewValidationError("days", "must be positive", nil), http.StatusBadRequest, "Invalid days: must be positive"},
		{"sync", domain.NewSyncError("push", true, errors.New("boom")), http.StatusBadGateway, "Remote synchronization failed"},
		{"unknown", errors.New("pq: connection refused"), http.StatusInternalServerError, "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.status, MapErrorToStatusCode(tt.err))
			assert.Equal(t, tt.message, GetSafeErrorMessage(tt.err))
		})
	}
}

func TestHandleAPIErrorUsesDefaultMessageForInternalErrors(t *testing.T) {
	t.Parallel()

	ctx, logs := logger.NewLogCaptureContext(t)
	req := httptest.NewRequest(http.MethodGet, "/api/cards", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	HandleAPIError(rec, req, errors.New("password=hunter2 leaked"), "Failed to list cards")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to list cards")
	assert.NotContains(t, rec.Body.String(), "hunter2")

	assert.Contains(t, logs.String(), "API error response")
	assert.NotContains(t, logs.String(), "hunter2")
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	err := errors.New("Key: 'CardRequest.Question' Error:Field validation for 'Question' failed on the 'required' tag")
	assert.Equal(t, "Invalid Question: required field", SanitizeValidationError(err))
	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("other")))
}
