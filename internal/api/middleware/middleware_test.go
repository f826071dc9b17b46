package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/api/shared"
	"github.com/phrazzld/flashdeck/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator struct {
	claims *auth.Claims
	err    error
}

func (s stubValidator) ValidateToken(context.Context, string) (*auth.Claims, error) {
	return s.claims, s.err
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	userID := uuid.New()

	tests := []struct {
		name      string
		header    string
		validator stubValidator
		status    int
	}{
		{"valid", "Bearer good", stubValidator{claims: &auth.Claims{UserID: userID}}, http.StatusOK},
		{"missing header", "", stubValidator{}, http.StatusUnauthorized},
		{"no bearer prefix", "good", stubValidator{}, http.StatusUnauthorized},
		{"empty token", "Bearer ", stubValidator{}, http.StatusUnauthorized},
		{"expired", "Bearer old", stubValidator{err: auth.ErrExpiredToken}, http.StatusUnauthorized},
		{"invalid", "Bearer bad", stubValidator{err: auth.ErrInvalidToken}, http.StatusUnauthorized},
		{"validator failure", "Bearer x", stubValidator{err: errors.New("boom")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var seen uuid.UUID
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				id, ok := GetUserID(r)
				assert.True(t, ok)
				seen = id
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			NewAuthMiddleware(tt.validator).Authenticate(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, userID, seen)
			}
		})
	}
}

func TestTraceMiddleware(t *testing.T) {
	t.Parallel()

	var traceID string
	next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		traceID = shared.GetTraceID(r.Context())
	})

	rec := httptest.NewRecorder()
	NewTraceMiddleware(nil)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, traceID)
	assert.Equal(t, traceID, rec.Header().Get("X-Trace-ID"))
}
