package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{BaseURL: server.URL, APIKey: "secret", Timeout: 2 * time.Second}, nil)
}

func testCard(t *testing.T, userID uuid.UUID) domain.Flashcard {
	t.Helper()
	now := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	card, err := domain.NewFlashcard(userID, "history", "rome", "q", "a", domain.DifficultyBeginner, now)
	require.NoError(t, err)
	return *card
}

func TestFetchFlashcards(t *testing.T) {
	t.Parallel()
	userID := uuid.New()
	card := testCard(t, userID)
	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/users/"+userID.String()+"/flashcards", r.URL.Path)
		assert.Equal(t, "history", r.URL.Query().Get("category"))
		assert.Equal(t, since.Format(time.RFC3339Nano), r.URL.Query().Get("updated_since"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(flashcardsEnvelope{Flashcards: []domain.Flashcard{card}})
	})

	cards, err := client.FetchFlashcards(context.Background(), domain.RemoteFilter{
		UserID:       userID,
		CategoryID:   "history",
		UpdatedSince: &since,
	})
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, card.ID, cards[0].ID)
	assert.True(t, card.UpdatedAt.Equal(cards[0].UpdatedAt))
}

func TestSaveFlashcards(t *testing.T) {
	t.Parallel()
	userID := uuid.New()
	card := testCard(t, userID)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)

		var body flashcardsEnvelope
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Flashcards, 1)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.SaveFlashcards(context.Background(), userID, []domain.Flashcard{card}))
}

func TestFetchUserStatsNotFound(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	stats, err := client.FetchUserStats(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, stats)
}

func TestFetchUserStats(t *testing.T) {
	t.Parallel()
	userID := uuid.New()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		stats := domain.NewUserStats(userID)
		stats.TotalCorrect = 7
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
	})

	stats, err := client.FetchUserStats(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 7, stats.TotalCorrect)
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"server error", http.StatusInternalServerError, true},
		{"bad gateway", http.StatusBadGateway, true},
		{"throttled", http.StatusTooManyRequests, true},
		{"bad request", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			})

			err := client.SaveUserStats(context.Background(), uuid.New(), domain.NewUserStats(uuid.New()))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrSync)
			assert.Equal(t, tt.retryable, domain.IsRetryable(err))

			var statusErr *StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, tt.status, statusErr.StatusCode)
			assert.Equal(t, "nope", statusErr.Message)
		})
	}
}

func TestNetworkErrorIsRetryable(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(Config{BaseURL: url, Timeout: time.Second}, nil)
	_, err := client.FetchFlashcards(context.Background(), domain.RemoteFilter{UserID: uuid.New()})

	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
}
