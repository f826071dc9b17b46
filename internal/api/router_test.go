package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/config"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/phrazzld/flashdeck/internal/domain/achievement"
	"github.com/phrazzld/flashdeck/internal/domain/progress"
	"github.com/phrazzld/flashdeck/internal/domain/srs"
	"github.com/phrazzld/flashdeck/internal/service/auth"
	"github.com/phrazzld/flashdeck/internal/service/deck"
	"github.com/phrazzld/flashdeck/internal/service/study"
	"github.com/phrazzld/flashdeck/internal/store/memory"
	"github.com/phrazzld/flashdeck/internal/syncer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 4, 7, 10, 0, 0, 0, time.UTC)

type testServer struct {
	handler http.Handler
	clock   *domain.FixedClock
	tokens  auth.JWTService
}

type fakeSyncer struct {
	pulled []uuid.UUID
}

func (f *fakeSyncer) Push(_ context.Context, _ uuid.UUID) (syncer.PushResult, error) {
	return syncer.PushResult{Cards: 2, Stats: true}, nil
}

func (f *fakeSyncer) Pull(_ context.Context, userID uuid.UUID) (syncer.PullResult, error) {
	f.pulled = append(f.pulled, userID)
	return syncer.PullResult{CardsUpdated: 1}, nil
}

func newTestServer(t *testing.T, sync Synchronizer, origins ...string) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := domain.NewFixedClock(testNow)
	backend := memory.NewBackend(logger)
	scheduler := srs.NewDefaultService()

	deckService, err := deck.NewService(backend, scheduler, nil, clock, logger)
	require.NoError(t, err)
	studyService, err := study.NewService(study.Deps{
		Backend:    backend,
		Scheduler:  scheduler,
		Aggregator: progress.NewAggregator(time.UTC),
		Evaluator:  achievement.NewEvaluator(nil, logger),
		Clock:      clock,
		Logger:     logger,
	})
	require.NoError(t, err)
	tokens, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:     "router-test-secret-that-is-long-enough",
		TokenLifetime: time.Hour,
	}, clock)
	require.NoError(t, err)

	return &testServer{
		handler: NewRouter(RouterDeps{
			Deck:           deckService,
			Study:          studyService,
			Tokens:         tokens,
			Syncer:         sync,
			AllowedOrigins: origins,
			Logger:         logger,
		}),
		clock:  clock,
		tokens: tokens,
	}
}

func (s *testServer) do(t *testing.T, userID uuid.UUID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		token, err := s.tokens.GenerateToken(context.Background(), userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) createCard(t *testing.T, userID uuid.UUID, question string) domain.Flashcard {
	t.Helper()
	rec := s.do(t, userID, http.MethodPost, "/api/cards", CardRequest{
		CategoryID:  "go",
		Subcategory: "channels",
		Question:    question,
		Answer:      "answer to " + question,
		Difficulty:  "beginner",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[domain.Flashcard](t, rec)
}

func TestHealth(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)

	rec := srv.do(t, uuid.Nil, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestAuthentication(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/cards", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			srv.handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))
		})
	}

	t.Run("expired token", func(t *testing.T) {
		token, err := srv.tokens.GenerateToken(context.Background(), uuid.New())
		require.NoError(t, err)
		srv.clock.Advance(2 * time.Hour)
		defer srv.clock.Set(testNow)

		req := httptest.NewRequest(http.MethodGet, "/api/cards", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		srv.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Token expired", decode[map[string]any](t, rec)["error"])
	})
}

func TestCardEndpoints(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)
	owner, other := uuid.New(), uuid.New()

	card := srv.createCard(t, owner, "What closes a channel?")
	assert.Equal(t, owner, card.UserID)

	rec := srv.do(t, owner, http.MethodGet, "/api/cards/"+card.ID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, other, http.MethodGet, "/api/cards/"+card.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, owner, http.MethodGet, "/api/cards/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, owner, http.MethodGet, "/api/cards/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, owner, http.MethodPost, "/api/cards", CardRequest{CategoryID: "go", Difficulty: "beginner"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, owner, http.MethodGet, "/api/cards?category=go&difficulty=beginner", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Flashcard](t, rec), 1)

	rec = srv.do(t, owner, http.MethodGet, "/api/cards?difficulty=impossible", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, owner, http.MethodGet, "/api/categories/go/topics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"channels"}, decode[[]string](t, rec))

	rec = srv.do(t, owner, http.MethodPost, "/api/cards/"+card.ID.String()+"/postpone", PostponeRequest{Days: 2})
	require.Equal(t, http.StatusOK, rec.Code)
	postponed := decode[domain.Flashcard](t, rec)
	require.NotNil(t, postponed.NextReview)
	assert.Equal(t, testNow.AddDate(0, 0, 2), postponed.NextReview.UTC())

	flag := true
	rec = srv.do(t, owner, http.MethodPost, "/api/cards/"+card.ID.String()+"/review-later", ReviewLaterRequest{ReviewLater: &flag})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[domain.Flashcard](t, rec).ReviewLater)

	rec = srv.do(t, owner, http.MethodDelete, "/api/cards/"+card.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(t, owner, http.MethodDelete, "/api/cards/"+card.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionFlow(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)
	userID := uuid.New()
	card := srv.createCard(t, userID, "What does select do?")

	rec := srv.do(t, userID, http.MethodGet, "/api/cards/due?category=go", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Flashcard](t, rec), 1)

	rec = srv.do(t, userID, http.MethodPost, "/api/sessions", StartSessionRequest{CategoryID: "go"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	session := decode[SessionResponse](t, rec)
	sessionPath := "/api/sessions/" + session.ID.String()

	correct := true
	rec = srv.do(t, userID, http.MethodPost, sessionPath+"/outcomes", OutcomeRequest{CardID: card.ID, Correct: &correct})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, decode[SessionResponse](t, rec).Pending)

	// nothing is persisted before the flush
	rec = srv.do(t, userID, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[domain.UserStats](t, rec).TotalCorrect)

	rec = srv.do(t, uuid.New(), http.MethodPost, sessionPath+"/flush", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, userID, http.MethodPost, sessionPath+"/flush", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[study.FlushResult](t, rec)
	assert.Equal(t, 1, result.Summary.CorrectCount)
	require.NotNil(t, result.Stats)
	assert.Equal(t, 1, result.Stats.TotalCorrect)
	assert.Equal(t, 1, result.Stats.Streak)
	require.NotEmpty(t, result.NewAchievements)
	assert.Equal(t, domain.AchievementFirstReview, result.NewAchievements[0].ID)

	rec = srv.do(t, userID, http.MethodGet, "/api/cards/due?category=go", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]domain.Flashcard](t, rec))

	rec = srv.do(t, userID, http.MethodPost, "/api/stats/achievements/first_review/ack", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[domain.UserStats](t, rec)
	require.NotEmpty(t, stats.Achievements)
	assert.True(t, stats.Achievements[0].Displayed)

	rec = srv.do(t, userID, http.MethodPost, "/api/stats/achievements/streak_30/ack", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, userID, http.MethodDelete, sessionPath, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(t, userID, http.MethodGet, sessionPath, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionRejectsForeignCardOnFlush(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)
	owner, other := uuid.New(), uuid.New()
	card := srv.createCard(t, owner, "Who owns this?")

	rec := srv.do(t, other, http.MethodPost, "/api/sessions", StartSessionRequest{CategoryID: "go"})
	require.Equal(t, http.StatusCreated, rec.Code)
	sessionPath := "/api/sessions/" + decode[SessionResponse](t, rec).ID.String()

	wrong := false
	rec = srv.do(t, other, http.MethodPost, sessionPath+"/outcomes", OutcomeRequest{CardID: card.ID, Correct: &wrong})
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = srv.do(t, other, http.MethodPost, sessionPath+"/flush", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestShareEndpoints(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)
	owner, importer := uuid.New(), uuid.New()
	card := srv.createCard(t, owner, "What is a goroutine?")

	rec := srv.do(t, owner, http.MethodPost, "/api/shares", ShareRequest{CardIDs: []uuid.UUID{card.ID}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	share := decode[ShareResponse](t, rec)
	assert.Equal(t, 1, share.CardCount)
	assert.NotEmpty(t, share.Code)

	rec = srv.do(t, importer, http.MethodPost, "/api/shares/"+share.Code+"/import", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	imported := decode[[]domain.Flashcard](t, rec)
	require.Len(t, imported, 1)
	assert.Equal(t, importer, imported[0].UserID)
	assert.NotEqual(t, card.ID, imported[0].ID)

	rec = srv.do(t, importer, http.MethodPost, "/api/shares/UNKNOWN123/import", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, importer, http.MethodPost, "/api/shares", ShareRequest{CardIDs: []uuid.UUID{card.ID}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestProgramEndpoints(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil)
	userID := uuid.New()
	first := srv.createCard(t, userID, "first")
	second := srv.createCard(t, userID, "second")
	programID := uuid.New()

	rec := srv.do(t, userID, http.MethodPut, "/api/programs/"+programID.String(), ProgramRequest{
		Name:       "Concurrency",
		CategoryID: "go",
		Difficulty: "beginner",
		CardIDs:    []uuid.UUID{second.ID, first.ID},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, userID, http.MethodGet, "/api/programs/"+programID.String()+"/cards", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cards := decode[[]domain.Flashcard](t, rec)
	require.Len(t, cards, 2)
	assert.Equal(t, second.ID, cards[0].ID)

	rec = srv.do(t, userID, http.MethodGet, "/api/programs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Program](t, rec), 1)

	rec = srv.do(t, userID, http.MethodPut, "/api/programs/"+uuid.NewString(), ProgramRequest{
		Name:       "Broken",
		CategoryID: "go",
		Difficulty: "beginner",
		CardIDs:    []uuid.UUID{uuid.New()},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(t, userID, http.MethodDelete, "/api/programs/"+programID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSyncEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("not configured", func(t *testing.T) {
		srv := newTestServer(t, nil)
		rec := srv.do(t, uuid.New(), http.MethodPost, "/api/sync/pull", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("configured", func(t *testing.T) {
		fake := &fakeSyncer{}
		srv := newTestServer(t, fake)
		userID := uuid.New()

		rec := srv.do(t, userID, http.MethodPost, "/api/sync/pull", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, decode[syncer.PullResult](t, rec).CardsUpdated)
		assert.Equal(t, []uuid.UUID{userID}, fake.pulled)

		rec = srv.do(t, userID, http.MethodPost, "/api/sync/push", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, syncer.PushResult{Cards: 2, Stats: true}, decode[syncer.PushResult](t, rec))
	})
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, nil, "https://app.example.com")

	req := httptest.NewRequest(http.MethodOptions, "/api/cards", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
