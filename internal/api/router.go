package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	apiMiddleware "github.com/phrazzld/flashdeck/internal/api/middleware"
	"github.com/phrazzld/flashdeck/internal/service/auth"
	"github.com/phrazzld/flashdeck/internal/service/deck"
	"github.com/phrazzld/flashdeck/internal/service/study"
	"github.com/rs/cors"
)

// RouterDeps are the collaborators the HTTP surface is built from.
// Syncer and AllowedOrigins are optional.
type RouterDeps struct {
	Deck           *deck.Service
	Study          *study.Service
	Sessions       *study.SessionRegistry
	Tokens         auth.TokenValidator
	Syncer         Synchronizer
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter creates the application router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	sessions := deps.Sessions
	if sessions == nil {
		sessions = study.NewSessionRegistry()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(log))

	authMiddleware := apiMiddleware.NewAuthMiddleware(deps.Tokens)
	cardHandler := NewCardHandler(deps.Deck, deps.Study, log)
	programHandler := NewProgramHandler(deps.Deck, log)
	sessionHandler := NewSessionHandler(deps.Study, sessions, log)
	statsHandler := NewStatsHandler(deps.Study, log)
	shareHandler := NewShareHandler(deps.Deck, log)
	syncHandler := NewSyncHandler(deps.Syncer, log)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Get("/cards", cardHandler.ListCards)
		r.Post("/cards", cardHandler.CreateCard)
		r.Get("/cards/due", cardHandler.DueCards)
		r.Get("/cards/{id}", cardHandler.GetCard)
		r.Put("/cards/{id}", cardHandler.SaveCard)
		r.Delete("/cards/{id}", cardHandler.DeleteCard)
		r.Post("/cards/{id}/review-later", cardHandler.SetReviewLater)
		r.Post("/cards/{id}/postpone", cardHandler.Postpone)
		r.Get("/categories/{category}/topics", cardHandler.Topics)

		r.Get("/programs", programHandler.ListPrograms)
		r.Put("/programs/{id}", programHandler.SaveProgram)
		r.Delete("/programs/{id}", programHandler.DeleteProgram)
		r.Get("/programs/{id}/cards", programHandler.ProgramCards)
		r.Post("/programs/{id}/enroll", programHandler.EnrollProgram)

		r.Post("/sessions", sessionHandler.StartSession)
		r.Get("/sessions/{id}", sessionHandler.GetSession)
		r.Post("/sessions/{id}/outcomes", sessionHandler.RecordOutcome)
		r.Post("/sessions/{id}/flush", sessionHandler.FlushSession)
		r.Delete("/sessions/{id}", sessionHandler.DeleteSession)

		r.Get("/stats", statsHandler.GetStats)
		r.Post("/stats/achievements/{id}/ack", statsHandler.AcknowledgeAchievement)

		r.Post("/shares", shareHandler.CreateShare)
		r.Post("/shares/{code}/import", shareHandler.ImportShare)

		r.Post("/sync/pull", syncHandler.Pull)
		r.Post("/sync/push", syncHandler.Push)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error("failed to write health check response", slog.String("error", err.Error()))
		}
	})

	if len(deps.AllowedOrigins) == 0 {
		return r
	}
	return cors.New(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler(r)
}
