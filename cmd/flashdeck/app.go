package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/flashdeck/internal/api"
	"github.com/phrazzld/flashdeck/internal/config"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/phrazzld/flashdeck/internal/domain/achievement"
	"github.com/phrazzld/flashdeck/internal/domain/progress"
	"github.com/phrazzld/flashdeck/internal/domain/srs"
	"github.com/phrazzld/flashdeck/internal/events"
	"github.com/phrazzld/flashdeck/internal/platform/postgres"
	"github.com/phrazzld/flashdeck/internal/platform/remote"
	"github.com/phrazzld/flashdeck/internal/platform/sqlite"
	"github.com/phrazzld/flashdeck/internal/service/auth"
	"github.com/phrazzld/flashdeck/internal/service/deck"
	"github.com/phrazzld/flashdeck/internal/service/study"
	"github.com/phrazzld/flashdeck/internal/store"
	"github.com/phrazzld/flashdeck/internal/store/memory"
	"github.com/phrazzld/flashdeck/internal/syncer"
	"github.com/phrazzld/flashdeck/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	clock  domain.Clock

	backend store.Backend
	emitter *events.InMemoryEventEmitter
	tokens  auth.JWTService

	deck     *deck.Service
	study    *study.Service
	sessions *study.SessionRegistry

	// nil when no remote store is configured
	syncer *syncer.Syncer
	queue  *task.TaskQueue
	pool   *task.WorkerPool
}

// newApplication wires every component from cfg. Background workers are
// not started; call start for that.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	clock := domain.SystemClock{}

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	app, err := buildApplication(cfg, backend, clock, logger)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return app, nil
}

func buildApplication(cfg *config.Config, backend store.Backend, clock domain.Clock, logger *slog.Logger) (*application, error) {
	scheduler, err := newScheduler(cfg.SRS)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Study.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid study timezone: %w", err)
	}
	tokens, err := auth.NewJWTService(cfg.Auth, clock)
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	app := &application{
		config:   cfg,
		logger:   logger,
		clock:    clock,
		backend:  backend,
		emitter:  events.NewInMemoryEventEmitter(logger),
		tokens:   tokens,
		sessions: study.NewSessionRegistry(),
	}

	if cfg.Sync.Enabled() {
		client := remote.NewClient(remote.Config{
			BaseURL: cfg.Sync.RemoteURL,
			APIKey:  cfg.Sync.APIKey,
			Timeout: cfg.Sync.Timeout,
		}, logger)
		app.syncer = syncer.New(backend, client, clock, syncer.Config{
			MaxAttempts:    cfg.Sync.MaxAttempts,
			InitialBackoff: cfg.Sync.InitialBackoff,
			MaxBackoff:     syncer.DefaultConfig().MaxBackoff,
		}, logger)

		app.queue = task.NewTaskQueue(cfg.Sync.QueueSize, logger)
		app.pool = task.NewWorkerPool(app.queue, task.WorkerPoolConfig{WorkerCount: cfg.Sync.WorkerCount}, logger)
		app.emitter.RegisterHandler(syncer.NewEventHandler(app.syncer, app.queue, logger))
	}

	app.deck, err = deck.NewService(backend, scheduler, app.emitter, clock, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create deck service: %w", err)
	}
	app.study, err = study.NewService(study.Deps{
		Backend:    backend,
		Scheduler:  scheduler,
		Aggregator: progress.NewAggregator(loc),
		Evaluator:  achievement.NewEvaluator(nil, logger),
		Emitter:    app.emitter,
		Clock:      clock,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create study service: %w", err)
	}

	return app, nil
}

func newScheduler(cfg config.SRSConfig) (srs.Service, error) {
	policy, err := srs.ParseReviewLaterPolicy(cfg.ReviewLaterPolicy)
	if err != nil {
		return nil, err
	}
	params := srs.NewParams(srs.ParamsConfig{
		BaseInterval:      cfg.BaseInterval,
		MaxInterval:       cfg.MaxInterval,
		LapseInterval:     cfg.LapseInterval,
		LearnedThreshold:  cfg.LearnedThreshold,
		ReviewLaterPolicy: policy,
	})
	scheduler, err := srs.NewServiceWithParams(params)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler parameters: %w", err)
	}
	return scheduler, nil
}

// openBackend opens the store selected by storage.driver.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Backend, error) {
	switch cfg.Storage.Driver {
	case "memory":
		logger.Warn("using the in-memory store; data is lost on exit")
		return memory.NewBackend(logger), nil

	case "sqlite":
		return sqlite.Open(cfg.Storage.SQLitePath, logger)

	case "postgres":
		if cfg.Database.URL == "" {
			return nil, errors.New("database.url is required for the postgres driver")
		}
		db, err := postgres.Open(ctx, cfg.Database.URL, postgres.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}, logger)
		if err != nil {
			return nil, err
		}
		return postgres.NewBackend(db, logger), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// router builds the HTTP handler.
func (app *application) router() http.Handler {
	deps := api.RouterDeps{
		Deck:           app.deck,
		Study:          app.study,
		Sessions:       app.sessions,
		Tokens:         app.tokens,
		AllowedOrigins: app.config.Server.CORSAllowedOrigins,
		Logger:         app.logger,
	}
	if app.syncer != nil {
		deps.Syncer = app.syncer
	}
	return api.NewRouter(deps)
}

// start launches the background workers: the session evictor, the push
// worker pool and the periodic sync sweep. They stop when ctx is cancelled
// or on cleanup.
func (app *application) start(ctx context.Context) {
	if ttl := app.config.Study.SessionTTL; ttl > 0 {
		go app.sessions.RunEvictor(ctx, ttl, app.clock)
	}
	if app.syncer == nil {
		return
	}
	app.pool.Start()
	go app.syncer.RunSweeper(ctx, app.config.Sync.SweepInterval)
}

// cleanup releases resources in reverse order of creation.
func (app *application) cleanup() {
	if app.queue != nil {
		app.queue.Close()
	}
	if app.pool != nil {
		app.pool.Stop()
	}
	if app.syncer != nil {
		// push whatever the stopped workers left behind
		ctx, cancel := context.WithTimeout(context.Background(), app.config.Sync.Timeout)
		app.syncer.Sweep(ctx)
		cancel()
	}
	if err := app.backend.Close(); err != nil {
		app.logger.Error("failed to close store", slog.String("error", err.Error()))
	}
}
