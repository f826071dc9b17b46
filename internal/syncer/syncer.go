package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/phrazzld/flashdeck/internal/domain/progress"
	"github.com/phrazzld/flashdeck/internal/platform/keylock"
	"github.com/phrazzld/flashdeck/internal/platform/logger"
	"github.com/phrazzld/flashdeck/internal/store"
	"golang.org/x/sync/errgroup"
)

// Remote is the remote store as seen by the syncer.
type Remote interface {
	FetchFlashcards(ctx context.Context, filter domain.RemoteFilter) ([]domain.Flashcard, error)
	SaveFlashcards(ctx context.Context, userID uuid.UUID, cards []domain.Flashcard) error

	// FetchUserStats returns nil stats when the remote store has none.
	FetchUserStats(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error)
	SaveUserStats(ctx context.Context, userID uuid.UUID, stats domain.UserStats) error
}

// Config controls retries of remote calls.
type Config struct {
	// MaxAttempts is the total number of tries per remote call.
	MaxAttempts uint

	// InitialBackoff is the delay before the first retry; it doubles on
	// every further retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay. Zero means no cap.
	MaxBackoff time.Duration
}

// DefaultConfig returns the retry settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// PushResult reports what a push sent.
type PushResult struct {
	Cards int `json:"cards"`
	// Deleted counts the tombstones among Cards.
	Deleted int  `json:"deleted"`
	Stats   bool `json:"stats"`
}

// PullResult reports what a pull changed locally.
type PullResult struct {
	CardsUpdated int  `json:"cards_updated"`
	CardsSkipped int  `json:"cards_skipped"`
	StatsUpdated bool `json:"stats_updated"`
}

// Syncer moves data between a local store.Backend and a Remote.
type Syncer struct {
	backend store.Backend
	remote  Remote
	clock   domain.Clock
	config  Config
	locks   *keylock.Map
	logger  *slog.Logger

	pendingMu sync.Mutex
	pending   map[uuid.UUID]struct{}
}

// New creates a Syncer. It panics on nil dependencies.
func New(backend store.Backend, remote Remote, clock domain.Clock, config Config, logger *slog.Logger) *Syncer {
	if backend == nil {
		panic("backend cannot be nil")
	}
	if remote == nil {
		panic("remote cannot be nil")
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = DefaultConfig().InitialBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Syncer{
		backend: backend,
		remote:  remote,
		clock:   clock,
		config:  config,
		locks:   keylock.New(),
		logger:  logger.With(slog.String("component", "syncer")),
		pending: make(map[uuid.UUID]struct{}),
	}
}

// withRetry runs fn with exponential backoff while it fails with a
// retryable SyncError.
func (s *Syncer) withRetry(ctx context.Context, op string, fn func() error) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(s.config.MaxAttempts),
		retry.Delay(s.config.InitialBackoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(domain.IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("retrying remote call",
				slog.String("operation", op),
				slog.Uint64("attempt", uint64(n+1)),
				slog.String("error", err.Error()))
		}),
	}
	if s.config.MaxBackoff > 0 {
		opts = append(opts, retry.MaxDelay(s.config.MaxBackoff))
	}

	return retry.Do(fn, opts...)
}

// Push sends the user's dirty cards and stats to the remote store. Dirty
// markers are cleared only for the versions the remote store accepted, so
// a write that lands during the push stays dirty. Local data is never
// removed on failure.
func (s *Syncer) Push(ctx context.Context, userID uuid.UUID) (PushResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("user_id", userID.String()))

	unlock := s.locks.Lock(userID)
	defer unlock()

	var result PushResult
	stores := s.backend.Stores()

	cards, err := stores.Cards.Dirty(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("failed to list dirty cards: %w", err)
	}
	if len(cards) > 0 {
		err := s.withRetry(ctx, "save_flashcards", func() error {
			return s.remote.SaveFlashcards(ctx, userID, cards)
		})
		if err != nil {
			log.Error("failed to push cards",
				slog.Int("card_count", len(cards)),
				slog.String("error", err.Error()))
			return result, err
		}
		if err := stores.Cards.MarkClean(ctx, store.VersionsOf(cards)); err != nil {
			return result, fmt.Errorf("failed to mark cards clean: %w", err)
		}
		result.Cards = len(cards)
		for i := range cards {
			if cards[i].Deleted() {
				result.Deleted++
			}
		}
	}

	stats, err := stores.Stats.Dirty(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("failed to load dirty stats: %w", err)
	}
	if stats != nil {
		err := s.withRetry(ctx, "save_user_stats", func() error {
			return s.remote.SaveUserStats(ctx, userID, *stats)
		})
		if err != nil {
			log.Error("failed to push stats", slog.String("error", err.Error()))
			return result, err
		}
		if err := stores.Stats.MarkClean(ctx, userID, stats.UpdatedAt); err != nil {
			return result, fmt.Errorf("failed to mark stats clean: %w", err)
		}
		result.Stats = true
	}

	log.Info("push completed",
		slog.Int("card_count", result.Cards),
		slog.Int("deleted_count", result.Deleted),
		slog.Bool("stats", result.Stats))
	return result, nil
}

// Pull fetches the user's remote cards and stats and merges them into the
// local store. Cards merge last-write-wins by UpdatedAt, with local and
// remote tombstones taking part like any other version; stats merge with
// progress.MergeStats so counters never decrease.
func (s *Syncer) Pull(ctx context.Context, userID uuid.UUID) (PullResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("user_id", userID.String()))

	unlock := s.locks.Lock(userID)
	defer unlock()

	var (
		remoteCards []domain.Flashcard
		remoteStats *domain.UserStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.withRetry(gctx, "fetch_flashcards", func() error {
			cards, err := s.remote.FetchFlashcards(gctx, domain.RemoteFilter{UserID: userID})
			if err != nil {
				return err
			}
			remoteCards = cards
			return nil
		})
	})
	g.Go(func() error {
		return s.withRetry(gctx, "fetch_user_stats", func() error {
			stats, err := s.remote.FetchUserStats(gctx, userID)
			if err != nil {
				return err
			}
			remoteStats = stats
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		log.Error("failed to fetch remote data", slog.String("error", err.Error()))
		return PullResult{}, err
	}

	var result PullResult
	err := s.backend.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		result = PullResult{}

		for i := range remoteCards {
			updated, err := s.mergeCard(ctx, tx.Cards, userID, &remoteCards[i])
			if err != nil {
				return err
			}
			if updated {
				result.CardsUpdated++
			} else {
				result.CardsSkipped++
			}
		}

		if remoteStats != nil {
			updated, err := s.mergeStats(ctx, tx.Stats, userID, remoteStats)
			if err != nil {
				return err
			}
			result.StatsUpdated = updated
		}
		return nil
	})
	if err != nil {
		return PullResult{}, fmt.Errorf("failed to merge remote data: %w", err)
	}

	log.Info("pull completed",
		slog.Int("cards_updated", result.CardsUpdated),
		slog.Int("cards_skipped", result.CardsSkipped),
		slog.Bool("stats_updated", result.StatsUpdated))
	return result, nil
}

func (s *Syncer) mergeCard(ctx context.Context, cards store.CardStore, userID uuid.UUID, remote *domain.Flashcard) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if remote.UserID != userID {
		log.Warn("skipping remote card owned by another user",
			slog.String("card_id", remote.ID.String()))
		return false, nil
	}

	local, err := cards.GetIncludingDeleted(ctx, remote.ID)
	switch {
	case err == nil:
		if !remote.UpdatedAt.After(local.UpdatedAt) {
			return false, nil
		}
	case !store.IsNotFoundError(err):
		return false, err
	}

	if err := cards.PutSynced(ctx, remote); err != nil {
		if errors.Is(err, store.ErrInvalidEntity) {
			log.Warn("skipping invalid remote card",
				slog.String("card_id", remote.ID.String()),
				slog.String("error", err.Error()))
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Syncer) mergeStats(ctx context.Context, stats store.UserStatsStore, userID uuid.UUID, remote *domain.UserStats) (bool, error) {
	remoteCopy := remote.Clone()
	remoteCopy.UserID = userID

	local, err := stats.Get(ctx, userID)
	if err != nil {
		if !store.IsNotFoundError(err) {
			return false, err
		}
		return true, stats.PutSynced(ctx, &remoteCopy)
	}

	merged := progress.MergeStats(*local, remoteCopy)
	remoteNewer := remoteCopy.UpdatedAt.After(local.UpdatedAt)

	switch {
	case remoteNewer && progress.Covers(remoteCopy, merged):
		// the remote copy already holds everything
		return true, stats.PutSynced(ctx, &merged)
	case !remoteNewer && progress.Covers(*local, merged):
		return false, nil
	default:
		// both sides contributed; store the union and push it back
		merged.UpdatedAt = s.clock.Now()
		return true, stats.Save(ctx, &merged)
	}
}

// MarkPending queues a user for the next sweep.
func (s *Syncer) MarkPending(userID uuid.UUID) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.pending[userID] = struct{}{}
}

// Pending returns the number of users waiting for the sweep.
func (s *Syncer) Pending() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return len(s.pending)
}

func (s *Syncer) takePending() []uuid.UUID {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	users := make([]uuid.UUID, 0, len(s.pending))
	for id := range s.pending {
		users = append(users, id)
	}
	clear(s.pending)
	return users
}

// Sweep pushes every pending user once. Users whose push fails stay
// pending. It returns the number of successful pushes.
func (s *Syncer) Sweep(ctx context.Context) int {
	users := s.takePending()
	pushed := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			s.MarkPending(userID)
			continue
		}
		if _, err := s.Push(ctx, userID); err != nil {
			s.MarkPending(userID)
			continue
		}
		pushed++
	}
	if len(users) > 0 {
		s.logger.Info("sync sweep finished",
			slog.Int("user_count", len(users)),
			slog.Int("pushed", pushed))
	}
	return pushed
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (s *Syncer) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}
