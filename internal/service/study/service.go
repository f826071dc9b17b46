// Package study runs study sessions: it records answers in memory and, on
// flush, schedules the reviewed cards and folds the results into the
// user's stats and achievements in one transaction.
package study

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/phrazzld/flashdeck/internal/domain/achievement"
	"github.com/phrazzld/flashdeck/internal/domain/progress"
	"github.com/phrazzld/flashdeck/internal/domain/srs"
	"github.com/phrazzld/flashdeck/internal/events"
	"github.com/phrazzld/flashdeck/internal/platform/keylock"
	"github.com/phrazzld/flashdeck/internal/platform/logger"
	"github.com/phrazzld/flashdeck/internal/store"
)

// FlushResult is what a successful flush produced.
type FlushResult struct {
	Summary         domain.SessionSummary    `json:"summary"`
	Stats           *domain.UserStats        `json:"stats,omitempty"`
	NewAchievements []domain.UserAchievement `json:"new_achievements"`
	Cards           []domain.Flashcard       `json:"cards"`
}

// Service coordinates study sessions. Flushes of one user run strictly one
// after another; different users flush in parallel.
type Service struct {
	backend    store.Backend
	scheduler  srs.Service
	aggregator *progress.Aggregator
	evaluator  *achievement.Evaluator
	emitter    events.EventEmitter
	clock      domain.Clock
	locks      *keylock.Map
	logger     *slog.Logger
}

// Deps are the collaborators of a Service. Emitter, Clock and Logger are
// optional.
type Deps struct {
	Backend    store.Backend
	Scheduler  srs.Service
	Aggregator *progress.Aggregator
	Evaluator  *achievement.Evaluator
	Emitter    events.EventEmitter
	Clock      domain.Clock
	Logger     *slog.Logger
}

// NewService creates a new study Service.
// It returns an error if any of the required dependencies are nil.
func NewService(deps Deps) (*Service, error) {
	if deps.Backend == nil {
		return nil, domain.NewValidationError("backend", "cannot be nil", domain.ErrValidation)
	}
	if deps.Scheduler == nil {
		return nil, domain.NewValidationError("scheduler", "cannot be nil", domain.ErrValidation)
	}
	if deps.Aggregator == nil {
		return nil, domain.NewValidationError("aggregator", "cannot be nil", domain.ErrValidation)
	}
	if deps.Evaluator == nil {
		return nil, domain.NewValidationError("evaluator", "cannot be nil", domain.ErrValidation)
	}
	if deps.Emitter == nil {
		deps.Emitter = events.NopEmitter{}
	}
	if deps.Clock == nil {
		deps.Clock = domain.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Service{
		backend:    deps.Backend,
		scheduler:  deps.Scheduler,
		aggregator: deps.Aggregator,
		evaluator:  deps.Evaluator,
		emitter:    deps.Emitter,
		clock:      deps.Clock,
		locks:      keylock.New(),
		logger:     deps.Logger.With(slog.String("component", "study_service")),
	}, nil
}

// StartSession opens a session for the user. It performs no I/O.
func (s *Service) StartSession(userID uuid.UUID, scope domain.StudyScope) (*Session, error) {
	if userID == uuid.Nil {
		return nil, domain.NewValidationError("user_id", "cannot be empty", domain.ErrInvalidID)
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	return &Session{
		id:        uuid.New(),
		userID:    userID,
		scope:     scope,
		startedAt: s.clock.Now(),
		service:   s,
	}, nil
}

// DueCards returns the user's cards in scope that are due now, in review
// order. A positive limit caps the result. A program scope selects the cards
// the program lists, not the cards whose ProgramID points at it.
func (s *Service) DueCards(ctx context.Context, userID uuid.UUID, scope domain.StudyScope, limit int) ([]domain.Flashcard, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var (
		cards []domain.Flashcard
		err   error
	)
	if scope.ProgramID != nil {
		cards, err = s.programCards(ctx, userID, *scope.ProgramID)
	} else {
		cards, err = s.backend.Stores().Cards.List(ctx, store.CardFilter{
			UserID:      userID,
			CategoryID:  scope.CategoryID,
			Subcategory: scope.Topic,
			Difficulty:  scope.Difficulty,
		})
	}
	if err != nil {
		log.Error("failed to list cards",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, NewDueCardsError("failed to list cards", err)
	}

	inScope := cards[:0]
	for i := range cards {
		if cards[i].UserID == userID && scope.Matches(&cards[i]) {
			inScope = append(inScope, cards[i])
		}
	}

	due := s.scheduler.SelectDue(inScope, s.clock.Now())
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	log.Debug("selected due cards",
		slog.String("user_id", userID.String()),
		slog.String("category_id", scope.CategoryID),
		slog.Int("candidate_count", len(inScope)),
		slog.Int("due_count", len(due)))
	return due, nil
}

func (s *Service) programCards(ctx context.Context, userID, programID uuid.UUID) ([]domain.Flashcard, error) {
	stores := s.backend.Stores()
	program, err := stores.Programs.Get(ctx, programID)
	if err != nil {
		return nil, err
	}
	if !program.VisibleTo(userID) {
		return nil, ErrProgramNotOwned
	}
	if len(program.CardIDs) == 0 {
		return nil, nil
	}
	return stores.Cards.ListByIDs(ctx, program.CardIDs)
}

// Stats returns the user's stats, or fresh stats for a user who never
// studied.
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (domain.UserStats, error) {
	return store.GetOrNewStats(ctx, s.backend.Stores().Stats, userID)
}

// AcknowledgeAchievement marks an earned achievement as displayed.
func (s *Service) AcknowledgeAchievement(ctx context.Context, userID uuid.UUID, id domain.AchievementID) (*domain.UserStats, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	unlock := s.locks.Lock(userID)
	defer unlock()

	var updated domain.UserStats
	err := s.backend.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		current, err := tx.Stats.Get(ctx, userID)
		if err != nil {
			return err
		}

		updated = current.Clone()
		if err := updated.Acknowledge(id); err != nil {
			return err
		}
		updated.UpdatedAt = s.clock.Now()
		return tx.Stats.Save(ctx, &updated)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, NewAcknowledgeError("achievement not earned", err)
		}
		log.Error("failed to acknowledge achievement",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("achievement_id", string(id)))
		return nil, NewAcknowledgeError("failed to save stats", err)
	}

	s.emit(ctx, events.TypeCardsChanged, userID, events.CardsChangedPayload{Reason: "achievement_acknowledged"})
	return &updated, nil
}

// flush runs the review pipeline for one batch of outcomes.
func (s *Service) flush(ctx context.Context, sessionID, userID uuid.UUID, outcomes []domain.CardOutcome) (*FlushResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("user_id", userID.String()),
		slog.String("session_id", sessionID.String()),
	)

	unlock := s.locks.Lock(userID)
	defer unlock()

	now := s.clock.Now()
	summary := domain.Summarize(outcomes)

	var result *FlushResult
	err := s.backend.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		cards, err := s.scheduleCards(ctx, tx.Cards, userID, outcomes, now)
		if err != nil {
			return err
		}

		learned, err := tx.Cards.CountLearned(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to count learned cards: %w", err)
		}

		prev, err := store.GetOrNewStats(ctx, tx.Stats, userID)
		if err != nil {
			return fmt.Errorf("failed to load stats: %w", err)
		}

		completed, err := s.completedPrograms(ctx, tx, userID, prev, cards)
		if err != nil {
			return err
		}

		updated := s.aggregator.Apply(prev, progress.Input{
			Summary:           summary,
			LearnedCount:      learned,
			CompletedPrograms: completed,
			Now:               now,
		})
		earned := s.evaluator.Evaluate(prev, updated, now)
		updated = progress.AppendAchievements(updated, earned)

		if err := tx.Stats.Save(ctx, &updated); err != nil {
			return fmt.Errorf("failed to save stats: %w", err)
		}

		result = &FlushResult{
			Summary:         summary,
			Stats:           &updated,
			NewAchievements: earned,
			Cards:           cards,
		}
		return nil
	})
	if err != nil {
		log.Error("flush failed, nothing was written",
			slog.String("error", err.Error()),
			slog.Int("outcome_count", len(outcomes)))
		return nil, NewFlushError("failed to apply session", err)
	}
	if result.NewAchievements == nil {
		result.NewAchievements = []domain.UserAchievement{}
	}

	log.Info("session flushed",
		slog.Int("outcome_count", len(outcomes)),
		slog.Int("card_count", len(result.Cards)),
		slog.Int("new_achievement_count", len(result.NewAchievements)))

	s.emitFlushed(ctx, sessionID, userID, result)
	return result, nil
}

// scheduleCards applies the scheduler to every outcome in order and writes
// each touched card once. Later outcomes for a card see the earlier ones.
func (s *Service) scheduleCards(
	ctx context.Context,
	cards store.CardStore,
	userID uuid.UUID,
	outcomes []domain.CardOutcome,
	now time.Time,
) ([]domain.Flashcard, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	current := make(map[uuid.UUID]*domain.Flashcard, len(outcomes))
	var order []uuid.UUID

	for _, o := range outcomes {
		card, seen := current[o.CardID]
		if !seen {
			loaded, err := cards.Get(ctx, o.CardID)
			if err != nil {
				return nil, fmt.Errorf("failed to load card %s: %w", o.CardID, err)
			}
			if loaded.UserID != userID {
				log.Warn("user does not own card",
					slog.String("card_id", o.CardID.String()),
					slog.String("owner_id", loaded.UserID.String()))
				return nil, ErrCardNotOwned
			}
			card = loaded
			order = append(order, o.CardID)
		}

		next, err := s.scheduler.ApplyReview(card, o.Correct, o.ReviewedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to schedule card %s: %w", o.CardID, err)
		}
		current[o.CardID] = next
	}

	updated := make([]domain.Flashcard, 0, len(order))
	for _, id := range order {
		card := current[id]
		// the flush is the write; its time orders it against remote copies
		card.UpdatedAt = now
		if err := cards.Upsert(ctx, card); err != nil {
			return nil, fmt.Errorf("failed to save card %s: %w", id, err)
		}
		updated = append(updated, *card)
	}
	return updated, nil
}

// completedPrograms returns the programs containing a reviewed card that
// are now fully learned and not yet recorded as completed. A program with
// a dangling card reference is logged and treated as incomplete.
func (s *Service) completedPrograms(
	ctx context.Context,
	tx store.Stores,
	userID uuid.UUID,
	prev domain.UserStats,
	reviewed []domain.Flashcard,
) ([]uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	programs, err := tx.Programs.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}

	var completed []uuid.UUID
	for i := range programs {
		program := &programs[i]
		if prev.HasCompletedProgram(program.ID) || len(program.CardIDs) == 0 {
			continue
		}
		if !touchesProgram(program, reviewed) {
			continue
		}

		cards, err := tx.Cards.ListByIDs(ctx, program.CardIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load program cards: %w", err)
		}
		if missing := missingCard(program, cards); missing != uuid.Nil {
			integrityErr := &domain.IntegrityError{ProgramID: program.ID, CardID: missing}
			log.Warn("program is incomplete", slog.String("error", integrityErr.Error()))
			continue
		}

		if allLearned(cards) {
			completed = append(completed, program.ID)
		}
	}
	return completed, nil
}

func touchesProgram(program *domain.Program, reviewed []domain.Flashcard) bool {
	for i := range reviewed {
		if program.Contains(reviewed[i].ID) {
			return true
		}
	}
	return false
}

func missingCard(program *domain.Program, cards []domain.Flashcard) uuid.UUID {
	present := make(map[uuid.UUID]struct{}, len(cards))
	for i := range cards {
		present[cards[i].ID] = struct{}{}
	}
	for _, id := range program.CardIDs {
		if _, ok := present[id]; !ok {
			return id
		}
	}
	return uuid.Nil
}

func allLearned(cards []domain.Flashcard) bool {
	for i := range cards {
		if !cards[i].Learned {
			return false
		}
	}
	return len(cards) > 0
}

func (s *Service) emitFlushed(ctx context.Context, sessionID, userID uuid.UUID, result *FlushResult) {
	payload := events.SessionFlushedPayload{
		SessionID:      sessionID,
		CorrectCount:   result.Summary.CorrectCount,
		IncorrectCount: result.Summary.IncorrectCount,
	}
	for _, c := range result.Cards {
		payload.CardIDs = append(payload.CardIDs, c.ID)
	}
	for _, a := range result.NewAchievements {
		payload.NewAchievements = append(payload.NewAchievements, string(a.ID))
	}
	s.emit(ctx, events.TypeSessionFlushed, userID, payload)
}

// emit publishes an event after a commit. Failures are logged only: the
// write already happened and the sweep catches up on missed pushes.
func (s *Service) emit(ctx context.Context, eventType string, userID uuid.UUID, payload any) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	event, err := events.NewEvent(eventType, userID, payload, s.clock.Now())
	if err != nil {
		log.Error("failed to build event", slog.String("error", err.Error()))
		return
	}
	if err := s.emitter.EmitEvent(context.WithoutCancel(ctx), event); err != nil {
		log.Warn("failed to emit event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()))
	}
}
