// Package deck manages a user's cards and programs and the share codes
// that let other users import copies of them.
package deck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/phrazzld/flashdeck/internal/domain/srs"
	"github.com/phrazzld/flashdeck/internal/events"
	"github.com/phrazzld/flashdeck/internal/platform/logger"
	"github.com/phrazzld/flashdeck/internal/service"
	"github.com/phrazzld/flashdeck/internal/store"
)

const serviceName = "deck"

var (
	// ErrCardNotOwned indicates that the user does not own the card.
	ErrCardNotOwned = fmt.Errorf("card: %w", service.ErrNotOwned)

	// ErrProgramNotOwned indicates the program belongs to another user or
	// is generic and therefore read-only.
	ErrProgramNotOwned = fmt.Errorf("program: %w", service.ErrNotOwned)
)

// CardInput is the editable content of a card.
type CardInput struct {
	CategoryID  string
	Subcategory string
	Question    string
	Answer      string
	Difficulty  domain.Difficulty
	ProgramID   *uuid.UUID
}

func (in CardInput) validate() error {
	if strings.TrimSpace(in.Question) == "" {
		return domain.NewValidationError("question", "cannot be empty", nil)
	}
	if strings.TrimSpace(in.Answer) == "" {
		return domain.NewValidationError("answer", "cannot be empty", nil)
	}
	return nil
}

// Service manages cards, programs and shares.
type Service struct {
	backend   store.Backend
	scheduler srs.Service
	emitter   events.EventEmitter
	clock     domain.Clock
	logger    *slog.Logger
}

// NewService creates a deck Service.
// It returns an error if the backend or scheduler is nil.
func NewService(
	backend store.Backend,
	scheduler srs.Service,
	emitter events.EventEmitter,
	clock domain.Clock,
	logger *slog.Logger,
) (*Service, error) {
	if backend == nil {
		return nil, domain.NewValidationError("backend", "cannot be nil", domain.ErrValidation)
	}
	if scheduler == nil {
		return nil, domain.NewValidationError("scheduler", "cannot be nil", domain.ErrValidation)
	}
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		backend:   backend,
		scheduler: scheduler,
		emitter:   emitter,
		clock:     clock,
		logger:    logger.With(slog.String("component", "deck_service")),
	}, nil
}

// CreateCard adds a new card for the user.
func (s *Service) CreateCard(ctx context.Context, userID uuid.UUID, in CardInput) (*domain.Flashcard, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := in.validate(); err != nil {
		return nil, service.NewServiceError(serviceName, "create_card", err)
	}

	card, err := domain.NewFlashcard(
		userID,
		strings.TrimSpace(in.CategoryID),
		strings.TrimSpace(in.Subcategory),
		in.Question,
		in.Answer,
		in.Difficulty,
		s.clock.Now(),
	)
	if err != nil {
		return nil, service.NewServiceError(serviceName, "create_card", err)
	}
	card.ProgramID = in.ProgramID

	if err := s.backend.Stores().Cards.Upsert(ctx, card); err != nil {
		log.Error("failed to save card",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, service.NewServiceError(serviceName, "create_card", err)
	}

	log.Info("card created",
		slog.String("card_id", card.ID.String()),
		slog.String("user_id", userID.String()))
	s.cardsChanged(ctx, userID, "created", card.ID)
	return card, nil
}

// GetCard returns one of the user's cards.
func (s *Service) GetCard(ctx context.Context, userID, cardID uuid.UUID) (*domain.Flashcard, error) {
	card, err := s.ownedCard(ctx, s.backend.Stores().Cards, userID, cardID)
	if err != nil {
		return nil, service.NewServiceError(serviceName, "get_card", err)
	}
	return card, nil
}

// SaveCard writes the content of the card with the given ID, creating it
// when it does not exist. Review metadata of an existing card is kept.
func (s *Service) SaveCard(ctx context.Context, userID, cardID uuid.UUID, in CardInput) (*domain.Flashcard, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.clock.Now()

	if err := in.validate(); err != nil {
		return nil, service.NewServiceError(serviceName, "save_card", err)
	}

	var saved *domain.Flashcard
	err := s.backend.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		card, err := s.ownedCard(ctx, tx.Cards, userID, cardID)
		switch {
		case err == nil:
		case store.IsNotFoundError(err):
			card = &domain.Flashcard{ID: cardID, UserID: userID, CreatedAt: now}
		default:
			return err
		}

		card.CategoryID = strings.TrimSpace(in.CategoryID)
		card.Subcategory = strings.TrimSpace(in.Subcategory)
		card.Question = in.Question
		card.Answer = in.Answer
		card.Difficulty = in.Difficulty
		card.ProgramID = in.ProgramID
		card.UpdatedAt = now

		if err := tx.Cards.Upsert(ctx, card); err != nil {
			return err
		}
		saved = card
		return nil
	})
	if err != nil {
		log.Warn("failed to save card",
			slog.String("error", err.Error()),
			slog.String("card_id", cardID.String()))
		return nil, service.NewServiceError(serviceName, "save_card", err)
	}

	s.cardsChanged(ctx, userID, "saved", cardID)
	return saved, nil
}

// DeleteCard removes one of the user's cards.
func (s *Service) DeleteCard(ctx context.Context, userID, cardID uuid.UUID) error {
	err := s.backend.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		if _, err := s.ownedCard(ctx, tx.Cards, userID, cardID); err != nil {
			return err
		}
		return tx.Cards.Remove(ctx, cardID, s.clock.Now())
	})
	if err != nil {
		return service.NewServiceError(serviceName, "delete_card", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("card deleted",
		slog.String("card_id", cardID.String()),
		slog.String("user_id", userID.String()))
	s.cardsChanged(ctx, userID, "deleted", cardID)
	return nil
}

// ListCards returns the user's cards matching the filter. The filter's
// UserID is always replaced with userID.
func (s *Service) ListCards(ctx context.Context, userID uuid.UUID, filter store.CardFilter) ([]domain.Flashcard, error) {
	filter.UserID = userID
	cards, err := s.backend.Stores().Cards.List(ctx, filter)
	if err != nil {
		return nil, service.NewServiceError(serviceName, "list_cards", err)
	}
	return cards, nil
}

// Topics returns the distinct subcategories of the user's cards in a category.
func (s *Service) Topics(ctx context.Context, userID uuid.UUID, categoryID string) ([]string, error) {
	if strings.TrimSpace(categoryID) == "" {
		return nil, domain.NewValidationError("category_id", "cannot be empty", nil)
	}
	topics, err := s.backend.Stores().Cards.ListTopics(ctx, userID, categoryID)
	if err != nil {
		return nil, service.NewServiceError(serviceName, "topics", err)
	}
	return topics, nil
}

// SetReviewLater sets or clears a card's review-later flag.
func (s *Service) SetReviewLater(ctx context.Context, userID, cardID uuid.UUID, flagged bool) (*domain.Flashcard, error) {
	card, err := s.updateCard(ctx, userID, cardID, func(card *domain.Flashcard) (*domain.Flashcard, error) {
		card.ReviewLater = flagged
		card.UpdatedAt = s.clock.Now()
		return card, nil
	})
	if err != nil {
		return nil, service.NewServiceError(serviceName, "review_later", err)
	}
	s.cardsChanged(ctx, userID, "review_later", cardID)
	return card, nil
}

// Postpone moves a card's next review the given number of days later.
func (s *Service) Postpone(ctx context.Context, userID, cardID uuid.UUID, days int) (*domain.Flashcard, error) {
	card, err := s.updateCard(ctx, userID, cardID, func(card *domain.Flashcard) (*domain.Flashcard, error) {
		next, err := s.scheduler.PostponeReview(card, days, s.clock.Now())
		if errors.Is(err, srs.ErrInvalidDays) {
			return nil, domain.NewValidationError("days", "must be at least 1", err)
		}
		return next, err
	})
	if err != nil {
		return nil, service.NewServiceError(serviceName, "postpone", err)
	}
	s.cardsChanged(ctx, userID, "postponed", cardID)
	return card, nil
}

func (s *Service) updateCard(
	ctx context.Context,
	userID, cardID uuid.UUID,
	change func(*domain.Flashcard) (*domain.Flashcard, error),
) (*domain.Flashcard, error) {
	var updated *domain.Flashcard
	err := s.backend.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		card, err := s.ownedCard(ctx, tx.Cards, userID, cardID)
		if err != nil {
			return err
		}
		next, err := change(card)
		if err != nil {
			return err
		}
		if err := tx.Cards.Upsert(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	return updated, err
}

func (s *Service) ownedCard(ctx context.Context, cards store.CardStore, userID, cardID uuid.UUID) (*domain.Flashcard, error) {
	card, err := cards.Get(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card.UserID != userID {
		logger.FromContextOrDefault(ctx, s.logger).Warn("user does not own card",
			slog.String("user_id", userID.String()),
			slog.String("card_id", cardID.String()))
		return nil, ErrCardNotOwned
	}
	return card, nil
}

// cardsChanged notifies subscribers after a commit. Delivery failures are
// logged; the dirty markers keep the change for the next sync sweep.
func (s *Service) cardsChanged(ctx context.Context, userID uuid.UUID, reason string, cardIDs ...uuid.UUID) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	event, err := events.NewEvent(events.TypeCardsChanged, userID, events.CardsChangedPayload{
		CardIDs: cardIDs,
		Reason:  reason,
	}, s.clock.Now())
	if err != nil {
		log.Error("failed to build event", slog.String("error", err.Error()))
		return
	}
	if err := s.emitter.EmitEvent(context.WithoutCancel(ctx), event); err != nil {
		log.Warn("failed to emit event",
			slog.String("event_type", event.Type),
			slog.String("error", err.Error()))
	}
}
