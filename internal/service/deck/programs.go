package deck

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/phrazzld/flashdeck/internal/platform/logger"
	"github.com/phrazzld/flashdeck/internal/service"
	"github.com/phrazzld/flashdeck/internal/store"
)

// ListPrograms returns the user's programs and the generic ones.
func (s *Service) ListPrograms(ctx context.Context, userID uuid.UUID) ([]domain.Program, error) {
	programs, err := s.backend.Stores().Programs.List(ctx, userID)
	if err != nil {
		return nil, service.NewServiceError(serviceName, "list_programs", err)
	}
	return programs, nil
}

// SaveProgram creates or replaces one of the user's programs. Every listed
// card must exist and belong to the user.
func (s *Service) SaveProgram(ctx context.Context, userID uuid.UUID, program *domain.Program) (*domain.Program, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.clock.Now()

	saved := program.Clone()
	saved.UserID = userID
	saved.Generic = false
	saved.UpdatedAt = now

	err := s.backend.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		existing, err := tx.Programs.Get(ctx, saved.ID)
		switch {
		case err == nil:
			if existing.Generic || existing.UserID != userID {
				return ErrProgramNotOwned
			}
			saved.CreatedAt = existing.CreatedAt
		case store.IsNotFoundError(err):
			saved.CreatedAt = now
		default:
			return err
		}

		cards, err := tx.Cards.ListByIDs(ctx, saved.CardIDs)
		if err != nil {
			return err
		}
		for i := range cards {
			if cards[i].UserID != userID {
				return ErrCardNotOwned
			}
		}

		return tx.Programs.Upsert(ctx, &saved)
	})
	if err != nil {
		log.Warn("failed to save program",
			slog.String("error", err.Error()),
			slog.String("program_id", saved.ID.String()))
		return nil, service.NewServiceError(serviceName, "save_program", err)
	}

	return &saved, nil
}

// DeleteProgram removes one of the user's programs. Its cards are kept.
func (s *Service) DeleteProgram(ctx context.Context, userID, programID uuid.UUID) error {
	err := s.backend.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		program, err := tx.Programs.Get(ctx, programID)
		if err != nil {
			return err
		}
		if program.Generic || program.UserID != userID {
			return ErrProgramNotOwned
		}
		return tx.Programs.Remove(ctx, programID)
	})
	if err != nil {
		return service.NewServiceError(serviceName, "delete_program", err)
	}
	return nil
}

// ProgramCards returns the cards of a program visible to the user, in
// program order. References to missing cards are logged and skipped.
func (s *Service) ProgramCards(ctx context.Context, userID, programID uuid.UUID) ([]domain.Flashcard, error) {
	stores := s.backend.Stores()

	program, err := s.visibleProgram(ctx, stores.Programs, userID, programID)
	if err != nil {
		return nil, service.NewServiceError(serviceName, "program_cards", err)
	}

	cards, err := stores.Cards.ListByIDs(ctx, program.CardIDs)
	if err != nil {
		return nil, service.NewServiceError(serviceName, "program_cards", err)
	}
	return s.inProgramOrder(ctx, program, cards), nil
}

// EnrollProgram copies a generic program and its cards into the user's
// deck so the user can study it. The copy is a new program owned by the
// user with fresh review metadata.
func (s *Service) EnrollProgram(ctx context.Context, userID, programID uuid.UUID) (*domain.Program, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.clock.Now()

	var enrolled domain.Program
	var cardIDs []uuid.UUID
	err := s.backend.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		source, err := s.visibleProgram(ctx, tx.Programs, userID, programID)
		if err != nil {
			return err
		}
		if !source.Generic {
			return domain.NewValidationError("program_id", "only generic programs can be enrolled in", nil)
		}

		cards, err := tx.Cards.ListByIDs(ctx, source.CardIDs)
		if err != nil {
			return err
		}

		enrolled = source.Clone()
		enrolled.ID = uuid.New()
		enrolled.UserID = userID
		enrolled.Generic = false
		enrolled.CardIDs = nil
		enrolled.CreatedAt = now
		enrolled.UpdatedAt = now

		for _, card := range s.inProgramOrder(ctx, source, cards) {
			clone := card.CloneForImport(userID, now)
			clone.ProgramID = &enrolled.ID
			if err := tx.Cards.Upsert(ctx, &clone); err != nil {
				return err
			}
			enrolled.CardIDs = append(enrolled.CardIDs, clone.ID)
		}

		return tx.Programs.Upsert(ctx, &enrolled)
	})
	if err != nil {
		log.Warn("failed to enroll in program",
			slog.String("error", err.Error()),
			slog.String("program_id", programID.String()))
		return nil, service.NewServiceError(serviceName, "enroll_program", err)
	}

	cardIDs = enrolled.CardIDs
	log.Info("enrolled in program",
		slog.String("program_id", programID.String()),
		slog.String("enrolled_program_id", enrolled.ID.String()),
		slog.Int("card_count", len(cardIDs)))
	s.cardsChanged(ctx, userID, "enrolled", cardIDs...)
	return &enrolled, nil
}

func (s *Service) visibleProgram(ctx context.Context, programs store.ProgramStore, userID, programID uuid.UUID) (*domain.Program, error) {
	program, err := programs.Get(ctx, programID)
	if err != nil {
		return nil, err
	}
	if !program.VisibleTo(userID) {
		return nil, ErrProgramNotOwned
	}
	return program, nil
}

// inProgramOrder orders cards as the program lists them and logs every
// reference that could not be resolved.
func (s *Service) inProgramOrder(ctx context.Context, program *domain.Program, cards []domain.Flashcard) []domain.Flashcard {
	byID := make(map[uuid.UUID]domain.Flashcard, len(cards))
	for _, c := range cards {
		byID[c.ID] = c
	}

	ordered := make([]domain.Flashcard, 0, len(cards))
	for _, id := range program.CardIDs {
		card, ok := byID[id]
		if !ok {
			integrityErr := &domain.IntegrityError{ProgramID: program.ID, CardID: id}
			logger.FromContextOrDefault(ctx, s.logger).Warn("skipping missing program card",
				slog.String("error", integrityErr.Error()))
			continue
		}
		ordered = append(ordered, card)
	}
	return ordered
}
