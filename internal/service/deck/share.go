package deck

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/phrazzld/flashdeck/internal/platform/logger"
	"github.com/phrazzld/flashdeck/internal/service"
	"github.com/phrazzld/flashdeck/internal/store"
)

const (
	// shareAlphabet leaves out characters that are easy to misread.
	shareAlphabet   = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz"
	shareCodeLength = 10

	// MaxShareCards bounds the size of one share.
	MaxShareCards = 500

	codeAttempts = 3
)

// CreateShare publishes the given cards under a new code. Every card must
// exist and belong to the owner. Duplicate IDs are shared once.
func (s *Service) CreateShare(ctx context.Context, ownerID uuid.UUID, cardIDs []uuid.UUID) (*domain.Share, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	ids := dedupe(cardIDs)
	if len(ids) == 0 {
		return nil, service.NewServiceError(serviceName, "create_share",
			domain.NewValidationError("card_ids", "cannot be empty", nil))
	}
	if len(ids) > MaxShareCards {
		return nil, service.NewServiceError(serviceName, "create_share",
			domain.NewValidationError("card_ids", "too many cards", nil))
	}

	stores := s.backend.Stores()
	cards, err := stores.Cards.ListByIDs(ctx, ids)
	if err != nil {
		return nil, service.NewServiceError(serviceName, "create_share", err)
	}
	found := make(map[uuid.UUID]bool, len(cards))
	for i := range cards {
		if cards[i].UserID != ownerID {
			return nil, service.NewServiceError(serviceName, "create_share", ErrCardNotOwned)
		}
		found[cards[i].ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, service.NewServiceError(serviceName, "create_share", domain.NewNotFoundError("card", id))
		}
	}

	share := &domain.Share{
		OwnerID:   ownerID,
		CardIDs:   ids,
		CreatedAt: s.clock.Now(),
	}
	for attempt := 1; ; attempt++ {
		share.Code, err = gonanoid.Generate(shareAlphabet, shareCodeLength)
		if err != nil {
			return nil, service.NewServiceError(serviceName, "create_share", err)
		}

		err = stores.Shares.Save(ctx, share)
		if err == nil {
			break
		}
		if !store.IsDuplicateError(err) || attempt == codeAttempts {
			log.Error("failed to save share",
				slog.String("error", err.Error()),
				slog.Int("attempt", attempt))
			return nil, service.NewServiceError(serviceName, "create_share", err)
		}
		log.Debug("share code collision, generating another", slog.Int("attempt", attempt))
	}

	log.Info("share created",
		slog.String("owner_id", ownerID.String()),
		slog.Int("card_count", len(ids)))
	return share, nil
}

// ImportShare copies the shared cards into the importer's deck with fresh
// IDs and reset review metadata. Every import creates new copies, even of
// cards imported before. Cards deleted since the share was created are
// skipped.
func (s *Service) ImportShare(ctx context.Context, importerID uuid.UUID, code string) ([]domain.Flashcard, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.clock.Now()

	var imported []domain.Flashcard
	err := s.backend.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		share, err := tx.Shares.Resolve(ctx, code)
		if err != nil {
			return err
		}

		sources, err := tx.Cards.ListByIDs(ctx, share.CardIDs)
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			return fmt.Errorf("%w: no shared card still exists", store.ErrCardNotFound)
		}
		if len(sources) < len(share.CardIDs) {
			log.Warn("share references deleted cards",
				slog.Int("shared", len(share.CardIDs)),
				slog.Int("available", len(sources)))
		}

		imported = make([]domain.Flashcard, 0, len(sources))
		for _, source := range orderLike(share.CardIDs, sources) {
			clone := source.CloneForImport(importerID, now)
			if err := tx.Cards.Upsert(ctx, &clone); err != nil {
				return err
			}
			imported = append(imported, clone)
		}
		return nil
	})
	if err != nil {
		return nil, service.NewServiceError(serviceName, "import_share", err)
	}

	ids := make([]uuid.UUID, 0, len(imported))
	for _, c := range imported {
		ids = append(ids, c.ID)
	}
	log.Info("share imported",
		slog.String("importer_id", importerID.String()),
		slog.Int("card_count", len(imported)))
	s.cardsChanged(ctx, importerID, "imported", ids...)
	return imported, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func orderLike(ids []uuid.UUID, cards []domain.Flashcard) []domain.Flashcard {
	byID := make(map[uuid.UUID]domain.Flashcard, len(cards))
	for _, c := range cards {
		byID[c.ID] = c
	}
	out := make([]domain.Flashcard, 0, len(cards))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out
}
