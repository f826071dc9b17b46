package sqlite

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/phrazzld/flashdeck/internal/platform/logger"
	"github.com/phrazzld/flashdeck/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type cardStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ store.CardStore = (*cardStore)(nil)

func (s *cardStore) Get(ctx context.Context, id uuid.UUID) (*domain.Flashcard, error) {
	return s.get(s.db.WithContext(ctx), id)
}

func (s *cardStore) GetIncludingDeleted(ctx context.Context, id uuid.UUID) (*domain.Flashcard, error) {
	return s.get(s.db.WithContext(ctx).Unscoped(), id)
}

func (s *cardStore) get(q *gorm.DB, id uuid.UUID) (*domain.Flashcard, error) {
	var m cardModel
	if err := q.First(&m, "id = ?", id).Error; err != nil {
		return nil, mapError(err, store.ErrCardNotFound)
	}
	card := m.toDomain()
	return &card, nil
}

func (s *cardStore) List(ctx context.Context, filter store.CardFilter) ([]domain.Flashcard, error) {
	q := s.db.WithContext(ctx).Model(&cardModel{})
	if filter.UserID != uuid.Nil {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.CategoryID != "" {
		q = q.Where("category_id = ?", filter.CategoryID)
	}
	if filter.Subcategory != "" {
		q = q.Where("subcategory = ?", filter.Subcategory)
	}
	if filter.Difficulty != nil {
		q = q.Where("difficulty = ?", string(*filter.Difficulty))
	}
	if filter.ProgramID != nil {
		q = q.Where("program_id = ?", *filter.ProgramID)
	}

	var models []cardModel
	if err := q.Order("created_at").Order("id").Find(&models).Error; err != nil {
		return nil, mapError(err, nil)
	}
	return toCards(models), nil
}

func toCards(models []cardModel) []domain.Flashcard {
	cards := make([]domain.Flashcard, 0, len(models))
	for _, m := range models {
		cards = append(cards, m.toDomain())
	}
	return cards
}

func (s *cardStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Flashcard, error) {
	if len(ids) == 0 {
		return []domain.Flashcard{}, nil
	}
	var models []cardModel
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, mapError(err, nil)
	}
	return toCards(models), nil
}

func (s *cardStore) ListTopics(ctx context.Context, userID uuid.UUID, categoryID string) ([]string, error) {
	topics := []string{}
	err := s.db.WithContext(ctx).
		Model(&cardModel{}).
		Distinct("subcategory").
		Where("user_id = ? AND category_id = ? AND subcategory <> ''", userID, categoryID).
		Order("subcategory").
		Pluck("subcategory", &topics).Error
	if err != nil {
		return nil, mapError(err, nil)
	}
	return topics, nil
}

func (s *cardStore) CountLearned(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&cardModel{}).
		Where("user_id = ? AND learned = ?", userID, true).
		Count(&n).Error
	if err != nil {
		return 0, mapError(err, nil)
	}
	return int(n), nil
}

func (s *cardStore) Upsert(ctx context.Context, card *domain.Flashcard) error {
	return s.write(ctx, card, true)
}

func (s *cardStore) PutSynced(ctx context.Context, card *domain.Flashcard) error {
	return s.write(ctx, card, false)
}

func (s *cardStore) write(ctx context.Context, card *domain.Flashcard, dirty bool) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := card.Validate(); err != nil {
		return store.InvalidEntity(err)
	}

	m := newCardModel(card, dirty)
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error; err != nil {
		log.Error("failed to write card",
			slog.String("error", err.Error()),
			slog.String("card_id", card.ID.String()))
		return mapError(err, nil)
	}
	return nil
}

func (s *cardStore) Remove(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&cardModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"deleted_at": at.UTC(),
			"updated_at": at.UTC(),
			"dirty":      true,
		})
	if res.Error != nil {
		return mapError(res.Error, store.ErrCardNotFound)
	}
	if res.RowsAffected == 0 {
		return store.ErrCardNotFound
	}
	return nil
}

func (s *cardStore) Dirty(ctx context.Context, userID uuid.UUID) ([]domain.Flashcard, error) {
	var models []cardModel
	err := s.db.WithContext(ctx).
		Unscoped().
		Where("user_id = ? AND dirty = ?", userID, true).
		Order("created_at").Order("id").
		Find(&models).Error
	if err != nil {
		return nil, mapError(err, nil)
	}
	return toCards(models), nil
}

func (s *cardStore) MarkClean(ctx context.Context, versions []store.CardVersion) error {
	for _, v := range versions {
		err := s.db.WithContext(ctx).
			Unscoped().
			Model(&cardModel{}).
			Where("id = ? AND updated_at = ?", v.ID, v.UpdatedAt.UTC()).
			Update("dirty", false).Error
		if err != nil {
			return mapError(err, nil)
		}
	}
	return nil
}

type programStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ store.ProgramStore = (*programStore)(nil)

func (s *programStore) Get(ctx context.Context, id uuid.UUID) (*domain.Program, error) {
	var m programModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, mapError(err, store.ErrProgramNotFound)
	}
	p := m.toDomain()
	return &p, nil
}

func (s *programStore) List(ctx context.Context, userID uuid.UUID) ([]domain.Program, error) {
	var models []programModel
	err := s.db.WithContext(ctx).
		Where("user_id = ? OR generic = ?", userID, true).
		Order("name").Order("id").
		Find(&models).Error
	if err != nil {
		return nil, mapError(err, nil)
	}

	programs := make([]domain.Program, 0, len(models))
	for _, m := range models {
		programs = append(programs, m.toDomain())
	}
	return programs, nil
}

func (s *programStore) Upsert(ctx context.Context, program *domain.Program) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := program.Validate(); err != nil {
		return store.InvalidEntity(err)
	}

	if len(program.CardIDs) > 0 {
		var found []uuid.UUID
		err := s.db.WithContext(ctx).
			Model(&cardModel{}).
			Where("id IN ?", program.CardIDs).
			Pluck("id", &found).Error
		if err != nil {
			return mapError(err, nil)
		}
		present := make(map[uuid.UUID]struct{}, len(found))
		for _, id := range found {
			present[id] = struct{}{}
		}
		for _, id := range program.CardIDs {
			if _, ok := present[id]; !ok {
				log.Warn("program references missing card",
					slog.String("program_id", program.ID.String()),
					slog.String("card_id", id.String()))
				return &domain.IntegrityError{ProgramID: program.ID, CardID: id}
			}
		}
	}

	m := newProgramModel(program)
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error; err != nil {
		return mapError(err, nil)
	}
	return nil
}

func (s *programStore) Remove(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&programModel{}, "id = ?", id)
	if res.Error != nil {
		return mapError(res.Error, store.ErrProgramNotFound)
	}
	if res.RowsAffected == 0 {
		return store.ErrProgramNotFound
	}
	return nil
}

type statsStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ store.UserStatsStore = (*statsStore)(nil)

func (s *statsStore) Get(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error) {
	var m statsModel
	if err := s.db.WithContext(ctx).First(&m, "user_id = ?", userID).Error; err != nil {
		return nil, mapError(err, store.ErrStatsNotFound)
	}
	stats := m.toDomain()
	return &stats, nil
}

func (s *statsStore) Save(ctx context.Context, stats *domain.UserStats) error {
	return s.write(ctx, stats, true)
}

func (s *statsStore) PutSynced(ctx context.Context, stats *domain.UserStats) error {
	return s.write(ctx, stats, false)
}

func (s *statsStore) write(ctx context.Context, stats *domain.UserStats, dirty bool) error {
	if err := stats.Validate(); err != nil {
		return store.InvalidEntity(err)
	}

	m := newStatsModel(stats, dirty)
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error; err != nil {
		return mapError(err, nil)
	}
	return nil
}

func (s *statsStore) Dirty(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error) {
	var models []statsModel
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND dirty = ?", userID, true).
		Limit(1).
		Find(&models).Error
	if err != nil {
		return nil, mapError(err, nil)
	}
	if len(models) == 0 {
		return nil, nil
	}
	stats := models[0].toDomain()
	return &stats, nil
}

func (s *statsStore) MarkClean(ctx context.Context, userID uuid.UUID, updatedAt time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&statsModel{}).
		Where("user_id = ? AND updated_at = ?", userID, updatedAt.UTC()).
		Update("dirty", false).Error
	return mapError(err, nil)
}

type shareStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ store.ShareStore = (*shareStore)(nil)

func (s *shareStore) Save(ctx context.Context, share *domain.Share) error {
	if share.Code == "" {
		return store.InvalidEntity(domain.NewValidationError("code", "cannot be empty", nil))
	}

	m := shareModel{
		Code:      share.Code,
		OwnerID:   share.OwnerID,
		CardIDs:   append([]uuid.UUID{}, share.CardIDs...),
		CreatedAt: share.CreatedAt.UTC(),
	}
	return mapError(s.db.WithContext(ctx).Create(&m).Error, nil)
}

func (s *shareStore) Resolve(ctx context.Context, code string) (*domain.Share, error) {
	var m shareModel
	if err := s.db.WithContext(ctx).First(&m, "code = ?", code).Error; err != nil {
		return nil, mapError(err, store.ErrShareNotFound)
	}
	return &domain.Share{
		Code:      m.Code,
		OwnerID:   m.OwnerID,
		CardIDs:   append([]uuid.UUID{}, m.CardIDs...),
		CreatedAt: m.CreatedAt.UTC(),
	}, nil
}
