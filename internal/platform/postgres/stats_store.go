package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/phrazzld/flashdeck/internal/platform/logger"
	"github.com/phrazzld/flashdeck/internal/store"
)

var statsColumns = []string{
	"user_id", "streak", "last_activity", "total_correct", "total_incorrect",
	"cards_learned", "achievements", "completed_programs", "updated_at",
}

type statsRow struct {
	UserID            uuid.UUID    `db:"user_id"`
	Streak            int          `db:"streak"`
	LastActivity      sql.NullTime `db:"last_activity"`
	TotalCorrect      int          `db:"total_correct"`
	TotalIncorrect    int          `db:"total_incorrect"`
	CardsLearned      int          `db:"cards_learned"`
	Achievements      []byte       `db:"achievements"`
	CompletedPrograms []byte       `db:"completed_programs"`
	UpdatedAt         time.Time    `db:"updated_at"`
}

func (r statsRow) toDomain() (domain.UserStats, error) {
	s := domain.NewUserStats(r.UserID)
	s.Streak = r.Streak
	s.LastActivity = timePtr(r.LastActivity)
	s.TotalCorrect = r.TotalCorrect
	s.TotalIncorrect = r.TotalIncorrect
	s.CardsLearned = r.CardsLearned
	s.UpdatedAt = r.UpdatedAt.UTC()

	if len(r.Achievements) > 0 {
		if err := json.Unmarshal(r.Achievements, &s.Achievements); err != nil {
			return domain.UserStats{}, fmt.Errorf("failed to decode achievements: %w", err)
		}
	}
	if len(r.CompletedPrograms) > 0 {
		if err := json.Unmarshal(r.CompletedPrograms, &s.CompletedPrograms); err != nil {
			return domain.UserStats{}, fmt.Errorf("failed to decode completed programs: %w", err)
		}
	}
	for i := range s.Achievements {
		s.Achievements[i].DateEarned = s.Achievements[i].DateEarned.UTC()
	}
	return s, nil
}

// PostgresUserStatsStore implements the store.UserStatsStore interface.
type PostgresUserStatsStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUserStatsStore creates a new PostgreSQL implementation of the UserStatsStore interface.
func NewPostgresUserStatsStore(db store.DBTX, logger *slog.Logger) *PostgresUserStatsStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUserStatsStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_stats_store")),
	}
}

var _ store.UserStatsStore = (*PostgresUserStatsStore)(nil)

// WithTx returns a new UserStatsStore instance that uses the provided transaction.
func (s *PostgresUserStatsStore) WithTx(tx *sql.Tx) store.UserStatsStore {
	return &PostgresUserStatsStore{db: tx, logger: s.logger}
}

func (s *PostgresUserStatsStore) get(ctx context.Context, where squirrel.Sqlizer) (*domain.UserStats, error) {
	query, args, err := psql.Select(statsColumns...).
		From("user_stats").
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build stats query: %w", err)
	}

	var row statsRow
	if err := sqlscan.Get(ctx, s.db, &row, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, store.ErrStatsNotFound
		}
		return nil, MapError(err, store.ErrStatsNotFound)
	}

	stats, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Get implements store.UserStatsStore.Get
func (s *PostgresUserStatsStore) Get(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	log.Debug("retrieving user stats", slog.String("user_id", userID.String()))

	stats, err := s.get(ctx, squirrel.Eq{"user_id": userID})
	if err != nil && !store.IsNotFoundError(err) {
		log.Error("failed to get user stats",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
	}
	return stats, err
}

// Save implements store.UserStatsStore.Save
func (s *PostgresUserStatsStore) Save(ctx context.Context, stats *domain.UserStats) error {
	return s.write(ctx, stats, true)
}

// PutSynced implements store.UserStatsStore.PutSynced
func (s *PostgresUserStatsStore) PutSynced(ctx context.Context, stats *domain.UserStats) error {
	return s.write(ctx, stats, false)
}

func (s *PostgresUserStatsStore) write(ctx context.Context, stats *domain.UserStats, dirty bool) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := stats.Validate(); err != nil {
		log.Warn("user stats validation failed",
			slog.String("error", err.Error()),
			slog.String("user_id", stats.UserID.String()))
		return store.InvalidEntity(err)
	}

	achievements := stats.Achievements
	if achievements == nil {
		achievements = []domain.UserAchievement{}
	}
	achievementsJSON, err := json.Marshal(achievements)
	if err != nil {
		return fmt.Errorf("failed to encode achievements: %w", err)
	}
	completed := stats.CompletedPrograms
	if completed == nil {
		completed = []uuid.UUID{}
	}
	completedJSON, err := json.Marshal(completed)
	if err != nil {
		return fmt.Errorf("failed to encode completed programs: %w", err)
	}

	columns := append(append([]string{}, statsColumns...), "dirty")
	query, args, err := psql.Insert("user_stats").
		Columns(columns...).
		Values(
			stats.UserID, stats.Streak, nullTime(stats.LastActivity),
			stats.TotalCorrect, stats.TotalIncorrect, stats.CardsLearned,
			string(achievementsJSON), string(completedJSON),
			stats.UpdatedAt.UTC(), dirty,
		).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET " + excludedSet(columns[1:])).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build stats upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		log.Error("failed to write user stats",
			slog.String("error", err.Error()),
			slog.String("user_id", stats.UserID.String()))
		return MapError(err, nil)
	}

	log.Info("user stats written",
		slog.String("user_id", stats.UserID.String()),
		slog.Int("streak", stats.Streak),
		slog.Bool("dirty", dirty))
	return nil
}

// Dirty implements store.UserStatsStore.Dirty
func (s *PostgresUserStatsStore) Dirty(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error) {
	stats, err := s.get(ctx, squirrel.Eq{"user_id": userID, "dirty": true})
	if store.IsNotFoundError(err) {
		return nil, nil
	}
	return stats, err
}

// MarkClean implements store.UserStatsStore.MarkClean
func (s *PostgresUserStatsStore) MarkClean(ctx context.Context, userID uuid.UUID, updatedAt time.Time) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query, args, err := psql.Update("user_stats").
		Set("dirty", false).
		Where(squirrel.Eq{"user_id": userID, "updated_at": updatedAt.UTC()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build mark clean: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		log.Error("failed to mark user stats clean",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return MapError(err, nil)
	}
	return nil
}
