package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/phrazzld/flashdeck/internal/platform/logger"
	"github.com/phrazzld/flashdeck/internal/store"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var cardColumns = []string{
	"id", "user_id", "category_id", "subcategory", "program_id",
	"question", "answer", "difficulty",
	"last_reviewed", "next_review", "correct_count", "incorrect_count", "consecutive_correct",
	"learned", "review_later",
	"report_count", "report_reasons", "approved",
	"created_at", "updated_at", "deleted_at",
}

// cardRow is the flashcards table shape read by scany.
type cardRow struct {
	ID                 uuid.UUID     `db:"id"`
	UserID             uuid.UUID     `db:"user_id"`
	CategoryID         string        `db:"category_id"`
	Subcategory        string        `db:"subcategory"`
	ProgramID          uuid.NullUUID `db:"program_id"`
	Question           string        `db:"question"`
	Answer             string        `db:"answer"`
	Difficulty         string        `db:"difficulty"`
	LastReviewed       sql.NullTime  `db:"last_reviewed"`
	NextReview         sql.NullTime  `db:"next_review"`
	CorrectCount       int           `db:"correct_count"`
	IncorrectCount     int           `db:"incorrect_count"`
	ConsecutiveCorrect int           `db:"consecutive_correct"`
	Learned            bool          `db:"learned"`
	ReviewLater        bool          `db:"review_later"`
	ReportCount        int           `db:"report_count"`
	ReportReasons      []byte        `db:"report_reasons"`
	Approved           bool          `db:"approved"`
	CreatedAt          time.Time     `db:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at"`
	DeletedAt          sql.NullTime  `db:"deleted_at"`
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func (r cardRow) toDomain() (domain.Flashcard, error) {
	card := domain.Flashcard{
		ID:          r.ID,
		UserID:      r.UserID,
		CategoryID:  r.CategoryID,
		Subcategory: r.Subcategory,
		Question:    r.Question,
		Answer:      r.Answer,
		Difficulty:  domain.Difficulty(r.Difficulty),
		ReviewState: domain.ReviewState{
			LastReviewed:       timePtr(r.LastReviewed),
			NextReview:         timePtr(r.NextReview),
			CorrectCount:       r.CorrectCount,
			IncorrectCount:     r.IncorrectCount,
			ConsecutiveCorrect: r.ConsecutiveCorrect,
			Learned:            r.Learned,
			ReviewLater:        r.ReviewLater,
		},
		Moderation: domain.Moderation{
			ReportCount: r.ReportCount,
			Approved:    r.Approved,
		},
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
		DeletedAt: timePtr(r.DeletedAt),
	}
	if r.ProgramID.Valid {
		id := r.ProgramID.UUID
		card.ProgramID = &id
	}
	if len(r.ReportReasons) > 0 {
		var reasons []string
		if err := json.Unmarshal(r.ReportReasons, &reasons); err != nil {
			return domain.Flashcard{}, fmt.Errorf("failed to decode report reasons of card %s: %w", r.ID, err)
		}
		if len(reasons) > 0 {
			card.ReportReasons = reasons
		}
	}
	return card, nil
}

func rowsToCards(rows []cardRow) ([]domain.Flashcard, error) {
	cards := make([]domain.Flashcard, 0, len(rows))
	for _, r := range rows {
		card, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// PostgresCardStore implements the store.CardStore interface
// using a PostgreSQL database as the storage backend.
type PostgresCardStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCardStore creates a new PostgreSQL implementation of the CardStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresCardStore(db store.DBTX, logger *slog.Logger) *PostgresCardStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresCardStore{
		db:     db,
		logger: logger.With(slog.String("component", "card_store")),
	}
}

// Ensure PostgresCardStore implements store.CardStore interface
var _ store.CardStore = (*PostgresCardStore)(nil)

// WithTx returns a new CardStore instance that uses the provided transaction.
func (s *PostgresCardStore) WithTx(tx *sql.Tx) store.CardStore {
	return &PostgresCardStore{
		db:     tx,
		logger: s.logger,
	}
}

// live restricts a condition to rows that are not tombstones.
func live(where squirrel.Eq) squirrel.Eq {
	where["deleted_at"] = nil
	return where
}

// Get implements store.CardStore.Get
func (s *PostgresCardStore) Get(ctx context.Context, id uuid.UUID) (*domain.Flashcard, error) {
	return s.get(ctx, live(squirrel.Eq{"id": id}), id)
}

// GetIncludingDeleted implements store.CardStore.GetIncludingDeleted
func (s *PostgresCardStore) GetIncludingDeleted(ctx context.Context, id uuid.UUID) (*domain.Flashcard, error) {
	return s.get(ctx, squirrel.Eq{"id": id}, id)
}

func (s *PostgresCardStore) get(ctx context.Context, where squirrel.Eq, id uuid.UUID) (*domain.Flashcard, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	log.Debug("retrieving card by ID", slog.String("card_id", id.String()))

	query, args, err := psql.Select(cardColumns...).
		From("flashcards").
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build card query: %w", err)
	}

	var row cardRow
	if err := sqlscan.Get(ctx, s.db, &row, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			log.Debug("card not found", slog.String("card_id", id.String()))
			return nil, store.ErrCardNotFound
		}
		log.Error("failed to get card",
			slog.String("error", err.Error()),
			slog.String("card_id", id.String()))
		return nil, MapError(err, store.ErrCardNotFound)
	}

	card, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// List implements store.CardStore.List
func (s *PostgresCardStore) List(ctx context.Context, filter store.CardFilter) ([]domain.Flashcard, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	where := live(squirrel.Eq{})
	if filter.UserID != uuid.Nil {
		where["user_id"] = filter.UserID
	}
	if filter.CategoryID != "" {
		where["category_id"] = filter.CategoryID
	}
	if filter.Subcategory != "" {
		where["subcategory"] = filter.Subcategory
	}
	if filter.Difficulty != nil {
		where["difficulty"] = string(*filter.Difficulty)
	}
	if filter.ProgramID != nil {
		where["program_id"] = *filter.ProgramID
	}

	query, args, err := psql.Select(cardColumns...).
		From("flashcards").
		Where(where).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build card list query: %w", err)
	}

	var rows []cardRow
	if err := sqlscan.Select(ctx, s.db, &rows, query, args...); err != nil {
		log.Error("failed to list cards", slog.String("error", err.Error()))
		return nil, MapError(err, nil)
	}

	log.Debug("listed cards", slog.Int("count", len(rows)))
	return rowsToCards(rows)
}

// ListByIDs implements store.CardStore.ListByIDs
func (s *PostgresCardStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Flashcard, error) {
	if len(ids) == 0 {
		return []domain.Flashcard{}, nil
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	query, args, err := psql.Select(cardColumns...).
		From("flashcards").
		Where(live(squirrel.Eq{"id": ids})).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build card query: %w", err)
	}

	var rows []cardRow
	if err := sqlscan.Select(ctx, s.db, &rows, query, args...); err != nil {
		log.Error("failed to list cards by ID",
			slog.String("error", err.Error()),
			slog.Int("requested", len(ids)))
		return nil, MapError(err, nil)
	}
	return rowsToCards(rows)
}

// ListTopics implements store.CardStore.ListTopics
func (s *PostgresCardStore) ListTopics(ctx context.Context, userID uuid.UUID, categoryID string) ([]string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query, args, err := psql.Select("DISTINCT subcategory").
		From("flashcards").
		Where(live(squirrel.Eq{"user_id": userID, "category_id": categoryID})).
		Where(squirrel.NotEq{"subcategory": ""}).
		OrderBy(`subcategory COLLATE "C"`).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build topic query: %w", err)
	}

	topics := []string{}
	if err := sqlscan.Select(ctx, s.db, &topics, query, args...); err != nil {
		log.Error("failed to list topics",
			slog.String("error", err.Error()),
			slog.String("category_id", categoryID))
		return nil, MapError(err, nil)
	}
	return topics, nil
}

// CountLearned implements store.CardStore.CountLearned
func (s *PostgresCardStore) CountLearned(ctx context.Context, userID uuid.UUID) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query, args, err := psql.Select("COUNT(*)").
		From("flashcards").
		Where(live(squirrel.Eq{"user_id": userID, "learned": true})).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		log.Error("failed to count learned cards",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return 0, MapError(err, nil)
	}
	return n, nil
}

// Upsert implements store.CardStore.Upsert
func (s *PostgresCardStore) Upsert(ctx context.Context, card *domain.Flashcard) error {
	return s.write(ctx, card, true)
}

// PutSynced implements store.CardStore.PutSynced
func (s *PostgresCardStore) PutSynced(ctx context.Context, card *domain.Flashcard) error {
	return s.write(ctx, card, false)
}

func (s *PostgresCardStore) write(ctx context.Context, card *domain.Flashcard, dirty bool) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := card.Validate(); err != nil {
		log.Warn("card validation failed",
			slog.String("error", err.Error()),
			slog.String("card_id", card.ID.String()))
		return store.InvalidEntity(err)
	}

	reasons := card.ReportReasons
	if reasons == nil {
		reasons = []string{}
	}
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return fmt.Errorf("failed to encode report reasons: %w", err)
	}

	var programID uuid.NullUUID
	if card.ProgramID != nil {
		programID = uuid.NullUUID{UUID: *card.ProgramID, Valid: true}
	}

	columns := append(append([]string{}, cardColumns...), "dirty")
	query, args, err := psql.Insert("flashcards").
		Columns(columns...).
		Values(
			card.ID, card.UserID, card.CategoryID, card.Subcategory, programID,
			card.Question, card.Answer, string(card.Difficulty),
			nullTime(card.LastReviewed), nullTime(card.NextReview),
			card.CorrectCount, card.IncorrectCount, card.ConsecutiveCorrect,
			card.Learned, card.ReviewLater,
			card.ReportCount, string(reasonsJSON), card.Approved,
			card.CreatedAt.UTC(), card.UpdatedAt.UTC(), nullTime(card.DeletedAt),
			dirty,
		).
		Suffix("ON CONFLICT (id) DO UPDATE SET " + excludedSet(columns[1:])).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build card upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		log.Error("failed to write card",
			slog.String("error", err.Error()),
			slog.String("card_id", card.ID.String()))
		return MapError(err, nil)
	}

	log.Info("card written",
		slog.String("card_id", card.ID.String()),
		slog.Bool("dirty", dirty))
	return nil
}

// excludedSet renders "col = EXCLUDED.col" assignments for an upsert.
func excludedSet(columns []string) string {
	parts := make([]string, 0, len(columns))
	for _, c := range columns {
		parts = append(parts, c+" = EXCLUDED."+c)
	}
	return strings.Join(parts, ", ")
}

// Remove implements store.CardStore.Remove
func (s *PostgresCardStore) Remove(ctx context.Context, id uuid.UUID, at time.Time) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query, args, err := psql.Update("flashcards").
		Set("deleted_at", at.UTC()).
		Set("updated_at", at.UTC()).
		Set("dirty", true).
		Where(live(squirrel.Eq{"id": id})).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build card delete: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to delete card",
			slog.String("error", err.Error()),
			slog.String("card_id", id.String()))
		return MapError(err, store.ErrCardNotFound)
	}
	if err := CheckRowsAffected(result, store.ErrCardNotFound); err != nil {
		return err
	}

	log.Info("card deleted", slog.String("card_id", id.String()))
	return nil
}

// Dirty implements store.CardStore.Dirty
func (s *PostgresCardStore) Dirty(ctx context.Context, userID uuid.UUID) ([]domain.Flashcard, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query, args, err := psql.Select(cardColumns...).
		From("flashcards").
		Where(squirrel.Eq{"user_id": userID, "dirty": true}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build dirty card query: %w", err)
	}

	var rows []cardRow
	if err := sqlscan.Select(ctx, s.db, &rows, query, args...); err != nil {
		log.Error("failed to list dirty cards", slog.String("error", err.Error()))
		return nil, MapError(err, nil)
	}
	return rowsToCards(rows)
}

// MarkClean implements store.CardStore.MarkClean
func (s *PostgresCardStore) MarkClean(ctx context.Context, versions []store.CardVersion) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	for _, v := range versions {
		query, args, err := psql.Update("flashcards").
			Set("dirty", false).
			Where(squirrel.Eq{"id": v.ID, "updated_at": v.UpdatedAt.UTC()}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build mark clean: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			log.Error("failed to mark card clean",
				slog.String("error", err.Error()),
				slog.String("card_id", v.ID.String()))
			return MapError(err, nil)
		}
	}

	log.Debug("cards marked clean", slog.Int("count", len(versions)))
	return nil
}
