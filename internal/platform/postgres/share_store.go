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

type shareRow struct {
	Code      string    `db:"code"`
	OwnerID   uuid.UUID `db:"owner_id"`
	CardIDs   []byte    `db:"card_ids"`
	CreatedAt time.Time `db:"created_at"`
}

// PostgresShareStore implements the store.ShareStore interface.
type PostgresShareStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresShareStore creates a new PostgreSQL implementation of the ShareStore interface.
func NewPostgresShareStore(db store.DBTX, logger *slog.Logger) *PostgresShareStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresShareStore{
		db:     db,
		logger: logger.With(slog.String("component", "share_store")),
	}
}

var _ store.ShareStore = (*PostgresShareStore)(nil)

// WithTx returns a new ShareStore instance that uses the provided transaction.
func (s *PostgresShareStore) WithTx(tx *sql.Tx) store.ShareStore {
	return &PostgresShareStore{db: tx, logger: s.logger}
}

// Save implements store.ShareStore.Save
func (s *PostgresShareStore) Save(ctx context.Context, share *domain.Share) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if share.Code == "" {
		return store.InvalidEntity(domain.NewValidationError("code", "cannot be empty", nil))
	}

	cardIDs, err := json.Marshal(share.CardIDs)
	if err != nil {
		return fmt.Errorf("failed to encode card IDs: %w", err)
	}

	query, args, err := psql.Insert("shares").
		Columns("code", "owner_id", "card_ids", "created_at").
		Values(share.Code, share.OwnerID, string(cardIDs), share.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build share insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if IsUniqueViolation(err) {
			log.Warn("share code collision", slog.String("code", share.Code))
			return store.ErrDuplicate
		}
		log.Error("failed to save share",
			slog.String("error", err.Error()),
			slog.String("code", share.Code))
		return MapError(err, nil)
	}

	log.Info("share saved",
		slog.String("code", share.Code),
		slog.Int("card_count", len(share.CardIDs)))
	return nil
}

// Resolve implements store.ShareStore.Resolve
func (s *PostgresShareStore) Resolve(ctx context.Context, code string) (*domain.Share, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query, args, err := psql.Select("code", "owner_id", "card_ids", "created_at").
		From("shares").
		Where(squirrel.Eq{"code": code}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build share query: %w", err)
	}

	var row shareRow
	if err := sqlscan.Get(ctx, s.db, &row, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, store.ErrShareNotFound
		}
		log.Error("failed to resolve share",
			slog.String("error", err.Error()),
			slog.String("code", code))
		return nil, MapError(err, store.ErrShareNotFound)
	}

	share := &domain.Share{
		Code:      row.Code,
		OwnerID:   row.OwnerID,
		CardIDs:   []uuid.UUID{},
		CreatedAt: row.CreatedAt.UTC(),
	}
	if err := json.Unmarshal(row.CardIDs, &share.CardIDs); err != nil {
		return nil, fmt.Errorf("failed to decode share card IDs: %w", err)
	}
	return share, nil
}
