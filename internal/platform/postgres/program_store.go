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

var programColumns = []string{
	"id", "user_id", "name", "category_id", "subcategory", "difficulty",
	"card_ids", "generic", "created_at", "updated_at",
}

type programRow struct {
	ID          uuid.UUID     `db:"id"`
	UserID      uuid.NullUUID `db:"user_id"`
	Name        string        `db:"name"`
	CategoryID  string        `db:"category_id"`
	Subcategory string        `db:"subcategory"`
	Difficulty  string        `db:"difficulty"`
	CardIDs     []byte        `db:"card_ids"`
	Generic     bool          `db:"generic"`
	CreatedAt   time.Time     `db:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at"`
}

func (r programRow) toDomain() (domain.Program, error) {
	p := domain.Program{
		ID:          r.ID,
		UserID:      r.UserID.UUID,
		Name:        r.Name,
		CategoryID:  r.CategoryID,
		Subcategory: r.Subcategory,
		Difficulty:  domain.Difficulty(r.Difficulty),
		CardIDs:     []uuid.UUID{},
		Generic:     r.Generic,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if len(r.CardIDs) > 0 {
		if err := json.Unmarshal(r.CardIDs, &p.CardIDs); err != nil {
			return domain.Program{}, fmt.Errorf("failed to decode card IDs of program %s: %w", r.ID, err)
		}
	}
	return p, nil
}

// PostgresProgramStore implements the store.ProgramStore interface.
type PostgresProgramStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresProgramStore creates a new PostgreSQL implementation of the ProgramStore interface.
func NewPostgresProgramStore(db store.DBTX, logger *slog.Logger) *PostgresProgramStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresProgramStore{
		db:     db,
		logger: logger.With(slog.String("component", "program_store")),
	}
}

var _ store.ProgramStore = (*PostgresProgramStore)(nil)

// WithTx returns a new ProgramStore instance that uses the provided transaction.
func (s *PostgresProgramStore) WithTx(tx *sql.Tx) store.ProgramStore {
	return &PostgresProgramStore{db: tx, logger: s.logger}
}

// Get implements store.ProgramStore.Get
func (s *PostgresProgramStore) Get(ctx context.Context, id uuid.UUID) (*domain.Program, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query, args, err := psql.Select(programColumns...).
		From("programs").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build program query: %w", err)
	}

	var row programRow
	if err := sqlscan.Get(ctx, s.db, &row, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, store.ErrProgramNotFound
		}
		log.Error("failed to get program",
			slog.String("error", err.Error()),
			slog.String("program_id", id.String()))
		return nil, MapError(err, store.ErrProgramNotFound)
	}

	p, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List implements store.ProgramStore.List
func (s *PostgresProgramStore) List(ctx context.Context, userID uuid.UUID) ([]domain.Program, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query, args, err := psql.Select(programColumns...).
		From("programs").
		Where(squirrel.Or{squirrel.Eq{"user_id": userID}, squirrel.Eq{"generic": true}}).
		OrderBy(`name COLLATE "C"`, "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build program list query: %w", err)
	}

	var rows []programRow
	if err := sqlscan.Select(ctx, s.db, &rows, query, args...); err != nil {
		log.Error("failed to list programs",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, MapError(err, nil)
	}

	programs := make([]domain.Program, 0, len(rows))
	for _, r := range rows {
		p, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	return programs, nil
}

// Upsert implements store.ProgramStore.Upsert
func (s *PostgresProgramStore) Upsert(ctx context.Context, program *domain.Program) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := program.Validate(); err != nil {
		log.Warn("program validation failed",
			slog.String("error", err.Error()),
			slog.String("program_id", program.ID.String()))
		return store.InvalidEntity(err)
	}

	if missing, err := s.missingCard(ctx, program.CardIDs); err != nil {
		return err
	} else if missing != uuid.Nil {
		log.Warn("program references missing card",
			slog.String("program_id", program.ID.String()),
			slog.String("card_id", missing.String()))
		return &domain.IntegrityError{ProgramID: program.ID, CardID: missing}
	}

	cardIDs := program.CardIDs
	if cardIDs == nil {
		cardIDs = []uuid.UUID{}
	}
	cardIDsJSON, err := json.Marshal(cardIDs)
	if err != nil {
		return fmt.Errorf("failed to encode card IDs: %w", err)
	}

	var owner uuid.NullUUID
	if program.UserID != uuid.Nil {
		owner = uuid.NullUUID{UUID: program.UserID, Valid: true}
	}

	query, args, err := psql.Insert("programs").
		Columns(programColumns...).
		Values(
			program.ID, owner, program.Name, program.CategoryID, program.Subcategory,
			string(program.Difficulty), string(cardIDsJSON), program.Generic,
			program.CreatedAt.UTC(), program.UpdatedAt.UTC(),
		).
		Suffix("ON CONFLICT (id) DO UPDATE SET " + excludedSet(programColumns[1:])).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build program upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		log.Error("failed to write program",
			slog.String("error", err.Error()),
			slog.String("program_id", program.ID.String()))
		return MapError(err, nil)
	}

	log.Info("program written",
		slog.String("program_id", program.ID.String()),
		slog.Int("card_count", len(program.CardIDs)))
	return nil
}

// missingCard returns the first ID in ids with no live flashcard row, or uuid.Nil.
func (s *PostgresProgramStore) missingCard(ctx context.Context, ids []uuid.UUID) (uuid.UUID, error) {
	if len(ids) == 0 {
		return uuid.Nil, nil
	}

	query, args, err := psql.Select("id").
		From("flashcards").
		Where(live(squirrel.Eq{"id": ids})).
		ToSql()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to build card existence query: %w", err)
	}

	var found []uuid.UUID
	if err := sqlscan.Select(ctx, s.db, &found, query, args...); err != nil {
		return uuid.Nil, MapError(err, nil)
	}

	present := make(map[uuid.UUID]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			return id, nil
		}
	}
	return uuid.Nil, nil
}

// Remove implements store.ProgramStore.Remove
func (s *PostgresProgramStore) Remove(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query, args, err := psql.Delete("programs").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build program delete: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to delete program",
			slog.String("error", err.Error()),
			slog.String("program_id", id.String()))
		return MapError(err, store.ErrProgramNotFound)
	}
	if err := CheckRowsAffected(result, store.ErrProgramNotFound); err != nil {
		return err
	}

	log.Info("program deleted", slog.String("program_id", id.String()))
	return nil
}
