package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
)

// ProgramStore defines the interface for study program persistence.
type ProgramStore interface {
	// Get retrieves a program by ID.
	// Returns ErrProgramNotFound if the program does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.Program, error)

	// List returns the programs visible to a user: their own and the
	// generic ones, ordered by name.
	List(ctx context.Context, userID uuid.UUID) ([]domain.Program, error)

	// Upsert validates and writes a program. Every referenced card must
	// exist; otherwise a *domain.IntegrityError is returned and nothing
	// is written.
	Upsert(ctx context.Context, program *domain.Program) error

	// Remove deletes a program.
	// Returns ErrProgramNotFound if the program does not exist.
	Remove(ctx context.Context, id uuid.UUID) error
}

// UserStatsStore defines the interface for aggregate user statistics.
type UserStatsStore interface {
	// Get returns the user's stats.
	// Returns ErrStatsNotFound if stats were never saved.
	Get(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error)

	// Save validates and writes stats, marking them dirty for sync.
	Save(ctx context.Context, stats *domain.UserStats) error

	// PutSynced writes stats received from the remote store without
	// marking them dirty.
	PutSynced(ctx context.Context, stats *domain.UserStats) error

	// Dirty returns the stats when they changed since the last sync,
	// or nil when they are clean or absent.
	Dirty(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error)

	// MarkClean clears the dirty marker if the stored stats still carry
	// the given UpdatedAt.
	MarkClean(ctx context.Context, userID uuid.UUID, updatedAt time.Time) error
}

// ShareStore persists share codes.
type ShareStore interface {
	// Save stores a share. Returns ErrDuplicate if the code is taken.
	Save(ctx context.Context, share *domain.Share) error

	// Resolve returns the share for a code.
	// Returns ErrShareNotFound if the code is unknown.
	Resolve(ctx context.Context, code string) (*domain.Share, error)
}

// GetOrNewStats returns the saved stats, or fresh stats when none exist.
func GetOrNewStats(ctx context.Context, stats UserStatsStore, userID uuid.UUID) (domain.UserStats, error) {
	current, err := stats.Get(ctx, userID)
	if err != nil {
		if IsNotFoundError(err) {
			return domain.NewUserStats(userID), nil
		}
		return domain.UserStats{}, err
	}
	return *current, nil
}
