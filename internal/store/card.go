package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
)

// CardFilter narrows a card listing. Zero-valued fields do not filter.
type CardFilter struct {
	UserID      uuid.UUID
	CategoryID  string
	Subcategory string
	Difficulty  *domain.Difficulty
	ProgramID   *uuid.UUID
}

// CardVersion identifies a specific write of a card. Sync uses it so that
// a card modified after it was pushed stays dirty.
type CardVersion struct {
	ID        uuid.UUID
	UpdatedAt time.Time
}

// CardStore defines the interface for flashcard persistence.
type CardStore interface {
	// Get retrieves a card by its unique ID.
	// Returns ErrCardNotFound if the card does not exist or was removed.
	Get(ctx context.Context, id uuid.UUID) (*domain.Flashcard, error)

	// GetIncludingDeleted is Get that also returns tombstones. Sync uses it
	// to compare a remote copy against a local removal.
	GetIncludingDeleted(ctx context.Context, id uuid.UUID) (*domain.Flashcard, error)

	// List returns the cards matching the filter ordered by creation time.
	List(ctx context.Context, filter CardFilter) ([]domain.Flashcard, error)

	// ListByIDs returns the cards that exist among ids, in no particular order.
	// Missing IDs are silently skipped; callers compare lengths to detect them.
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Flashcard, error)

	// ListTopics returns the distinct non-empty subcategories of a user's
	// cards in a category, sorted alphabetically.
	ListTopics(ctx context.Context, userID uuid.UUID, categoryID string) ([]string, error)

	// CountLearned returns the number of the user's cards flagged learned.
	CountLearned(ctx context.Context, userID uuid.UUID) (int, error)

	// Upsert validates and writes a card, marking it dirty for sync.
	// Returns an error wrapping ErrInvalidEntity when validation fails;
	// nothing is written in that case.
	Upsert(ctx context.Context, card *domain.Flashcard) error

	// PutSynced writes a card received from the remote store without
	// marking it dirty.
	PutSynced(ctx context.Context, card *domain.Flashcard) error

	// Remove turns a card into a dirty tombstone stamped at, so the removal
	// reaches the remote store on the next push. Tombstones are invisible to
	// every read except GetIncludingDeleted and Dirty.
	// Returns ErrCardNotFound if the card does not exist, including on a
	// repeated removal.
	Remove(ctx context.Context, id uuid.UUID, at time.Time) error

	// Dirty returns the user's cards written since they were last synced,
	// tombstones included.
	Dirty(ctx context.Context, userID uuid.UUID) ([]domain.Flashcard, error)

	// MarkClean clears the dirty marker of each card whose stored
	// UpdatedAt still equals the given version.
	MarkClean(ctx context.Context, versions []CardVersion) error
}

// ListByCategory returns a user's cards in one category.
func ListByCategory(ctx context.Context, cards CardStore, userID uuid.UUID, categoryID string) ([]domain.Flashcard, error) {
	return cards.List(ctx, CardFilter{UserID: userID, CategoryID: categoryID})
}

// ListByDifficulty returns a user's cards in one category at one difficulty.
func ListByDifficulty(
	ctx context.Context,
	cards CardStore,
	userID uuid.UUID,
	categoryID string,
	difficulty domain.Difficulty,
) ([]domain.Flashcard, error) {
	return cards.List(ctx, CardFilter{UserID: userID, CategoryID: categoryID, Difficulty: &difficulty})
}

// VersionsOf returns the sync versions of the given cards.
func VersionsOf(cards []domain.Flashcard) []CardVersion {
	versions := make([]CardVersion, 0, len(cards))
	for _, c := range cards {
		versions = append(versions, CardVersion{ID: c.ID, UpdatedAt: c.UpdatedAt})
	}
	return versions
}
