package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/phrazzld/flashdeck/internal/store"
)

type cardStore struct {
	db *db
}

var _ store.CardStore = (*cardStore)(nil)

func (s *cardStore) Get(ctx context.Context, id uuid.UUID) (*domain.Flashcard, error) {
	return s.get(id, false)
}

func (s *cardStore) GetIncludingDeleted(ctx context.Context, id uuid.UUID) (*domain.Flashcard, error) {
	return s.get(id, true)
}

func (s *cardStore) get(id uuid.UUID, withDeleted bool) (*domain.Flashcard, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	r, ok := s.db.data.cards[id]
	if !ok || (r.card.Deleted() && !withDeleted) {
		return nil, store.ErrCardNotFound
	}
	card := r.card.Clone()
	return &card, nil
}

func matches(c *domain.Flashcard, f store.CardFilter) bool {
	if c.Deleted() {
		return false
	}
	if f.UserID != uuid.Nil && c.UserID != f.UserID {
		return false
	}
	if f.CategoryID != "" && c.CategoryID != f.CategoryID {
		return false
	}
	if f.Subcategory != "" && c.Subcategory != f.Subcategory {
		return false
	}
	if f.Difficulty != nil && c.Difficulty != *f.Difficulty {
		return false
	}
	if f.ProgramID != nil && (c.ProgramID == nil || *c.ProgramID != *f.ProgramID) {
		return false
	}
	return true
}

func byCreation(a, b domain.Flashcard) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}

func (s *cardStore) List(ctx context.Context, filter store.CardFilter) ([]domain.Flashcard, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := []domain.Flashcard{}
	for _, r := range s.db.data.cards {
		if matches(&r.card, filter) {
			out = append(out, r.card.Clone())
		}
	}
	slices.SortFunc(out, byCreation)
	return out, nil
}

func (s *cardStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Flashcard, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := make([]domain.Flashcard, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.db.data.cards[id]; ok && !r.card.Deleted() {
			out = append(out, r.card.Clone())
		}
	}
	return out, nil
}

func (s *cardStore) ListTopics(ctx context.Context, userID uuid.UUID, categoryID string) ([]string, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	topics := []string{}
	for _, r := range s.db.data.cards {
		c := r.card
		if c.Deleted() || c.UserID != userID || c.CategoryID != categoryID || c.Subcategory == "" {
			continue
		}
		if !slices.Contains(topics, c.Subcategory) {
			topics = append(topics, c.Subcategory)
		}
	}
	slices.Sort(topics)
	return topics, nil
}

func (s *cardStore) CountLearned(ctx context.Context, userID uuid.UUID) (int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	n := 0
	for _, r := range s.db.data.cards {
		if r.card.UserID == userID && r.card.Learned && !r.card.Deleted() {
			n++
		}
	}
	return n, nil
}

func (s *cardStore) Upsert(ctx context.Context, card *domain.Flashcard) error {
	return s.put(card, true)
}

func (s *cardStore) PutSynced(ctx context.Context, card *domain.Flashcard) error {
	return s.put(card, false)
}

func (s *cardStore) put(card *domain.Flashcard, dirty bool) error {
	if err := card.Validate(); err != nil {
		return store.InvalidEntity(err)
	}

	unlock := s.db.lockWrite()
	defer unlock()

	s.db.data.cards[card.ID] = cardRecord{card: card.Clone(), dirty: dirty}
	return nil
}

func (s *cardStore) Remove(ctx context.Context, id uuid.UUID, at time.Time) error {
	unlock := s.db.lockWrite()
	defer unlock()

	r, ok := s.db.data.cards[id]
	if !ok || r.card.Deleted() {
		return store.ErrCardNotFound
	}
	r.card.MarkDeleted(at)
	r.dirty = true
	s.db.data.cards[id] = r
	return nil
}

func (s *cardStore) Dirty(ctx context.Context, userID uuid.UUID) ([]domain.Flashcard, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := []domain.Flashcard{}
	for _, r := range s.db.data.cards {
		if r.dirty && r.card.UserID == userID {
			out = append(out, r.card.Clone())
		}
	}
	slices.SortFunc(out, byCreation)
	return out, nil
}

func (s *cardStore) MarkClean(ctx context.Context, versions []store.CardVersion) error {
	unlock := s.db.lockWrite()
	defer unlock()

	for _, v := range versions {
		r, ok := s.db.data.cards[v.ID]
		if !ok || !r.card.UpdatedAt.Equal(v.UpdatedAt) {
			continue
		}
		r.dirty = false
		s.db.data.cards[v.ID] = r
	}
	return nil
}
