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

type programStore struct {
	db *db
}

var _ store.ProgramStore = (*programStore)(nil)

func (s *programStore) Get(ctx context.Context, id uuid.UUID) (*domain.Program, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	p, ok := s.db.data.programs[id]
	if !ok {
		return nil, store.ErrProgramNotFound
	}
	out := p.Clone()
	return &out, nil
}

func (s *programStore) List(ctx context.Context, userID uuid.UUID) ([]domain.Program, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := []domain.Program{}
	for _, p := range s.db.data.programs {
		if p.VisibleTo(userID) {
			out = append(out, p.Clone())
		}
	}
	slices.SortFunc(out, func(a, b domain.Program) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func (s *programStore) Upsert(ctx context.Context, program *domain.Program) error {
	if err := program.Validate(); err != nil {
		return store.InvalidEntity(err)
	}

	unlock := s.db.lockWrite()
	defer unlock()

	for _, cardID := range program.CardIDs {
		if r, ok := s.db.data.cards[cardID]; !ok || r.card.Deleted() {
			return &domain.IntegrityError{ProgramID: program.ID, CardID: cardID}
		}
	}
	s.db.data.programs[program.ID] = program.Clone()
	return nil
}

func (s *programStore) Remove(ctx context.Context, id uuid.UUID) error {
	unlock := s.db.lockWrite()
	defer unlock()

	if _, ok := s.db.data.programs[id]; !ok {
		return store.ErrProgramNotFound
	}
	delete(s.db.data.programs, id)
	return nil
}

type statsStore struct {
	db *db
}

var _ store.UserStatsStore = (*statsStore)(nil)

func (s *statsStore) Get(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	r, ok := s.db.data.stats[userID]
	if !ok {
		return nil, store.ErrStatsNotFound
	}
	out := r.stats.Clone()
	return &out, nil
}

func (s *statsStore) Save(ctx context.Context, stats *domain.UserStats) error {
	return s.put(stats, true)
}

func (s *statsStore) PutSynced(ctx context.Context, stats *domain.UserStats) error {
	return s.put(stats, false)
}

func (s *statsStore) put(stats *domain.UserStats, dirty bool) error {
	if err := stats.Validate(); err != nil {
		return store.InvalidEntity(err)
	}

	unlock := s.db.lockWrite()
	defer unlock()

	s.db.data.stats[stats.UserID] = statsRecord{stats: stats.Clone(), dirty: dirty}
	return nil
}

func (s *statsStore) Dirty(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	r, ok := s.db.data.stats[userID]
	if !ok || !r.dirty {
		return nil, nil
	}
	out := r.stats.Clone()
	return &out, nil
}

func (s *statsStore) MarkClean(ctx context.Context, userID uuid.UUID, updatedAt time.Time) error {
	unlock := s.db.lockWrite()
	defer unlock()

	r, ok := s.db.data.stats[userID]
	if ok && r.stats.UpdatedAt.Equal(updatedAt) {
		r.dirty = false
		s.db.data.stats[userID] = r
	}
	return nil
}

type shareStore struct {
	db *db
}

var _ store.ShareStore = (*shareStore)(nil)

func (s *shareStore) Save(ctx context.Context, share *domain.Share) error {
	if share.Code == "" {
		return store.InvalidEntity(domain.NewValidationError("code", "cannot be empty", nil))
	}

	unlock := s.db.lockWrite()
	defer unlock()

	if _, taken := s.db.data.shares[share.Code]; taken {
		return store.ErrDuplicate
	}
	saved := *share
	saved.CardIDs = append([]uuid.UUID(nil), share.CardIDs...)
	s.db.data.shares[share.Code] = saved
	return nil
}

func (s *shareStore) Resolve(ctx context.Context, code string) (*domain.Share, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	share, ok := s.db.data.shares[code]
	if !ok {
		return nil, store.ErrShareNotFound
	}
	share.CardIDs = append([]uuid.UUID(nil), share.CardIDs...)
	return &share, nil
}
