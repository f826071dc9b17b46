package study

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
)

// Session is one study session. Recorded answers stay in memory until
// Flush; discarding the session leaves the store untouched. A Session is
// safe for concurrent use.
type Session struct {
	id        uuid.UUID
	userID    uuid.UUID
	scope     domain.StudyScope
	startedAt time.Time
	service   *Service

	mu       sync.Mutex
	log      []domain.CardOutcome
	closed   bool
	flushing sync.Mutex
}

// ID returns the session's identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// UserID returns the owner of the session.
func (s *Session) UserID() uuid.UUID { return s.userID }

// Scope returns the card selection the session was started with.
func (s *Session) Scope() domain.StudyScope { return s.scope }

// StartedAt returns when the session was opened.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Record appends an answer to the session log.
func (s *Session) Record(cardID uuid.UUID, correct bool) error {
	if cardID == uuid.Nil {
		return domain.NewValidationError("card_id", "cannot be empty", domain.ErrInvalidID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.log = append(s.log, domain.CardOutcome{
		CardID:     cardID,
		Correct:    correct,
		ReviewedAt: s.service.clock.Now(),
	})
	return nil
}

// Pending returns a copy of the outcomes not yet flushed.
func (s *Session) Pending() []domain.CardOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CardOutcome{}, s.log...)
}

// Flush applies every pending outcome in one transaction. On success the
// flushed outcomes leave the log; answers recorded while the flush ran
// remain pending. On failure nothing was written and the log is kept.
// Flushing an empty log returns an empty result without touching the store.
func (s *Session) Flush(ctx context.Context) (*FlushResult, error) {
	s.flushing.Lock()
	defer s.flushing.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	batch := append([]domain.CardOutcome{}, s.log...)
	s.mu.Unlock()

	if len(batch) == 0 {
		return &FlushResult{
			Summary:         domain.Summarize(nil),
			NewAchievements: []domain.UserAchievement{},
			Cards:           []domain.Flashcard{},
		}, nil
	}

	result, err := s.service.flush(ctx, s.id, s.userID, batch)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if !s.closed && len(s.log) >= len(batch) {
		s.log = append([]domain.CardOutcome{}, s.log[len(batch):]...)
	}
	s.mu.Unlock()

	return result, nil
}

// Discard drops all pending outcomes and closes the session. It waits for
// an in-flight flush, whose outcomes are already committed.
func (s *Session) Discard() {
	s.flushing.Lock()
	defer s.flushing.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.log = nil
}

// Closed reports whether the session was discarded.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
