package study

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
)

// SessionRegistry holds the open sessions of the HTTP surface.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[uuid.UUID]*Session)}
}

// Add registers an open session.
func (r *SessionRegistry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
}

// Get returns the session with the given ID if userID owns it.
func (r *SessionRegistry) Get(id, userID uuid.UUID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok || s.UserID() != userID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove discards and unregisters a session owned by userID.
func (r *SessionRegistry) Remove(id, userID uuid.UUID) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok || s.UserID() != userID {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	// Discard waits for an in-flight flush; keep the registry usable meanwhile.
	s.Discard()
	return nil
}

// Evict discards and unregisters every session started before cutoff and
// returns how many it dropped. Unflushed answers of evicted sessions are
// lost.
func (r *SessionRegistry) Evict(cutoff time.Time) int {
	r.mu.Lock()
	var stale []*Session
	for id, s := range r.sessions {
		if s.StartedAt().Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Discard()
	}
	return len(stale)
}

// RunEvictor evicts sessions older than ttl until ctx is cancelled.
func (r *SessionRegistry) RunEvictor(ctx context.Context, ttl time.Duration, clock domain.Clock) {
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Evict(clock.Now().Add(-ttl))
		}
	}
}

// Len returns the number of open sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
