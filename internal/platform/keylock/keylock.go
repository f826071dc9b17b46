// Package keylock provides per-key mutual exclusion.
package keylock

import (
	"sync"

	"github.com/google/uuid"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Map hands out one mutex per key. Entries are dropped once no goroutine
// holds or waits for them, so the map does not grow with the key space.
type Map struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

// New creates an empty Map.
func New() *Map {
	return &Map{entries: make(map[uuid.UUID]*entry)}
}

// Lock blocks until the key's mutex is held and returns its release func.
func (m *Map) Lock(key uuid.UUID) (unlock func()) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			m.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(m.entries, key)
			}
			m.mu.Unlock()
		})
	}
}

// Len returns the number of keys currently held or awaited.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
