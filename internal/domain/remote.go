package domain

import (
	"time"

	"github.com/google/uuid"
)

// RemoteFilter selects the cards fetched from the remote store.
type RemoteFilter struct {
	UserID     uuid.UUID
	CategoryID string

	// UpdatedSince limits the fetch to cards written after it. Nil fetches
	// everything.
	UpdatedSince *time.Time
}
