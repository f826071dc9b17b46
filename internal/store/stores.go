package store

import "context"

// Stores bundles the repositories the engine works with. A Stores value
// obtained inside Backend.WithinTx is bound to that transaction.
type Stores struct {
	Cards    CardStore
	Programs ProgramStore
	Stats    UserStatsStore
	Shares   ShareStore
}

// Backend is a storage implementation (memory, Postgres or SQLite).
type Backend interface {
	// Stores returns repositories that operate outside any transaction.
	Stores() Stores

	// WithinTx runs fn with transaction-bound repositories. The writes made
	// through them are committed together when fn returns nil and discarded
	// otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error

	// Close releases the backend's resources.
	Close() error
}
