package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/phrazzld/flashdeck/internal/store"
)

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open establishes a connection to the database and configures the connection pool.
func Open(ctx context.Context, url string, pool PoolConfig, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")
	return db, nil
}

// Backend is the PostgreSQL store.Backend.
type Backend struct {
	db       *sql.DB
	cards    *PostgresCardStore
	programs *PostgresProgramStore
	stats    *PostgresUserStatsStore
	shares   *PostgresShareStore
}

var _ store.Backend = (*Backend)(nil)

// NewBackend wraps an open database. The backend owns db and closes it.
func NewBackend(db *sql.DB, logger *slog.Logger) *Backend {
	if db == nil {
		panic("db cannot be nil")
	}
	return &Backend{
		db:       db,
		cards:    NewPostgresCardStore(db, logger),
		programs: NewPostgresProgramStore(db, logger),
		stats:    NewPostgresUserStatsStore(db, logger),
		shares:   NewPostgresShareStore(db, logger),
	}
}

// Stores implements store.Backend.
func (b *Backend) Stores() store.Stores {
	return store.Stores{
		Cards:    b.cards,
		Programs: b.programs,
		Stats:    b.stats,
		Shares:   b.shares,
	}
}

// WithinTx implements store.Backend using store.RunInTransaction.
func (b *Backend) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Stores) error) error {
	return store.RunInTransaction(ctx, b.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, store.Stores{
			Cards:    b.cards.WithTx(tx),
			Programs: b.programs.WithTx(tx),
			Stats:    b.stats.WithTx(tx),
			Shares:   b.shares.WithTx(tx),
		})
	})
}

// DB returns the underlying connection pool.
func (b *Backend) DB() *sql.DB {
	return b.db
}

// Close implements store.Backend.
func (b *Backend) Close() error {
	return b.db.Close()
}
