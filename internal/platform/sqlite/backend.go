// Package sqlite provides a device-local store.Backend on SQLite through gorm.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/flashdeck/internal/platform/logger"
	"github.com/phrazzld/flashdeck/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Backend is the SQLite store.Backend.
type Backend struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ store.Backend = (*Backend)(nil)

// Open opens (or creates) the database at path and migrates the schema.
// Use ":memory:" or a "file:...?mode=memory" URI for an in-memory database.
func Open(path string, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite connection: %w", err)
	}
	// SQLite allows a single writer; one connection keeps transactions
	// from failing with SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&cardModel{}, &programModel{}, &statsModel{}, &shareModel{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}

	logger.Info("sqlite database ready", slog.String("path", path))
	return &Backend{
		db:     db,
		logger: logger.With(slog.String("component", "sqlite_store")),
	}, nil
}

// Stores implements store.Backend.
func (b *Backend) Stores() store.Stores {
	return b.storesFor(b.db)
}

func (b *Backend) storesFor(db *gorm.DB) store.Stores {
	return store.Stores{
		Cards:    &cardStore{db: db, logger: b.logger},
		Programs: &programStore{db: db, logger: b.logger},
		Stats:    &statsStore{db: db, logger: b.logger},
		Shares:   &shareStore{db: db, logger: b.logger},
	}
}

// WithinTx implements store.Backend with a gorm transaction. Using the
// non-transactional stores from inside fn blocks, as the pool has a single
// connection.
func (b *Backend) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Stores) error) error {
	log := logger.FromContextOrDefault(ctx, b.logger)

	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, b.storesFor(tx))
	})
	if err != nil {
		log.Debug("sqlite transaction rolled back", slog.String("error", err.Error()))
	}
	return err
}

// Close implements store.Backend.
func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// mapError converts gorm errors to store errors.
func mapError(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrDuplicate
	default:
		return err
	}
}
