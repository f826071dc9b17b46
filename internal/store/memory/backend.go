// Package memory provides a process-local store.Backend. It backs tests and
// the "memory" storage driver.
package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/phrazzld/flashdeck/internal/platform/logger"
	"github.com/phrazzld/flashdeck/internal/store"
)

type cardRecord struct {
	card  domain.Flashcard
	dirty bool
}

type statsRecord struct {
	stats domain.UserStats
	dirty bool
}

// dataset is the full state guarded by a db.
type dataset struct {
	cards    map[uuid.UUID]cardRecord
	programs map[uuid.UUID]domain.Program
	stats    map[uuid.UUID]statsRecord
	shares   map[string]domain.Share
}

func newDataset() *dataset {
	return &dataset{
		cards:    make(map[uuid.UUID]cardRecord),
		programs: make(map[uuid.UUID]domain.Program),
		stats:    make(map[uuid.UUID]statsRecord),
		shares:   make(map[string]domain.Share),
	}
}

func (d *dataset) clone() *dataset {
	out := newDataset()
	for id, r := range d.cards {
		out.cards[id] = cardRecord{card: r.card.Clone(), dirty: r.dirty}
	}
	for id, p := range d.programs {
		out.programs[id] = p.Clone()
	}
	for id, r := range d.stats {
		out.stats[id] = statsRecord{stats: r.stats.Clone(), dirty: r.dirty}
	}
	for code, s := range d.shares {
		s.CardIDs = append([]uuid.UUID(nil), s.CardIDs...)
		out.shares[code] = s
	}
	return out
}

type db struct {
	mu   sync.RWMutex
	data *dataset
	// writeMu serializes writers against open transactions. It is nil on
	// the private copy a transaction works on.
	writeMu *sync.Mutex
}

// lockWrite acquires the locks needed to mutate the dataset.
func (d *db) lockWrite() func() {
	if d.writeMu != nil {
		d.writeMu.Lock()
	}
	d.mu.Lock()
	return func() {
		d.mu.Unlock()
		if d.writeMu != nil {
			d.writeMu.Unlock()
		}
	}
}

// Backend is an in-memory store.Backend.
type Backend struct {
	root    *db
	writeMu sync.Mutex
	logger  *slog.Logger
}

var _ store.Backend = (*Backend)(nil)

// NewBackend creates an empty in-memory backend.
func NewBackend(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backend{
		logger: logger.With(slog.String("component", "memory_store")),
	}
	b.root = &db{data: newDataset(), writeMu: &b.writeMu}
	return b
}

// Stores returns repositories bound to the committed state.
func (b *Backend) Stores() store.Stores {
	return storesFor(b.root)
}

// WithinTx runs fn against a private copy of the state and publishes the
// copy when fn succeeds. Transactions are serialized with each other and
// with non-transactional writes; calling WithinTx from inside fn deadlocks.
func (b *Backend) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Stores) error) error {
	log := logger.FromContextOrDefault(ctx, b.logger)

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	b.root.mu.RLock()
	snapshot := &db{data: b.root.data.clone()}
	b.root.mu.RUnlock()

	if err := fn(ctx, storesFor(snapshot)); err != nil {
		log.Debug("discarding in-memory transaction", slog.String("error", err.Error()))
		return err
	}

	b.root.mu.Lock()
	b.root.data = snapshot.data
	b.root.mu.Unlock()
	return nil
}

// Close is a no-op.
func (b *Backend) Close() error {
	return nil
}

func storesFor(d *db) store.Stores {
	return store.Stores{
		Cards:    &cardStore{db: d},
		Programs: &programStore{db: d},
		Stats:    &statsStore{db: d},
		Shares:   &shareStore{db: d},
	}
}
