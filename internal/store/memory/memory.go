package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/sales-analytics/internal/store"
)

// Store is an in-memory TableStore. It is safe for concurrent use and loses
// everything on restart; it backs local runs and tests.
type Store struct {
	mu         sync.RWMutex
	tables     map[string][]store.Record
	singletons map[string]map[string]store.Record
	closed     bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		tables:     make(map[string][]store.Record),
		singletons: make(map[string]map[string]store.Record),
	}
}

// Append implements store.TableStore.
func (s *Store) Append(ctx context.Context, table string, rec store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.Unavailable("Append", fmt.Errorf("memory store is closed"))
	}

	s.tables[table] = append(s.tables[table], rec.Clone())
	return nil
}

// QueryRecent implements store.TableStore. Rows with equal sort keys keep
// newest-appended-first order.
func (s *Store) QueryRecent(ctx context.Context, q store.Query) ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.Unavailable("QueryRecent", fmt.Errorf("memory store is closed"))
	}

	rows := s.tables[q.Table]
	out := make([]store.Record, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, rows[i].Clone())
	}

	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			return store.CompareValues(q.SortValue(out[i]), q.SortValue(out[j])) > 0
		})
	}

	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

// UpsertSingleton implements store.TableStore.
func (s *Store) UpsertSingleton(ctx context.Context, table, key string, rec store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.Unavailable("UpsertSingleton", fmt.Errorf("memory store is closed"))
	}

	rows, ok := s.singletons[table]
	if !ok {
		rows = make(map[string]store.Record)
		s.singletons[table] = rows
	}

	row := rec.Clone()
	row[store.KeyField] = key
	rows[key] = row
	return nil
}

// LoadSingleton implements store.TableStore.
func (s *Store) LoadSingleton(ctx context.Context, table, key string) (store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.Unavailable("LoadSingleton", fmt.Errorf("memory store is closed"))
	}

	row, ok := s.singletons[table][key]
	if !ok {
		return nil, fmt.Errorf("LoadSingleton: %s/%s: %w", table, key, store.ErrNotFound)
	}
	return row.Clone(), nil
}

// Close implements store.TableStore. Every later call fails with ErrUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ensure Store implements the TableStore interface.
var _ store.TableStore = (*Store)(nil)
