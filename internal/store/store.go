// Package store defines the single table-store abstraction every backend
// (memory, BigQuery, Postgres, Mongo) implements.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Table names shared by all backends.
const (
	TableSales          = "sales_data"
	TableRestocks       = "restock_ledger"
	TablePipelineStatus = "pipeline_status"
)

// KeyField is the column holding a singleton row's key.
const KeyField = "id"

var (
	// ErrUnavailable wraps every backend failure (network, auth, malformed response).
	ErrUnavailable = errors.New("store unavailable")
	// ErrNotFound is returned by LoadSingleton when no row has the key.
	ErrNotFound = errors.New("record not found")
)

// Record is one row as the backend returns it. Column names follow the
// backend's own convention; callers normalize them.
type Record map[string]any

// Query selects the most recent rows of a table.
type Query struct {
	Table   string
	OrderBy string
	// OrderAliases are other spellings of OrderBy found in older rows. A row
	// without OrderBy sorts on the first alias it carries. Backends with a
	// fixed schema only have OrderBy and ignore them.
	OrderAliases []string
	// Limit caps the number of rows; zero or negative means no cap.
	Limit int
}

// SortValue returns the value r sorts on under q, or nil when r carries none
// of the order columns.
func (q Query) SortValue(r Record) any {
	if v := r[q.OrderBy]; v != nil {
		return v
	}
	for _, name := range q.OrderAliases {
		if v := r[name]; v != nil {
			return v
		}
	}
	return nil
}

// TableStore is the durable store behind the data access layer.
type TableStore interface {
	// Append inserts one row. Rows are never updated afterwards.
	Append(ctx context.Context, table string, rec Record) error

	// QueryRecent returns rows ordered by q.OrderBy descending.
	QueryRecent(ctx context.Context, q Query) ([]Record, error)

	// UpsertSingleton writes rec under key, replacing any previous row.
	UpsertSingleton(ctx context.Context, table, key string, rec Record) error

	// LoadSingleton reads the row stored under key or returns ErrNotFound.
	LoadSingleton(ctx context.Context, table, key string) (Record, error)

	Close() error
}

// Unavailable marks err as a backend failure for op.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is safe to splice into a query as a
// table or column name.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
