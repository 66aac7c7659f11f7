package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/sales-analytics/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TableStore is the Postgres implementation of store.TableStore.
type TableStore struct {
	pool *pgxpool.Pool
}

// NewTableStore connects a pool to dsn and creates the sales tables if needed.
func NewTableStore(ctx context.Context, dsn string, maxConns int32) (*TableStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewTableStore: parsing dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("NewTableStore: connecting: %w", err)
	}

	s := &TableStore{pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema runs the idempotent DDL from Schema.
func (s *TableStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema()); err != nil {
		return store.Unavailable("EnsureSchema", err)
	}
	return nil
}

// Close releases the pool.
func (s *TableStore) Close() error {
	s.pool.Close()
	return nil
}

// Append implements store.TableStore.
func (s *TableStore) Append(ctx context.Context, table string, rec store.Record) error {
	sql, args, err := insertSQL(table, rec)
	if err != nil {
		return fmt.Errorf("Append: %w", err)
	}
	if _, err := s.pool.Exec(ctx, sql, args...); err != nil {
		return store.Unavailable("Append: inserting row", err)
	}
	return nil
}

// QueryRecent implements store.TableStore.
func (s *TableStore) QueryRecent(ctx context.Context, q store.Query) ([]store.Record, error) {
	sql, args, err := recentSQL(q)
	if err != nil {
		return nil, fmt.Errorf("QueryRecent: %w", err)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, store.Unavailable("QueryRecent: query", err)
	}
	defer rows.Close()

	out, err := collectRecords(rows)
	if err != nil {
		return nil, store.Unavailable("QueryRecent: scanning", err)
	}
	return out, nil
}

// UpsertSingleton implements store.TableStore with INSERT ... ON CONFLICT.
func (s *TableStore) UpsertSingleton(ctx context.Context, table, key string, rec store.Record) error {
	row := rec.Clone()
	row[store.KeyField] = key

	sql, args, err := upsertSQL(table, row)
	if err != nil {
		return fmt.Errorf("UpsertSingleton: %w", err)
	}
	if _, err := s.pool.Exec(ctx, sql, args...); err != nil {
		return store.Unavailable("UpsertSingleton: upserting row", err)
	}
	return nil
}

// LoadSingleton implements store.TableStore.
func (s *TableStore) LoadSingleton(ctx context.Context, table, key string) (store.Record, error) {
	if !store.ValidIdentifier(table) {
		return nil, fmt.Errorf("LoadSingleton: invalid table %q", table)
	}

	sql := fmt.Sprintf("SELECT * FROM %s WHERE %s = $1 LIMIT 1",
		pgx.Identifier{table}.Sanitize(), pgx.Identifier{store.KeyField}.Sanitize())

	rows, err := s.pool.Query(ctx, sql, key)
	if err != nil {
		return nil, store.Unavailable("LoadSingleton: query", err)
	}
	defer rows.Close()

	out, err := collectRecords(rows)
	if err != nil {
		return nil, store.Unavailable("LoadSingleton: scanning", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("LoadSingleton: %s/%s: %w", table, key, store.ErrNotFound)
	}
	return out[0], nil
}

func collectRecords(rows pgx.Rows) ([]store.Record, error) {
	var out []store.Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		fields := rows.FieldDescriptions()
		rec := make(store.Record, len(fields))
		for i, f := range fields {
			rec[f.Name] = values[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func sortedColumns(rec store.Record) ([]string, error) {
	cols := make([]string, 0, len(rec))
	for c := range rec {
		if !store.ValidIdentifier(c) {
			return nil, fmt.Errorf("invalid column %q", c)
		}
		cols = append(cols, c)
	}
	if len(cols) == 0 {
		return nil, errors.New("record has no columns")
	}
	sort.Strings(cols)
	return cols, nil
}

func insertSQL(table string, rec store.Record) (string, []any, error) {
	if !store.ValidIdentifier(table) {
		return "", nil, fmt.Errorf("invalid table %q", table)
	}
	cols, err := sortedColumns(rec)
	if err != nil {
		return "", nil, err
	}

	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = rec[c]
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{table}.Sanitize(), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	return sql, args, nil
}

func upsertSQL(table string, rec store.Record) (string, []any, error) {
	sql, args, err := insertSQL(table, rec)
	if err != nil {
		return "", nil, err
	}
	cols, _ := sortedColumns(rec)

	var sets []string
	for _, c := range cols {
		if c == store.KeyField {
			continue
		}
		q := pgx.Identifier{c}.Sanitize()
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
	}

	conflict := pgx.Identifier{store.KeyField}.Sanitize()
	if len(sets) == 0 {
		return fmt.Sprintf("%s ON CONFLICT (%s) DO NOTHING", sql, conflict), args, nil
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s", sql, conflict, strings.Join(sets, ", ")), args, nil
}

func recentSQL(q store.Query) (string, []any, error) {
	if !store.ValidIdentifier(q.Table) {
		return "", nil, fmt.Errorf("invalid table %q", q.Table)
	}

	var b strings.Builder
	var args []any
	fmt.Fprintf(&b, "SELECT * FROM %s", pgx.Identifier{q.Table}.Sanitize())
	if q.OrderBy != "" {
		if !store.ValidIdentifier(q.OrderBy) {
			return "", nil, fmt.Errorf("invalid order column %q", q.OrderBy)
		}
		fmt.Fprintf(&b, " ORDER BY %s DESC", pgx.Identifier{q.OrderBy}.Sanitize())
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT $1")
		args = append(args, q.Limit)
	}
	return b.String(), args, nil
}

var _ store.TableStore = (*TableStore)(nil)
