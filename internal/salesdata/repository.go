// Package salesdata is the data access layer between the table store and the
// rest of the system. It owns the translation from stored rows to canonical
// domain values.
package salesdata

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dvloznov/sales-analytics/internal/config"
	"github.com/dvloznov/sales-analytics/internal/domain"
	"github.com/dvloznov/sales-analytics/internal/store"
	"github.com/rs/zerolog"
)

// PipelineStatusKey is the key of the single pipeline status row.
const PipelineStatusKey = "pipeline"

// Batch is the result of one fetch of the recent window.
type Batch struct {
	Transactions []domain.Transaction
	// Polyfilled counts rows that needed at least one defaulted field.
	Polyfilled int
	// Skipped counts rows that could not be normalized at all.
	Skipped int
}

// Repository reads and writes the sales tables.
type Repository struct {
	store    store.TableStore
	limit    int
	defaults Defaults
	log      zerolog.Logger
}

// NewRepository creates a Repository over s.
func NewRepository(s store.TableStore, cfg config.DataConfig, log zerolog.Logger) *Repository {
	return &Repository{
		store: s,
		limit: cfg.FetchLimit,
		defaults: Defaults{
			Channel:   cfg.DefaultChannel,
			CostRatio: cfg.CostRatio,
		},
		log: log,
	}
}

// FetchRecent reads up to limit transactions, newest first. A non-positive
// limit uses the configured default. A store failure yields an empty batch.
func (r *Repository) FetchRecent(ctx context.Context, limit int) Batch {
	if limit <= 0 {
		limit = r.limit
	}

	rows, err := r.store.QueryRecent(ctx, store.Query{
		Table:        store.TableSales,
		OrderBy:      FieldTimestamp,
		OrderAliases: legacyNames(FieldTimestamp),
		Limit:        limit,
	})
	if err != nil {
		r.log.Warn().Err(err).Msg("Sales store unavailable, treating as no data")
		return Batch{}
	}

	batch := Batch{Transactions: make([]domain.Transaction, 0, len(rows))}
	for _, rec := range rows {
		tx, polyfilled, err := normalizeTransaction(rec, r.defaults)
		if err != nil {
			batch.Skipped++
			r.log.Warn().Err(err).Msg("Skipping malformed sales row")
			continue
		}
		if polyfilled {
			batch.Polyfilled++
		}
		batch.Transactions = append(batch.Transactions, tx)
	}

	sort.SliceStable(batch.Transactions, func(i, j int) bool {
		return batch.Transactions[i].Timestamp.After(batch.Transactions[j].Timestamp)
	})
	return batch
}

// FetchRecentTransactions is FetchRecent without the quality counters.
func (r *Repository) FetchRecentTransactions(ctx context.Context, limit int) []domain.Transaction {
	return r.FetchRecent(ctx, limit).Transactions
}

// AppendTransaction writes tx in the storage naming convention.
func (r *Repository) AppendTransaction(ctx context.Context, tx domain.Transaction) error {
	if err := r.store.Append(ctx, store.TableSales, transactionRecord(tx)); err != nil {
		return fmt.Errorf("AppendTransaction: %w", err)
	}
	return nil
}

// LatestTransactionID returns the highest stored transaction id, 0 when the
// table is empty. Unlike the read paths, store failures are returned so the
// generator does not reuse ids.
func (r *Repository) LatestTransactionID(ctx context.Context) (int64, error) {
	rows, err := r.store.QueryRecent(ctx, store.Query{
		Table:        store.TableSales,
		OrderBy:      FieldTransactionID,
		OrderAliases: legacyNames(FieldTransactionID),
		Limit:        1,
	})
	if err != nil {
		return 0, fmt.Errorf("LatestTransactionID: %w", err)
	}

	var latest int64
	for _, rec := range rows {
		v, ok := canonicalize(rec)[FieldTransactionID]
		if !ok {
			continue
		}
		id, err := toInt64(v)
		if err != nil {
			continue
		}
		if id > latest {
			latest = id
		}
	}
	return latest, nil
}

// ListRestocks returns the whole restock ledger. A store failure yields an
// empty ledger.
func (r *Repository) ListRestocks(ctx context.Context) []domain.RestockEntry {
	rows, err := r.store.QueryRecent(ctx, store.Query{
		Table:        store.TableRestocks,
		OrderBy:      FieldTimestamp,
		OrderAliases: legacyNames(FieldTimestamp),
	})
	if err != nil {
		r.log.Warn().Err(err).Msg("Restock ledger unavailable, treating as empty")
		return nil
	}

	entries := make([]domain.RestockEntry, 0, len(rows))
	for _, rec := range rows {
		e, err := normalizeRestock(rec)
		if err != nil {
			r.log.Warn().Err(err).Msg("Skipping malformed restock row")
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// AppendRestock adds one entry to the ledger.
func (r *Repository) AppendRestock(ctx context.Context, e domain.RestockEntry) error {
	if err := r.store.Append(ctx, store.TableRestocks, restockRecord(e)); err != nil {
		return fmt.Errorf("AppendRestock: %w", err)
	}
	return nil
}

// LoadPipelineStatus reads the status row. found is false when it was never
// written.
func (r *Repository) LoadPipelineStatus(ctx context.Context) (status domain.PipelineStatus, found bool, err error) {
	rec, err := r.store.LoadSingleton(ctx, store.TablePipelineStatus, PipelineStatusKey)
	if errors.Is(err, store.ErrNotFound) {
		return domain.PipelineStatus{}, false, nil
	}
	if err != nil {
		return domain.PipelineStatus{}, false, fmt.Errorf("LoadPipelineStatus: %w", err)
	}

	status, err = normalizeStatus(rec)
	if err != nil {
		return domain.PipelineStatus{}, false, fmt.Errorf("LoadPipelineStatus: %w", err)
	}
	return status, true, nil
}

// SavePipelineStatus overwrites the status row.
func (r *Repository) SavePipelineStatus(ctx context.Context, s domain.PipelineStatus) error {
	rec := store.Record{
		FieldActive:    s.Active,
		FieldUpdatedAt: s.UpdatedAt,
	}
	if err := r.store.UpsertSingleton(ctx, store.TablePipelineStatus, PipelineStatusKey, rec); err != nil {
		return fmt.Errorf("SavePipelineStatus: %w", err)
	}
	return nil
}
