// Package inventory reconciles units sold against the restock ledger.
package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/sales-analytics/internal/config"
	"github.com/dvloznov/sales-analytics/internal/domain"
	"github.com/rs/zerolog"
)

// Compute returns one row per catalog product, lowest remaining stock first.
// Products with equal remaining stock keep catalog order.
func Compute(txs []domain.Transaction, ledger []domain.RestockEntry, catalog []string, baseStock, lowStockThreshold int64) []domain.InventoryRow {
	sold := make(map[string]int64, len(catalog))
	for _, tx := range txs {
		sold[tx.ProductID] += tx.Quantity
	}
	added := make(map[string]int64, len(catalog))
	for _, e := range ledger {
		added[e.ProductID] += e.Quantity
	}

	rows := make([]domain.InventoryRow, len(catalog))
	for i, name := range catalog {
		initial := baseStock + added[name]
		balance := initial - sold[name]

		row := domain.InventoryRow{
			ID:           i + 1,
			Name:         name,
			Sold:         sold[name],
			Added:        added[name],
			InitialStock: initial,
			Remaining:    max(0, balance),
		}
		switch {
		case balance <= 0:
			row.Status = domain.StatusOutOfStock
		case row.Remaining < lowStockThreshold:
			row.Status = domain.StatusLowStock
		default:
			row.Status = domain.StatusInStock
		}
		rows[i] = row
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Remaining < rows[j].Remaining
	})
	return rows
}

// SalesSource supplies the recent transaction window.
type SalesSource interface {
	FetchRecentTransactions(ctx context.Context, limit int) []domain.Transaction
}

// Ledger is the append-only restock log.
type Ledger interface {
	ListRestocks(ctx context.Context) []domain.RestockEntry
	AppendRestock(ctx context.Context, e domain.RestockEntry) error
}

// Service serves inventory reads and restock writes.
type Service struct {
	sales     SalesSource
	ledger    Ledger
	catalog   []string
	known     map[string]bool
	baseStock int64
	threshold int64
	now       func() time.Time
	log       zerolog.Logger
}

// NewService creates an inventory Service.
func NewService(sales SalesSource, ledger Ledger, gen config.GeneratorConfig, inv config.InventoryConfig, log zerolog.Logger) *Service {
	known := make(map[string]bool, len(gen.Catalog))
	for _, name := range gen.Catalog {
		known[name] = true
	}
	return &Service{
		sales:     sales,
		ledger:    ledger,
		catalog:   append([]string(nil), gen.Catalog...),
		known:     known,
		baseStock: inv.BaseStock,
		threshold: inv.LowStockThreshold,
		now:       time.Now,
		log:       log,
	}
}

// Snapshot fetches sales and the ledger and reconciles them. With no sales in
// the window there is nothing to report and the result is empty.
func (s *Service) Snapshot(ctx context.Context) []domain.InventoryRow {
	txs := s.sales.FetchRecentTransactions(ctx, 0)
	if len(txs) == 0 {
		return []domain.InventoryRow{}
	}
	ledger := s.ledger.ListRestocks(ctx)
	return Compute(txs, ledger, s.catalog, s.baseStock, s.threshold)
}

// AddRestock appends a ledger entry. Invalid input returns an error wrapping
// domain.ErrInvalidInput and leaves the ledger untouched.
func (s *Service) AddRestock(ctx context.Context, productID string, quantity int64) (domain.RestockEntry, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.RestockEntry{}, fmt.Errorf("AddRestock: product_id is required: %w", domain.ErrInvalidInput)
	}
	if quantity <= 0 {
		return domain.RestockEntry{}, fmt.Errorf("AddRestock: quantity must be positive, got %d: %w", quantity, domain.ErrInvalidInput)
	}
	if !s.known[productID] {
		return domain.RestockEntry{}, fmt.Errorf("AddRestock: unknown product %q: %w", productID, domain.ErrInvalidInput)
	}

	entry := domain.RestockEntry{
		ProductID: productID,
		Quantity:  quantity,
		Timestamp: s.now(),
	}
	if err := s.ledger.AppendRestock(ctx, entry); err != nil {
		return domain.RestockEntry{}, fmt.Errorf("AddRestock: %w", err)
	}

	s.log.Info().
		Str("product_id", productID).
		Int64("quantity", quantity).
		Msg("Restock recorded")
	return entry, nil
}
