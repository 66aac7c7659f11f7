// Package reporting assembles dashboard views from the data access layer and
// the pure analytics functions. Every call re-reads the recent window.
package reporting

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/sales-analytics/internal/analytics"
	"github.com/dvloznov/sales-analytics/internal/config"
	"github.com/dvloznov/sales-analytics/internal/domain"
	"github.com/dvloznov/sales-analytics/internal/salesdata"
	"github.com/rs/zerolog"
)

// ErrNoData is returned when the recent window holds no transactions.
var ErrNoData = errors.New("no data available")

// DataQualityOperational is the only alert status the dashboard reports.
const DataQualityOperational = "Operational"

// View sizes and forecast parameters.
const (
	BestSellerCount = 5
	ForecastWindow  = 7
	ForecastHorizon = 3
	ForecastGrowth  = 0.02
)

// SalesReader fetches the recent transaction window.
type SalesReader interface {
	FetchRecent(ctx context.Context, limit int) salesdata.Batch
}

// StatusReader reads the pipeline status flag.
type StatusReader interface {
	Status(ctx context.Context) (domain.PipelineStatus, bool)
}

// InventoryReader produces the reconciled inventory.
type InventoryReader interface {
	Snapshot(ctx context.Context) []domain.InventoryRow
}

// KPIBlock is the headline section of the dashboard.
type KPIBlock struct {
	analytics.KPIs
	PipelineStatus         string `json:"pipeline_status"`
	DataQualityAlertStatus string `json:"data_quality_alert_status"`
	DataQualityAlerts      int    `json:"data_quality_alerts"`
}

// Dashboard is the full dashboard payload.
type Dashboard struct {
	KPI         KPIBlock                 `json:"kpi"`
	Trends      []analytics.TrendPoint   `json:"trends"`
	Channels    []analytics.ChannelTotal `json:"channels"`
	Regions     []analytics.RegionTotal  `json:"regions"`
	Products    []analytics.ProductStat  `json:"products"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// Service builds the read-side views.
type Service struct {
	sales     SalesReader
	status    StatusReader
	inventory InventoryReader
	liveness  time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewService creates a reporting Service.
func NewService(sales SalesReader, status StatusReader, inventory InventoryReader, cfg config.PipelineConfig, log zerolog.Logger) *Service {
	return &Service{
		sales:     sales,
		status:    status,
		inventory: inventory,
		liveness:  cfg.LivenessThreshold,
		now:       time.Now,
		log:       log,
	}
}

// Dashboard computes every dashboard section from one fetch.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	batch := s.sales.FetchRecent(ctx, 0)
	if len(batch.Transactions) == 0 {
		return Dashboard{}, ErrNoData
	}

	txs := batch.Transactions
	now := s.now()
	status, found := s.status.Status(ctx)

	d := Dashboard{
		KPI: KPIBlock{
			KPIs:                   analytics.ComputeKPIs(txs),
			PipelineStatus:         analytics.Liveness(status, found, txs, now, s.liveness),
			DataQualityAlertStatus: DataQualityOperational,
			DataQualityAlerts:      batch.Polyfilled + batch.Skipped,
		},
		Trends:      analytics.DailyTrend(txs),
		Channels:    analytics.ChannelBreakdown(txs),
		Regions:     analytics.RegionBreakdown(txs),
		Products:    analytics.ProductStats(txs),
		GeneratedAt: now,
	}

	s.log.Debug().
		Int("transactions", len(txs)).
		Int("data_quality_alerts", d.KPI.DataQualityAlerts).
		Str("pipeline_status", d.KPI.PipelineStatus).
		Msg("Dashboard computed")
	return d, nil
}

// Inventory returns the reconciled inventory, never nil.
func (s *Service) Inventory(ctx context.Context) []domain.InventoryRow {
	if rows := s.inventory.Snapshot(ctx); rows != nil {
		return rows
	}
	return []domain.InventoryRow{}
}

// BestSellers returns the top products by revenue.
func (s *Service) BestSellers(ctx context.Context) []analytics.ProductStat {
	batch := s.sales.FetchRecent(ctx, 0)
	top := analytics.BestSellers(batch.Transactions, BestSellerCount)
	if top == nil {
		return []analytics.ProductStat{}
	}
	return top
}

// Forecast projects the daily revenue trend a few days ahead.
func (s *Service) Forecast(ctx context.Context) ([]analytics.ForecastPoint, error) {
	batch := s.sales.FetchRecent(ctx, 0)
	if len(batch.Transactions) == 0 {
		return nil, ErrNoData
	}
	trend := analytics.DailyTrend(batch.Transactions)
	return analytics.Forecast(trend, ForecastWindow, ForecastHorizon, ForecastGrowth), nil
}
