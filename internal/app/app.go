// Package app builds the shared service graph used by the binaries.
package app

import (
	"context"
	"fmt"

	"github.com/dvloznov/sales-analytics/internal/config"
	"github.com/dvloznov/sales-analytics/internal/infra"
	"github.com/dvloznov/sales-analytics/internal/inventory"
	"github.com/dvloznov/sales-analytics/internal/metrics"
	"github.com/dvloznov/sales-analytics/internal/pipeline"
	"github.com/dvloznov/sales-analytics/internal/reporting"
	"github.com/dvloznov/sales-analytics/internal/salesdata"
	"github.com/dvloznov/sales-analytics/internal/store"
	"github.com/rs/zerolog"
)

// App is the wired set of services over one table store.
type App struct {
	Config    config.Config
	Log       zerolog.Logger
	Metrics   *metrics.Metrics
	Store     store.TableStore
	Repo      *salesdata.Repository
	Flag      *pipeline.StatusFlag
	Generator *pipeline.Generator
	Inventory *inventory.Service
	Reports   *reporting.Service
}

// New opens the configured store and builds every service on top of it.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	s, err := infra.OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("app.New: open store: %w", err)
	}
	return NewWithStore(s, cfg, log), nil
}

// NewWithStore builds the services over an already opened store.
func NewWithStore(s store.TableStore, cfg config.Config, log zerolog.Logger) *App {
	m := metrics.New()
	repo := salesdata.NewRepository(s, cfg.Data, log)
	flag := pipeline.NewStatusFlag(repo, log)
	inv := inventory.NewService(repo, repo, cfg.Generator, cfg.Inventory, log)

	return &App{
		Config:    cfg,
		Log:       log,
		Metrics:   m,
		Store:     s,
		Repo:      repo,
		Flag:      flag,
		Generator: pipeline.NewGenerator(cfg.Generator, repo, flag, m, log.With().Str("component", "generator").Logger()),
		Inventory: inv,
		Reports:   reporting.NewService(repo, flag, inv, cfg.Pipeline, log),
	}
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}
