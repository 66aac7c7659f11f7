// Package infra wires the configured table store backend.
package infra

import (
	"context"
	"fmt"

	"github.com/dvloznov/sales-analytics/internal/config"
	infraBQ "github.com/dvloznov/sales-analytics/internal/infra/bigquery"
	infraMongo "github.com/dvloznov/sales-analytics/internal/infra/mongo"
	infraPG "github.com/dvloznov/sales-analytics/internal/infra/postgres"
	"github.com/dvloznov/sales-analytics/internal/store"
	"github.com/dvloznov/sales-analytics/internal/store/memory"
)

// OpenStore returns the TableStore selected by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.TableStore, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return memory.New(), nil
	case config.DriverBigQuery:
		return infraBQ.NewTableStore(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.DatasetID)
	case config.DriverPostgres:
		return infraPG.NewTableStore(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	case config.DriverMongo:
		return infraMongo.NewTableStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	default:
		return nil, fmt.Errorf("OpenStore: unknown driver %q", cfg.Driver)
	}
}
