package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/sales-analytics/internal/store"
	"google.golang.org/api/option"
)

// TableStore is the BigQuery implementation of store.TableStore. It holds a
// shared client and delegates to the *WithClient functions.
type TableStore struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewTableStore creates a TableStore with its own BigQuery client.
func NewTableStore(ctx context.Context, projectID, datasetID string, opts ...option.ClientOption) (*TableStore, error) {
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewTableStore: creating client: %w", err)
	}
	return &TableStore{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection.
func (s *TableStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Append delegates to AppendWithClient.
func (s *TableStore) Append(ctx context.Context, table string, rec store.Record) error {
	return AppendWithClient(ctx, s.client, s.datasetRef(), table, rec)
}

// QueryRecent delegates to QueryRecentWithClient.
func (s *TableStore) QueryRecent(ctx context.Context, q store.Query) ([]store.Record, error) {
	return QueryRecentWithClient(ctx, s.client, s.datasetRef(), q)
}

// UpsertSingleton delegates to UpsertSingletonWithClient.
func (s *TableStore) UpsertSingleton(ctx context.Context, table, key string, rec store.Record) error {
	return UpsertSingletonWithClient(ctx, s.client, s.datasetRef(), table, key, rec)
}

// LoadSingleton delegates to LoadSingletonWithClient.
func (s *TableStore) LoadSingleton(ctx context.Context, table, key string) (store.Record, error) {
	return LoadSingletonWithClient(ctx, s.client, s.datasetRef(), table, key)
}

func (s *TableStore) datasetRef() Dataset {
	return Dataset{ProjectID: s.projectID, DatasetID: s.datasetID}
}

var _ store.TableStore = (*TableStore)(nil)
