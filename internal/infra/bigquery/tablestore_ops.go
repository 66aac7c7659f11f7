package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/sales-analytics/internal/store"
	"google.golang.org/api/iterator"
)

// rowSaver lets a store.Record go through the streaming inserter.
type rowSaver store.Record

// Save implements bigquery.ValueSaver. An empty insert ID lets the client
// pick one.
func (r rowSaver) Save() (map[string]bigquery.Value, string, error) {
	row := make(map[string]bigquery.Value, len(r))
	for k, v := range r {
		row[k] = v
	}
	return row, "", nil
}

// AppendWithClient streams one row into dataset.table.
func AppendWithClient(ctx context.Context, client *bigquery.Client, d Dataset, table string, rec store.Record) error {
	if err := checkIdentifiers(table); err != nil {
		return fmt.Errorf("Append: %w", err)
	}

	inserter := client.DatasetInProject(d.ProjectID, d.DatasetID).Table(table).Inserter()
	if err := inserter.Put(ctx, rowSaver(rec)); err != nil {
		return store.Unavailable("Append: inserting row", err)
	}
	return nil
}

// QueryRecentWithClient reads the newest rows of q.Table.
func QueryRecentWithClient(ctx context.Context, client *bigquery.Client, d Dataset, q store.Query) ([]store.Record, error) {
	sql, err := recentSQL(d, q)
	if err != nil {
		return nil, fmt.Errorf("QueryRecent: %w", err)
	}

	query := client.Query(sql)
	if q.Limit > 0 {
		query.Parameters = []bigquery.QueryParameter{
			{Name: "limit", Value: q.Limit},
		}
	}

	it, err := query.Read(ctx)
	if err != nil {
		return nil, store.Unavailable("QueryRecent: query read", err)
	}

	var rows []store.Record
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, store.Unavailable("QueryRecent: iter next", err)
		}
		rows = append(rows, toRecord(row))
	}

	return rows, nil
}

// UpsertSingletonWithClient replaces the row keyed by key with a MERGE.
func UpsertSingletonWithClient(ctx context.Context, client *bigquery.Client, d Dataset, table, key string, rec store.Record) error {
	sql, cols, err := mergeSQL(d, table, rec)
	if err != nil {
		return fmt.Errorf("UpsertSingleton: %w", err)
	}

	q := client.Query(sql)
	for _, c := range cols {
		v := any(key)
		if c != store.KeyField {
			v = rec[c]
		}
		q.Parameters = append(q.Parameters, bigquery.QueryParameter{Name: c, Value: v})
	}

	job, err := q.Run(ctx)
	if err != nil {
		return store.Unavailable("UpsertSingleton: running merge", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return store.Unavailable("UpsertSingleton: waiting for job", err)
	}
	if err := status.Err(); err != nil {
		return store.Unavailable("UpsertSingleton: job error", err)
	}

	return nil
}

// LoadSingletonWithClient reads the row keyed by key.
func LoadSingletonWithClient(ctx context.Context, client *bigquery.Client, d Dataset, table, key string) (store.Record, error) {
	sql, err := singletonSQL(d, table)
	if err != nil {
		return nil, fmt.Errorf("LoadSingleton: %w", err)
	}

	q := client.Query(sql)
	q.Parameters = []bigquery.QueryParameter{
		{Name: store.KeyField, Value: key},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, store.Unavailable("LoadSingleton: query read", err)
	}

	var row map[string]bigquery.Value
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, fmt.Errorf("LoadSingleton: %s/%s: %w", table, key, store.ErrNotFound)
	}
	if err != nil {
		return nil, store.Unavailable("LoadSingleton: iter next", err)
	}

	return toRecord(row), nil
}

func toRecord(row map[string]bigquery.Value) store.Record {
	rec := make(store.Record, len(row))
	for k, v := range row {
		rec[k] = v
	}
	return rec
}
