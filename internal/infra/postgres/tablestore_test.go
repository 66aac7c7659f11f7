package postgres

import (
	"testing"

	"github.com/dvloznov/sales-analytics/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertSQL(t *testing.T) {
	sql, args, err := insertSQL("restock_ledger", store.Record{
		"quantity":   int64(5),
		"product_id": "Beanie Hat",
	})
	require.NoError(t, err)

	assert.Equal(t, `INSERT INTO "restock_ledger" ("product_id", "quantity") VALUES ($1, $2)`, sql)
	assert.Equal(t, []any{"Beanie Hat", int64(5)}, args)
}

func TestInsertSQL_Rejects(t *testing.T) {
	_, _, err := insertSQL("restock ledger", store.Record{"a": 1})
	assert.Error(t, err)

	_, _, err = insertSQL("restock_ledger", store.Record{"a;b": 1})
	assert.Error(t, err)

	_, _, err = insertSQL("restock_ledger", store.Record{})
	assert.Error(t, err)
}

func TestUpsertSQL(t *testing.T) {
	sql, args, err := upsertSQL("pipeline_status", store.Record{
		"id":     "pipeline",
		"active": false,
	})
	require.NoError(t, err)

	assert.Equal(t,
		`INSERT INTO "pipeline_status" ("active", "id") VALUES ($1, $2) ON CONFLICT ("id") DO UPDATE SET "active" = EXCLUDED."active"`,
		sql)
	assert.Equal(t, []any{false, "pipeline"}, args)
}

func TestRecentSQL(t *testing.T) {
	sql, args, err := recentSQL(store.Query{Table: "sales_data", OrderBy: "timestamp", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "sales_data" ORDER BY "timestamp" DESC LIMIT $1`, sql)
	assert.Equal(t, []any{10}, args)

	sql, args, err = recentSQL(store.Query{Table: "restock_ledger"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "restock_ledger"`, sql)
	assert.Empty(t, args)
}

func TestSchema_CreatesAllTables(t *testing.T) {
	ddl := Schema()
	for _, table := range []string{store.TableSales, store.TableRestocks, store.TablePipelineStatus} {
		assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS "+table)
	}
}
