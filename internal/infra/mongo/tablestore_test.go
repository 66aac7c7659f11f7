package mongo

import (
	"testing"
	"time"

	"github.com/dvloznov/sales-analytics/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFromDocument(t *testing.T) {
	ts := time.Date(2024, 3, 5, 12, 30, 0, 0, time.UTC)
	doc := bson.M{
		"_id":         primitive.NewObjectID(),
		"timestamp":   primitive.NewDateTimeFromTime(ts),
		"quantity":    int64(4),
		"total_price": 99.5,
		"product_id":  "Silk Scarf",
	}

	rec := fromDocument(doc)

	assert.NotContains(t, rec, "_id")
	assert.True(t, ts.Equal(rec["timestamp"].(time.Time)))
	assert.Equal(t, int64(4), rec["quantity"])
	assert.Equal(t, 99.5, rec["total_price"])
	assert.Equal(t, "Silk Scarf", rec["product_id"])
}

func TestToDocument_Copies(t *testing.T) {
	rec := store.Record{"active": true}
	doc := toDocument(rec)
	doc["active"] = false

	assert.Equal(t, true, rec["active"])
}

func TestRecentPipeline_ResolvesAliases(t *testing.T) {
	pipeline, err := recentPipeline(store.Query{
		Table:        "sales_data",
		OrderBy:      "timestamp",
		OrderAliases: []string{"Timestamp"},
		Limit:        5,
	})
	require.NoError(t, err)
	require.Len(t, pipeline, 4)

	wantKey := bson.D{{Key: "$ifNull", Value: bson.A{"$timestamp", "$Timestamp"}}}
	assert.Equal(t, bson.D{{Key: "$addFields", Value: bson.D{{Key: sortKeyField, Value: wantKey}}}}, pipeline[0])
	assert.Equal(t, bson.D{{Key: "$sort", Value: bson.D{{Key: sortKeyField, Value: -1}}}}, pipeline[1])
	assert.Equal(t, bson.D{{Key: "$limit", Value: int64(5)}}, pipeline[2])
	assert.Equal(t, bson.D{{Key: "$project", Value: bson.D{{Key: sortKeyField, Value: 0}}}}, pipeline[3])
}

func TestRecentPipeline_NestsInOrder(t *testing.T) {
	pipeline, err := recentPipeline(store.Query{
		Table:        "sales_data",
		OrderBy:      "transaction_id",
		OrderAliases: []string{"TransactionID", "transactionid"},
	})
	require.NoError(t, err)
	require.Len(t, pipeline, 3, "no $limit stage without a limit")

	inner := bson.D{{Key: "$ifNull", Value: bson.A{"$TransactionID", "$transactionid"}}}
	want := bson.D{{Key: "$ifNull", Value: bson.A{"$transaction_id", inner}}}
	assert.Equal(t, bson.D{{Key: "$addFields", Value: bson.D{{Key: sortKeyField, Value: want}}}}, pipeline[0])
}

func TestRecentPipeline_RejectsBadAlias(t *testing.T) {
	_, err := recentPipeline(store.Query{Table: "sales_data", OrderBy: "timestamp", OrderAliases: []string{"$where"}})
	assert.Error(t, err)
}
