package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/sales-analytics/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TableStore is the MongoDB implementation of store.TableStore. Each table is
// a collection; singleton rows use their key as _id.
type TableStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewTableStore connects to uri and verifies the connection.
func NewTableStore(ctx context.Context, uri, database string) (*TableStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("NewTableStore: connecting: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("NewTableStore: ping: %w", err)
	}
	return &TableStore{client: client, db: client.Database(database)}, nil
}

// Close disconnects the client.
func (s *TableStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Append implements store.TableStore.
func (s *TableStore) Append(ctx context.Context, table string, rec store.Record) error {
	if _, err := s.db.Collection(table).InsertOne(ctx, toDocument(rec)); err != nil {
		return store.Unavailable("Append: insert", err)
	}
	return nil
}

// QueryRecent implements store.TableStore. With order aliases the sort runs
// in an aggregation over the first present spelling.
func (s *TableStore) QueryRecent(ctx context.Context, q store.Query) ([]store.Record, error) {
	coll := s.db.Collection(q.Table)

	var (
		cursor *mongo.Cursor
		err    error
	)
	if q.OrderBy != "" && len(q.OrderAliases) > 0 {
		pipeline, perr := recentPipeline(q)
		if perr != nil {
			return nil, fmt.Errorf("QueryRecent: %w", perr)
		}
		cursor, err = coll.Aggregate(ctx, pipeline)
	} else {
		opts := options.Find()
		if q.OrderBy != "" {
			opts.SetSort(bson.D{{Key: q.OrderBy, Value: -1}})
		}
		if q.Limit > 0 {
			opts.SetLimit(int64(q.Limit))
		}
		cursor, err = coll.Find(ctx, bson.D{}, opts)
	}
	if err != nil {
		return nil, store.Unavailable("QueryRecent: find", err)
	}
	defer cursor.Close(ctx)

	var out []store.Record
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, store.Unavailable("QueryRecent: decode", err)
		}
		out = append(out, fromDocument(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, store.Unavailable("QueryRecent: cursor", err)
	}
	return out, nil
}

// sortKeyField holds the resolved sort value inside the aggregation.
const sortKeyField = "_sort_key"

// recentPipeline sorts on $ifNull(OrderBy, alias1, ...) descending, limits,
// and drops the helper field again.
func recentPipeline(q store.Query) (mongo.Pipeline, error) {
	cols := append([]string{q.OrderBy}, q.OrderAliases...)
	for _, c := range cols {
		if !store.ValidIdentifier(c) {
			return nil, fmt.Errorf("invalid order column %q", c)
		}
	}

	var key any = "$" + cols[len(cols)-1]
	for i := len(cols) - 2; i >= 0; i-- {
		key = bson.D{{Key: "$ifNull", Value: bson.A{"$" + cols[i], key}}}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$addFields", Value: bson.D{{Key: sortKeyField, Value: key}}}},
		{{Key: "$sort", Value: bson.D{{Key: sortKeyField, Value: -1}}}},
	}
	if q.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: int64(q.Limit)}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$project", Value: bson.D{{Key: sortKeyField, Value: 0}}}})
	return pipeline, nil
}

// UpsertSingleton implements store.TableStore.
func (s *TableStore) UpsertSingleton(ctx context.Context, table, key string, rec store.Record) error {
	doc := toDocument(rec)
	doc[store.KeyField] = key

	_, err := s.db.Collection(table).UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return store.Unavailable("UpsertSingleton: update", err)
	}
	return nil
}

// LoadSingleton implements store.TableStore.
func (s *TableStore) LoadSingleton(ctx context.Context, table, key string) (store.Record, error) {
	var doc bson.M
	err := s.db.Collection(table).FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("LoadSingleton: %s/%s: %w", table, key, store.ErrNotFound)
	}
	if err != nil {
		return nil, store.Unavailable("LoadSingleton: find", err)
	}
	return fromDocument(doc), nil
}

func toDocument(rec store.Record) bson.M {
	doc := make(bson.M, len(rec))
	for k, v := range rec {
		doc[k] = v
	}
	return doc
}

// fromDocument drops _id and converts BSON-specific value types to plain Go.
func fromDocument(doc bson.M) store.Record {
	rec := make(store.Record, len(doc))
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		switch val := v.(type) {
		case primitive.DateTime:
			rec[k] = val.Time()
		case primitive.Decimal128:
			rec[k] = val.String()
		default:
			rec[k] = val
		}
	}
	return rec
}

var _ store.TableStore = (*TableStore)(nil)
