package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// codeImmutableField is the server error code for an update touching _id.
const codeImmutableField = 66

// MongoStore talks to a MongoDB server through the official driver. All
// collections live in one database.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to uri and pings the primary so that an unreachable
// server fails here rather than on the first query.
func NewMongoStore(ctx context.Context, uri, database string, timeout time.Duration) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, clientOptions(uri, timeout))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", uri, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping %s: %w", uri, err)
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

// clientOptions applies uri. A positive timeout caps server selection and
// connection setup; zero keeps the driver defaults.
func clientOptions(uri string, timeout time.Duration) *options.ClientOptions {
	opts := options.Client().ApplyURI(uri)
	if timeout > 0 {
		opts.SetServerSelectionTimeout(timeout).SetConnectTimeout(timeout)
	}
	return opts
}

func (s *MongoStore) Count(ctx context.Context, collection string, filter any) (int64, error) {
	return s.db.Collection(collection).CountDocuments(ctx, orEmpty(filter))
}

func (s *MongoStore) Drop(ctx context.Context, collection string) error {
	return s.db.Collection(collection).Drop(ctx)
}

func (s *MongoStore) InsertMany(ctx context.Context, collection string, docs []any) ([]any, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyInsert
	}
	res, err := s.db.Collection(collection).InsertMany(ctx, docs)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateKey, err)
		}
		return nil, err
	}
	return res.InsertedIDs, nil
}

func (s *MongoStore) Find(ctx context.Context, collection string, filter any, opts FindOptions) ([]bson.M, error) {
	fo := options.Find()
	if len(opts.Sort) > 0 {
		fo.SetSort(opts.Sort)
	}
	if len(opts.Projection) > 0 {
		fo.SetProjection(opts.Projection)
	}
	if opts.Skip != 0 {
		fo.SetSkip(opts.Skip)
	}
	if opts.Limit != 0 {
		fo.SetLimit(opts.Limit)
	}
	cur, err := s.db.Collection(collection).Find(ctx, orEmpty(filter), fo)
	if err != nil {
		return nil, err
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *MongoStore) UpdateOne(ctx context.Context, collection string, filter, update any) (UpdateResult, error) {
	res, err := s.db.Collection(collection).UpdateOne(ctx, orEmpty(filter), update)
	if err != nil {
		var se mongo.ServerError
		if errors.As(err, &se) && se.HasErrorCode(codeImmutableField) {
			return UpdateResult{}, fmt.Errorf("%w: %w", ErrImmutableID, err)
		}
		return UpdateResult{}, err
	}
	return UpdateResult{MatchedCount: res.MatchedCount, ModifiedCount: res.ModifiedCount}, nil
}

func (s *MongoStore) DeleteOne(ctx context.Context, collection string, filter any) (int64, error) {
	res, err := s.db.Collection(collection).DeleteOne(ctx, orEmpty(filter))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) Aggregate(ctx context.Context, collection string, pipeline []bson.D) ([]bson.M, error) {
	cur, err := s.db.Collection(collection).Aggregate(ctx, mongo.Pipeline(pipeline))
	if err != nil {
		return nil, err
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *MongoStore) CreateIndex(ctx context.Context, collection string, keys bson.D) (string, error) {
	return s.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys})
}

func (s *MongoStore) ListIndexes(ctx context.Context, collection string) ([]IndexSpec, error) {
	specs, err := s.db.Collection(collection).Indexes().ListSpecifications(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]IndexSpec, 0, len(specs))
	for _, sp := range specs {
		var keys bson.D
		if err := bson.Unmarshal(sp.KeysDocument, &keys); err != nil {
			return nil, fmt.Errorf("decode index %s: %w", sp.Name, err)
		}
		out = append(out, IndexSpec{Name: sp.Name, Keys: keys})
	}
	return out, nil
}

// Explain runs the explain command for a find with executionStats verbosity.
func (s *MongoStore) Explain(ctx context.Context, collection string, filter any) (*ExplainStats, error) {
	cmd := bson.D{
		{Key: "explain", Value: bson.D{
			{Key: "find", Value: collection},
			{Key: "filter", Value: orEmpty(filter)},
		}},
		{Key: "verbosity", Value: "executionStats"},
	}
	var out struct {
		ExecutionStats ExplainStats `bson:"executionStats"`
	}
	if err := s.db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}
	return &out.ExecutionStats, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// orEmpty turns a nil filter into an empty document; the driver rejects nil.
func orEmpty(filter any) any {
	if filter == nil {
		return bson.D{}
	}
	return filter
}
