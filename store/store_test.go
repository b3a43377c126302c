package store_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stevemurr/plp-bookstore/store"
)

func shelf() []any {
	return []any{
		bson.M{"title": "Verity", "author": "Colleen Hoover", "genre": "Psychological thriller", "published_year": 2018, "price": 10.99},
		bson.M{"title": "Ugly Love", "author": "Colleen Hoover", "genre": "Romance", "published_year": 2014, "price": 12.99},
		bson.M{"title": "Twisted Love", "author": "Ana Huang", "genre": "Romance", "published_year": 2021, "price": 7.99},
	}
}

// runStoreTests runs a common test suite against any Store implementation.
func runStoreTests(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("Count empty", func(t *testing.T) {
		n, err := s.Count(ctx, "books", nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("InsertMany assigns ids", func(t *testing.T) {
		ids, err := s.InsertMany(ctx, "books", shelf())
		require.NoError(t, err)
		require.Len(t, ids, 3)
		for _, id := range ids {
			assert.IsType(t, primitive.ObjectID{}, id)
		}
		n, err := s.Count(ctx, "books", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("InsertMany empty", func(t *testing.T) {
		_, err := s.InsertMany(ctx, "books", nil)
		assert.ErrorIs(t, err, store.ErrEmptyInsert)
	})

	t.Run("InsertMany duplicate id", func(t *testing.T) {
		docs, err := s.Find(ctx, "books", nil, store.FindOptions{Limit: 1})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		_, err = s.InsertMany(ctx, "books", []any{bson.M{"_id": docs[0]["_id"], "title": "dup"}})
		assert.ErrorIs(t, err, store.ErrDuplicateKey)
	})

	t.Run("Find keeps insertion order", func(t *testing.T) {
		docs, err := s.Find(ctx, "books", nil, store.FindOptions{})
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, "Verity", docs[0]["title"])
		assert.Equal(t, "Twisted Love", docs[2]["title"])
	})

	t.Run("Find with zero options", func(t *testing.T) {
		docs, err := s.Find(ctx, "books", nil, store.FindOptions{})
		require.NoError(t, err)
		assert.Len(t, docs, 3)

		docs, err = s.Find(ctx, "books", bson.M{}, store.FindOptions{Sort: bson.D{}, Projection: bson.D{}})
		require.NoError(t, err)
		assert.Len(t, docs, 3)
	})

	t.Run("Find translated operators", func(t *testing.T) {
		docs, err := s.Find(ctx, "books", bson.M{"$nor": bson.A{bson.M{"genre": "Romance"}}}, store.FindOptions{})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "Verity", docs[0]["title"])

		n, err := s.Count(ctx, "books", bson.M{"series": nil, "price": bson.M{"$eq": 7.99}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = s.Count(ctx, "books", bson.M{"title": primitive.Regex{Pattern: "^ugly", Options: "i"}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("Find filter sort projection", func(t *testing.T) {
		docs, err := s.Find(ctx, "books",
			bson.M{"author": "Colleen Hoover"},
			store.FindOptions{
				Sort:       bson.D{{Key: "price", Value: -1}},
				Projection: bson.D{{Key: "title", Value: 1}, {Key: "_id", Value: 0}},
			})
		require.NoError(t, err)
		assert.Equal(t, []bson.M{{"title": "Ugly Love"}, {"title": "Verity"}}, docs)
	})

	t.Run("Find skip limit", func(t *testing.T) {
		docs, err := s.Find(ctx, "books", nil, store.FindOptions{
			Sort: bson.D{{Key: "price", Value: 1}}, Skip: 1, Limit: 1,
		})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "Verity", docs[0]["title"])
	})

	t.Run("UpdateOne", func(t *testing.T) {
		res, err := s.UpdateOne(ctx, "books", bson.M{"title": "Verity"}, bson.M{"$set": bson.M{"price": 11.49}})
		require.NoError(t, err)
		assert.Equal(t, store.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, res)

		res, err = s.UpdateOne(ctx, "books", bson.M{"title": "Verity"}, bson.M{"$set": bson.M{"price": 11.49}})
		require.NoError(t, err)
		assert.Equal(t, store.UpdateResult{MatchedCount: 1}, res)

		res, err = s.UpdateOne(ctx, "books", bson.M{"title": "The Great Gatsby"}, bson.M{"$set": bson.M{"price": 12.99}})
		require.NoError(t, err)
		assert.Equal(t, store.UpdateResult{}, res)

		docs, err := s.Find(ctx, "books", bson.M{"title": "Verity"}, store.FindOptions{})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, 11.49, docs[0]["price"])
	})

	t.Run("UpdateOne rejects replacements and _id changes", func(t *testing.T) {
		_, err := s.UpdateOne(ctx, "books", bson.M{"title": "Verity"}, bson.M{"price": 1})
		assert.Error(t, err)

		_, err = s.UpdateOne(ctx, "books", bson.M{"title": "Verity"}, bson.M{"$set": bson.M{"_id": primitive.NewObjectID()}})
		assert.ErrorIs(t, err, store.ErrImmutableID)
	})

	t.Run("Aggregate", func(t *testing.T) {
		out, err := s.Aggregate(ctx, "books", []bson.D{
			{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$genre"}, {Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
			{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
		})
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, "Psychological thriller", out[0]["_id"])
		assert.EqualValues(t, 2, out[1]["n"])
	})

	t.Run("CreateIndex is idempotent", func(t *testing.T) {
		name, err := s.CreateIndex(ctx, "books", bson.D{{Key: "title", Value: 1}})
		require.NoError(t, err)
		assert.Equal(t, "title_1", name)

		name, err = s.CreateIndex(ctx, "books", bson.D{{Key: "title", Value: 1}})
		require.NoError(t, err)
		assert.Equal(t, "title_1", name)

		name, err = s.CreateIndex(ctx, "books", bson.D{{Key: "author", Value: 1}, {Key: "published_year", Value: 1}})
		require.NoError(t, err)
		assert.Equal(t, "author_1_published_year_1", name)

		idx, err := s.ListIndexes(ctx, "books")
		require.NoError(t, err)
		var names []string
		for _, i := range idx {
			names = append(names, i.Name)
		}
		assert.Equal(t, []string{"_id_", "title_1", "author_1_published_year_1"}, names)
	})

	t.Run("Explain uses index", func(t *testing.T) {
		stats, err := s.Explain(ctx, "books", bson.M{"title": "Ugly Love"})
		require.NoError(t, err)
		assert.True(t, stats.ExecutionSuccess)
		assert.Equal(t, int64(1), stats.NReturned)
		assert.Equal(t, "title_1", stats.IndexUsed())

		stats, err = s.Explain(ctx, "books", bson.M{"genre": "Romance"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.NReturned)
		assert.Equal(t, int64(3), stats.TotalDocsExamined)
		assert.Empty(t, stats.IndexUsed())
	})

	t.Run("DeleteOne", func(t *testing.T) {
		n, err := s.DeleteOne(ctx, "books", bson.M{"author": "Colleen Hoover"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = s.DeleteOne(ctx, "books", bson.M{"title": "Moby Dick"})
		require.NoError(t, err)
		assert.Zero(t, n)

		count, err := s.Count(ctx, "books", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("Drop", func(t *testing.T) {
		require.NoError(t, s.Drop(ctx, "books"))
		n, err := s.Count(ctx, "books", nil)
		require.NoError(t, err)
		assert.Zero(t, n)
		idx, err := s.ListIndexes(ctx, "books")
		require.NoError(t, err)
		assert.Empty(t, idx)

		require.NoError(t, s.Drop(ctx, "never-created"))
	})

	t.Run("Collections are isolated", func(t *testing.T) {
		_, err := s.InsertMany(ctx, "authors", []any{bson.M{"name": "Ana Huang"}})
		require.NoError(t, err)
		n, err := s.Count(ctx, "books", nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestMemoryStore(t *testing.T) {
	s := store.NewMemoryStore()
	runStoreTests(t, s)
}

func TestJsonFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plp_bookstore")
	s, err := store.NewJsonFileStore(dir)
	require.NoError(t, err)
	runStoreTests(t, s)
}

func TestSqliteStore(t *testing.T) {
	s, err := store.NewSqliteStore(filepath.Join(t.TempDir(), "plp_bookstore.db"))
	require.NoError(t, err)
	defer s.Close(context.Background())
	runStoreTests(t, s)
}

func TestJsonFileStorePersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s1, err := store.NewJsonFileStore(dir)
	require.NoError(t, err)
	_, err = s1.InsertMany(ctx, "books", shelf())
	require.NoError(t, err)
	_, err = s1.CreateIndex(ctx, "books", bson.D{{Key: "title", Value: 1}})
	require.NoError(t, err)

	s2, err := store.NewJsonFileStore(dir)
	require.NoError(t, err)
	docs, err := s2.Find(ctx, "books", bson.M{"published_year": bson.M{"$gt": 2015}}, store.FindOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.IsType(t, primitive.ObjectID{}, docs[0]["_id"])
	assert.Equal(t, int32(2018), docs[0]["published_year"])

	idx, err := s2.ListIndexes(ctx, "books")
	require.NoError(t, err)
	assert.Len(t, idx, 2)
	require.NoError(t, s2.Close(ctx))

	raw, err := os.ReadFile(filepath.Join(dir, "books.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"$oid"`)
	assert.Contains(t, string(raw), `"$numberInt":"2018"`)
}

func TestSqliteStorePersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "plp_bookstore.db")

	s1, err := store.NewSqliteStore(path)
	require.NoError(t, err)
	_, err = s1.InsertMany(ctx, "books", shelf())
	require.NoError(t, err)
	_, err = s1.CreateIndex(ctx, "books", bson.D{{Key: "author", Value: 1}, {Key: "published_year", Value: -1}})
	require.NoError(t, err)
	require.NoError(t, s1.Close(ctx))

	s2, err := store.NewSqliteStore(path)
	require.NoError(t, err)
	defer s2.Close(ctx)
	count, err := s2.Count(ctx, "books", bson.M{"genre": "Romance"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	stats, err := s2.Explain(ctx, "books", bson.M{"author": "Ana Huang"})
	require.NoError(t, err)
	assert.Equal(t, "author_1_published_year_-1", stats.IndexUsed())

	docs, err := s2.Find(ctx, "books", bson.M{"price": bson.M{"$lt": 11}}, store.FindOptions{Sort: bson.D{{Key: "price", Value: 1}}})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Twisted Love", docs[0]["title"])

	// Lookups run on gedb's in-memory indexes; the file holds no SQL indexes.
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow("SELECT count(*) FROM sqlite_master WHERE type = 'index' AND sql IS NOT NULL").Scan(&n))
	assert.Zero(t, n)
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := store.New(context.Background(), store.Options{Backend: "redis"})
	assert.ErrorIs(t, err, store.ErrUnknownBackend)
}

func TestNewEmbeddedBackends(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []string{"memory", "json", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			s, err := store.New(ctx, store.Options{Backend: backend, Database: "plp_bookstore", DataDir: t.TempDir()})
			require.NoError(t, err)
			defer s.Close(ctx)
			_, err = s.InsertMany(ctx, "books", shelf())
			require.NoError(t, err)
		})
	}
}
