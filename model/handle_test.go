package model_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/stevemurr/plp-bookstore/model"
	"github.com/stevemurr/plp-bookstore/store"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestInsertManyStampsTimestamps(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.UTC)}
	books := model.NewBookModel(store.NewMemoryStore(), "books").WithClock(clock.Now)

	ids, err := books.InsertMany(ctx, []model.Book{
		{Title: "Verity", Author: "Colleen Hoover", PublishedYear: 2018, Price: 10.99, InStock: true},
		{Title: "Ugly Love", Author: "Colleen Hoover", PublishedYear: 2014, Price: 12.99},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	got, err := books.FindBooks(ctx, nil, store.FindOptions{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	want := time.Date(2024, 5, 1, 10, 0, 0, 123000000, time.UTC)
	for _, b := range got {
		assert.False(t, b.ID.IsZero())
		assert.True(t, want.Equal(b.CreatedAt), "created_at %v", b.CreatedAt)
		assert.True(t, want.Equal(b.UpdatedAt), "updated_at %v", b.UpdatedAt)
	}
	assert.Equal(t, "Verity", got[0].Title)
	assert.Equal(t, 2018, got[0].PublishedYear)
	assert.Equal(t, 10.99, got[0].Price)
	assert.True(t, got[0].InStock)
}

func TestUpdateOneBumpsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	books := model.NewBookModel(store.NewMemoryStore(), "books").WithClock(clock.Now)

	_, err := books.InsertMany(ctx, []model.Book{{Title: "Verity", Price: 10.99}})
	require.NoError(t, err)

	clock.Advance(time.Hour)
	res, err := books.UpdateOne(ctx, bson.M{"title": "Verity"}, bson.D{{Key: "price", Value: 12.99}})
	require.NoError(t, err)
	assert.Equal(t, store.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, res)

	got, err := books.FindBooks(ctx, bson.M{"title": "Verity"}, store.FindOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 12.99, got[0].Price)
	assert.True(t, got[0].UpdatedAt.Equal(clock.Now()))
	assert.True(t, got[0].CreatedAt.Before(got[0].UpdatedAt))
}

func TestBookSchemaMatchesBookFields(t *testing.T) {
	raw, err := bson.Marshal(model.Book{Title: "x", CreatedAt: time.Now(), UpdatedAt: time.Now()})
	require.NoError(t, err)
	var doc bson.M
	require.NoError(t, bson.Unmarshal(raw, &doc))

	strict := model.BookSchema
	strict.Strict = true
	assert.NoError(t, strict.Validate(doc))
	assert.ElementsMatch(t, strict.FieldNames(), keys(doc))
}

func keys(m bson.M) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestDecodeBooksPartialDocuments(t *testing.T) {
	got, err := model.DecodeBooks([]bson.M{{"title": "It ends with Us", "price": 9.99}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "It ends with Us", got[0].Title)
	assert.Zero(t, got[0].PublishedYear)
}
