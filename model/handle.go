package model

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/stevemurr/plp-bookstore/schema"
	"github.com/stevemurr/plp-bookstore/store"
)

// BookModel binds the Book schema to one collection of a store. Writes
// through the model maintain the created_at and updated_at timestamps.
type BookModel struct {
	store      store.Store
	collection string
	schema     *schema.Schema
	now        func() time.Time
}

// NewBookModel returns a model for books kept in collection.
func NewBookModel(s store.Store, collection string) *BookModel {
	return &BookModel{
		store:      s,
		collection: collection,
		schema:     &BookSchema,
		now:        time.Now,
	}
}

// WithClock replaces the clock used for timestamps.
func (m *BookModel) WithClock(now func() time.Time) *BookModel {
	m.now = now
	return m
}

func (m *BookModel) Collection() string { return m.collection }

func (m *BookModel) Schema() *schema.Schema { return m.schema }

// timestamp is truncated to the millisecond precision BSON dates hold.
func (m *BookModel) timestamp() time.Time {
	return m.now().UTC().Truncate(time.Millisecond)
}

func (m *BookModel) Count(ctx context.Context, filter any) (int64, error) {
	return m.store.Count(ctx, m.collection, filter)
}

func (m *BookModel) Drop(ctx context.Context) error {
	return m.store.Drop(ctx, m.collection)
}

// InsertMany stores books in order. All books of one call share the same
// creation timestamp.
func (m *BookModel) InsertMany(ctx context.Context, books []Book) ([]any, error) {
	now := m.timestamp()
	docs := make([]any, 0, len(books))
	for _, b := range books {
		if m.schema.Timestamps {
			if b.CreatedAt.IsZero() {
				b.CreatedAt = now
			}
			b.UpdatedAt = now
		}
		docs = append(docs, b)
	}
	ids, err := m.store.InsertMany(ctx, m.collection, docs)
	if err != nil {
		return nil, fmt.Errorf("insert %d books: %w", len(books), err)
	}
	return ids, nil
}

func (m *BookModel) Find(ctx context.Context, filter any, opts store.FindOptions) ([]bson.M, error) {
	return m.store.Find(ctx, m.collection, filter, opts)
}

// FindBooks is Find with the result decoded into books.
func (m *BookModel) FindBooks(ctx context.Context, filter any, opts store.FindOptions) ([]Book, error) {
	docs, err := m.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return DecodeBooks(docs)
}

// UpdateOne applies set to the first book matching filter and bumps its
// updated_at.
func (m *BookModel) UpdateOne(ctx context.Context, filter any, set bson.D) (store.UpdateResult, error) {
	fields := append(bson.D(nil), set...)
	if m.schema.Timestamps {
		fields = append(fields, bson.E{Key: schema.UpdatedAtField, Value: m.timestamp()})
	}
	return m.store.UpdateOne(ctx, m.collection, filter, bson.D{{Key: "$set", Value: fields}})
}

func (m *BookModel) DeleteOne(ctx context.Context, filter any) (int64, error) {
	return m.store.DeleteOne(ctx, m.collection, filter)
}

func (m *BookModel) Aggregate(ctx context.Context, pipeline []bson.D) ([]bson.M, error) {
	return m.store.Aggregate(ctx, m.collection, pipeline)
}

func (m *BookModel) CreateIndex(ctx context.Context, keys bson.D) (string, error) {
	return m.store.CreateIndex(ctx, m.collection, keys)
}

func (m *BookModel) Indexes(ctx context.Context) ([]store.IndexSpec, error) {
	return m.store.ListIndexes(ctx, m.collection)
}

func (m *BookModel) Explain(ctx context.Context, filter any) (*store.ExplainStats, error) {
	return m.store.Explain(ctx, m.collection, filter)
}
