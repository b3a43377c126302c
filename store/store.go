// Package store defines the document store interface and its backends.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

var (
	// ErrUnknownBackend is returned by New for an unrecognised backend name.
	ErrUnknownBackend = errors.New("unknown store backend")
	// ErrEmptyInsert is returned when InsertMany is called without documents.
	ErrEmptyInsert = errors.New("must provide at least one document to insert")
	// ErrDuplicateKey is returned when an insert reuses an existing _id.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrIndexConflict is returned when an index name is reused for different keys.
	ErrIndexConflict = errors.New("index already exists with different keys")
	// ErrImmutableID is returned when an update would change a document's _id.
	ErrImmutableID = errors.New("the _id field is immutable")
)

// Store is the interface that all backing stores must implement.
// It operates on named collections of documents. Filters, updates, sorts
// and pipelines use the MongoDB query language. The embedded backends hand
// filters, sorts, projections and updates to gedb, and evaluate pipelines
// and explain plans with package engine.
type Store interface {
	// Count returns the number of documents matching filter.
	Count(ctx context.Context, collection string, filter any) (int64, error)

	// Drop removes a collection with its indexes. Dropping a missing
	// collection is not an error.
	Drop(ctx context.Context, collection string) error

	// InsertMany stores docs in order, assigning an ObjectID _id to any
	// document without one, and returns the ids.
	InsertMany(ctx context.Context, collection string, docs []any) ([]any, error)

	// Find returns the documents matching filter.
	Find(ctx context.Context, collection string, filter any, opts FindOptions) ([]bson.M, error)

	// UpdateOne applies update to the first document matching filter.
	UpdateOne(ctx context.Context, collection string, filter, update any) (UpdateResult, error)

	// DeleteOne removes the first document matching filter and returns the
	// number removed.
	DeleteOne(ctx context.Context, collection string, filter any) (int64, error)

	// Aggregate runs an aggregation pipeline over a collection.
	Aggregate(ctx context.Context, collection string, pipeline []bson.D) ([]bson.M, error)

	// CreateIndex creates an index and returns its name. Creating an index
	// with an existing key specification returns the existing name.
	CreateIndex(ctx context.Context, collection string, keys bson.D) (string, error)

	// ListIndexes returns the indexes of a collection, _id_ first.
	ListIndexes(ctx context.Context, collection string) ([]IndexSpec, error)

	// Explain reports execution statistics for a find with filter.
	Explain(ctx context.Context, collection string, filter any) (*ExplainStats, error)

	// Close releases the connection or files behind the store.
	Close(ctx context.Context) error
}

// FindOptions shapes the result of Find. A zero Limit means no limit.
type FindOptions struct {
	Sort       bson.D
	Projection bson.D
	Skip       int64
	Limit      int64
}

// UpdateResult reports the outcome of UpdateOne.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

// IndexSpec is a named index key specification.
type IndexSpec struct {
	Name string `bson:"name"`
	Keys bson.D `bson:"key"`
}

// ExplainStats mirrors the executionStats section of the server's explain
// output.
type ExplainStats struct {
	ExecutionSuccess    bool       `bson:"executionSuccess"`
	NReturned           int64      `bson:"nReturned"`
	ExecutionTimeMillis int64      `bson:"executionTimeMillis"`
	TotalKeysExamined   int64      `bson:"totalKeysExamined"`
	TotalDocsExamined   int64      `bson:"totalDocsExamined"`
	ExecutionStages     *PlanStage `bson:"executionStages,omitempty"`
}

// PlanStage is one node of a winning plan.
type PlanStage struct {
	Stage        string     `bson:"stage"`
	NReturned    int64      `bson:"nReturned"`
	IndexName    string     `bson:"indexName,omitempty"`
	KeysExamined int64      `bson:"keysExamined,omitempty"`
	DocsExamined int64      `bson:"docsExamined,omitempty"`
	InputStage   *PlanStage `bson:"inputStage,omitempty"`
}

// IndexUsed returns the name of the index the plan scanned, or "" for a
// collection scan.
func (s *ExplainStats) IndexUsed() string {
	for st := s.ExecutionStages; st != nil; st = st.InputStage {
		if st.Stage == "IXSCAN" {
			return st.IndexName
		}
	}
	return ""
}
