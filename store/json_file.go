package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vinicius-lino-figueiredo/gedb"
	"github.com/vinicius-lino-figueiredo/gedb/adapter/data"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/stevemurr/plp-bookstore/engine"
)

// JsonFileStore stores each collection as a gedb datafile: an append-only
// log of canonical Extended JSON lines, compacted when the collection is
// loaded and when the store is closed.
//
// Layout:
//
//	data_dir/
//	  books.jsonl           # "books" collection
//	  system.indexes.jsonl  # index definitions of every collection
type JsonFileStore struct {
	*docStore
}

func NewJsonFileStore(dir string) (*JsonFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var codec extJSON
	s, err := newDocStore(context.Background(), func(collection string) (gedb.GEDB, error) {
		return gedb.NewDB(
			gedb.WithFilename(filepath.Join(dir, collection+".jsonl")),
			gedb.WithSerializer(codec),
			gedb.WithDeserializer(codec),
		)
	})
	if err != nil {
		return nil, err
	}
	s.onClose = func(ctx context.Context, dbs map[string]gedb.GEDB) error {
		var errs []error
		for name, db := range dbs {
			if err := db.CompactDatafile(ctx); err != nil {
				errs = append(errs, fmt.Errorf("compact %s: %w", name, err))
			}
		}
		return errors.Join(errs...)
	}
	return &JsonFileStore{docStore: s}, nil
}

// extJSON writes gedb documents as single-line canonical Extended JSON so
// BSON types such as ObjectID, int32 and dates survive a reload.
type extJSON struct{}

func (extJSON) Serialize(_ context.Context, value any) ([]byte, error) {
	doc, ok := value.(gedb.Document)
	if !ok {
		var err error
		if doc, err = data.NewDocument(value); err != nil {
			return nil, err
		}
	}
	return bson.MarshalExtJSON(engine.FromGedb(doc), true, false)
}

func (extJSON) Deserialize(_ context.Context, b []byte, target any) error {
	var m bson.M
	if err := bson.UnmarshalExtJSON(b, true, &m); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	doc, err := engine.ToGedbDoc(m)
	if err != nil {
		return err
	}
	out, ok := target.(*map[string]any)
	if !ok {
		return fmt.Errorf("decode document: unsupported target %T", target)
	}
	*out = map[string]any(doc)
	return nil
}
