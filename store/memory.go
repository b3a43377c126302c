package store

import (
	"context"

	"github.com/vinicius-lino-figueiredo/gedb"
)

// MemoryStore keeps every collection in an in-memory gedb datastore. Data
// is lost on restart. Safe for concurrent use.
type MemoryStore struct {
	*docStore
}

func NewMemoryStore() *MemoryStore {
	s, err := newDocStore(context.Background(), func(string) (gedb.GEDB, error) {
		return gedb.NewDB(gedb.WithInMemoryOnly(true))
	})
	if err != nil {
		// In-memory datastores have no files to fail on.
		panic("store: open memory datastore: " + err.Error())
	}
	return &MemoryStore{docStore: s}
}
