package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

// Options selects and configures a backend.
type Options struct {
	Backend  string
	URI      string
	Database string
	DataDir  string
	Timeout  time.Duration
}

// New creates a Store based on the backend name.
//
// Supported backends:
//
//	"mongo"  - MongoDB server at URI (default)
//	"sqlite" - SQLite database at DataDir/<Database>.db
//	"json"   - JSON files in DataDir/<Database>/
//	"memory" - In-memory (ephemeral, for testing)
func New(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "mongo", "":
		s, err := NewMongoStore(ctx, opts.URI, opts.Database, opts.Timeout)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := NewSqliteStore(filepath.Join(opts.DataDir, opts.Database+".db"))
		if err != nil {
			return nil, err
		}
		return s, nil
	case "json":
		s, err := NewJsonFileStore(filepath.Join(opts.DataDir, opts.Database))
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: mongo, sqlite, json, memory)", ErrUnknownBackend, opts.Backend)
	}
}
