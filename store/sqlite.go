package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/vinicius-lino-figueiredo/gedb"
	"github.com/vinicius-lino-figueiredo/gedb/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedb/domain"
)

// SqliteStore stores all collections in a single SQLite database, one row
// per document, kept as canonical Extended JSON so BSON types survive a
// round trip.
//
// Tables:
//
//	documents(seq, collection, id, data)  UNIQUE (collection, id)
//
// Each collection is served by a gedb datastore loaded from its rows on
// first use; gedb's in-memory indexes answer lookups. The table carries no
// per-field SQLite indexes because Extended JSON wraps numbers in objects
// such as {"$numberDouble": "9.99"} that json_extract cannot compare.
type SqliteStore struct {
	*docStore
}

func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		data TEXT NOT NULL,
		UNIQUE (collection, id)
	)`); err != nil {
		db.Close()
		return nil, err
	}
	s, err := newDocStore(context.Background(), func(collection string) (gedb.GEDB, error) {
		return gedb.NewDB(gedb.WithPersistence(&sqliteRows{db: db, collection: collection}))
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	s.onClose = func(context.Context, map[string]gedb.GEDB) error {
		return db.Close()
	}
	return &SqliteStore{docStore: s}, nil
}

// sqliteRows persists one collection's gedb datastore to the documents
// table. gedb keeps the index definitions it needs in memory, so only
// documents with an _id are written.
type sqliteRows struct {
	db         *sql.DB
	collection string
	codec      extJSON
}

func idKey(id any) string {
	return fmt.Sprintf("%T:%v", id, id)
}

func (p *sqliteRows) LoadDatabase(ctx context.Context) ([]domain.Document, map[string]domain.IndexDTO, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT data FROM documents WHERE collection = ? ORDER BY seq", p.collection)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var docs []domain.Document
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, nil, err
		}
		var m map[string]any
		if err := p.codec.Deserialize(ctx, []byte(raw), &m); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", p.collection, err)
		}
		docs = append(docs, data.M(m))
	}
	return docs, nil, rows.Err()
}

func (p *sqliteRows) PersistNewState(ctx context.Context, docs ...domain.Document) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, doc := range docs {
		if err := p.write(ctx, tx, doc); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *sqliteRows) write(ctx context.Context, tx *sql.Tx, doc domain.Document) error {
	if !doc.Has("_id") {
		return nil
	}
	id := idKey(doc.ID())
	if deleted, _ := doc.Get("$$deleted").(bool); deleted {
		_, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE collection = ? AND id = ?", p.collection, id)
		return err
	}
	b, err := p.codec.Serialize(ctx, doc)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data`,
		p.collection, id, string(b))
	return err
}

// PersistCachedDatabase rewrites the collection's rows from gedb's cache.
func (p *sqliteRows) PersistCachedDatabase(ctx context.Context, all []domain.Document, _ map[string]domain.IndexDTO) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE collection = ?", p.collection); err != nil {
		return err
	}
	for _, doc := range all {
		if err := p.write(ctx, tx, doc); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *sqliteRows) DropDatabase(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM documents WHERE collection = ?", p.collection)
	return err
}

func (p *sqliteRows) WaitCompaction(context.Context) error { return nil }
