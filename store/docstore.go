package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vinicius-lino-figueiredo/gedb"
	"github.com/vinicius-lino-figueiredo/gedb/adapter/data"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stevemurr/plp-bookstore/engine"
)

// indexCatalog names the collection holding index definitions of the
// embedded backends, one record per index.
const indexCatalog = "system.indexes"

// opener creates the unloaded gedb datastore behind one collection.
type opener func(collection string) (gedb.GEDB, error)

// docStore implements Store for the embedded backends with one gedb
// datastore per collection. gedb matches, sorts, projects and modifies
// documents; package engine translates filters and runs what gedb has no
// counterpart for.
type docStore struct {
	// mu orders writers that read before they write.
	mu      sync.RWMutex
	open    opener
	onClose func(ctx context.Context, dbs map[string]gedb.GEDB) error

	dbsMu   sync.Mutex
	dbs     map[string]gedb.GEDB
	catalog gedb.GEDB
}

type indexRecord struct {
	ID         string     `gedb:"_id"`
	Collection string     `gedb:"collection"`
	Name       string     `gedb:"name"`
	Keys       []indexKey `gedb:"key"`
	Ord        int        `gedb:"ord"`
}

type indexKey struct {
	Field string `gedb:"field"`
	Dir   int    `gedb:"dir"`
}

func newDocStore(ctx context.Context, open opener) (*docStore, error) {
	s := &docStore{open: open, dbs: map[string]gedb.GEDB{}}
	catalog, err := s.load(ctx, indexCatalog)
	if err != nil {
		return nil, err
	}
	s.catalog = catalog
	return s, nil
}

func (s *docStore) load(ctx context.Context, name string) (gedb.GEDB, error) {
	db, err := s.open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if err := db.LoadDatabase(ctx); err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	s.dbs[name] = db
	return db, nil
}

// collection returns the datastore behind name, loading it and ensuring its
// indexes on first use.
func (s *docStore) collection(ctx context.Context, name string) (gedb.GEDB, error) {
	s.dbsMu.Lock()
	defer s.dbsMu.Unlock()
	if db, ok := s.dbs[name]; ok {
		return db, nil
	}
	db, err := s.load(ctx, name)
	if err != nil {
		return nil, err
	}
	specs, err := s.indexSpecs(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, spec := range specs {
		if err := ensureIndex(ctx, db, spec.Keys); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// ensureIndex backs a single-field index with a gedb index. gedb answers a
// compound index only for queries naming every key, so compound specs live
// in the catalog for planning alone.
func ensureIndex(ctx context.Context, db gedb.GEDB, keys bson.D) error {
	if len(keys) != 1 {
		return nil
	}
	return db.EnsureIndex(ctx, gedb.WithFields(keys[0].Key))
}

// toDocument converts a struct, map or bson.D into a bson.M with the value
// types a decode from the wire would produce.
func toDocument(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// scanAll drains cur into bson documents and closes it.
func scanAll(ctx context.Context, cur gedb.Cursor) ([]bson.M, error) {
	defer cur.Close()
	out := []bson.M{}
	for cur.Next() {
		var m data.M
		if err := cur.Scan(ctx, &m); err != nil {
			return nil, err
		}
		out = append(out, engine.FromGedb(m))
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *docStore) Count(ctx context.Context, collection string, filter any) (int64, error) {
	q, err := engine.Query(filter)
	if err != nil {
		return 0, err
	}
	db, err := s.collection(ctx, collection)
	if err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return db.Count(ctx, q)
}

func (s *docStore) Drop(ctx context.Context, collection string) error {
	db, err := s.collection(ctx, collection)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := db.DropDatabase(ctx); err != nil {
		return err
	}
	_, err = s.catalog.Remove(ctx, data.M{"collection": collection}, gedb.WithRemoveMulti(true))
	return err
}

func (s *docStore) InsertMany(ctx context.Context, collection string, docs []any) ([]any, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyInsert
	}
	prepared := make([]any, 0, len(docs))
	ids := make([]any, 0, len(docs))
	for i, d := range docs {
		doc, err := toDocument(d)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if _, ok := doc["_id"]; !ok {
			doc["_id"] = primitive.NewObjectID()
		}
		g, err := engine.ToGedbDoc(doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		prepared = append(prepared, g)
		ids = append(ids, doc["_id"])
	}

	db, err := s.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := db.Insert(ctx, prepared...)
	if err != nil {
		if errors.Is(err, gedb.ErrConstraintViolated) {
			return nil, fmt.Errorf("%w: %w", ErrDuplicateKey, err)
		}
		return nil, err
	}
	cur.Close()
	return ids, nil
}

func (s *docStore) Find(ctx context.Context, collection string, filter any, opts FindOptions) ([]bson.M, error) {
	if opts.Skip < 0 {
		return nil, fmt.Errorf("skip must be non-negative, got %d", opts.Skip)
	}
	q, err := engine.Query(filter)
	if err != nil {
		return nil, err
	}
	findOpts := []gedb.FindOption{gedb.WithSkip(opts.Skip)}
	if limit := opts.Limit; limit != 0 {
		if limit < 0 {
			limit = -limit
		}
		findOpts = append(findOpts, gedb.WithLimit(limit))
	}
	sortSpec, err := engine.Normalize(opts.Sort)
	if err != nil {
		return nil, err
	}
	if len(sortSpec) > 0 {
		sort, err := gedbSort(sortSpec)
		if err != nil {
			return nil, err
		}
		findOpts = append(findOpts, gedb.WithSort(sort))
	}
	projection, err := engine.Normalize(opts.Projection)
	if err != nil {
		return nil, err
	}
	if len(projection) > 0 {
		p, err := gedbProjection(projection)
		if err != nil {
			return nil, err
		}
		findOpts = append(findOpts, gedb.WithProjection(p))
	}

	db, err := s.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, err := db.Find(ctx, q, findOpts...)
	if err != nil {
		return nil, err
	}
	return scanAll(ctx, cur)
}

func gedbSort(spec bson.D) (gedb.Sort, error) {
	sort := make(gedb.Sort, 0, len(spec))
	for _, e := range spec {
		n, ok := engine.ToNumber(e.Value)
		if !ok || (n != 1 && n != -1) {
			return nil, fmt.Errorf("sort direction for %s must be 1 or -1", e.Key)
		}
		sort = append(sort, gedb.SortName{Key: e.Key, Order: int64(n)})
	}
	return sort, nil
}

// gedbProjection accepts inclusion and exclusion flags only. Computed fields
// belong in an aggregation $project stage.
func gedbProjection(spec bson.D) (data.M, error) {
	p := make(data.M, len(spec))
	for _, e := range spec {
		on, ok := e.Value.(bool)
		if !ok {
			n, isNum := engine.ToNumber(e.Value)
			if !isNum {
				return nil, fmt.Errorf("%w: projection of %s", engine.ErrUnsupported, e.Key)
			}
			on = n != 0
		}
		p[e.Key] = 0
		if on {
			p[e.Key] = 1
		}
	}
	return p, nil
}

// updateDoc translates an operator update for gedb. Replacement documents
// are rejected.
func updateDoc(update any) (data.M, error) {
	d, err := engine.Normalize(update)
	if err != nil {
		return nil, err
	}
	if len(d) == 0 {
		return nil, fmt.Errorf("update document is empty")
	}
	for _, e := range d {
		if len(e.Key) == 0 || e.Key[0] != '$' {
			return nil, fmt.Errorf("update document must contain only operators, got %q", e.Key)
		}
	}
	g, err := engine.ToGedb(d)
	if err != nil {
		return nil, err
	}
	return g.(data.M), nil
}

func (s *docStore) UpdateOne(ctx context.Context, collection string, filter, update any) (UpdateResult, error) {
	upd, err := updateDoc(update)
	if err != nil {
		return UpdateResult{}, err
	}
	q, err := engine.Query(filter)
	if err != nil {
		return UpdateResult{}, err
	}
	db, err := s.collection(ctx, collection)
	if err != nil {
		return UpdateResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := db.Find(ctx, q, gedb.WithLimit(1))
	if err != nil {
		return UpdateResult{}, err
	}
	before, err := scanAll(ctx, cur)
	if err != nil || len(before) == 0 {
		return UpdateResult{}, err
	}
	id, err := engine.ToGedb(before[0]["_id"])
	if err != nil {
		return UpdateResult{}, err
	}
	cur, err = db.Update(ctx, data.M{"_id": id}, upd)
	if err != nil {
		if errors.Is(err, gedb.ErrCannotModifyID) {
			return UpdateResult{}, fmt.Errorf("%w: %w", ErrImmutableID, err)
		}
		return UpdateResult{}, err
	}
	after, err := scanAll(ctx, cur)
	if err != nil {
		return UpdateResult{}, err
	}
	res := UpdateResult{MatchedCount: 1}
	if len(after) == 1 && !engine.Equal(before[0], after[0]) {
		res.ModifiedCount = 1
	}
	return res, nil
}

func (s *docStore) DeleteOne(ctx context.Context, collection string, filter any) (int64, error) {
	q, err := engine.Query(filter)
	if err != nil {
		return 0, err
	}
	db, err := s.collection(ctx, collection)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return db.Remove(ctx, q)
}

// all returns every document of a collection in natural order.
func (s *docStore) all(ctx context.Context, db gedb.GEDB) ([]bson.M, error) {
	cur, err := db.GetAllData(ctx)
	if err != nil {
		return nil, err
	}
	return scanAll(ctx, cur)
}

func (s *docStore) Aggregate(ctx context.Context, collection string, pipeline []bson.D) ([]bson.M, error) {
	db, err := s.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	docs, err := s.all(ctx, db)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return engine.Aggregate(docs, pipeline)
}

func (s *docStore) CreateIndex(ctx context.Context, collection string, keys bson.D) (string, error) {
	keys, err := engine.Normalize(keys)
	if err != nil {
		return "", err
	}
	if err := engine.ValidateIndexKeys(keys); err != nil {
		return "", err
	}
	name := engine.IndexName(keys)
	db, err := s.collection(ctx, collection)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.indexSpecs(ctx, collection)
	if err != nil {
		return "", err
	}
	for _, idx := range existing {
		if idx.Name != name {
			continue
		}
		if engine.Compare(idx.Keys, keys) != 0 {
			return "", fmt.Errorf("%w: %s", ErrIndexConflict, name)
		}
		return name, nil
	}

	rec := indexRecord{
		ID:         collection + "." + name,
		Collection: collection,
		Name:       name,
		Ord:        len(existing),
	}
	for _, k := range keys {
		dir, _ := engine.ToNumber(k.Value)
		rec.Keys = append(rec.Keys, indexKey{Field: k.Key, Dir: int(dir)})
	}
	cur, err := s.catalog.Insert(ctx, rec)
	if err != nil {
		return "", err
	}
	cur.Close()
	if err := ensureIndex(ctx, db, keys); err != nil {
		return "", err
	}
	return name, nil
}

// indexSpecs reads the catalog records of a collection in creation order.
func (s *docStore) indexSpecs(ctx context.Context, collection string) ([]IndexSpec, error) {
	cur, err := s.catalog.Find(ctx, data.M{"collection": collection},
		gedb.WithSort(gedb.Sort{{Key: "ord", Order: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close()
	var specs []IndexSpec
	for cur.Next() {
		var rec indexRecord
		if err := cur.Scan(ctx, &rec); err != nil {
			return nil, fmt.Errorf("decode index in %s: %w", collection, err)
		}
		keys := make(bson.D, 0, len(rec.Keys))
		for _, k := range rec.Keys {
			keys = append(keys, bson.E{Key: k.Field, Value: int32(k.Dir)})
		}
		specs = append(specs, IndexSpec{Name: rec.Name, Keys: keys})
	}
	return specs, cur.Err()
}

func (s *docStore) ListIndexes(ctx context.Context, collection string) ([]IndexSpec, error) {
	db, err := s.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, err := s.indexSpecs(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(idx) == 0 {
		n, err := db.Count(ctx, data.M{})
		if err != nil || n == 0 {
			return nil, err
		}
	}
	out := []IndexSpec{{Name: "_id_", Keys: bson.D{{Key: "_id", Value: int32(1)}}}}
	return append(out, idx...), nil
}

func (s *docStore) Explain(ctx context.Context, collection string, filter any) (*ExplainStats, error) {
	start := time.Now()
	db, err := s.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	docs, err := s.all(ctx, db)
	if err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	specs, err := s.indexSpecs(ctx, collection)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	indexes := make([]engine.Index, 0, len(specs))
	for _, sp := range specs {
		indexes = append(indexes, engine.Index{Name: sp.Name, Keys: sp.Keys})
	}
	plan, err := engine.Explain(docs, filter, indexes)
	if err != nil {
		return nil, err
	}
	return planStats(plan, time.Since(start)), nil
}

func planStats(plan engine.Plan, took time.Duration) *ExplainStats {
	stats := &ExplainStats{
		ExecutionSuccess:    true,
		NReturned:           int64(plan.NReturned),
		ExecutionTimeMillis: took.Milliseconds(),
		TotalKeysExamined:   int64(plan.KeysExamined),
		TotalDocsExamined:   int64(plan.DocsExamined),
	}
	if plan.IndexName == "" {
		stats.ExecutionStages = &PlanStage{
			Stage:        "COLLSCAN",
			NReturned:    int64(plan.NReturned),
			DocsExamined: int64(plan.DocsExamined),
		}
		return stats
	}
	stats.ExecutionStages = &PlanStage{
		Stage:        "FETCH",
		NReturned:    int64(plan.NReturned),
		DocsExamined: int64(plan.DocsExamined),
		InputStage: &PlanStage{
			Stage:        "IXSCAN",
			NReturned:    int64(plan.KeysExamined),
			IndexName:    plan.IndexName,
			KeysExamined: int64(plan.KeysExamined),
		},
	}
	return stats
}

func (s *docStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dbsMu.Lock()
	defer s.dbsMu.Unlock()
	if s.onClose == nil {
		return nil
	}
	return s.onClose(ctx, s.dbs)
}
