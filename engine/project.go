package engine

import (
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
)

// Project shapes doc according to a projection. Inclusion and exclusion may
// not be mixed, except for _id which is included unless excluded explicitly.
// Non-numeric values are evaluated as expressions and count as inclusions.
func Project(doc bson.M, spec bson.D) (bson.M, error) {
	if len(spec) == 0 {
		return doc, nil
	}

	includeID := true
	var include, exclude []bson.E
	for _, e := range spec {
		flag, isFlag := projectionFlag(e.Value)
		if e.Key == "_id" && isFlag {
			includeID = flag
			continue
		}
		if isFlag && !flag {
			exclude = append(exclude, e)
		} else {
			include = append(include, e)
		}
	}
	if len(include) > 0 && len(exclude) > 0 {
		return nil, fmt.Errorf("projection cannot mix inclusion and exclusion")
	}

	if len(include) == 0 {
		out := cloneTop(doc)
		for _, e := range exclude {
			unsetPath(out, e.Key)
		}
		if !includeID {
			delete(out, "_id")
		}
		return out, nil
	}

	out := bson.M{}
	if id, ok := doc["_id"]; ok && includeID {
		out["_id"] = id
	}
	for _, e := range include {
		if _, isFlag := projectionFlag(e.Value); isFlag {
			if v, ok := Lookup(doc, e.Key); ok {
				setPath(out, e.Key, v)
			}
			continue
		}
		v, err := Eval(e.Value, doc)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", e.Key, err)
		}
		setPath(out, e.Key, v)
	}
	return out, nil
}

func projectionFlag(v any) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}
	if n, ok := ToNumber(v); ok {
		return n != 0, true
	}
	return false, false
}

func cloneTop(doc bson.M) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

type sortKey struct {
	path string
	dir  int
}

func sortKeys(spec bson.D) ([]sortKey, error) {
	keys := make([]sortKey, 0, len(spec))
	for _, e := range spec {
		n, ok := ToNumber(e.Value)
		if !ok || (n != 1 && n != -1) {
			return nil, fmt.Errorf("sort %s: direction must be 1 or -1, got %v", e.Key, e.Value)
		}
		keys = append(keys, sortKey{path: e.Key, dir: int(n)})
	}
	return keys, nil
}

// Sort orders docs in place. Ties keep their existing order.
func Sort(docs []bson.M, spec bson.D) error {
	if len(spec) == 0 {
		return nil
	}
	keys, err := sortKeys(spec)
	if err != nil {
		return err
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			a, _ := Lookup(docs[i], k.path)
			b, _ := Lookup(docs[j], k.path)
			if c := Compare(a, b); c != 0 {
				return c*k.dir < 0
			}
		}
		return false
	})
	return nil
}
