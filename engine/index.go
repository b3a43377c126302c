package engine

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// IndexName derives the server's default name for a key specification,
// e.g. {author: 1, published_year: 1} -> "author_1_published_year_1".
func IndexName(keys bson.D) string {
	parts := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		parts = append(parts, k.Key, fmt.Sprint(k.Value))
	}
	return strings.Join(parts, "_")
}

// ValidateIndexKeys checks that a key specification is non-empty and only
// uses ascending (1) or descending (-1) keys.
func ValidateIndexKeys(keys bson.D) error {
	if len(keys) == 0 {
		return fmt.Errorf("index key specification must not be empty")
	}
	seen := map[string]bool{}
	for _, k := range keys {
		if k.Key == "" {
			return fmt.Errorf("index key names must not be empty")
		}
		if seen[k.Key] {
			return fmt.Errorf("index key %q appears twice", k.Key)
		}
		seen[k.Key] = true
		n, ok := ToNumber(k.Value)
		if !ok || (n != 1 && n != -1) {
			return fmt.Errorf("%w: index key %s: %v", ErrUnsupported, k.Key, k.Value)
		}
	}
	return nil
}

// Index is a named key specification known to the planner.
type Index struct {
	Name string
	Keys bson.D
}

// Plan describes how a find was executed.
type Plan struct {
	// IndexName is empty for a collection scan.
	IndexName    string
	KeysExamined int
	DocsExamined int
	NReturned    int
}

// Explain runs filter over docs and reports the plan the engine would pick:
// the index with the longest prefix of equality-matched keys, or a
// collection scan when no index applies.
func Explain(docs []bson.M, filter any, indexes []Index) (Plan, error) {
	d, err := Normalize(filter)
	if err != nil {
		return Plan{}, err
	}
	pred, err := Compile(d)
	if err != nil {
		return Plan{}, err
	}
	eq := equalityFields(d)

	var best *Index
	var bestPrefix bson.D
	for i := range indexes {
		prefix := bson.D{}
		for _, k := range indexes[i].Keys {
			v, ok := eq[k.Key]
			if !ok {
				break
			}
			prefix = append(prefix, bson.E{Key: k.Key, Value: v})
		}
		if len(prefix) > len(bestPrefix) {
			best, bestPrefix = &indexes[i], prefix
		}
	}

	var plan Plan
	scan := func(bson.M) (bool, error) { return true, nil }
	if best != nil {
		plan.IndexName = best.Name
		if scan, err = Compile(bestPrefix); err != nil {
			return Plan{}, err
		}
	}
	for _, doc := range docs {
		hit, err := scan(doc)
		if err != nil {
			return Plan{}, err
		}
		if !hit {
			continue
		}
		if best != nil {
			plan.KeysExamined++
		}
		plan.DocsExamined++
		ok, err := pred(doc)
		if err != nil {
			return Plan{}, err
		}
		if ok {
			plan.NReturned++
		}
	}
	return plan, nil
}

// equalityFields collects top-level fields constrained by plain or $eq
// equality.
func equalityFields(d bson.D) map[string]any {
	out := map[string]any{}
	for _, e := range d {
		if strings.HasPrefix(e.Key, "$") {
			continue
		}
		ops, ok := e.Value.(bson.D)
		if !ok || !isOperatorDoc(ops) {
			out[e.Key] = e.Value
			continue
		}
		for _, op := range ops {
			if op.Key == "$eq" {
				out[e.Key] = op.Value
			}
		}
	}
	return out
}
