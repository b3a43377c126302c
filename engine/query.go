package engine

import (
	"fmt"
	"maps"
	"regexp"
	"strings"
	"time"

	"github.com/vinicius-lino-figueiredo/gedb"
	"github.com/vinicius-lino-figueiredo/gedb/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedb/adapter/matcher"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ToGedb converts a BSON value into the form gedb stores and matches:
// documents become data.M, arrays []any, ObjectIDs their hex string, dates
// time.Time and regular expressions *regexp.Regexp. Key order inside
// documents is not kept.
func ToGedb(v any) (any, error) {
	switch t := v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return nil, nil
	case bson.D:
		m := make(data.M, len(t))
		for _, e := range t {
			c, err := ToGedb(e.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", e.Key, err)
			}
			m[e.Key] = c
		}
		return m, nil
	case bson.M:
		return toGedbMap(t)
	case data.M:
		return toGedbMap(t)
	case map[string]any:
		return toGedbMap(t)
	case bson.A:
		return toGedbList(t)
	case []any:
		return toGedbList(t)
	case primitive.ObjectID:
		return t.Hex(), nil
	case primitive.DateTime:
		return t.Time().UTC(), nil
	case time.Time:
		return t.UTC(), nil
	case primitive.Regex:
		return compileRegex(t.Pattern, t.Options)
	case *regexp.Regexp:
		return t, nil
	case string, bool, float32, float64, int, int8, int16, int32, int64, uint8, uint16, uint32:
		return t, nil
	}
	return nil, fmt.Errorf("%w: value of type %T", ErrUnsupported, v)
}

// ToGedbDoc converts a whole document with ToGedb.
func ToGedbDoc(doc bson.M) (data.M, error) {
	return toGedbMap(doc)
}

func toGedbMap[M ~map[string]any](src M) (data.M, error) {
	m := make(data.M, len(src))
	for k, v := range src {
		c, err := ToGedb(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		m[k] = c
	}
	return m, nil
}

func toGedbList[A ~[]any](src A) ([]any, error) {
	out := make([]any, len(src))
	for i, v := range src {
		c, err := ToGedb(v)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// FromGedb turns a document read back from gedb into a bson.M. A top-level
// _id holding a 24 digit hex string is restored to the ObjectID it was
// converted from; ObjectIDs elsewhere stay strings.
func FromGedb(doc gedb.Document) bson.M {
	out := fromGedbMap(maps.Collect(doc.Iter()))
	if s, ok := out["_id"].(string); ok && len(s) == 24 {
		if oid, err := primitive.ObjectIDFromHex(s); err == nil {
			out["_id"] = oid
		}
	}
	return out
}

func fromGedbMap(src map[string]any) bson.M {
	out := make(bson.M, len(src))
	for k, v := range src {
		out[k] = fromGedb(v)
	}
	return out
}

func fromGedb(v any) any {
	switch t := v.(type) {
	case gedb.Document:
		return fromGedbMap(maps.Collect(t.Iter()))
	case map[string]any:
		return fromGedbMap(t)
	case []any:
		out := make(bson.A, len(t))
		for i, item := range t {
			out[i] = fromGedb(item)
		}
		return out
	case time.Time:
		return primitive.NewDateTimeFromTime(t)
	case *regexp.Regexp:
		return primitive.Regex{Pattern: t.String()}
	}
	return v
}

// Query translates a MongoDB filter into a gedb query. Operators gedb lacks
// are rewritten in terms of the ones it has: $nor becomes $not over $or, $eq
// plain equality, and equality with null also accepts a missing field.
func Query(filter any) (data.M, error) {
	d, err := Normalize(filter)
	if err != nil {
		return nil, err
	}
	return queryDoc(d)
}

func queryDoc(d bson.D) (data.M, error) {
	clauses := make([]data.M, 0, len(d))
	for _, e := range d {
		c, err := queryElem(e)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c...)
	}
	return joinClauses(clauses), nil
}

// joinClauses merges single-field clauses into one document, which lets gedb
// pick an index for them. gedb rejects documents mixing operators with field
// names, so anything else is combined with $and.
func joinClauses(clauses []data.M) data.M {
	switch len(clauses) {
	case 0:
		return data.M{}
	case 1:
		return clauses[0]
	}
	merged := data.M{}
	for _, c := range clauses {
		for k, v := range c {
			if _, dup := merged[k]; dup || strings.HasPrefix(k, "$") {
				all := make([]any, len(clauses))
				for i := range clauses {
					all[i] = clauses[i]
				}
				return data.M{"$and": all}
			}
			merged[k] = v
		}
	}
	return merged
}

func queryElem(e bson.E) ([]data.M, error) {
	switch e.Key {
	case "$and", "$or", "$nor":
		arr, ok := e.Value.(bson.A)
		if !ok || len(arr) == 0 {
			return nil, fmt.Errorf("%s must be a non-empty array", e.Key)
		}
		subs := make([]any, 0, len(arr))
		for _, item := range arr {
			sub, ok := item.(bson.D)
			if !ok {
				return nil, fmt.Errorf("%s entries must be documents", e.Key)
			}
			q, err := queryDoc(sub)
			if err != nil {
				return nil, err
			}
			subs = append(subs, q)
		}
		if e.Key == "$nor" {
			return []data.M{{"$not": data.M{"$or": subs}}}, nil
		}
		return []data.M{{e.Key: subs}}, nil
	}
	if strings.HasPrefix(e.Key, "$") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, e.Key)
	}
	return fieldClauses(e.Key, e.Value)
}

func isOperatorDoc(d bson.D) bool {
	return len(d) > 0 && strings.HasPrefix(d[0].Key, "$")
}

func fieldClauses(path string, v any) ([]data.M, error) {
	ops, ok := v.(bson.D)
	if !ok || !isOperatorDoc(ops) {
		c, err := equality(path, v)
		if err != nil {
			return nil, err
		}
		return []data.M{c}, nil
	}

	var options string
	for _, op := range ops {
		if op.Key == "$options" {
			s, ok := op.Value.(string)
			if !ok {
				return nil, fmt.Errorf("%s: $options must be a string", path)
			}
			options = s
		}
	}

	var out []data.M
	native := data.M{}
	for _, op := range ops {
		switch op.Key {
		case "$options":
		case "$eq":
			c, err := equality(path, op.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		case "$regex":
			re, err := regexOperand(op.Value, options)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			out = append(out, data.M{path: re})
		case "$not":
			inner, err := fieldClauses(path, op.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, data.M{"$not": joinClauses(inner)})
		case "$in", "$nin":
			arr, err := ToGedb(op.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			if _, ok := arr.([]any); !ok {
				return nil, fmt.Errorf("%s: %s needs an array", path, op.Key)
			}
			native[op.Key] = arr
		case "$exists":
			native[op.Key] = truthy(op.Value)
		case "$ne", "$gt", "$gte", "$lt", "$lte", "$size":
			g, err := ToGedb(op.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			native[op.Key] = g
		case "$elemMatch":
			sub, ok := op.Value.(bson.D)
			if !ok {
				return nil, fmt.Errorf("%s: $elemMatch needs a document", path)
			}
			var q any
			var err error
			if isOperatorDoc(sub) {
				q, err = ToGedb(sub)
			} else {
				q, err = queryDoc(sub)
			}
			if err != nil {
				return nil, err
			}
			native[op.Key] = q
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupported, op.Key)
		}
	}
	if len(native) > 0 {
		out = append(out, data.M{path: native})
	}
	return out, nil
}

// equality matches path against want. A null want also matches documents
// where path is missing.
func equality(path string, want any) (data.M, error) {
	g, err := ToGedb(want)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if g == nil {
		return data.M{"$or": []any{
			data.M{path: nil},
			data.M{path: data.M{"$exists": false}},
		}}, nil
	}
	return data.M{path: g}, nil
}

func regexOperand(v any, options string) (*regexp.Regexp, error) {
	switch p := v.(type) {
	case string:
		return compileRegex(p, options)
	case primitive.Regex:
		if options == "" {
			options = p.Options
		}
		return compileRegex(p.Pattern, options)
	}
	return nil, fmt.Errorf("$regex needs a string pattern")
}

func compileRegex(pattern, options string) (*regexp.Regexp, error) {
	var flags string
	for _, o := range options {
		switch o {
		case 'i', 'm', 's':
			flags += string(o)
		default:
			return nil, fmt.Errorf("%w regex option %q", ErrUnsupported, o)
		}
	}
	if flags != "" {
		pattern = "(?" + flags + ")" + pattern
	}
	return regexp.Compile(pattern)
}

func truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	}
	if n, ok := ToNumber(v); ok {
		return n != 0
	}
	return true
}

// Predicate reports whether a document satisfies a compiled filter.
type Predicate func(doc bson.M) (bool, error)

// Compile translates filter with Query and returns a Predicate backed by
// gedb's matcher. A nil or empty filter matches every document. The
// Predicate must not be shared between goroutines.
func Compile(filter any) (Predicate, error) {
	q, err := Query(filter)
	if err != nil {
		return nil, err
	}
	if len(q) == 0 {
		return func(bson.M) (bool, error) { return true, nil }, nil
	}
	m := matcher.NewMatcher()
	if err := m.SetQuery(q); err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	return func(doc bson.M) (bool, error) {
		g, err := ToGedbDoc(doc)
		if err != nil {
			return false, err
		}
		return m.Match(g)
	}, nil
}
