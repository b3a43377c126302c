// Package engine bridges the MongoDB query language and the gedb embedded
// datastore used by the memory, json and sqlite backends.
//
// Filters are translated into gedb queries and matched by gedb itself. The
// aggregation pipeline, its accumulators and expressions, and explain
// planning have no gedb counterpart and are evaluated here over bson.M.
package engine

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrUnsupported is returned for operators and stages the engine does not implement.
var ErrUnsupported = errors.New("unsupported operator")

// Normalize converts a filter, sort, projection, update or stage into an
// ordered bson.D. Nested documents come back as bson.D, arrays as bson.A and
// Go integers as int32/int64, whatever the caller passed in.
func Normalize(v any) (bson.D, error) {
	if v == nil {
		return bson.D{}, nil
	}
	// A typed nil, such as the zero Sort of FindOptions, is an empty document.
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer:
		if rv.IsNil() {
			return bson.D{}, nil
		}
	}
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize %T: %w", v, err)
	}
	var d bson.D
	if err := bson.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("normalize %T: %w", v, err)
	}
	return d, nil
}

// Lookup resolves a dotted path inside a document. Numeric segments index
// into arrays.
func Lookup(doc bson.M, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		switch c := cur.(type) {
		case bson.M:
			v, ok := c[part]
			if !ok {
				return nil, false
			}
			cur = v
		case bson.D:
			found := false
			for _, e := range c {
				if e.Key == part {
					cur, found = e.Value, true
					break
				}
			}
			if !found {
				return nil, false
			}
		case bson.A:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(c) {
				return nil, false
			}
			cur = c[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

func setPath(doc bson.M, path string, v any) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(bson.M)
		if !ok {
			next = bson.M{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func unsetPath(doc bson.M, path string) bool {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(bson.M)
		if !ok {
			return false
		}
		cur = next
	}
	last := parts[len(parts)-1]
	if _, ok := cur[last]; !ok {
		return false
	}
	delete(cur, last)
	return true
}

// ToNumber reports the float64 value of any BSON numeric type.
func ToNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func isInteger(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return true
	}
	return false
}

// intResult narrows an integer result to int32 when it fits, matching what
// the server returns for int32 arithmetic.
func intResult(i int64) any {
	if i >= math.MinInt32 && i <= math.MaxInt32 {
		return int32(i)
	}
	return i
}

// BSON comparison order brackets.
const (
	rankNull = iota + 1
	rankNumber
	rankString
	rankDocument
	rankArray
	rankBinary
	rankObjectID
	rankBool
	rankDate
	rankTimestamp
	rankRegex
	rankOther
)

func typeRank(v any) int {
	switch v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return rankNull
	case string, primitive.Symbol:
		return rankString
	case bson.M, bson.D:
		return rankDocument
	case bson.A, []any:
		return rankArray
	case primitive.Binary:
		return rankBinary
	case primitive.ObjectID:
		return rankObjectID
	case bool:
		return rankBool
	case primitive.DateTime, time.Time:
		return rankDate
	case primitive.Timestamp:
		return rankTimestamp
	case primitive.Regex:
		return rankRegex
	}
	if _, ok := ToNumber(v); ok {
		return rankNumber
	}
	return rankOther
}

// Compare orders two values using BSON comparison order and returns -1, 0 or 1.
func Compare(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch ra {
	case rankNull:
		return 0
	case rankNumber:
		fa, _ := ToNumber(a)
		fb, _ := ToNumber(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case rankString:
		return strings.Compare(stringOf(a), stringOf(b))
	case rankDocument:
		return compareDocs(toD(a), toD(b))
	case rankArray:
		return compareArrays(toA(a), toA(b))
	case rankBinary:
		return bytes.Compare(a.(primitive.Binary).Data, b.(primitive.Binary).Data)
	case rankObjectID:
		oa, ob := a.(primitive.ObjectID), b.(primitive.ObjectID)
		return bytes.Compare(oa[:], ob[:])
	case rankBool:
		return cmpBool(a.(bool), b.(bool))
	case rankDate:
		return cmpInt64(millis(a), millis(b))
	case rankTimestamp:
		ta, tb := a.(primitive.Timestamp), b.(primitive.Timestamp)
		if ta.T != tb.T {
			return cmpInt64(int64(ta.T), int64(tb.T))
		}
		return cmpInt64(int64(ta.I), int64(tb.I))
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// Equal reports whether two values are equal under BSON comparison.
func Equal(a, b any) bool {
	return typeRank(a) == typeRank(b) && Compare(a, b) == 0
}

func stringOf(v any) string {
	if s, ok := v.(primitive.Symbol); ok {
		return string(s)
	}
	return v.(string)
}

func millis(v any) int64 {
	switch t := v.(type) {
	case primitive.DateTime:
		return int64(t)
	case time.Time:
		return t.UnixMilli()
	}
	return 0
}

func toD(v any) bson.D {
	switch d := v.(type) {
	case bson.D:
		return d
	case bson.M:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(bson.D, 0, len(keys))
		for _, k := range keys {
			out = append(out, bson.E{Key: k, Value: d[k]})
		}
		return out
	}
	return nil
}

func toA(v any) bson.A {
	switch a := v.(type) {
	case bson.A:
		return a
	case []any:
		return bson.A(a)
	}
	return nil
}

func compareDocs(a, b bson.D) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := strings.Compare(a[i].Key, b[i].Key); c != 0 {
			return c
		}
		if c := Compare(a[i].Value, b[i].Value); c != 0 {
			return c
		}
	}
	return cmpInt(len(a), len(b))
}

func compareArrays(a, b bson.A) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmpInt(len(a), len(b))
}

func cmpInt(a, b int) int {
	return cmpInt64(int64(a), int64(b))
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}
