// Package schema declares document shapes and checks loosely typed
// documents, such as ones read from YAML, against them.
package schema

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Timestamp field names maintained when Schema.Timestamps is set.
const (
	CreatedAtField = "created_at"
	UpdatedAtField = "updated_at"
)

var (
	// ErrUnknownField is returned by strict schemas for undeclared fields.
	ErrUnknownField = errors.New("unknown field")
	// ErrType is returned when a field holds a value of the wrong kind.
	ErrType = errors.New("wrong type")
)

// Kind is the declared type of a field.
type Kind int

const (
	String Kind = iota + 1
	Int
	Number
	Bool
	Time
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Int:
		return "integer"
	case Number:
		return "number"
	case Bool:
		return "boolean"
	case Time:
		return "timestamp"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Field is one declared field.
type Field struct {
	Name string
	Kind Kind
}

// Schema is the declared shape of a document. No field is required; a
// present field must hold a value of its kind or null.
type Schema struct {
	Name   string
	Fields []Field
	// Timestamps adds created_at and updated_at fields.
	Timestamps bool
	// Strict rejects fields that are not declared.
	Strict bool
}

// Field looks up a declared field, including timestamp fields.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	if s.Timestamps && (name == CreatedAtField || name == UpdatedAtField) {
		return Field{Name: name, Kind: Time}, true
	}
	return Field{}, false
}

// FieldNames returns the declared field names in declaration order,
// followed by the timestamp fields when enabled.
func (s *Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields)+2)
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	if s.Timestamps {
		names = append(names, CreatedAtField, UpdatedAtField)
	}
	return names
}

// Validate checks every field of doc and returns all violations joined.
// _id is always allowed.
func (s *Schema) Validate(doc map[string]any) error {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		if key == "_id" {
			continue
		}
		f, ok := s.Field(key)
		if !ok {
			if s.Strict {
				errs = append(errs, fmt.Errorf("%s: %w %q", s.Name, ErrUnknownField, key))
			}
			continue
		}
		if err := checkKind(f.Kind, doc[key]); err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", s.Name, key, err))
		}
	}
	return errors.Join(errs...)
}

func checkKind(expected Kind, value any) error {
	if value == nil {
		return nil
	}
	actual := kindOf(value)
	switch {
	case actual == expected:
		return nil
	case expected == Number && actual == Int:
		return nil
	case expected == Int && actual == Number:
		// Accept float values that are whole numbers
		if f, ok := value.(float64); ok && f == math.Trunc(f) {
			return nil
		}
	case expected == Time && actual == String:
		if _, err := time.Parse(time.RFC3339, value.(string)); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: expected %s, got %s", ErrType, expected, describe(value, actual))
}

func kindOf(v any) Kind {
	switch v.(type) {
	case string:
		return String
	case bool:
		return Bool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Int
	case float32, float64:
		return Number
	case time.Time, primitive.DateTime:
		return Time
	}
	return 0
}

func describe(v any, k Kind) string {
	if k != 0 {
		return k.String()
	}
	return reflect.TypeOf(v).String()
}
