package engine

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

var errDivideByZero = errors.New("can't $divide by zero")

// Eval evaluates an aggregation expression against doc. Strings starting with
// "$" are field paths, single-key documents whose key starts with "$" are
// operators, other documents are evaluated field by field and everything
// else is a literal.
func Eval(expr any, doc bson.M) (any, error) {
	switch e := expr.(type) {
	case string:
		if strings.HasPrefix(e, "$$") {
			return nil, fmt.Errorf("%w: variable %s", ErrUnsupported, e)
		}
		if strings.HasPrefix(e, "$") {
			v, _ := Lookup(doc, e[1:])
			return v, nil
		}
		return e, nil
	case bson.D:
		if len(e) == 1 && strings.HasPrefix(e[0].Key, "$") {
			return evalOperator(e[0].Key, e[0].Value, doc)
		}
		out := bson.M{}
		for _, f := range e {
			v, err := Eval(f.Value, doc)
			if err != nil {
				return nil, err
			}
			out[f.Key] = v
		}
		return out, nil
	case bson.A:
		out := make(bson.A, 0, len(e))
		for _, item := range e {
			v, err := Eval(item, doc)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	return expr, nil
}

func evalArgs(raw any, doc bson.M) ([]any, error) {
	items, ok := raw.(bson.A)
	if !ok {
		items = bson.A{raw}
	}
	args := make([]any, 0, len(items))
	for _, item := range items {
		v, err := Eval(item, doc)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

func evalOperator(op string, raw any, doc bson.M) (any, error) {
	if op == "$literal" {
		return raw, nil
	}
	args, err := evalArgs(raw, doc)
	if err != nil {
		return nil, err
	}
	for _, a := range args {
		if a == nil {
			return nil, nil
		}
	}

	switch op {
	case "$add", "$multiply":
		return fold(op, args)
	case "$subtract", "$divide":
		if len(args) != 2 {
			return nil, fmt.Errorf("%s takes exactly 2 arguments, got %d", op, len(args))
		}
		a, aok := ToNumber(args[0])
		b, bok := ToNumber(args[1])
		if !aok || !bok {
			return nil, fmt.Errorf("%s only supports numeric types", op)
		}
		if op == "$divide" {
			if b == 0 {
				return nil, errDivideByZero
			}
			return a / b, nil
		}
		if isInteger(args[0]) && isInteger(args[1]) {
			return intResult(int64(a) - int64(b)), nil
		}
		return a - b, nil
	case "$floor", "$ceil":
		if len(args) != 1 {
			return nil, fmt.Errorf("%s takes exactly 1 argument, got %d", op, len(args))
		}
		if isInteger(args[0]) {
			return args[0], nil
		}
		n, ok := ToNumber(args[0])
		if !ok {
			return nil, fmt.Errorf("%s only supports numeric types", op)
		}
		if op == "$floor" {
			return math.Floor(n), nil
		}
		return math.Ceil(n), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, op)
}

func fold(op string, args []any) (any, error) {
	allInt := true
	var fi int64
	var ff float64
	if op == "$multiply" {
		fi, ff = 1, 1
	}
	for _, a := range args {
		n, ok := ToNumber(a)
		if !ok {
			return nil, fmt.Errorf("%s only supports numeric types, not %T", op, a)
		}
		allInt = allInt && isInteger(a)
		if op == "$add" {
			fi += int64(n)
			ff += n
		} else {
			fi *= int64(n)
			ff *= n
		}
	}
	if allInt {
		return intResult(fi), nil
	}
	return ff, nil
}
