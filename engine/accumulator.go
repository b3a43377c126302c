package engine

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

type accumulator interface {
	add(v any)
	result() any
}

func newAccumulator(op string) (accumulator, error) {
	switch op {
	case "$sum":
		return &sumAcc{allInt: true}, nil
	case "$avg":
		return &avgAcc{}, nil
	case "$min":
		return &pickAcc{want: -1}, nil
	case "$max":
		return &pickAcc{want: 1}, nil
	case "$first":
		return &firstAcc{}, nil
	case "$last":
		return &lastAcc{}, nil
	case "$push":
		return &pushAcc{out: bson.A{}}, nil
	}
	return nil, fmt.Errorf("%w: accumulator %s", ErrUnsupported, op)
}

// sumAcc ignores non-numeric values.
type sumAcc struct {
	allInt bool
	i      int64
	f      float64
}

func (a *sumAcc) add(v any) {
	n, ok := ToNumber(v)
	if !ok {
		return
	}
	a.allInt = a.allInt && isInteger(v)
	a.i += int64(n)
	a.f += n
}

func (a *sumAcc) result() any {
	if a.allInt {
		return intResult(a.i)
	}
	return a.f
}

type avgAcc struct {
	sum float64
	n   int
}

func (a *avgAcc) add(v any) {
	if n, ok := ToNumber(v); ok {
		a.sum += n
		a.n++
	}
}

func (a *avgAcc) result() any {
	if a.n == 0 {
		return nil
	}
	return a.sum / float64(a.n)
}

// pickAcc keeps the smallest (want -1) or largest (want 1) non-null value.
type pickAcc struct {
	want int
	v    any
	set  bool
}

func (a *pickAcc) add(v any) {
	if typeRank(v) == rankNull {
		return
	}
	if !a.set || Compare(v, a.v) == a.want {
		a.v, a.set = v, true
	}
}

func (a *pickAcc) result() any { return a.v }

type firstAcc struct {
	v   any
	set bool
}

func (a *firstAcc) add(v any) {
	if !a.set {
		a.v, a.set = v, true
	}
}

func (a *firstAcc) result() any { return a.v }

type lastAcc struct{ v any }

func (a *lastAcc) add(v any) { a.v = v }

func (a *lastAcc) result() any { return a.v }

type pushAcc struct{ out bson.A }

func (a *pushAcc) add(v any) { a.out = append(a.out, v) }

func (a *pushAcc) result() any { return a.out }
