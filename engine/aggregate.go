package engine

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Aggregate runs a pipeline over docs. Supported stages: $match, $group,
// $sort, $limit, $skip, $project and $count. The input slice is not modified.
func Aggregate(docs []bson.M, pipeline []bson.D) ([]bson.M, error) {
	out := append([]bson.M(nil), docs...)
	for i, raw := range pipeline {
		stage, err := Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		if len(stage) != 1 {
			return nil, fmt.Errorf("stage %d: a pipeline stage specification must contain exactly one field", i)
		}
		out, err = runStage(out, stage[0])
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i, stage[0].Key, err)
		}
	}
	return out, nil
}

func runStage(docs []bson.M, stage bson.E) ([]bson.M, error) {
	switch stage.Key {
	case "$match":
		pred, err := Compile(stage.Value)
		if err != nil {
			return nil, err
		}
		out := docs[:0:0]
		for _, d := range docs {
			ok, err := pred(d)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, d)
			}
		}
		return out, nil
	case "$group":
		spec, ok := stage.Value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("the group specification must be a document")
		}
		return group(docs, spec)
	case "$sort":
		spec, ok := stage.Value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("the sort specification must be a document")
		}
		return docs, Sort(docs, spec)
	case "$limit", "$skip":
		n, ok := ToNumber(stage.Value)
		if !ok || n < 0 || (stage.Key == "$limit" && n == 0) {
			return nil, fmt.Errorf("invalid argument %v", stage.Value)
		}
		k := int(n)
		if stage.Key == "$limit" {
			return docs[:min(k, len(docs))], nil
		}
		return docs[min(k, len(docs)):], nil
	case "$project":
		spec, ok := stage.Value.(bson.D)
		if !ok || len(spec) == 0 {
			return nil, fmt.Errorf("the projection specification must be a non-empty document")
		}
		out := make([]bson.M, 0, len(docs))
		for _, d := range docs {
			p, err := Project(d, spec)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	case "$count":
		name, ok := stage.Value.(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("the count field must be a non-empty string")
		}
		if len(docs) == 0 {
			return nil, nil
		}
		return []bson.M{{name: intResult(int64(len(docs)))}}, nil
	}
	return nil, fmt.Errorf("%w: stage %s", ErrUnsupported, stage.Key)
}

type groupRow struct {
	id   any
	accs []accumulator
}

func group(docs []bson.M, spec bson.D) ([]bson.M, error) {
	var idExpr any
	hasID := false
	type field struct {
		name string
		op   string
		expr any
	}
	var fields []field
	for _, e := range spec {
		if e.Key == "_id" {
			idExpr, hasID = e.Value, true
			continue
		}
		acc, ok := e.Value.(bson.D)
		if !ok || len(acc) != 1 {
			return nil, fmt.Errorf("the field '%s' must be an accumulator object", e.Key)
		}
		if _, err := newAccumulator(acc[0].Key); err != nil {
			return nil, err
		}
		fields = append(fields, field{name: e.Key, op: acc[0].Key, expr: acc[0].Value})
	}
	if !hasID {
		return nil, fmt.Errorf("a group specification must include an _id")
	}

	var order []string
	rows := map[string]*groupRow{}
	for _, d := range docs {
		id, err := Eval(idExpr, d)
		if err != nil {
			return nil, err
		}
		key, err := groupKey(id)
		if err != nil {
			return nil, err
		}
		row, ok := rows[key]
		if !ok {
			row = &groupRow{id: id, accs: make([]accumulator, len(fields))}
			for i, f := range fields {
				row.accs[i], _ = newAccumulator(f.op)
			}
			rows[key] = row
			order = append(order, key)
		}
		for i, f := range fields {
			v, err := Eval(f.expr, d)
			if err != nil {
				return nil, err
			}
			row.accs[i].add(v)
		}
	}

	out := make([]bson.M, 0, len(order))
	for _, key := range order {
		row := rows[key]
		doc := bson.M{"_id": row.id}
		for i, f := range fields {
			doc[f.name] = row.accs[i].result()
		}
		out = append(out, doc)
	}
	return out, nil
}

func groupKey(id any) (string, error) {
	b, err := bson.MarshalExtJSON(bson.D{{Key: "k", Value: canonicalID(id)}}, true, false)
	if err != nil {
		return "", fmt.Errorf("group key: %w", err)
	}
	return string(b), nil
}

// canonicalID folds numeric group keys so 2010 and 2010.0 share a group, as
// they do on the server.
func canonicalID(id any) any {
	if n, ok := ToNumber(id); ok {
		return n
	}
	if m, ok := id.(bson.M); ok {
		return toD(m)
	}
	return id
}
