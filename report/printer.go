// Package report writes query results for a human reader.
package report

import (
	"fmt"
	"io"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
)

// Printer writes headings, lines and documents to an output stream.
// Documents are rendered as indented relaxed Extended JSON.
type Printer struct {
	w     io.Writer
	order map[string]int
}

// Option configures a Printer.
type Option func(*Printer)

// WithFieldOrder prints the named fields first, in the given order, after
// _id. Remaining fields follow alphabetically.
func WithFieldOrder(fields ...string) Option {
	return func(p *Printer) {
		for i, f := range fields {
			p.order[f] = i
		}
	}
}

func New(w io.Writer, opts ...Option) *Printer {
	p := &Printer{w: w, order: map[string]int{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Heading starts a new section.
func (p *Printer) Heading(title string) {
	fmt.Fprintf(p.w, "\n%s\n", title)
}

func (p *Printer) Linef(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Documents prints docs as a JSON array.
func (p *Printer) Documents(docs []bson.M) error {
	if len(docs) == 0 {
		fmt.Fprintln(p.w, "[]")
		return nil
	}
	fmt.Fprintln(p.w, "[")
	for i, d := range docs {
		b, err := bson.MarshalExtJSONIndent(p.ordered(d), false, false, "  ", "  ")
		if err != nil {
			return fmt.Errorf("render document %d: %w", i, err)
		}
		sep := ","
		if i == len(docs)-1 {
			sep = ""
		}
		fmt.Fprintf(p.w, "  %s%s\n", b, sep)
	}
	fmt.Fprintln(p.w, "]")
	return nil
}

// Value prints a struct or document as indented JSON.
func (p *Printer) Value(v any) error {
	b, err := bson.MarshalExtJSONIndent(v, false, false, "", "  ")
	if err != nil {
		return fmt.Errorf("render %T: %w", v, err)
	}
	fmt.Fprintf(p.w, "%s\n", b)
	return nil
}

func (p *Printer) ordered(doc bson.M) bson.D {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := p.rank(keys[i]), p.rank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	out := make(bson.D, 0, len(keys))
	for _, k := range keys {
		v := doc[k]
		if nested, ok := v.(bson.M); ok {
			v = p.ordered(nested)
		}
		out = append(out, bson.E{Key: k, Value: v})
	}
	return out
}

func (p *Printer) rank(key string) int {
	if key == "_id" {
		return -1
	}
	if i, ok := p.order[key]; ok {
		return i
	}
	return len(p.order)
}
