package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stevemurr/plp-bookstore/model"
	"github.com/stevemurr/plp-bookstore/report"
	"github.com/stevemurr/plp-bookstore/store"
)

// ErrEmptyCatalogue is returned by LoadFile for a file without books.
var ErrEmptyCatalogue = errors.New("catalogue contains no books")

// LoadFile reads a YAML (or JSON) list of books. Every entry is checked
// against the Book schema in strict mode, so misspelled fields and the
// store-maintained timestamps are reported instead of silently dropped.
func LoadFile(path string) ([]model.Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyCatalogue)
	}

	strict := model.BookSchema
	strict.Strict = true
	// Timestamps are stamped on insert; model.Book never decodes them from a file.
	strict.Timestamps = false
	var errs []error
	for i, doc := range raw {
		if err := strict.Validate(doc); err != nil {
			errs = append(errs, fmt.Errorf("book %d: %w", i+1, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var books []model.Book
	if err := yaml.Unmarshal(data, &books); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return books, nil
}

// Result summarises a seed run.
type Result struct {
	Dropped  int64
	Inserted int
	Books    []model.Book
}

// Run replaces the contents of the books collection with catalogue and
// prints the stored books. Existing documents are dropped first, so running
// it repeatedly always leaves exactly the catalogue behind.
func Run(ctx context.Context, books *model.BookModel, catalogue []model.Book, out *report.Printer, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	res := &Result{}

	count, err := books.Count(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", books.Collection(), err)
	}
	if count > 0 {
		logger.Info("collection already has documents, dropping", "collection", books.Collection(), "count", count)
		if err := books.Drop(ctx); err != nil {
			return nil, fmt.Errorf("drop %s: %w", books.Collection(), err)
		}
		logger.Info("collection dropped", "collection", books.Collection())
		res.Dropped = count
	}

	ids, err := books.InsertMany(ctx, catalogue)
	if err != nil {
		return nil, err
	}
	res.Inserted = len(ids)
	out.Linef("%d books were successfully inserted into the database", res.Inserted)

	res.Books, err = books.FindBooks(ctx, nil, store.FindOptions{})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", books.Collection(), err)
	}
	out.Heading("Inserted books:")
	for i, b := range res.Books {
		out.Linef("%d. %q by %s (%d)", i+1, b.Title, b.Author, b.PublishedYear)
	}
	return res, nil
}
