package queries

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/stevemurr/plp-bookstore/model"
	"github.com/stevemurr/plp-bookstore/report"
)

// Params holds the literal arguments of each operation.
type Params struct {
	Genre        string
	AfterYear    int
	Author       string
	UpdateTitle  string
	NewPrice     float64
	DeleteTitle  string
	InStockAfter int
	Page         int
	PageSize     int
	ExplainTitle string
}

func DefaultParams() Params {
	return Params{
		Genre:        "Fiction",
		AfterYear:    1950,
		Author:       "George Orwell",
		UpdateTitle:  "The Great Gatsby",
		NewPrice:     12.99,
		DeleteTitle:  "Moby Dick",
		InStockAfter: 2010,
		Page:         1,
		PageSize:     5,
		ExplainTitle: "The Hobbit",
	}
}

// Step is one named operation of a run.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Runner executes the operations in order and prints each result.
type Runner struct {
	books  *model.BookModel
	out    *report.Printer
	params Params
	logger *slog.Logger
}

func NewRunner(books *model.BookModel, out *report.Printer, params Params, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{books: books, out: out, params: params, logger: logger}
}

// Run executes every step in order, stopping at the first failure.
func (r *Runner) Run(ctx context.Context) error {
	steps := r.Steps()
	for i, s := range steps {
		r.logger.Debug("running step", "step", i+1, "of", len(steps), "name", s.Name)
		if err := s.Run(ctx); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, s.Name, err)
		}
	}
	return nil
}

// Steps returns the operations in execution order.
func (r *Runner) Steps() []Step {
	p := r.params
	return []Step{
		{"find by genre", r.documents(fmt.Sprintf("%s Books:", p.Genre), func(ctx context.Context) ([]bson.M, error) {
			return ByGenre(ctx, r.books, p.Genre)
		})},
		{"find published after", r.documents(fmt.Sprintf("Books published after %d:", p.AfterYear), func(ctx context.Context) ([]bson.M, error) {
			return PublishedAfter(ctx, r.books, p.AfterYear)
		})},
		{"find by author", r.documents(fmt.Sprintf("Books by %s:", p.Author), func(ctx context.Context) ([]bson.M, error) {
			return ByAuthor(ctx, r.books, p.Author)
		})},
		{"update price", func(ctx context.Context) error {
			res, err := UpdatePrice(ctx, r.books, p.UpdateTitle, p.NewPrice)
			if err != nil {
				return err
			}
			r.out.Heading(fmt.Sprintf("Updated %d book's price", res.ModifiedCount))
			return nil
		}},
		{"delete by title", func(ctx context.Context) error {
			n, err := DeleteByTitle(ctx, r.books, p.DeleteTitle)
			if err != nil {
				return err
			}
			r.out.Heading(fmt.Sprintf("Deleted %d book(s)", n))
			return nil
		}},
		{"in stock after", r.documents(fmt.Sprintf("In-stock books published after %d (title, author, price):", p.InStockAfter), func(ctx context.Context) ([]bson.M, error) {
			return InStockAfter(ctx, r.books, p.InStockAfter)
		})},
		{"sort by price ascending", r.documents("Books sorted by price (ascending):", func(ctx context.Context) ([]bson.M, error) {
			return SortedByPrice(ctx, r.books, true)
		})},
		{"sort by price descending", r.documents("Books sorted by price (descending):", func(ctx context.Context) ([]bson.M, error) {
			return SortedByPrice(ctx, r.books, false)
		})},
		{"paginate", r.documents(fmt.Sprintf("Page %d of books:", p.Page), func(ctx context.Context) ([]bson.M, error) {
			return Page(ctx, r.books, p.Page, p.PageSize)
		})},
		{"average price by genre", func(ctx context.Context) error {
			rows, err := AveragePriceByGenre(ctx, r.books)
			if err != nil {
				return err
			}
			r.out.Heading("Average price of books by genre:")
			for _, row := range rows {
				r.out.Linef("  %-25s %.2f", row.Genre, row.AvgPrice)
			}
			return nil
		}},
		{"top author", func(ctx context.Context) error {
			rows, err := TopAuthors(ctx, r.books, 1)
			if err != nil {
				return err
			}
			r.out.Heading("Author with the most books:")
			for _, row := range rows {
				r.out.Linef("  %s (%d books)", row.Author, row.Count)
			}
			return nil
		}},
		{"books by decade", func(ctx context.Context) error {
			rows, err := BooksByDecade(ctx, r.books)
			if err != nil {
				return err
			}
			r.out.Heading("Number of books by publication decade:")
			for _, row := range rows {
				r.out.Linef("  %ds: %d", row.Decade, row.TotalBooks)
			}
			return nil
		}},
		{"index title", func(ctx context.Context) error {
			name, err := IndexTitle(ctx, r.books)
			if err != nil {
				return err
			}
			r.out.Heading("Created index: " + name)
			return nil
		}},
		{"index author and year", func(ctx context.Context) error {
			name, err := IndexAuthorYear(ctx, r.books)
			if err != nil {
				return err
			}
			r.out.Linef("Created compound index: %s", name)
			return nil
		}},
		{"explain title lookup", func(ctx context.Context) error {
			stats, err := ExplainTitle(ctx, r.books, p.ExplainTitle)
			if err != nil {
				return err
			}
			r.out.Heading("Query performance (explain):")
			return r.out.Value(stats)
		}},
	}
}

func (r *Runner) documents(title string, find func(context.Context) ([]bson.M, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		docs, err := find(ctx)
		if err != nil {
			return err
		}
		r.out.Heading(title)
		return r.out.Documents(docs)
	}
}
