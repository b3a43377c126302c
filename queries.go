package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/stevemurr/plp-bookstore/model"
	"github.com/stevemurr/plp-bookstore/queries"
	"github.com/stevemurr/plp-bookstore/report"
)

// runQueries runs every query step against the books collection.
func runQueries(args []string) int {
	fs := flag.NewFlagSet("queries", flag.ContinueOnError)
	globals := registerGlobalFlags(fs)

	p := queries.DefaultParams()
	fs.StringVar(&p.Genre, "genre", p.Genre, "Genre to filter by")
	fs.IntVar(&p.AfterYear, "after", p.AfterYear, "List books published after this year")
	fs.StringVar(&p.Author, "author", p.Author, "Author to filter by")
	fs.StringVar(&p.UpdateTitle, "update-title", p.UpdateTitle, "Title of the book whose price is updated")
	fs.Float64Var(&p.NewPrice, "price", p.NewPrice, "New price of --update-title")
	fs.StringVar(&p.DeleteTitle, "delete-title", p.DeleteTitle, "Title of the book to delete")
	fs.IntVar(&p.InStockAfter, "in-stock-after", p.InStockAfter, "List in-stock books published after this year")
	fs.IntVar(&p.Page, "page", p.Page, "Page to show (1-based)")
	fs.IntVar(&p.PageSize, "page-size", p.PageSize, "Books per page")
	fs.StringVar(&p.ExplainTitle, "explain-title", p.ExplainTitle, "Title used for the explain step")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: bookstore queries [options]

Description:
  Run the find, update, delete, projection, sort, pagination, aggregation,
  index and explain operations in order. Stops at the first failure.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  bookstore queries                              Run with the default arguments
  bookstore queries --genre Romance --page 2     Filter another genre, show page 2
  bookstore queries --backend json -q            Use the JSON file store, warnings only

`)
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return ExitOK
		}
		return ExitGeneral
	}
	logger := globals.Logger()

	cfg, err := globals.Config()
	if err != nil {
		logger.Error("configuration", "error", err)
		return ExitConfig
	}

	ctx := context.Background()
	books, closeStore, err := openBooks(ctx, cfg, logger)
	if err != nil {
		logger.Error("connect", "error", err)
		return ExitDatabase
	}
	defer closeStore()

	out := report.New(os.Stdout, report.WithFieldOrder(model.BookSchema.FieldNames()...))
	if err := queries.NewRunner(books, out, p, logger).Run(ctx); err != nil {
		logger.Error("queries", "error", err)
		return ExitQuery
	}
	return ExitOK
}
