package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/stevemurr/plp-bookstore/model"
	"github.com/stevemurr/plp-bookstore/report"
	"github.com/stevemurr/plp-bookstore/seed"
)

// runSeed replaces the books collection with the sample catalogue or the
// books of --file.
func runSeed(args []string) int {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	globals := registerGlobalFlags(fs)
	file := fs.StringP("file", "f", "", "YAML or JSON list of books to load instead of the sample catalogue")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: bookstore seed [options]

Description:
  Drop the books collection when it already holds documents, insert the
  catalogue and list every stored book.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  bookstore seed                          Load the sample catalogue into MongoDB
  bookstore seed --backend sqlite         Load it into ./data/plp_bookstore.db
  bookstore seed --file books.yaml        Load a custom catalogue

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

	catalogue := seed.Books()
	if *file != "" {
		if catalogue, err = seed.LoadFile(*file); err != nil {
			logger.Error("load catalogue", "file", *file, "error", err)
			return ExitConfig
		}
	}

	ctx := context.Background()
	books, closeStore, err := openBooks(ctx, cfg, logger)
	if err != nil {
		logger.Error("connect", "error", err)
		return ExitDatabase
	}
	defer closeStore()

	out := report.New(os.Stdout, report.WithFieldOrder(model.BookSchema.FieldNames()...))
	if _, err := seed.Run(ctx, books, catalogue, out, logger); err != nil {
		logger.Error("seed", "error", err)
		return ExitQuery
	}
	return ExitOK
}
