package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/stevemurr/plp-bookstore/config"
	"github.com/stevemurr/plp-bookstore/model"
	"github.com/stevemurr/plp-bookstore/store"
)

// Exit codes.
const (
	ExitOK       = 0
	ExitGeneral  = 1
	ExitConfig   = 2
	ExitDatabase = 3
	ExitQuery    = 4
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(ExitGeneral)
	}

	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "seed":
		os.Exit(runSeed(args))
	case "queries":
		os.Exit(runQueries(args))
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", cmd)
		usage()
		os.Exit(ExitGeneral)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: bookstore <command> [options]

Commands:
  seed      Replace the books collection with the sample catalogue
  queries   Run the bookstore queries, aggregations and index operations

Run 'bookstore <command> --help' for the options of a command.

Environment:
  MONGODB_URI            MongoDB connection string (default mongodb://localhost:27017)
  BOOKSTORE_BACKEND      mongo, sqlite, json or memory (default mongo)
  BOOKSTORE_DATABASE     Database name (default plp_bookstore)
  BOOKSTORE_COLLECTION   Collection name (default books)
  BOOKSTORE_DATA_DIR     Directory of the sqlite and json backends (default ./data)
  BOOKSTORE_TIMEOUT      Connection timeout (default 0, the driver defaults)

Variables are also read from a .env file in the working directory.
`)
}

// GlobalFlags are accepted by every command and override the configuration.
type GlobalFlags struct {
	fs         *flag.FlagSet
	ConfigPath string
	Backend    string
	URI        string
	Database   string
	Collection string
	DataDir    string
	Timeout    time.Duration
	Quiet      bool
}

func registerGlobalFlags(fs *flag.FlagSet) *GlobalFlags {
	g := &GlobalFlags{fs: fs}
	fs.StringVarP(&g.ConfigPath, "config", "c", "", "Path to a YAML configuration file")
	fs.StringVar(&g.Backend, "backend", "", "Storage backend: mongo, sqlite, json or memory")
	fs.StringVar(&g.URI, "uri", "", "MongoDB connection string")
	fs.StringVar(&g.Database, "database", "", "Database name")
	fs.StringVar(&g.Collection, "collection", "", "Collection name")
	fs.StringVar(&g.DataDir, "data-dir", "", "Data directory of the sqlite and json backends")
	fs.DurationVar(&g.Timeout, "timeout", 0, "Connection timeout; 0 keeps the driver defaults")
	fs.BoolVarP(&g.Quiet, "quiet", "q", false, "Only log warnings and errors")
	return g
}

// Config loads the configuration, applies the flags set on the command line
// and validates the result.
func (g *GlobalFlags) Config() (*config.Config, error) {
	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return nil, err
	}
	if g.fs.Changed("backend") {
		cfg.Backend = g.Backend
	}
	if g.fs.Changed("uri") {
		cfg.URI = g.URI
	}
	if g.fs.Changed("database") {
		cfg.Database = g.Database
	}
	if g.fs.Changed("collection") {
		cfg.Collection = g.Collection
	}
	if g.fs.Changed("data-dir") {
		cfg.DataDir = g.DataDir
	}
	if g.fs.Changed("timeout") {
		cfg.Timeout = g.Timeout
	}
	return cfg, cfg.Validate()
}

func (g *GlobalFlags) Logger() *slog.Logger {
	level := slog.LevelInfo
	if g.Quiet {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// connectContext bounds connecting to a store by timeout. A zero timeout
// leaves ctx as is.
func connectContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// openBooks connects to the configured store. Only the connection is bounded
// by cfg.Timeout. The returned close function must always be called.
func openBooks(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*model.BookModel, func(), error) {
	connectCtx, cancel := connectContext(ctx, cfg.Timeout)
	defer cancel()
	s, err := store.New(connectCtx, store.Options{
		Backend:  cfg.Backend,
		URI:      cfg.URI,
		Database: cfg.Database,
		DataDir:  cfg.DataDir,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("connected", "backend", cfg.Backend, "database", cfg.Database, "collection", cfg.Collection)

	closeFn := func() {
		if err := s.Close(context.Background()); err != nil {
			logger.Warn("close store", "error", err)
			return
		}
		logger.Info("connection closed")
	}
	return model.NewBookModel(s, cfg.Collection), closeFn, nil
}
