// Package config resolves the bookstore settings from defaults, an optional
// YAML file, a .env file and the environment. Command-line flags are applied
// on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// DotEnvFile is loaded from the working directory when present.
const DotEnvFile = ".env"

type Config struct {
	Backend    string `yaml:"backend"`
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
	DataDir    string `yaml:"data_dir"`

	// Timeout bounds connecting to the store. Zero keeps the MongoDB
	// driver's own server selection and connect timeouts.
	Timeout time.Duration `yaml:"timeout"`
}

func Default() *Config {
	return &Config{
		Backend:    "mongo",
		URI:        "mongodb://localhost:27017",
		Database:   "plp_bookstore",
		Collection: "books",
		DataDir:    "./data",
	}
}

// Load returns the defaults overlaid with the YAML file at path (skipped when
// path is empty), then with the environment. Variables from DotEnvFile are
// added to the environment first but never replace ones already set. The
// result is not validated, so that flags can still override it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", DotEnvFile, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.URI = env("MONGODB_URI", c.URI)
	c.Backend = env("BOOKSTORE_BACKEND", c.Backend)
	c.Database = env("BOOKSTORE_DATABASE", c.Database)
	c.Collection = env("BOOKSTORE_COLLECTION", c.Collection)
	c.DataDir = env("BOOKSTORE_DATA_DIR", c.DataDir)
	if v := os.Getenv("BOOKSTORE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: BOOKSTORE_TIMEOUT: %v", ErrInvalid, err)
		}
		c.Timeout = d
	}
	return nil
}

// Validate checks the settings the selected backend needs.
func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case "mongo", "":
		if !strings.HasPrefix(c.URI, "mongodb://") && !strings.HasPrefix(c.URI, "mongodb+srv://") {
			errs = append(errs, fmt.Errorf("uri %q must start with mongodb:// or mongodb+srv://", c.URI))
		}
	case "json", "sqlite":
		if c.DataDir == "" {
			errs = append(errs, errors.New("data_dir is required for the "+c.Backend+" backend"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if c.Database == "" {
		errs = append(errs, errors.New("database is required"))
	}
	if c.Collection == "" {
		errs = append(errs, errors.New("collection is required"))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
