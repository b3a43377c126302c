package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with the bookstore variables
// unset. godotenv only fills variables that are absent, so empty is not enough.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, k := range []string{"MONGODB_URI", "BOOKSTORE_BACKEND", "BOOKSTORE_DATABASE", "BOOKSTORE_COLLECTION", "BOOKSTORE_DATA_DIR", "BOOKSTORE_TIMEOUT"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "plp_bookstore", cfg.Database)
	assert.Equal(t, "books", cfg.Collection)
}

func TestLoadPrecedence(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bookstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend: sqlite
database: from_yaml
collection: from_yaml
data_dir: /var/lib/bookstore
timeout: 30s
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DotEnvFile), []byte("BOOKSTORE_DATABASE=from_dotenv\nBOOKSTORE_COLLECTION=from_dotenv\n"), 0o644))
	t.Setenv("BOOKSTORE_COLLECTION", "from_env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Backend)
	assert.Equal(t, "/var/lib/bookstore", cfg.DataDir)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "from_dotenv", cfg.Database)
	assert.Equal(t, "from_env", cfg.Collection, "real environment wins over .env")
}

func TestLoadErrors(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	t.Setenv("BOOKSTORE_TIMEOUT", "soon")
	_, err = Load("")
	assert.ErrorIs(t, err, ErrInvalid)

}

func TestLoadLeavesValidationToCaller(t *testing.T) {
	isolate(t)
	t.Setenv("MONGODB_URI", "http://localhost:27017")

	cfg, err := Load("")
	require.NoError(t, err)
	err = cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "mongodb://")

	cfg.Backend = "memory"
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"memory ignores uri", func(c *Config) { c.Backend = "memory"; c.URI = "" }, true},
		{"srv uri", func(c *Config) { c.URI = "mongodb+srv://cluster0.example.net" }, true},
		{"unknown backend", func(c *Config) { c.Backend = "redis" }, false},
		{"sqlite without data dir", func(c *Config) { c.Backend = "sqlite"; c.DataDir = "" }, false},
		{"empty database", func(c *Config) { c.Database = "" }, false},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}
