package main

import (
	"context"
	"os"
	"testing"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/plp-bookstore/config"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, k := range []string{"MONGODB_URI", "BOOKSTORE_BACKEND", "BOOKSTORE_DATABASE", "BOOKSTORE_COLLECTION", "BOOKSTORE_DATA_DIR", "BOOKSTORE_TIMEOUT"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func parseGlobals(t *testing.T, args ...string) *GlobalFlags {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	g := registerGlobalFlags(fs)
	require.NoError(t, fs.Parse(args))
	return g
}

func TestFlagsOverrideEnvironmentBeforeValidation(t *testing.T) {
	isolateEnv(t)
	t.Setenv("BOOKSTORE_BACKEND", "bogus")

	cfg, err := parseGlobals(t, "--backend", "memory").Config()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Backend)

	_, err = parseGlobals(t).Config()
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestConnectContext(t *testing.T) {
	ctx, cancel := connectContext(context.Background(), 0)
	defer cancel()
	_, ok := ctx.Deadline()
	assert.False(t, ok, "zero timeout keeps driver defaults")

	ctx, cancel = connectContext(context.Background(), time.Minute)
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestRunSeedMemoryBackend(t *testing.T) {
	isolateEnv(t)
	assert.Equal(t, ExitOK, runSeed([]string{"--backend", "memory", "--quiet"}))
	assert.Equal(t, ExitConfig, runSeed([]string{"--backend", "bogus", "--quiet"}))
}
