package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/realtime-news-crawler/internal/config"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(os.Stderr)
	return cmd.Execute()
}

func TestFlagsOverrideConfig(t *testing.T) {
	t.Parallel()

	cmd := newRunCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--workers", "8", "--interval", "30s"}))

	v := viper.New()
	require.NoError(t, bindFlags(v, cmd))
	cfg, err := config.LoadWith(v, "")
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.CycleInterval)
}

func TestUnsetFlagsKeepFileValues(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  workers: 3\n"), 0o600))

	cmd := newRunCmd()
	require.NoError(t, cmd.ParseFlags(nil))

	v := viper.New()
	require.NoError(t, bindFlags(v, cmd))
	cfg, err := config.LoadWith(v, path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Pipeline.Workers)
	assert.Equal(t, 2*time.Minute, cfg.Pipeline.CycleInterval)
}

func TestRunRejectsInvalidFlags(t *testing.T) {
	t.Parallel()

	err := execute(t, "run", "--workers", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers")
}

func TestMigrateRequiresDSN(t *testing.T) {
	t.Parallel()

	err := execute(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.dsn")
}

func TestReindexRequiresSearch(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  enabled: false\n"), 0o600))

	err := execute(t, "--config", path, "reindex")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.enabled")
}

func TestMissingConfigFileFails(t *testing.T) {
	t.Parallel()

	err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}
