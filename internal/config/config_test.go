package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/realtime-news-crawler/internal/harvest"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadWith(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Pipeline.Workers)
	assert.Equal(t, 2*time.Minute, cfg.Pipeline.CycleInterval)
	assert.Zero(t, cfg.Pipeline.QueueCapacity)
	assert.Zero(t, cfg.Pipeline.ShutdownTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Sources.FreshnessWindow)
	assert.InDelta(t, 5.0, cfg.Sources.RequestsPerSecond, 0)
	assert.Equal(t, 2, cfg.Sources.Burst)
	assert.Equal(t, SourceConfig{Enabled: true, MaxPages: 10}, cfg.Sources.Kind(harvest.KindNews))
	assert.Equal(t, SourceConfig{Enabled: true, MaxPages: 4}, cfg.Sources.Kind(harvest.KindEnter))
	assert.Equal(t, SourceConfig{Enabled: true, MaxPages: 4}, cfg.Sources.Kind(harvest.KindSport))
	assert.Equal(t, "gpt-4o-mini", cfg.Analyzer.ScoreModel)
	assert.Empty(t, cfg.Database.DSN)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	configYAML := `
server:
  port: 9090
pipeline:
  workers: 8
  cycle_interval: 30s
  queue_capacity: 100
  shutdown_timeout: 1m
sources:
  freshness_window: 5m
  sport:
    enabled: false
analyzer:
  api_key: sk-test
  model: gpt-4.1
database:
  dsn: postgres://news@localhost/news
  migrate_on_start: true
archive:
  backend: local
  local_dir: /tmp/news
pubsub:
  backend: memory
logging:
  development: false
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := LoadWith(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.CycleInterval)
	assert.Equal(t, 100, cfg.Pipeline.QueueCapacity)
	assert.Equal(t, time.Minute, cfg.Pipeline.ShutdownTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Sources.FreshnessWindow)
	assert.False(t, cfg.Sources.Sport.Enabled)
	assert.Equal(t, 4, cfg.Sources.Sport.MaxPages)
	assert.Equal(t, "sk-test", cfg.Analyzer.APIKey)
	assert.Equal(t, "gpt-4.1", cfg.Analyzer.Model)
	assert.True(t, cfg.Database.MigrateOnStart)
	assert.Equal(t, BackendLocal, cfg.Archive.Backend)
	assert.False(t, cfg.Logging.Development)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NEWSCRAWLER_PIPELINE_WORKERS", "3")
	t.Setenv("NEWSCRAWLER_ANALYZER_API_KEY", "sk-env")
	t.Setenv("NEWSCRAWLER_PIPELINE_CYCLE_INTERVAL", "90s")

	cfg, err := LoadWith(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Pipeline.Workers)
	assert.Equal(t, "sk-env", cfg.Analyzer.APIKey)
	assert.Equal(t, 90*time.Second, cfg.Pipeline.CycleInterval)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base, err := LoadWith(viper.New(), "")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "zero workers", mutate: func(c *Config) { c.Pipeline.Workers = 0 }, want: "pipeline.workers"},
		{name: "sub-second interval", mutate: func(c *Config) { c.Pipeline.CycleInterval = 500 * time.Millisecond }, want: "cycle_interval"},
		{name: "negative capacity", mutate: func(c *Config) { c.Pipeline.QueueCapacity = -1 }, want: "queue_capacity"},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "no sources", mutate: func(c *Config) {
			c.Sources.News.Enabled, c.Sources.Enter.Enabled, c.Sources.Sport.Enabled = false, false, false
		}, want: "at least one source"},
		{name: "negative rps", mutate: func(c *Config) { c.Sources.RequestsPerSecond = -1 }, want: "sources.requests_per_second"},
		{name: "zero pages", mutate: func(c *Config) { c.Sources.Enter.MaxPages = 0 }, want: "sources.enter.max_pages"},
		{name: "local without dir", mutate: func(c *Config) { c.Archive.Backend = BackendLocal }, want: "archive.local_dir"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Archive.Backend = BackendGCS }, want: "archive.gcs_bucket"},
		{name: "unknown archive", mutate: func(c *Config) { c.Archive.Backend = "s3" }, want: "unknown archive.backend"},
		{name: "pubsub without project", mutate: func(c *Config) { c.PubSub.Backend = BackendPubSub }, want: "pubsub.project_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	disabled := base
	disabled.Server.Enabled = false
	disabled.Server.Port = 0
	require.NoError(t, disabled.Validate())
}
