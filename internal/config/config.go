// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/realtime-news-crawler/internal/harvest"
)

// EnvPrefix prefixes every environment override, e.g.
// NEWSCRAWLER_PIPELINE_WORKERS.
const EnvPrefix = "NEWSCRAWLER"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer"`
	Database DatabaseConfig `mapstructure:"database"`
	Search   SearchConfig   `mapstructure:"search"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the HTTP status server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// PipelineConfig governs the dispatch pipeline.
type PipelineConfig struct {
	Workers         int           `mapstructure:"workers"`
	CycleInterval   time.Duration `mapstructure:"cycle_interval"`
	QueueCapacity   int           `mapstructure:"queue_capacity"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SourceConfig toggles one source kind.
type SourceConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	MaxPages int  `mapstructure:"max_pages"`
}

// SourcesConfig configures the upstream listers and fetchers.
type SourcesConfig struct {
	FreshnessWindow time.Duration `mapstructure:"freshness_window"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	// RequestsPerSecond caps requests per upstream host; 0 disables the cap.
	RequestsPerSecond float64      `mapstructure:"requests_per_second"`
	Burst             int          `mapstructure:"burst"`
	News              SourceConfig `mapstructure:"news"`
	Enter             SourceConfig `mapstructure:"enter"`
	Sport             SourceConfig `mapstructure:"sport"`
}

// Kind returns the settings for a source kind.
func (s SourcesConfig) Kind(kind harvest.SourceKind) SourceConfig {
	switch kind {
	case harvest.KindNews:
		return s.News
	case harvest.KindEnter:
		return s.Enter
	case harvest.KindSport:
		return s.Sport
	default:
		return SourceConfig{}
	}
}

// AnalyzerConfig points at an OpenAI-compatible chat-completions API.
type AnalyzerConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	ScoreModel  string        `mapstructure:"score_model"`
	PromptsPath string        `mapstructure:"prompts_path"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig controls access to Postgres. An empty DSN selects the
// in-memory record store.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MigrateOnStart  bool          `mapstructure:"migrate_on_start"`
}

// SearchConfig controls the full-text index. An empty path keeps the index
// in memory.
type SearchConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Archive backends.
const (
	BackendNone   = ""
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendPubSub = "pubsub"
)

// ArchiveConfig selects where raw analyzed articles are written.
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	Prefix    string `mapstructure:"prefix"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// PubSubConfig selects where stored-article notifications go.
type PubSubConfig struct {
	Backend   string `mapstructure:"backend"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from defaults, an optional file and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	return LoadWith(v, path)
}

// LoadWith is Load on a caller-supplied Viper, so command flags bound to v
// take part in precedence.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("pipeline.workers", 5)
	v.SetDefault("pipeline.cycle_interval", 2*time.Minute)
	v.SetDefault("pipeline.queue_capacity", 0)
	v.SetDefault("pipeline.shutdown_timeout", time.Duration(0))
	v.SetDefault("sources.freshness_window", 2*time.Minute)
	v.SetDefault("sources.request_timeout", 15*time.Second)
	v.SetDefault("sources.requests_per_second", 5.0)
	v.SetDefault("sources.burst", 2)
	v.SetDefault("sources.news.enabled", true)
	v.SetDefault("sources.news.max_pages", 10)
	v.SetDefault("sources.enter.enabled", true)
	v.SetDefault("sources.enter.max_pages", 4)
	v.SetDefault("sources.sport.enabled", true)
	v.SetDefault("sources.sport.max_pages", 4)
	v.SetDefault("analyzer.endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("analyzer.api_key", "")
	v.SetDefault("analyzer.model", "gpt-4o")
	v.SetDefault("analyzer.score_model", "gpt-4o-mini")
	v.SetDefault("analyzer.prompts_path", "")
	v.SetDefault("analyzer.timeout", 60*time.Second)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 5)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("database.migrate_on_start", false)
	v.SetDefault("search.enabled", false)
	v.SetDefault("search.path", "")
	v.SetDefault("archive.backend", BackendNone)
	v.SetDefault("archive.prefix", "news")
	v.SetDefault("archive.local_dir", "")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("pubsub.backend", BackendNone)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "news-stored")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, errors.New("server.port must be between 1 and 65535"))
	}
	if c.Pipeline.Workers <= 0 {
		errs = append(errs, errors.New("pipeline.workers must be > 0"))
	}
	if c.Pipeline.CycleInterval < time.Second {
		errs = append(errs, errors.New("pipeline.cycle_interval must be at least 1s"))
	}
	if c.Pipeline.QueueCapacity < 0 {
		errs = append(errs, errors.New("pipeline.queue_capacity must be >= 0"))
	}
	if c.Pipeline.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("pipeline.shutdown_timeout must be >= 0"))
	}
	if c.Sources.FreshnessWindow <= 0 {
		errs = append(errs, errors.New("sources.freshness_window must be > 0"))
	}
	if c.Sources.RequestTimeout <= 0 {
		errs = append(errs, errors.New("sources.request_timeout must be > 0"))
	}
	if c.Sources.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("sources.requests_per_second must be >= 0"))
	}
	enabled := 0
	for _, kind := range harvest.Kinds() {
		sc := c.Sources.Kind(kind)
		if !sc.Enabled {
			continue
		}
		enabled++
		if sc.MaxPages <= 0 {
			errs = append(errs, fmt.Errorf("sources.%s.max_pages must be > 0", kind))
		}
	}
	if enabled == 0 {
		errs = append(errs, errors.New("at least one source must be enabled"))
	}
	switch c.Archive.Backend {
	case BackendNone, BackendMemory:
	case BackendLocal:
		if c.Archive.LocalDir == "" {
			errs = append(errs, errors.New("archive.local_dir is required for the local backend"))
		}
	case BackendGCS:
		if c.Archive.GCSBucket == "" {
			errs = append(errs, errors.New("archive.gcs_bucket is required for the gcs backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown archive.backend %q", c.Archive.Backend))
	}
	switch c.PubSub.Backend {
	case BackendNone, BackendMemory:
	case BackendPubSub:
		if c.PubSub.ProjectID == "" || c.PubSub.Topic == "" {
			errs = append(errs, errors.New("pubsub.project_id and pubsub.topic are required for the pubsub backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown pubsub.backend %q", c.PubSub.Backend))
	}
	return errors.Join(errs...)
}
