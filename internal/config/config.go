// Package config loads and validates scraper configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Ops      OpsConfig      `mapstructure:"ops"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ScraperConfig governs the fetch tiers and the batch scheduler.
type ScraperConfig struct {
	Concurrency       int           `mapstructure:"concurrency"`
	AttemptBudget     int           `mapstructure:"attempt_budget"`
	BackoffBase       time.Duration `mapstructure:"backoff_base"`
	BackoffMax        time.Duration `mapstructure:"backoff_max"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	BlockRetryLimit   int           `mapstructure:"block_retry_limit"`
	PauseOnBlock      bool          `mapstructure:"pause_on_block"`
	PauseDuration     time.Duration `mapstructure:"pause_duration"`
	AuthorConcurrency int           `mapstructure:"author_concurrency"`
	DelayMin          time.Duration `mapstructure:"delay_min"`
	DelayMax          time.Duration `mapstructure:"delay_max"`
	Label             string        `mapstructure:"label"`
	OutputDir         string        `mapstructure:"output_dir"`
	UserAgents        []string      `mapstructure:"user_agents"`
	Proxies           []string      `mapstructure:"proxies"`
	UserAgentsFile    string        `mapstructure:"user_agents_file"`
	ProxiesFile       string        `mapstructure:"proxies_file"`
}

// HeadlessConfig configures the rendering subsystem used by the heavy tier
// and the profile load-more loop.
type HeadlessConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxParallel int           `mapstructure:"max_parallel"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"`
	QPS         float64       `mapstructure:"qps"`
}

// StorageConfig selects where scraped JSON documents are written.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// DatabaseConfig controls the optional Postgres outcome store.
type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
	Table   string `mapstructure:"table"`
}

// PubSubConfig holds metadata for author-completed notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// OpsConfig toggles the operational HTTP server (health, metrics, progress).
type OpsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk and environment. When path is empty, a
// config file named "config" is searched in the working directory,
// /etc/scholarscrape/ and $HOME/.scholarscrape; a missing file is not an
// error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCHOLAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/scholarscrape/")
		v.AddConfigPath("$HOME/.scholarscrape")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
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
	v.SetDefault("scraper.concurrency", 5)
	v.SetDefault("scraper.attempt_budget", 3)
	v.SetDefault("scraper.backoff_base", "2s")
	v.SetDefault("scraper.backoff_max", "30s")
	v.SetDefault("scraper.request_timeout", "10s")
	v.SetDefault("scraper.block_retry_limit", 3)
	v.SetDefault("scraper.pause_on_block", true)
	v.SetDefault("scraper.pause_duration", "60s")
	v.SetDefault("scraper.author_concurrency", 1)
	v.SetDefault("scraper.delay_min", "2s")
	v.SetDefault("scraper.delay_max", "5s")
	v.SetDefault("scraper.output_dir", "output")
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout", "15s")
	v.SetDefault("headless.qps", 0.5)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("database.table", "scrape_outcomes")
	v.SetDefault("ops.addr", ":9090")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. A failure here is
// fatal at startup; nothing is fetched with a config that does not validate.
func (c Config) Validate() error {
	if c.Scraper.Concurrency <= 0 {
		return fmt.Errorf("scraper.concurrency must be > 0")
	}
	if c.Scraper.AttemptBudget <= 0 {
		return fmt.Errorf("scraper.attempt_budget must be > 0")
	}
	if c.Scraper.BackoffBase <= 0 {
		return fmt.Errorf("scraper.backoff_base must be > 0")
	}
	if c.Scraper.RequestTimeout <= 0 {
		return fmt.Errorf("scraper.request_timeout must be > 0")
	}
	if c.Scraper.BlockRetryLimit <= 0 {
		return fmt.Errorf("scraper.block_retry_limit must be > 0")
	}
	if c.Scraper.PauseDuration < 0 {
		return fmt.Errorf("scraper.pause_duration must be >= 0")
	}
	if c.Scraper.AuthorConcurrency <= 0 {
		return fmt.Errorf("scraper.author_concurrency must be > 0")
	}
	if c.Scraper.DelayMin < 0 || c.Scraper.DelayMax < c.Scraper.DelayMin {
		return fmt.Errorf("scraper.delay_min/delay_max must satisfy 0 <= min <= max")
	}
	if c.Scraper.OutputDir == "" {
		return fmt.Errorf("scraper.output_dir must be set")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Storage.Backend {
	case "local", "memory":
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of local, gcs, memory")
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn must be set when the database is enabled")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicID == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_id must be set when pubsub is enabled")
	}
	if c.Ops.Enabled && c.Ops.Addr == "" {
		return fmt.Errorf("ops.addr must be set when the ops server is enabled")
	}
	return nil
}
