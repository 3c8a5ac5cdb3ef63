// Package config implements the layered worker/coordinator configuration:
// YAML file, environment-variable overlay, defaults, and validation, as a
// composed-policy-struct: one top-level Config, per-section
// Validate()/ApplyDefaults().
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// FetchPolicy controls both fetcher modes' defaults.
type FetchPolicy struct {
	HTTPConcurrency  int           `yaml:"http_concurrency" env:"HTTP_CONCURRENCY"`
	BrowserSessions  int           `yaml:"browser_sessions" env:"BROWSER_SESSIONS"`
	HTTPPrefetch     int           `yaml:"http_prefetch" env:"HTTP_PREFETCH"`
	BrowserPrefetch  int           `yaml:"browser_prefetch" env:"BROWSER_PREFETCH"`
	DefaultTimeout   time.Duration `yaml:"default_timeout" env:"DEFAULT_TIMEOUT"`
	NavigationStepCeiling time.Duration `yaml:"navigation_step_ceiling" env:"NAVIGATION_STEP_CEILING"`
	UserAgent        string        `yaml:"user_agent" env:"USER_AGENT"`
}

func (p *FetchPolicy) ApplyDefaults() {
	if p.HTTPConcurrency == 0 {
		p.HTTPConcurrency = 50
	}
	if p.BrowserSessions == 0 {
		p.BrowserSessions = 5
	}
	if p.HTTPPrefetch == 0 {
		p.HTTPPrefetch = 10
	}
	if p.BrowserPrefetch == 0 {
		p.BrowserPrefetch = 2
	}
	if p.DefaultTimeout == 0 {
		p.DefaultTimeout = 60 * time.Second
	}
	if p.NavigationStepCeiling == 0 {
		p.NavigationStepCeiling = 10 * time.Second
	}
	if p.UserAgent == "" {
		p.UserAgent = "Mozilla/5.0 (compatible; HarvesterBot/1.0)"
	}
}

func (p FetchPolicy) Validate() error {
	if p.HTTPConcurrency <= 0 {
		return fmt.Errorf("http_concurrency must be positive, got %d", p.HTTPConcurrency)
	}
	if p.BrowserSessions <= 0 {
		return fmt.Errorf("browser_sessions must be positive, got %d", p.BrowserSessions)
	}
	return nil
}

// StoragePolicy controls bronze/trash writer locations.
type StoragePolicy struct {
	BronzeRoot string `yaml:"bronze_root" env:"BRONZE_ROOT"`
	TrashRoot  string `yaml:"trash_root" env:"TRASH_ROOT"`
}

func (p *StoragePolicy) ApplyDefaults() {
	if p.BronzeRoot == "" {
		p.BronzeRoot = "./data/bronze"
	}
	if p.TrashRoot == "" {
		p.TrashRoot = "./data/trash"
	}
}

func (p StoragePolicy) Validate() error {
	if p.BronzeRoot == "" || p.TrashRoot == "" {
		return fmt.Errorf("bronze_root and trash_root must be set")
	}
	return nil
}

// BusPolicy controls the message bus client.
type BusPolicy struct {
	RedisAddr       string `yaml:"redis_addr" env:"REDIS_ADDR"`
	TaskStreamHTTP    string `yaml:"task_stream_http" env:"TASK_STREAM_HTTP"`
	TaskStreamBrowser string `yaml:"task_stream_browser" env:"TASK_STREAM_BROWSER"`
	ResultStream      string `yaml:"result_stream" env:"RESULT_STREAM"`
	DLQStream         string `yaml:"dlq_stream" env:"DLQ_STREAM"`
	ConsumerGroup     string `yaml:"consumer_group" env:"CONSUMER_GROUP"`
	DLQRetention      time.Duration `yaml:"dlq_retention" env:"DLQ_RETENTION"`
}

func (p *BusPolicy) ApplyDefaults() {
	if p.RedisAddr == "" {
		p.RedisAddr = "127.0.0.1:6379"
	}
	if p.TaskStreamHTTP == "" {
		p.TaskStreamHTTP = "tasks.http"
	}
	if p.TaskStreamBrowser == "" {
		p.TaskStreamBrowser = "tasks.browser"
	}
	if p.ResultStream == "" {
		p.ResultStream = "results"
	}
	if p.DLQStream == "" {
		p.DLQStream = "dlq.tasks"
	}
	if p.ConsumerGroup == "" {
		p.ConsumerGroup = "harvester-workers"
	}
	if p.DLQRetention == 0 {
		p.DLQRetention = 7 * 24 * time.Hour
	}
}

func (p BusPolicy) Validate() error {
	if p.RedisAddr == "" {
		return fmt.Errorf("redis_addr must be set")
	}
	return nil
}

// GlobalSettings controls cross-cutting ambient behavior.
type GlobalSettings struct {
	LogLevel       string `yaml:"log_level" env:"LOG_LEVEL"`
	MetricsEnabled bool   `yaml:"metrics_enabled" env:"METRICS_ENABLED"`
	TraceEnabled   bool   `yaml:"trace_enabled" env:"TRACE_ENABLED"`
	MetricsAddr    string `yaml:"metrics_addr" env:"METRICS_ADDR"`
	APIAddr        string `yaml:"api_addr" env:"API_ADDR"`
	SchemaServiceURL string `yaml:"schema_service_url" env:"SCHEMA_SERVICE_URL"`
	PostgresDSN    string `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
}

func (g *GlobalSettings) ApplyDefaults() {
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
	if g.MetricsAddr == "" {
		g.MetricsAddr = ":9090"
	}
	if g.APIAddr == "" {
		g.APIAddr = ":8080"
	}
}

func (g GlobalSettings) Validate() error {
	switch g.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log_level %q", g.LogLevel)
	}
	return nil
}

// Config composes every policy section into one top-level struct, each
// section with its own Validate()/ApplyDefaults(), assembled by the loader
// below.
type Config struct {
	Fetch   FetchPolicy    `yaml:"fetch"`
	Storage StoragePolicy  `yaml:"storage"`
	Bus     BusPolicy      `yaml:"bus"`
	Global  GlobalSettings `yaml:"global"`
}

// Default returns a fully defaulted configuration.
func Default() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

func (c *Config) ApplyDefaults() {
	c.Fetch.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Bus.ApplyDefaults()
	c.Global.ApplyDefaults()
}

// Validate runs every section's validator, returning the first failure
// wrapped with its section name.
func (c Config) Validate() error {
	if err := c.Fetch.Validate(); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Bus.Validate(); err != nil {
		return fmt.Errorf("bus: %w", err)
	}
	if err := c.Global.Validate(); err != nil {
		return fmt.Errorf("global: %w", err)
	}
	return nil
}

// Load reads path as YAML, overlays environment variables, applies
// defaults, and validates the result. An empty path skips the file read and
// starts from defaults before the environment overlay.
func Load(path string) (Config, error) {
	c := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("apply environment overlay: %w", err)
	}

	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}
