// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Analyzer  AnalyzerConfig  `mapstructure:"analyzer"`
	Backends  []BackendConfig `mapstructure:"backends"`
	Generate  GenerateConfig  `mapstructure:"generate"`
	Sessions  SessionsConfig  `mapstructure:"sessions"`
	Storage   StorageConfig   `mapstructure:"storage"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int `mapstructure:"port"`
	RequestTimeout  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeout int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// FetchConfig governs the plain HTTP fetch path and the guards applied to
// every fetch regardless of strategy.
type FetchConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	// AllowPrivateHosts disables the private-network admission guard.
	AllowPrivateHosts bool     `mapstructure:"allow_private_hosts"`
	DenyHosts         []string `mapstructure:"deny_hosts"`
	// RateLimitRPS throttles fetches per target host; zero disables it.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
	SettleDelayMs int  `mapstructure:"settle_delay_ms"`
}

// AnalyzerConfig exposes classification thresholds.
type AnalyzerConfig struct {
	NavComplexItems      int `mapstructure:"nav_complex_items"`
	ComplexityHighScore  int `mapstructure:"complexity_high_score"`
	ComplexityMedScore   int `mapstructure:"complexity_med_score"`
	VibrantColorCount    int `mapstructure:"vibrant_color_count"`
	MonochromeColorCount int `mapstructure:"monochrome_color_count"`
}

// BackendConfig describes one text-generation backend in fallback order.
type BackendConfig struct {
	Name        string  `mapstructure:"name"`
	Provider    string  `mapstructure:"provider"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	APIKeyEnv   string  `mapstructure:"api_key_env"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	TimeoutSec  int     `mapstructure:"timeout_seconds"`
}

// GenerateConfig bounds section generation.
type GenerateConfig struct {
	AttemptTimeoutSec int `mapstructure:"attempt_timeout_seconds"`
	RunTimeoutSec     int `mapstructure:"run_timeout_seconds"`
}

// SessionsConfig selects and tunes the session store.
type SessionsConfig struct {
	// Store is "memory" or "postgres".
	Store           string `mapstructure:"store"`
	DSN             string `mapstructure:"dsn"`
	Table           string `mapstructure:"table"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime_seconds"`
}

// StorageConfig selects and tunes snapshot artifact storage.
type StorageConfig struct {
	// Provider is "memory" or "gcs".
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for completed-analysis notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ProgressConfig tunes the lifecycle event hub.
type ProgressConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	BufferSize      int  `mapstructure:"buffer_size"`
	MaxBatch        int  `mapstructure:"max_batch"`
	FlushIntervalMs int  `mapstructure:"flush_interval_ms"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CODEECHO")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 300)
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("fetch.user_agent", "codeecho-bot/0.1")
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.allow_private_hosts", false)
	v.SetDefault("fetch.rate_limit_rps", 1.0)
	v.SetDefault("fetch.rate_limit_burst", 3)
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("headless.settle_delay_ms", 500)
	v.SetDefault("analyzer.nav_complex_items", 5)
	v.SetDefault("analyzer.complexity_high_score", 40)
	v.SetDefault("analyzer.complexity_med_score", 15)
	v.SetDefault("analyzer.vibrant_color_count", 8)
	v.SetDefault("analyzer.monochrome_color_count", 2)
	v.SetDefault("generate.attempt_timeout_seconds", 60)
	v.SetDefault("generate.run_timeout_seconds", 240)
	v.SetDefault("sessions.store", "memory")
	v.SetDefault("sessions.table", "sessions")
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("storage.prefix", "sessions")
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch", 256)
	v.SetDefault("progress.flush_interval_ms", 500)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.RateLimitRPS < 0 {
		return fmt.Errorf("fetch.rate_limit_rps must be >= 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Sessions.Store {
	case "memory":
	case "postgres":
		if c.Sessions.DSN == "" {
			return fmt.Errorf("sessions.dsn must be set when sessions.store is postgres")
		}
	default:
		return fmt.Errorf("sessions.store must be memory or postgres")
	}
	switch c.Storage.Provider {
	case "memory":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.provider is gcs")
		}
	default:
		return fmt.Errorf("storage.provider must be memory or gcs")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	seen := make(map[string]bool, len(c.Backends))
	for i, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("backends[%d].name is required", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("backends[%d].name %q is duplicated", i, b.Name)
		}
		seen[b.Name] = true
		if b.Provider != "openai" && b.Provider != "anthropic" {
			return fmt.Errorf("backends[%d].provider must be openai or anthropic", i)
		}
		if b.Model == "" {
			return fmt.Errorf("backends[%d].model is required", i)
		}
	}
	return nil
}

// RequestTimeout returns the per-request budget for the analyze endpoint.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeout) * time.Second
}

// RunTimeout returns the budget for one full analysis run.
func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.Generate.RunTimeoutSec) * time.Second
}
