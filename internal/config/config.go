// Package config provides configuration structures and loading logic for Skywatch.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the root configuration structure for the Skywatch control plane.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Cache      CacheConfig      `mapstructure:"cache"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Output     OutputConfig     `mapstructure:"output"`
}

// AppConfig defines application-level settings such as host and port.
type AppConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig defines the SQLite control-plane database location.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ClickHouseConfig defines connection settings for the ClickHouse telemetry store.
type ClickHouseConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"-"`
	Timeout  string `mapstructure:"timeout"`
}

// MonitorConfig defines the cadence and concurrency of the health-checking loop.
type MonitorConfig struct {
	CheckInterval string `mapstructure:"check_interval"`
	MaxConcurrent int    `mapstructure:"max_concurrent"`
}

// CacheConfig defines the in-memory trace-list cache behavior.
type CacheConfig struct {
	TTL        string `mapstructure:"ttl"`
	MaxEntries int    `mapstructure:"max_entries"`
}

// LLMConfig defines the selected Language Model provider and its operational parameters.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	OllamaURL   string  `mapstructure:"ollama_url"`
	OllamaModel string  `mapstructure:"ollama_model"`
	Enabled     bool    `mapstructure:"enabled"`
	APIKey      string  `mapstructure:"-"`
}

// OutputConfig defines the notification channels for outage events.
type OutputConfig struct {
	Slack SlackOutputConfig `mapstructure:"slack"`
}

// SlackOutputConfig defines settings for the Slack incoming webhook integration.
type SlackOutputConfig struct {
	WebhookURLEnv string `mapstructure:"webhook_url_env"`
	WebhookURL    string `mapstructure:"-"`
	Enabled       bool   `mapstructure:"enabled"`
}

// GetTimeoutDuration parses the configured string timeout into a time.Duration.
func (c *ClickHouseConfig) GetTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetCheckIntervalDuration parses the probe interval into a time.Duration.
func (c *MonitorConfig) GetCheckIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.CheckInterval)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetTTLDuration parses the cache TTL into a time.Duration.
func (c *CacheConfig) GetTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.TTL)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// Load loads configuration from config.yaml or environment variables
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/skywatch")

	// Allow environment variables to override config
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	viper.SetDefault("app.host", "0.0.0.0")
	viper.SetDefault("app.port", 8080)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("database.path", "data/skywatch.db")
	viper.SetDefault("clickhouse.url", "http://localhost:8123")
	viper.SetDefault("clickhouse.username", "default")
	viper.SetDefault("clickhouse.timeout", "30s")
	viper.SetDefault("monitor.check_interval", "30s")
	viper.SetDefault("monitor.max_concurrent", 50)
	viper.SetDefault("cache.ttl", "30s")
	viper.SetDefault("cache.max_entries", 256)
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4o")
	viper.SetDefault("llm.temperature", 0.1)
	viper.SetDefault("llm.max_tokens", 1000)

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ClickHouse.Password = os.Getenv("CLICKHOUSE_PASSWORD")

	if cfg.LLM.Provider != "ollama" {
		apiKeyEnv := "OPENAI_API_KEY"
		if cfg.LLM.Provider == "anthropic" {
			apiKeyEnv = "ANTHROPIC_API_KEY"
		}
		cfg.LLM.APIKey = os.Getenv(apiKeyEnv)
	}

	if cfg.Output.Slack.WebhookURLEnv != "" {
		cfg.Output.Slack.WebhookURL = os.Getenv(cfg.Output.Slack.WebhookURLEnv)
	}

	return &cfg, nil
}

// ProviderType returns the LLM provider type
func (c *LLMConfig) ProviderType() string {
	return strings.ToLower(c.Provider)
}
