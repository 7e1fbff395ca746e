package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MaxRetriesLimit caps backend.max_retries.
const MaxRetriesLimit = 10

// Config represents the complete application configuration
type Config struct {
	Backend  BackendConfig  `mapstructure:"backend"`
	Mock     MockConfig     `mapstructure:"mock"`
	Server   ServerConfig   `mapstructure:"server"`
	API      APIConfig      `mapstructure:"api"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// BackendConfig holds the sentiment backend client configuration
type BackendConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"` // per attempt
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryDelayBase  time.Duration `mapstructure:"retry_delay_base"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	FallbackAfter   time.Duration `mapstructure:"fallback_after"`
	InitialDelay    time.Duration `mapstructure:"initial_delay"`
}

// MockConfig controls synthetic fallback data
type MockConfig struct {
	Seed int64 `mapstructure:"seed"` // 0 seeds from the clock
}

// ServerConfig holds the dashboard HTTP server configuration
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// APIConfig holds the sentiment backend server configuration
type APIConfig struct {
	Addr            string        `mapstructure:"addr"`
	RateLimitPerMin int           `mapstructure:"rate_limit_per_min"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	Iterations      int           `mapstructure:"iterations"`
}

// CacheConfig holds response cache configuration
type CacheConfig struct {
	RedisURL string `mapstructure:"redis_url"` // empty uses the in-memory cache
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	SendInsights   bool          `mapstructure:"send_insights"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds SQLite persistence configuration
type StorageConfig struct {
	DBPath    string `mapstructure:"db_path"`
	MaxCycles int    `mapstructure:"max_cycles"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty path loads defaults and environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// SENTIMENTDASH_BACKEND_BASE_URL overrides backend.base_url
	v.SetEnvPrefix("SENTIMENTDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Backend defaults
	v.SetDefault("backend.base_url", "http://localhost:5001")
	v.SetDefault("backend.timeout", "10s")
	v.SetDefault("backend.max_retries", 2)
	v.SetDefault("backend.retry_delay_base", "1s")
	v.SetDefault("backend.refresh_interval", "5m")
	v.SetDefault("backend.fallback_after", "30s")
	v.SetDefault("backend.initial_delay", "100ms")

	v.SetDefault("mock.seed", 0)

	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")

	// API defaults
	v.SetDefault("api.addr", ":5001")
	v.SetDefault("api.rate_limit_per_min", 600)
	v.SetDefault("api.cache_ttl", "30s")
	v.SetDefault("api.iterations", 1000)

	v.SetDefault("cache.redis_url", "")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.send_insights", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/sentimentdash.db")
	v.SetDefault("storage.max_cycles", 10000)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Backend config
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute URL")
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}
	if c.Backend.MaxRetries < 0 || c.Backend.MaxRetries > MaxRetriesLimit {
		return fmt.Errorf("backend.max_retries must be between 0 and %d", MaxRetriesLimit)
	}
	if c.Backend.RetryDelayBase <= 0 {
		return fmt.Errorf("backend.retry_delay_base must be positive")
	}
	if c.Backend.RefreshInterval < 10*time.Second {
		return fmt.Errorf("backend.refresh_interval must be at least 10 seconds")
	}
	if c.Backend.FallbackAfter <= 0 {
		return fmt.Errorf("backend.fallback_after must be positive")
	}
	if c.Backend.InitialDelay < 0 {
		return fmt.Errorf("backend.initial_delay must not be negative")
	}

	// Validate API config
	if c.API.RateLimitPerMin < 1 {
		return fmt.Errorf("api.rate_limit_per_min must be at least 1")
	}
	if c.API.CacheTTL < 0 {
		return fmt.Errorf("api.cache_ttl must not be negative")
	}
	if c.API.Iterations < 1 {
		return fmt.Errorf("api.iterations must be at least 1")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxCycles < 1 {
		return fmt.Errorf("storage.max_cycles must be at least 1")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
