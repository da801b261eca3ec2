package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Model     ModelConfig     `mapstructure:"model"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Cart      CartConfig      `mapstructure:"cart"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AdminToken     string   `mapstructure:"admin_token"` // empty disables the merchant admin routes
}

// ModelConfig selects and tunes the generative model provider
type ModelConfig struct {
	Provider          string        `mapstructure:"provider"` // "gemini" or "openai"
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"` // openai-compatible endpoints only
	Name              string        `mapstructure:"name"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	CacheCompletions  bool          `mapstructure:"cache_completions"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type          string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL      string        `mapstructure:"redis_url"`
	TTL           time.Duration `mapstructure:"ttl"`
	CompletionTTL time.Duration `mapstructure:"completion_ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// DiscoveryConfig tunes the discovery engine
type DiscoveryConfig struct {
	ResultLimit        int     `mapstructure:"result_limit"`
	MaxLimit           int     `mapstructure:"max_limit"`
	HistoryWindow      int     `mapstructure:"history_window"`
	MinCoverage        float64 `mapstructure:"min_coverage"`
	ImageFallbackCount int     `mapstructure:"image_fallback_count"`
}

// CartConfig tunes cart session tracking
type CartConfig struct {
	AbandonAfter time.Duration `mapstructure:"abandon_after"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/chatcart/")

	// CHATCART_MODEL_API_KEY -> model.api_key
	v.SetEnvPrefix("CHATCART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadEnvFile loads ./.env into the process environment when present.
// Variables already set are never overridden.
func LoadEnvFile() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading .env file: %w", err)
	}
	return nil
}

// setDefaults sets default configuration values. Every key needs a default
// so AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.admin_token", "")

	v.SetDefault("model.provider", "gemini")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.base_url", "")
	v.SetDefault("model.name", "gemini-1.5-flash")
	v.SetDefault("model.timeout", "30s")
	v.SetDefault("model.max_retries", 2)
	v.SetDefault("model.requests_per_second", 5)
	v.SetDefault("model.burst", 10)
	v.SetDefault("model.cache_completions", false)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.completion_ttl", "10m")

	v.SetDefault("ratelimit.per_ip", 60)

	v.SetDefault("discovery.result_limit", 5)
	v.SetDefault("discovery.max_limit", 10)
	v.SetDefault("discovery.history_window", 5)
	v.SetDefault("discovery.min_coverage", 0.5)
	v.SetDefault("discovery.image_fallback_count", 3)

	v.SetDefault("cart.abandon_after", "1h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Model.Provider {
	case "gemini":
		if config.Model.APIKey == "" {
			return fmt.Errorf("model API key is required for gemini (set CHATCART_MODEL_API_KEY)")
		}
	case "openai":
		if config.Model.APIKey == "" && config.Model.BaseURL == "" {
			return fmt.Errorf("model API key or base URL is required for openai")
		}
	default:
		return fmt.Errorf("model provider must be 'gemini' or 'openai', got: %s", config.Model.Provider)
	}

	if config.Model.Name == "" {
		return fmt.Errorf("model name is required")
	}

	if config.Database.URL == "" {
		return fmt.Errorf("database URL is required (set CHATCART_DATABASE_URL)")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Discovery.ResultLimit <= 0 || config.Discovery.MaxLimit < config.Discovery.ResultLimit {
		return fmt.Errorf("discovery limits must satisfy 0 < result_limit <= max_limit, got %d and %d",
			config.Discovery.ResultLimit, config.Discovery.MaxLimit)
	}

	if config.Discovery.MinCoverage < 0 || config.Discovery.MinCoverage > 1 {
		return fmt.Errorf("discovery min_coverage must be within [0, 1], got: %v", config.Discovery.MinCoverage)
	}

	if config.Cart.AbandonAfter <= 0 {
		return fmt.Errorf("cart abandon_after must be positive, got: %s", config.Cart.AbandonAfter)
	}

	return nil
}
