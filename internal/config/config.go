package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the tag gateway
type Config struct {
	// APIKey is the bearer credential for the completion API.
	// An empty key is not a startup error; every tag request then fails
	// with a server misconfiguration response.
	APIKey string

	// UpstreamURL is the base URL of the OpenAI-compatible completion API
	UpstreamURL string

	// Model is the model identifier sent with every completion request
	Model string

	// UpstreamTimeout bounds a single completion call
	UpstreamTimeout time.Duration

	// Port is the HTTP server port
	Port int

	// RedisURL enables the tag cache when set
	RedisURL string

	// CacheTTL is how long a cached tag set stays valid
	CacheTTL time.Duration

	// LogLevel is the minimum level written by the logger
	LogLevel slog.Level
}

// Default configuration values
const (
	DefaultUpstreamURL     = "https://api.openai.com/v1"
	DefaultModel           = "gpt-4o-mini"
	DefaultUpstreamTimeout = 60 * time.Second
	DefaultPort            = 8080
	DefaultCacheTTL        = 24 * time.Hour
)

// Load reads configuration from environment variables with defaults.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIKey:          strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		UpstreamURL:     getEnvOrDefault("UPSTREAM_URL", DefaultUpstreamURL),
		Model:           getEnvOrDefault("MODEL", DefaultModel),
		RedisURL:        os.Getenv("REDIS_URL"),
		UpstreamTimeout: DefaultUpstreamTimeout,
		Port:            DefaultPort,
		CacheTTL:        DefaultCacheTTL,
		LogLevel:        slog.LevelInfo,
	}

	if timeoutStr := os.Getenv("UPSTREAM_TIMEOUT"); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, errors.New("UPSTREAM_TIMEOUT must be a valid duration")
		}
		cfg.UpstreamTimeout = timeout
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, errors.New("PORT must be a valid integer")
		}
		cfg.Port = port
	}

	if ttlStr := os.Getenv("CACHE_TTL"); ttlStr != "" {
		ttl, err := time.ParseDuration(ttlStr)
		if err != nil {
			return nil, errors.New("CACHE_TTL must be a valid duration")
		}
		cfg.CacheTTL = ttl
	}

	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(levelStr)); err != nil {
			return nil, errors.New("LOG_LEVEL must be one of debug, info, warn, error")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid
func (c *Config) Validate() error {
	if c.UpstreamURL == "" {
		return errors.New("UPSTREAM_URL is required")
	}

	if c.Model == "" {
		return errors.New("MODEL is required")
	}

	if c.UpstreamTimeout <= 0 {
		return errors.New("UPSTREAM_TIMEOUT must be positive")
	}

	if c.Port < 1 || c.Port > 65535 {
		return errors.New("PORT must be between 1 and 65535")
	}

	if c.CacheTTL <= 0 {
		return errors.New("CACHE_TTL must be positive")
	}

	return nil
}

// CacheEnabled reports whether a tag cache should be created.
func (c *Config) CacheEnabled() bool {
	return c.RedisURL != ""
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
