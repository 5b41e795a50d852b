// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/evelib/cache"
	"github.com/briangreenhill/evelib/request"
)

// Cache backends accepted by EVELIB_CACHE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendNone     = "none"
)

// Config holds all application configuration
type Config struct {
	BaseURL   string `env:"EVELIB_BASE_URL" envDefault:"https://api.eveonline.com"`
	CrestURL  string `env:"EVELIB_CREST_URL" envDefault:"https://public-crest.eveonline.com"`
	UserAgent string `env:"EVELIB_USER_AGENT"`

	CacheBackend string `env:"EVELIB_CACHE_BACKEND" envDefault:"file"`
	CacheDir     string `env:"EVELIB_CACHE_DIR"`
	SQLitePath   string `env:"EVELIB_SQLITE_PATH" envDefault:"evelib-cache.db"`
	RedisAddr    string `env:"REDIS_ADDR"`
	DatabaseURL  string `env:"DATABASE_URL"`
	CacheRead    bool   `env:"EVELIB_CACHE_READ" envDefault:"true"`
	CacheWrite   bool   `env:"EVELIB_CACHE_WRITE" envDefault:"true"`

	Retries uint          `env:"EVELIB_RETRIES" envDefault:"0"`
	Timeout time.Duration `env:"EVELIB_TIMEOUT" envDefault:"30s"`

	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"EVELIB_LOG_LEVEL" envDefault:"info"`

	// Optional API key used by the CLI and refresh jobs.
	KeyID string `env:"EVELIB_KEY_ID"`
	VCode string `env:"EVELIB_VCODE"`
}

// Load reads configuration from environment variables
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.CacheBackend = strings.ToLower(strings.TrimSpace(cfg.CacheBackend))
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the backend selection and the settings it needs
func (c Config) Validate() error {
	switch c.CacheBackend {
	case BackendMemory, BackendFile, BackendSQLite, BackendNone:
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("cache backend %q requires REDIS_ADDR", c.CacheBackend)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("cache backend %q requires DATABASE_URL", c.CacheBackend)
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.CacheBackend)
	}
	if c.Retries > 10 {
		return fmt.Errorf("EVELIB_RETRIES must be at most 10, got %d", c.Retries)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("EVELIB_TIMEOUT must be positive, got %s", c.Timeout)
	}
	if (c.KeyID == "") != (c.VCode == "") {
		return fmt.Errorf("EVELIB_KEY_ID and EVELIB_VCODE must be set together")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid EVELIB_LOG_LEVEL: %w", err)
	}
	return nil
}

// HasCredential returns true if an API key is configured
func (c Config) HasCredential() bool {
	return c.KeyID != "" && c.VCode != ""
}

// Credential returns the configured API key, or nil.
func (c Config) Credential() *request.Credential {
	if !c.HasCredential() {
		return nil
	}
	return request.NewCredential(c.KeyID, c.VCode)
}

// Level returns the configured log level, defaulting to info.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Executor builds the HTTP executor, wrapped for retries when EVELIB_RETRIES > 0.
func (c Config) Executor(opts ...request.ExecutorOption) request.Executor {
	base := []request.ExecutorOption{request.WithHTTPClient(&http.Client{Timeout: c.Timeout})}
	if c.UserAgent != "" {
		base = append(base, request.WithUserAgent(c.UserAgent))
	}
	exec := request.NewHTTPExecutor(append(base, opts...)...)
	if c.Retries == 0 {
		return exec
	}
	return request.NewRetryExecutor(exec, request.RetryConfig{MaxAttempts: c.Retries + 1})
}

// Pipeline builds a pipeline for baseURL over store with the configured cache
// toggles applied. A nil store disables caching.
func (c Config) Pipeline(baseURL string, exec request.Executor, store cache.Store, opts ...request.Option) (*request.Pipeline, error) {
	if store != nil {
		opts = append([]request.Option{request.WithStore(store)}, opts...)
	}
	p, err := request.New(baseURL, exec, opts...)
	if err != nil {
		return nil, err
	}
	p.SetCacheRead(c.CacheRead)
	p.SetCacheWrite(c.CacheWrite)
	return p, nil
}
