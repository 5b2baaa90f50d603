package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendOS       = "os"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// APIRateLimit is requests per second per client IP on /api/v1; 0 disables the limiter.
	APIRateLimit float64 `env:"API_RATE_LIMIT" default:"0"`
	APIRateBurst int     `env:"API_RATE_BURST" default:"10"`

	KVBackend   string `env:"KV_BACKEND" default:"memory"`
	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	BlobBackend string `env:"BLOB_BACKEND" default:"os"`
	BlobRoot    string `env:"BLOB_ROOT" default:"./data/blobs"`

	HTTPTimeout       time.Duration `env:"HTTP_TIMEOUT" default:"30s"`
	ProviderRateLimit float64       `env:"PROVIDER_RATE_LIMIT" default:"0"`

	ApifyBaseURL        string `env:"APIFY_BASE_URL" default:"https://api.apify.com"`
	TwitterAPIBaseURL   string `env:"TWITTER_API_BASE_URL" default:"https://api.twitter.com"`
	TwitterTokenBaseURL string `env:"TWITTER_TOKEN_BASE_URL" default:"https://api.x.com"`
	LLMBaseURL          string `env:"LLM_BASE_URL" default:"https://api.groq.com/openai/v1"`
	LLMModel            string `env:"LLM_MODEL" default:"llama3-8b-8192"`

	TokenRefreshMaxAttempts int           `env:"TOKEN_REFRESH_MAX_ATTEMPTS" default:"3"`
	TokenRefreshBackoff     time.Duration `env:"TOKEN_REFRESH_BACKOFF" default:"500ms"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.KVBackend {
	case BackendMemory:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required when KV_BACKEND=redis")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when KV_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("KV_BACKEND must be one of memory, redis, postgres, got %q", cfg.KVBackend)
	}

	switch cfg.BlobBackend {
	case BackendOS:
		if cfg.BlobRoot == "" {
			return errors.New("BLOB_ROOT is required when BLOB_BACKEND=os")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("BLOB_BACKEND must be one of os, memory, got %q", cfg.BlobBackend)
	}

	if cfg.HTTPTimeout <= 0 {
		return errors.New("HTTP_TIMEOUT must be positive")
	}
	if cfg.ProviderRateLimit < 0 {
		return errors.New("PROVIDER_RATE_LIMIT must not be negative")
	}
	if cfg.APIRateLimit < 0 {
		return errors.New("API_RATE_LIMIT must not be negative")
	}
	if cfg.APIRateLimit > 0 && cfg.APIRateBurst < 1 {
		return errors.New("API_RATE_BURST must be at least 1 when API_RATE_LIMIT is set")
	}
	if cfg.TokenRefreshMaxAttempts < 1 {
		return errors.New("TOKEN_REFRESH_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.TokenRefreshBackoff < 0 {
		return errors.New("TOKEN_REFRESH_BACKOFF must not be negative")
	}

	baseURLs := map[string]string{
		"APIFY_BASE_URL":         cfg.ApifyBaseURL,
		"TWITTER_API_BASE_URL":   cfg.TwitterAPIBaseURL,
		"TWITTER_TOKEN_BASE_URL": cfg.TwitterTokenBaseURL,
		"LLM_BASE_URL":           cfg.LLMBaseURL,
	}
	for name, value := range baseURLs {
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, value)
		}
	}

	return nil
}
