package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	RedisURL    string `env:"REDIS_URL" default:"redis://localhost:6379/0"`
	Channel     string `env:"CHANNEL" default:"HELLO_CHANNEL"`
	DatabaseURL string `env:"DATABASE_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	// Publisher
	PublishInterval time.Duration `env:"PUBLISH_INTERVAL" default:"1s"`

	// Port serves the GraphQL gateway. MetricsPort, when set, exposes
	// /metrics and health endpoints for the publisher and subscriber binaries.
	Port        string `env:"PORT" default:"4000"`
	MetricsPort string `env:"METRICS_PORT"`

	MaxWebSocketConnections int      `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int      `env:"MAX_CONNECTIONS_PER_IP" default:"100"`
	ConnectionRatePerSecond float64  `env:"CONNECTION_RATE_PER_SECOND" default:"10"`
	ConnectionBurst         int      `env:"CONNECTION_BURST" default:"20"`
	MaxSubscriptions        int      `env:"MAX_SUBSCRIPTIONS" default:"10000"`
	CORSAllowedOrigins      []string `env:"CORS_ALLOWED_ORIGINS" default:"*"`

	// Per-IP limit for GraphQL requests over plain HTTP.
	HTTPRatePerSecond float64 `env:"HTTP_RATE_PER_SECOND" default:"20"`
	HTTPRateBurst     int     `env:"HTTP_RATE_BURST" default:"40"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, &env.Options{SliceSep: ","}); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	if _, err := goredis.ParseURL(cfg.RedisURL); err != nil {
		return fmt.Errorf("REDIS_URL is invalid: %w", err)
	}

	if strings.TrimSpace(cfg.Channel) == "" {
		return errors.New("CHANNEL is required")
	}

	if cfg.PublishInterval <= 0 {
		return fmt.Errorf("PUBLISH_INTERVAL must be positive, got %s", cfg.PublishInterval)
	}

	positive := []struct {
		name  string
		value float64
	}{
		{"MAX_WEBSOCKET_CONNECTIONS", float64(cfg.MaxWebSocketConnections)},
		{"MAX_CONNECTIONS_PER_IP", float64(cfg.MaxConnectionsPerIP)},
		{"CONNECTION_RATE_PER_SECOND", cfg.ConnectionRatePerSecond},
		{"CONNECTION_BURST", float64(cfg.ConnectionBurst)},
		{"MAX_SUBSCRIPTIONS", float64(cfg.MaxSubscriptions)},
		{"HTTP_RATE_PER_SECOND", cfg.HTTPRatePerSecond},
		{"HTTP_RATE_BURST", float64(cfg.HTTPRateBurst)},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive", p.name)
		}
	}

	if cfg.AppEnv == "production" && cfg.DatabaseURL != "" {
		mode, err := SSLMode(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("DATABASE_URL is invalid: %w", err)
		}
		if mode == "disable" || mode == "allow" {
			return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
		}
	}

	return nil
}

// SSLMode returns the lowercased sslmode query parameter of a Postgres URL,
// or "" when the URL does not set one.
func SSLMode(databaseURL string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse database URL: %w", err)
	}
	return strings.ToLower(u.Query().Get("sslmode")), nil
}
