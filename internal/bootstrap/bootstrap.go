// Package bootstrap holds the startup steps the publisher, server and
// subscriber binaries share.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/hellopulse/internal/adapter/httpserver"
	"github.com/pscheid92/hellopulse/internal/adapter/metrics"
	"github.com/pscheid92/hellopulse/internal/adapter/redis"
	"github.com/pscheid92/hellopulse/internal/platform/config"
	"github.com/pscheid92/hellopulse/internal/platform/logging"
	"github.com/pscheid92/hellopulse/internal/platform/version"
	goredis "github.com/redis/go-redis/v9"
)

const opsShutdownTimeout = 5 * time.Second

// Base is what every binary has once Setup returns.
type Base struct {
	Binary   string
	Config   *config.Config
	Registry *prometheus.Registry
	// Logger carries component=<binary>.
	Logger *slog.Logger
}

// Setup loads the configuration, installs the global logger and creates the
// binary's metrics registry.
func Setup(binary string) (*Base, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	logger := logging.WithComponent(binary)
	logger.Info("Starting", "env", cfg.AppEnv, "channel", cfg.Channel, "version", version.Get().String())

	return &Base{
		Binary:   binary,
		Config:   cfg,
		Registry: metrics.NewRegistry(binary),
		Logger:   logger,
	}, nil
}

// ConnectRedis dials REDIS_URL with metrics and circuit breaker hooks.
func (b *Base) ConnectRedis(ctx context.Context) (*goredis.Client, error) {
	redisMetrics := metrics.NewRedisMetrics(b.Registry)
	return redis.NewClient(ctx, b.Config.RedisURL,
		redis.NewMetricsHook(redisMetrics),
		redis.NewCircuitBreakerHook(redisMetrics, redis.DefaultBreakerSettings),
	)
}

// RedisCheck pings client.
func RedisCheck(client *goredis.Client) httpserver.HealthCheck {
	return httpserver.HealthCheck{
		Name:  "redis",
		Check: func(ctx context.Context) error { return client.Ping(ctx).Err() },
	}
}

// StartOpsServer serves /metrics, health endpoints and /version on METRICS_PORT in the
// background. It returns nil when METRICS_PORT is unset.
func (b *Base) StartOpsServer(checks ...httpserver.HealthCheck) *httpserver.Server {
	if b.Config.MetricsPort == "" {
		return nil
	}

	srv := httpserver.NewServer(b.opsOptions(checks))
	go func() {
		if err := srv.Start(); err != nil {
			b.Logger.Error("Ops server error", "error", err)
		}
	}()
	return srv
}

func (b *Base) opsOptions(checks []httpserver.HealthCheck) httpserver.Options {
	return httpserver.Options{
		Port:           b.Config.MetricsPort,
		AllowedOrigins: b.Config.CORSAllowedOrigins,
		Registry:       b.Registry,
		HealthChecks:   checks,
		Channel:        b.Config.Channel,
	}
}

// StopOpsServer shuts down a server returned by StartOpsServer; nil is a no-op.
func (b *Base) StopOpsServer(srv *httpserver.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opsShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		b.Logger.Error("Ops server shutdown error", "error", err)
	}
}
