package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/hellopulse/internal/adapter/graphql"
	"github.com/pscheid92/hellopulse/internal/adapter/httpserver"
	"github.com/pscheid92/hellopulse/internal/adapter/metrics"
	"github.com/pscheid92/hellopulse/internal/adapter/postgres"
	"github.com/pscheid92/hellopulse/internal/adapter/redis"
	"github.com/pscheid92/hellopulse/internal/app"
	"github.com/pscheid92/hellopulse/internal/bootstrap"
	"github.com/pscheid92/hellopulse/internal/domain"
	"github.com/pscheid92/hellopulse/internal/platform/config"
	goredis "github.com/redis/go-redis/v9"
)

var errHubStopped = errors.New("subscription hub stopped")

func runGracefulShutdown(srv *httpserver.Server, hub *app.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		hub.Stop()

		close(done)
	}()

	return done
}

// setupCatalog serves books from PostgreSQL when DATABASE_URL is set and
// from memory otherwise. The returned pool is nil in the latter case.
func setupCatalog(cfg *config.Config) (domain.BookCatalog, *pgxpool.Pool) {
	if cfg.DatabaseURL == "" {
		slog.Info("DATABASE_URL not set, serving the built-in book catalog")
		return app.NewStaticCatalog(app.DefaultBooks), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return postgres.NewBookRepo(pool), pool
}

func healthChecks(redisClient *goredis.Client, hub *app.Hub, pool *pgxpool.Pool) []httpserver.HealthCheck {
	checks := []httpserver.HealthCheck{
		bootstrap.RedisCheck(redisClient),
		{Name: "subscription_hub", Check: func(context.Context) error {
			select {
			case <-hub.Done():
				return errHubStopped
			default:
				return nil
			}
		}},
	}
	if pool != nil {
		checks = append(checks, httpserver.HealthCheck{Name: "postgres", Check: pool.Ping})
	}
	return checks
}

func main() {
	clock := clockwork.NewRealClock()

	base, err := bootstrap.Setup("server")
	if err != nil {
		// Use log before slog is initialized
		log.Fatal(err)
	}
	cfg, reg := base.Config, base.Registry

	catalog, pool := setupCatalog(cfg)
	if pool != nil {
		defer pool.Close()
	}

	redisClient, err := base.ConnectRedis(context.Background())
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	hub := app.NewHub(redis.NewGreetingFeed(redisClient), cfg.Channel, clock, cfg.MaxSubscriptions, metrics.NewHubMetrics(reg))
	if err := hub.Start(context.Background()); err != nil {
		slog.Error("Failed to start subscription hub", "error", err)
		os.Exit(1)
	}

	schema, err := graphql.NewSchema(catalog, hub)
	if err != nil {
		slog.Error("Failed to build GraphQL schema", "error", err)
		os.Exit(1)
	}

	wsMetrics := metrics.NewWebSocketMetrics(reg)
	srv := httpserver.NewServer(httpserver.Options{
		Port:           cfg.Port,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Registry:       reg,
		HealthChecks:   healthChecks(redisClient, hub, pool),
		Channel:        cfg.Channel,
		Listeners:      hub.ListenerCount,
		GraphQL: &httpserver.GraphQLEndpoint{
			Executor:  schema,
			WebSocket: graphql.NewWSHandler(schema, clock, wsMetrics, graphql.DefaultWSConfig),
			Limits: httpserver.NewConnectionLimits(clock,
				int64(cfg.MaxWebSocketConnections),
				cfg.MaxConnectionsPerIP,
				cfg.ConnectionRatePerSecond,
				cfg.ConnectionBurst,
			),
			Metrics:           wsMetrics,
			HTTPRatePerSecond: cfg.HTTPRatePerSecond,
			HTTPRateBurst:     cfg.HTTPRateBurst,
		},
	})

	done := runGracefulShutdown(srv, hub)

	base.Logger.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
