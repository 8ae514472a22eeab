package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/hellopulse/internal/adapter/metrics"
	"github.com/pscheid92/hellopulse/internal/adapter/redis"
	"github.com/pscheid92/hellopulse/internal/app"
	"github.com/pscheid92/hellopulse/internal/bootstrap"
)

func main() {
	base, err := bootstrap.Setup("publisher")
	if err != nil {
		// Use log before slog is initialized
		log.Fatal(err)
	}
	cfg, logger := base.Config, base.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := base.ConnectRedis(ctx)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	opsSrv := base.StartOpsServer(bootstrap.RedisCheck(redisClient))

	publisher := app.NewCounterPublisher(
		redis.NewGreetingPublisher(redisClient),
		cfg.Channel,
		cfg.PublishInterval,
		clockwork.NewRealClock(),
		metrics.NewPublisherMetrics(base.Registry),
	)
	if err := publisher.Run(ctx); err != nil {
		logger.Error("Publisher error", "error", err)
	}

	logger.Info("Shutdown signal received, cleaning up...")
	base.StopOpsServer(opsSrv)
}
