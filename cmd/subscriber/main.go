package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pscheid92/hellopulse/internal/adapter/redis"
	"github.com/pscheid92/hellopulse/internal/bootstrap"
)

func main() {
	base, err := bootstrap.Setup("subscriber")
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

	messages, err := redis.NewGreetingFeed(redisClient).SubscribeRaw(ctx, cfg.Channel)
	if err != nil {
		logger.Error("Failed to subscribe", "channel", cfg.Channel, "error", err)
		os.Exit(1)
	}

	logger.Info("Subscribed, waiting for messages", "channel", cfg.Channel)
	for msg := range messages {
		attrs := []any{"channel", msg.Channel, "message", msg.Payload}
		if greeting, err := redis.DecodeGreeting(msg.Payload); err == nil {
			attrs = append(attrs, "hello", greeting.Hello)
		}
		logger.Info("Received message", attrs...)
	}

	logger.Info("Shutdown signal received, cleaning up...")
	base.StopOpsServer(opsSrv)
}
