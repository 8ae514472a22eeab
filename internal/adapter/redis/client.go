package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pscheid92/hellopulse/internal/platform/retry"
	goredis "github.com/redis/go-redis/v9"
)

// ConnectPolicy governs the initial ping. A broker that is still starting
// gets roughly half a minute before startup gives up.
var ConnectPolicy = retry.Policy{
	MaxAttempts:    6,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     8 * time.Second,
	OnRetry: func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Redis not reachable, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	},
}

// NewClient creates a Redis client from a URL (e.g. "redis://localhost:6379/0"),
// installs the given hooks and verifies the connection.
func NewClient(ctx context.Context, redisURL string, hooks ...goredis.Hook) (*goredis.Client, error) {
	return newClient(ctx, redisURL, ConnectPolicy, hooks...)
}

func newClient(ctx context.Context, redisURL string, policy retry.Policy, hooks ...goredis.Hook) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := goredis.NewClient(opts)
	for _, h := range hooks {
		client.AddHook(h)
	}

	err = retry.DoVoid(ctx, policy, classifyConnectError, func() error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	slog.Info("Redis connected", "addr", opts.Addr, "db", opts.DB)
	return client, nil
}

// Authentication and ACL failures will not fix themselves.
func classifyConnectError(err error) retry.Action {
	var redisErr goredis.Error
	if errors.As(err, &redisErr) {
		return retry.Stop
	}
	return retry.Retry
}
