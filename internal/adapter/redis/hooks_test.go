package redis

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/hellopulse/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisMetrics() *metrics.RedisMetrics {
	return metrics.NewRedisMetrics(prometheus.NewRegistry())
}

func okProcess(context.Context, goredis.Cmder) error { return nil }

func failProcess(context.Context, goredis.Cmder) error { return errors.New("connection refused") }

func publishCmd(ctx context.Context) goredis.Cmder {
	return goredis.NewIntCmd(ctx, "publish", "HELLO_CHANNEL", `{"hello":"Count 1"}`)
}

func TestMetricsHook_Process(t *testing.T) {
	m := newTestRedisMetrics()
	hook := NewMetricsHook(m)
	ctx := context.Background()

	require.NoError(t, hook.ProcessHook(okProcess)(ctx, publishCmd(ctx)))
	require.Error(t, hook.ProcessHook(failProcess)(ctx, publishCmd(ctx)))
	nilErr := hook.ProcessHook(func(context.Context, goredis.Cmder) error { return goredis.Nil })
	require.ErrorIs(t, nilErr(ctx, goredis.NewStringCmd(ctx, "get", "k")), goredis.Nil)

	assert.InDelta(t, 1, testutil.ToFloat64(m.OpsTotal.WithLabelValues("publish", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.OpsTotal.WithLabelValues("publish", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.OpsTotal.WithLabelValues("get", "success")), 0)
}

func TestMetricsHook_Dial(t *testing.T) {
	m := newTestRedisMetrics()
	hook := NewMetricsHook(m)

	dial := hook.DialHook(func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("no route to host")
	})
	_, err := dial(context.Background(), "tcp", "localhost:6379")
	require.Error(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(m.ConnectionErrors), 0)
}

func TestCircuitBreakerHook_StaysClosedOnSuccess(t *testing.T) {
	hook := NewCircuitBreakerHook(newTestRedisMetrics(), DefaultBreakerSettings)
	ctx := context.Background()

	for range 10 {
		require.NoError(t, hook.ProcessHook(okProcess)(ctx, publishCmd(ctx)))
	}
	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestCircuitBreakerHook_TransientFailures(t *testing.T) {
	hook := NewCircuitBreakerHook(newTestRedisMetrics(), DefaultBreakerSettings)
	ctx := context.Background()

	for range 2 {
		err := hook.ProcessHook(failProcess)(ctx, publishCmd(ctx))
		require.Error(t, err)
		assert.NotErrorIs(t, err, circuitbreaker.ErrOpen)
	}
	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestCircuitBreakerHook_OpensAndFailsFast(t *testing.T) {
	m := newTestRedisMetrics()
	hook := NewCircuitBreakerHook(m, DefaultBreakerSettings)
	ctx := context.Background()

	for range DefaultBreakerSettings.FailureThreshold {
		_ = hook.ProcessHook(failProcess)(ctx, publishCmd(ctx))
	}
	require.Equal(t, circuitbreaker.OpenState, hook.State())
	assert.InDelta(t, 2, testutil.ToFloat64(m.BreakerState), 0)

	called := false
	err := hook.ProcessHook(func(context.Context, goredis.Cmder) error {
		called = true
		return nil
	})(ctx, publishCmd(ctx))

	require.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Contains(t, err.Error(), "publish")
	assert.False(t, called, "Redis should not be called when circuit is open")
}

func TestCircuitBreakerHook_RedisRepliesDoNotTrip(t *testing.T) {
	hook := NewCircuitBreakerHook(newTestRedisMetrics(), DefaultBreakerSettings)
	ctx := context.Background()

	wrongType := hook.ProcessHook(func(context.Context, goredis.Cmder) error {
		return fakeRedisError("WRONGTYPE Operation against a key holding the wrong kind of value")
	})
	for range 10 {
		_ = wrongType(ctx, publishCmd(ctx))
	}
	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestCircuitBreakerHook_RecoversAfterDelay(t *testing.T) {
	settings := BreakerSettings{FailureThreshold: 3, Delay: 50 * time.Millisecond, SuccessThreshold: 1}
	hook := NewCircuitBreakerHook(newTestRedisMetrics(), settings)
	ctx := context.Background()

	for range 3 {
		_ = hook.ProcessHook(failProcess)(ctx, publishCmd(ctx))
	}
	require.Equal(t, circuitbreaker.OpenState, hook.State())

	time.Sleep(80 * time.Millisecond)

	require.NoError(t, hook.ProcessHook(okProcess)(ctx, publishCmd(ctx)))
	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestCircuitBreakerHook_DialFailuresTrip(t *testing.T) {
	hook := NewCircuitBreakerHook(newTestRedisMetrics(), DefaultBreakerSettings)
	dial := hook.DialHook(func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	})

	for range DefaultBreakerSettings.FailureThreshold {
		_, _ = dial(context.Background(), "tcp", "localhost:6379")
	}

	_, err := dial(context.Background(), "tcp", "localhost:6379")
	require.ErrorIs(t, err, circuitbreaker.ErrOpen)
}
