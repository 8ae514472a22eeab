package app

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/hellopulse/internal/adapter/metrics"
	"github.com/pscheid92/hellopulse/internal/domain"
	"github.com/pscheid92/hellopulse/internal/platform/correlation"
)

const publishTimeout = 2 * time.Second

// CounterPublisher publishes {"hello":"Count N"} to a channel once per
// interval. N starts at 1 and advances on every attempt, including failed ones.
type CounterPublisher struct {
	publisher domain.GreetingPublisher
	channel   string
	interval  time.Duration
	clock     clockwork.Clock
	metrics   *metrics.PublisherMetrics

	count atomic.Uint64
}

func NewCounterPublisher(publisher domain.GreetingPublisher, channel string, interval time.Duration, clock clockwork.Clock, m *metrics.PublisherMetrics) *CounterPublisher {
	return &CounterPublisher{
		publisher: publisher,
		channel:   channel,
		interval:  interval,
		clock:     clock,
		metrics:   m,
	}
}

// Count returns the counter value of the most recent publish attempt.
func (p *CounterPublisher) Count() uint64 {
	return p.count.Load()
}

// Run publishes once immediately, then on every tick. It blocks until ctx is
// cancelled.
func (p *CounterPublisher) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Counter publisher started", "channel", p.channel, "interval", p.interval)
	p.publishNext(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Counter publisher stopped", "channel", p.channel, "last_count", p.Count())
			return nil
		case <-ticker.Chan():
			p.publishNext(ctx)
		}
	}
}

func (p *CounterPublisher) publishNext(ctx context.Context) {
	n := p.count.Add(1)
	p.metrics.LastCounter.Set(float64(n))

	greeting := domain.NewCountGreeting(n)
	pubCtx, cancel := context.WithTimeout(correlation.WithID(ctx, correlation.NewID()), publishTimeout)
	defer cancel()

	receivers, err := p.publisher.PublishGreeting(pubCtx, p.channel, greeting)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.metrics.Failures.Inc()
		slog.WarnContext(pubCtx, "Publish failed", "channel", p.channel, "count", n, "error", err)
		return
	}

	p.metrics.Receivers.Set(float64(receivers))
	p.metrics.Published.Inc()
	slog.DebugContext(pubCtx, "Published greeting", "channel", p.channel, "hello", greeting.Hello, "receivers", receivers)
}
