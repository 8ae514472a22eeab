package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/pscheid92/hellopulse/internal/adapter/metrics"
	"github.com/pscheid92/hellopulse/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

type publishCall struct {
	Channel  string
	Greeting domain.Greeting
}

type mockPublisher struct {
	calls     chan publishCall
	n         atomic.Int64
	publishFn func(n int64) (int64, error)
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{calls: make(chan publishCall, 64)}
}

func (m *mockPublisher) PublishGreeting(_ context.Context, channel string, greeting domain.Greeting) (int64, error) {
	n := m.n.Add(1)
	m.calls <- publishCall{Channel: channel, Greeting: greeting}
	if m.publishFn != nil {
		return m.publishFn(n)
	}
	return 1, nil
}

type mockFeed struct {
	mu      sync.Mutex
	streams []chan domain.Greeting
	// failFrom makes the n-th and later Subscribe calls fail (1-based, 0 = never).
	failFrom int
	calls    int
}

var errFeedDown = errors.New("feed down")

func (m *mockFeed) Subscribe(_ context.Context, _ string) (<-chan domain.Greeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.failFrom > 0 && m.calls >= m.failFrom {
		return nil, errFeedDown
	}
	ch := make(chan domain.Greeting, 64)
	m.streams = append(m.streams, ch)
	return ch, nil
}

func (m *mockFeed) stream(i int) chan domain.Greeting {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streams[i]
}

func (m *mockFeed) subscribeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestHubMetrics() *metrics.HubMetrics {
	return metrics.NewHubMetrics(prometheus.NewRegistry())
}

func newTestPublisherMetrics() *metrics.PublisherMetrics {
	return metrics.NewPublisherMetrics(prometheus.NewRegistry())
}
