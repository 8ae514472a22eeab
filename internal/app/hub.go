package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/hellopulse/internal/adapter/metrics"
	"github.com/pscheid92/hellopulse/internal/domain"
	"github.com/pscheid92/hellopulse/internal/platform/retry"
)

const (
	listenerBuffer = 16
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

// ResubscribePolicy governs how the hub reattaches to the broker after its
// feed closes while the hub is still running.
var ResubscribePolicy = retry.Policy{
	MaxAttempts:    10,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     10 * time.Second,
	OnRetry: func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Hub resubscribe failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	},
}

type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	id       uuid.UUID
	listener chan domain.Greeting
	reply    chan error
}

type unregisterCmd struct {
	baseHubCmd
	id uuid.UUID
}

type listenerCountCmd struct {
	baseHubCmd
	reply chan int
}

type feedResult struct {
	stream <-chan domain.Greeting
	err    error
}

// Hub fans greetings from a single broker subscription out to many local
// listeners. All listener state is owned by the run goroutine.
type Hub struct {
	feed         domain.GreetingFeed
	channel      string
	clock        clockwork.Clock
	maxListeners int
	metrics      *metrics.HubMetrics
	resubscribe  retry.Policy

	cmdCh        chan hubCmd
	resubscribed chan feedResult
	stopCh       chan struct{}
	done         chan struct{}
	started      atomic.Bool
	stopOnce     sync.Once
	doneOnce     sync.Once

	listeners map[uuid.UUID]chan domain.Greeting
}

var _ domain.GreetingSource = (*Hub)(nil)

func NewHub(feed domain.GreetingFeed, channel string, clock clockwork.Clock, maxListeners int, m *metrics.HubMetrics) *Hub {
	policy := ResubscribePolicy
	policy.Clock = clock

	return &Hub{
		feed:         feed,
		channel:      channel,
		clock:        clock,
		maxListeners: maxListeners,
		metrics:      m,
		resubscribe:  policy,
		cmdCh:        make(chan hubCmd, 256),
		resubscribed: make(chan feedResult),
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
		listeners:    make(map[uuid.UUID]chan domain.Greeting),
	}
}

// Start subscribes to the broker channel and launches the fan-out loop.
// The hub runs until Stop is called, ctx is cancelled, or the feed cannot be
// re-established.
func (h *Hub) Start(ctx context.Context) error {
	if !h.started.CompareAndSwap(false, true) {
		return errors.New("hub already started")
	}

	feedCtx, cancel := context.WithCancel(ctx)
	stream, err := h.feed.Subscribe(feedCtx, h.channel)
	if err != nil {
		cancel()
		h.closeDone()
		return fmt.Errorf("failed to subscribe to %s: %w", h.channel, err)
	}

	h.metrics.FeedActive.Set(1)
	slog.Info("Subscription hub started", "channel", h.channel, "max_listeners", h.maxListeners)

	go h.run(feedCtx, cancel, stream)
	return nil
}

// Done is closed once the hub has stopped for any reason.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Subscribe registers a listener. The returned channel is closed when ctx is
// done or the hub stops.
func (h *Hub) Subscribe(ctx context.Context) (<-chan domain.Greeting, error) {
	id := uuid.New()
	listener := make(chan domain.Greeting, listenerBuffer)
	reply := make(chan error, 1)

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case h.cmdCh <- registerCmd{id: id, listener: listener, reply: reply}:
	case <-h.done:
		return nil, domain.ErrHubStopped
	case <-timer.Chan():
		return nil, fmt.Errorf("register command timed out after %v", commandTimeout)
	}

	select {
	case err := <-reply:
		if err != nil {
			return nil, err
		}
	case <-h.done:
		return nil, domain.ErrHubStopped
	case <-timer.Chan():
		go h.unregister(id)
		return nil, fmt.Errorf("register command timed out after %v", commandTimeout)
	}

	go func() {
		select {
		case <-ctx.Done():
			h.unregister(id)
		case <-h.done:
		}
	}()

	return listener, nil
}

func (h *Hub) unregister(id uuid.UUID) {
	select {
	case h.cmdCh <- unregisterCmd{id: id}:
	case <-h.done:
	}
}

// ListenerCount returns the number of registered listeners, or -1 if the hub
// is stopped or does not answer in time.
func (h *Hub) ListenerCount() int {
	reply := make(chan int, 1)

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case h.cmdCh <- listenerCountCmd{reply: reply}:
	case <-h.done:
		return -1
	case <-timer.Chan():
		return -1
	}

	select {
	case n := <-reply:
		return n
	case <-h.done:
		return -1
	case <-timer.Chan():
		slog.Warn("ListenerCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop closes every listener and the broker subscription. It blocks until the
// run loop exits or the stop timeout elapses.
func (h *Hub) Stop() {
	if h.started.CompareAndSwap(false, true) {
		h.closeDone()
		return
	}
	h.stopOnce.Do(func() { close(h.stopCh) })

	timeout := h.clock.NewTimer(stopTimeout)
	defer timeout.Stop()

	select {
	case <-h.done:
		slog.Info("Subscription hub stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Subscription hub stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (h *Hub) closeDone() {
	h.doneOnce.Do(func() { close(h.done) })
}

func (h *Hub) run(ctx context.Context, cancelFeed context.CancelFunc, stream <-chan domain.Greeting) {
	defer h.closeDone()
	defer cancelFeed()
	defer h.closeAll()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Subscription hub panic recovered", "panic", r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Subscription hub context cancelled")
			return

		case <-h.stopCh:
			return

		case cmd := <-h.cmdCh:
			h.handle(cmd)

		case greeting, ok := <-stream:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				stream = nil
				h.metrics.FeedActive.Set(0)
				slog.Warn("Broker feed closed, resubscribing", "channel", h.channel)
				go h.reconnect(ctx)
				continue
			}
			h.fanout(greeting)

		case res := <-h.resubscribed:
			if res.err != nil {
				slog.Error("Hub could not resubscribe, closing listeners", "channel", h.channel, "error", res.err)
				return
			}
			stream = res.stream
			h.metrics.Resubscribes.Inc()
			h.metrics.FeedActive.Set(1)
			slog.Info("Broker feed re-established", "channel", h.channel)
		}
	}
}

func (h *Hub) reconnect(ctx context.Context) {
	stream, err := retry.Do(ctx, h.resubscribe, retry.Always, func() (<-chan domain.Greeting, error) {
		return h.feed.Subscribe(ctx, h.channel)
	})

	select {
	case h.resubscribed <- feedResult{stream: stream, err: err}:
	case <-ctx.Done():
	}
}

func (h *Hub) handle(cmd hubCmd) {
	switch c := cmd.(type) {
	case registerCmd:
		if len(h.listeners) >= h.maxListeners {
			c.reply <- domain.ErrTooManySubscriptions
			return
		}
		h.listeners[c.id] = c.listener
		h.metrics.Listeners.Set(float64(len(h.listeners)))
		c.reply <- nil
		slog.Debug("Listener registered", "listener", c.id, "listeners", len(h.listeners))

	case unregisterCmd:
		listener, ok := h.listeners[c.id]
		if !ok {
			return
		}
		delete(h.listeners, c.id)
		close(listener)
		h.metrics.Listeners.Set(float64(len(h.listeners)))
		slog.Debug("Listener unregistered", "listener", c.id, "listeners", len(h.listeners))

	case listenerCountCmd:
		c.reply <- len(h.listeners)
	}
}

func (h *Hub) fanout(greeting domain.Greeting) {
	start := h.clock.Now()
	h.metrics.MessagesReceived.Inc()

	for id, listener := range h.listeners {
		select {
		case listener <- greeting:
		default:
			h.metrics.MessagesDropped.Inc()
			slog.Debug("Listener buffer full, dropping greeting", "listener", id)
		}
	}

	h.metrics.FanoutLatency.Observe(h.clock.Since(start).Seconds())
}

func (h *Hub) closeAll() {
	for id, listener := range h.listeners {
		close(listener)
		delete(h.listeners, id)
	}
	h.metrics.Listeners.Set(0)
	h.metrics.FeedActive.Set(0)
}
