package metrics

import "github.com/prometheus/client_golang/prometheus"

// HubMetrics tracks fan-out from the broker subscription to local listeners.
type HubMetrics struct {
	Listeners        prometheus.Gauge
	MessagesReceived prometheus.Counter
	MessagesDropped  prometheus.Counter
	FanoutLatency    prometheus.Histogram
	Resubscribes     prometheus.Counter
	FeedActive       prometheus.Gauge
}

func NewHubMetrics(reg prometheus.Registerer) *HubMetrics {
	m := &HubMetrics{
		Listeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "listeners",
			Help:      "Number of registered subscription listeners.",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "messages_received_total",
			Help:      "Greetings received from the broker subscription.",
		}),
		MessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "messages_dropped_total",
			Help:      "Greetings skipped for a listener whose buffer was full.",
		}),
		FanoutLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "fanout_duration_seconds",
			Help:      "Time to hand one greeting to every listener.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		}),
		Resubscribes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "resubscribes_total",
			Help:      "Broker resubscriptions after the feed closed unexpectedly.",
		}),
		FeedActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "feed_active",
			Help:      "1 if the broker subscription is active, 0 otherwise.",
		}),
	}

	reg.MustRegister(m.Listeners, m.MessagesReceived, m.MessagesDropped, m.FanoutLatency, m.Resubscribes, m.FeedActive)
	return m
}
