package metrics

import "github.com/prometheus/client_golang/prometheus"

// PublisherMetrics tracks the counter publisher loop.
type PublisherMetrics struct {
	Published   prometheus.Counter
	Failures    prometheus.Counter
	Receivers   prometheus.Gauge
	LastCounter prometheus.Gauge
}

func NewPublisherMetrics(reg prometheus.Registerer) *PublisherMetrics {
	m := &PublisherMetrics{
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "published_total",
			Help:      "Greetings successfully published.",
		}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "failures_total",
			Help:      "Greetings that failed to publish.",
		}),
		Receivers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "last_receivers",
			Help:      "Subscribers that received the most recent greeting.",
		}),
		LastCounter: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "last_counter",
			Help:      "Counter value of the most recent publish attempt.",
		}),
	}

	reg.MustRegister(m.Published, m.Failures, m.Receivers, m.LastCounter)
	return m
}
