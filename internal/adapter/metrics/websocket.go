package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics holds Prometheus metrics for graphql-transport-ws sockets.
type WebSocketMetrics struct {
	ActiveConnections prometheus.Gauge
	RejectedUpgrades  *prometheus.CounterVec
	ActiveOperations  prometheus.Gauge
	OperationsTotal   *prometheus.CounterVec
	MessagesSent      prometheus.Counter
	ProtocolClosures  *prometheus.CounterVec
}

func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of active WebSocket connections.",
		}),
		RejectedUpgrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "rejected_upgrades_total",
			Help:      "WebSocket upgrades rejected by connection limits, by reason.",
		}, []string{"reason"}),
		ActiveOperations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_operations",
			Help:      "Number of running GraphQL operations across all sockets.",
		}),
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "operations_total",
			Help:      "GraphQL operations started over WebSocket, by operation type.",
		}, []string{"type"}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "messages_sent_total",
			Help:      "Total number of protocol messages written to sockets.",
		}),
		ProtocolClosures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "protocol_closures_total",
			Help:      "Sockets closed by the server, by close code.",
		}, []string{"code"}),
	}

	reg.MustRegister(m.ActiveConnections, m.RejectedUpgrades, m.ActiveOperations, m.OperationsTotal, m.MessagesSent, m.ProtocolClosures)
	return m
}
