package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics holds Prometheus metrics for the realtime connection layer.
type WebSocketMetrics struct {
	ActiveConnections  prometheus.Gauge
	ConnectedActors    prometheus.Gauge
	Sessions           *prometheus.CounterVec
	Rejections         *prometheus.CounterVec
	MessagesSent       prometheus.Counter
	SendDuration       prometheus.Histogram
	SlowClientsEvicted prometheus.Counter
	PingFailures       prometheus.Counter
	RelayReceived      prometheus.Counter
}

// NewWebSocketMetrics creates and registers WebSocket metrics on the given registry.
func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of registered WebSocket connections.",
		}),
		ConnectedActors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "connected_actors",
			Help:      "Number of distinct actors with at least one connection.",
		}),
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "sessions_total",
			Help:      "Total number of WebSocket sessions, by outcome of identification.",
		}, []string{"result"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "rejections_total",
			Help:      "Total number of upgrade requests rejected before the handshake, by reason.",
		}, []string{"reason"}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "messages_sent_total",
			Help:      "Total number of frames written to clients.",
		}),
		SendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "send_duration_seconds",
			Help:      "Duration of single frame writes in seconds.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
		SlowClientsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "slow_clients_evicted_total",
			Help:      "Total number of connections dropped because their send buffer was full or closed.",
		}),
		PingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "ping_failures_total",
			Help:      "Total number of failed keepalive pings.",
		}),
		RelayReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "relay_received_total",
			Help:      "Total number of broadcasts received from other instances.",
		}),
	}

	reg.MustRegister(m.ActiveConnections, m.ConnectedActors, m.Sessions, m.Rejections, m.MessagesSent,
		m.SendDuration, m.SlowClientsEvicted, m.PingFailures, m.RelayReceived)
	return m
}
