package metrics

import "github.com/prometheus/client_golang/prometheus"

// PlacementMetrics holds Prometheus metrics for the placement pipeline.
type PlacementMetrics struct {
	Placements      *prometheus.CounterVec
	PersistDuration prometheus.Histogram
	Clears          *prometheus.CounterVec
}

// NewPlacementMetrics creates and registers placement pipeline metrics on the given registry.
func NewPlacementMetrics(reg prometheus.Registerer) *PlacementMetrics {
	m := &PlacementMetrics{
		Placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "placement",
			Name:      "attempts_total",
			Help:      "Total number of placement attempts, by result.",
		}, []string{"result"}),
		PersistDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "placement",
			Name:      "persist_duration_seconds",
			Help:      "Duration of pixel persistence in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		Clears: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "placement",
			Name:      "clears_total",
			Help:      "Total number of clear requests, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.Placements, m.PersistDuration, m.Clears)
	return m
}
