package metrics

import "github.com/prometheus/client_golang/prometheus"

// BoardCacheMetrics holds Prometheus metrics for board snapshot reads.
type BoardCacheMetrics struct {
	Hits      prometheus.Counter
	Misses    prometheus.Counter
	SharedHit prometheus.Counter
}

// NewBoardCacheMetrics creates and registers board cache metrics on the given registry.
func NewBoardCacheMetrics(reg prometheus.Registerer) *BoardCacheMetrics {
	m := &BoardCacheMetrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "board_cache",
			Name:      "hits_total",
			Help:      "Total number of board reads served from the snapshot cache.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "board_cache",
			Name:      "misses_total",
			Help:      "Total number of board reads that queried the store.",
		}),
		SharedHit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "board_cache",
			Name:      "shared_total",
			Help:      "Total number of board reads that joined an in-flight query.",
		}),
	}

	reg.MustRegister(m.Hits, m.Misses, m.SharedHit)
	return m
}
