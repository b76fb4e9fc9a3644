package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initNodeMetrics() {
	r.NodesSpawnedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "netinit_nodes_spawned_total",
			Help: "Total number of node units spawned",
		},
		[]string{"kind", "variant"},
	)

	r.NodeExitsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "netinit_node_exits_total",
			Help: "Total number of node units that terminated",
		},
		[]string{"kind", "outcome"},
	)

	r.NodesRunning = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "netinit_nodes_running",
			Help: "Number of node units currently running",
		},
	)

	r.NodeRunDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netinit_node_run_duration_seconds",
			Help:    "Lifetime of node units",
			Buckets: prometheus.ExponentialBuckets(0.001, 10, 7),
		},
		[]string{"kind"},
	)
}
