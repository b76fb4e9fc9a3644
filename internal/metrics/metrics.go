package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// States known to SetOrchestratorState
var orchestratorStates = []string{"instantiated", "initialized", "running"}

// RecordNodeSpawned records a node unit being started
func (r *Registry) RecordNodeSpawned(kind, variant string) {
	r.NodesSpawnedTotal.WithLabelValues(kind, variant).Inc()
	r.NodesRunning.Inc()
}

// RecordNodeExit records a node unit terminating
func (r *Registry) RecordNodeExit(kind, outcome string, lifetime time.Duration) {
	r.NodeExitsTotal.WithLabelValues(kind, outcome).Inc()
	r.NodeRunDuration.WithLabelValues(kind).Observe(lifetime.Seconds())
	r.NodesRunning.Dec()
}

// RecordValidation records the outcome of a topology validation
func (r *Registry) RecordValidation(result string) {
	r.TopologyValidationsTotal.WithLabelValues(result).Inc()
}

// SetTopologySize sets the declared node count of one kind
func (r *Registry) SetTopologySize(kind string, n int) {
	r.TopologyNodes.WithLabelValues(kind).Set(float64(n))
}

// RecordEvent records a node event seen by the controller
func (r *Registry) RecordEvent(kind string) {
	r.EventsTotal.WithLabelValues(kind).Inc()
}

// SetOrchestratorState sets the current orchestrator state
func (r *Registry) SetOrchestratorState(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Reset all states
	for _, s := range orchestratorStates {
		r.OrchestratorState.WithLabelValues(s).Set(0)
	}

	r.OrchestratorState.WithLabelValues(state).Set(1)
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
