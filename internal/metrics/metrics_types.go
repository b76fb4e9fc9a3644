// Package metrics exposes Prometheus instrumentation for the network
// initializer.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// Node lifecycle
	NodesSpawnedTotal *prometheus.CounterVec
	NodeExitsTotal    *prometheus.CounterVec
	NodesRunning      prometheus.Gauge
	NodeRunDuration   *prometheus.HistogramVec

	// Orchestrator
	OrchestratorState        *prometheus.GaugeVec
	TopologyValidationsTotal *prometheus.CounterVec
	TopologyNodes            *prometheus.GaugeVec

	// Events
	EventsTotal *prometheus.CounterVec

	registry *prometheus.Registry
	mu       sync.RWMutex
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initNodeMetrics()
	r.initOrchestratorMetrics()
	r.initEventMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
