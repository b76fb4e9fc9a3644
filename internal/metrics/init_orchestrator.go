package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initOrchestratorMetrics() {
	r.OrchestratorState = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "netinit_orchestrator_state",
			Help: "Current orchestrator state (1 = active)",
		},
		[]string{"state"},
	)

	r.TopologyValidationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "netinit_topology_validations_total",
			Help: "Total number of topology validations by result",
		},
		[]string{"result"},
	)

	r.TopologyNodes = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "netinit_topology_nodes",
			Help: "Declared nodes per kind in the loaded topology",
		},
		[]string{"kind"},
	)
}

func (r *Registry) initEventMetrics() {
	r.EventsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "netinit_events_total",
			Help: "Total number of node events observed by the controller",
		},
		[]string{"kind"},
	)
}
