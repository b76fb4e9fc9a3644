package orchestrator

import (
	"time"

	"github.com/sirupsen/logrus"

	"dronenet/internal/metrics"
)

// DefaultShutdownTimeout bounds Run's cooperative shutdown when no other
// timeout is configured
const DefaultShutdownTimeout = 5 * time.Second

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the base logger
func WithLogger(logger *logrus.Entry) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics enables Prometheus instrumentation
func WithMetrics(m *metrics.Registry) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithShutdownTimeout sets how long Run waits for nodes after cancellation
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}
