// Package orchestrator turns a topology description into a running set of
// concurrent nodes.
//
// An Orchestrator validates the topology and allocates its channels on
// construction. The controller then takes the data channels, the event
// receiver and the command senders; only once all three were handed out may
// Start build and spawn one goroutine per node. Wait joins them, Stop asks
// them to crash.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"dronenet/internal/channel"
	"dronenet/internal/domain"
	"dronenet/internal/fabric"
	"dronenet/internal/loader"
	"dronenet/internal/metrics"
	"dronenet/internal/registry"
	"dronenet/internal/topology"
)

var (
	// ErrNotInitialized is returned by Start before every handle was exported
	ErrNotInitialized = errors.New("orchestrator not initialized")
	// ErrAlreadyRunning is returned by Start once nodes were spawned
	ErrAlreadyRunning = errors.New("orchestrator already running")
	// ErrNotRunning is returned by Stop before Start
	ErrNotRunning = errors.New("orchestrator not running")
	// ErrShutdownTimeout is returned when nodes outlive the shutdown deadline
	ErrShutdownTimeout = errors.New("shutdown timed out")
	// ErrNodePanicked is wrapped into the exit of a node whose Run panicked
	ErrNodePanicked = errors.New("node panicked")
)

// Outcome is how a node unit terminated
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomePanicked Outcome = "panicked"
)

// NodeExit reports the termination of one node unit
type NodeExit struct {
	Node     domain.NodeID
	Kind     domain.NodeKind
	Variant  string
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Orchestrator owns a network from validation to shutdown.
// All methods are safe for concurrent use.
type Orchestrator struct {
	mu       sync.Mutex
	topo     *domain.Topology
	registry *registry.Registry
	set      *fabric.ChannelSet
	commands map[domain.NodeID]channel.Sender[domain.Command]

	state    State
	exported export

	running map[domain.NodeID]registry.Built
	exits   []NodeExit
	wg      sync.WaitGroup

	logger          *logrus.Entry
	metrics         *metrics.Registry
	shutdownTimeout time.Duration
}

// New validates t and allocates its channels. Nothing is spawned.
func New(t *domain.Topology, reg *registry.Registry, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		topo:            t,
		registry:        reg,
		running:         make(map[domain.NodeID]registry.Built),
		logger:          logrus.NewEntry(logrus.StandardLogger()),
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.WithField("component", "orchestrator")

	if reg == nil {
		return nil, errors.New("orchestrator: nil registry")
	}

	err := topology.Validate(t)
	if o.metrics != nil {
		o.metrics.RecordValidation(topology.Reason(err))
	}
	if err != nil {
		o.logger.WithError(err).Warn("Topology rejected")
		return nil, fmt.Errorf("invalid topology: %w", err)
	}

	o.set = fabric.Build(t)
	o.commands = o.set.CommandSenders()

	if o.metrics != nil {
		for _, kind := range domain.NodeKinds {
			o.metrics.SetTopologySize(string(kind), len(t.Nodes(kind)))
		}
		o.metrics.SetOrchestratorState(o.state.String())
	}
	o.logger.WithFields(logrus.Fields{
		"drones":  len(t.Drones),
		"clients": len(t.Clients),
		"servers": len(t.Servers),
		"digest":  domain.Digest(t)[:12],
	}).Info("Topology accepted")

	return o, nil
}

// Load reads a topology file and calls New
func Load(path string, reg *registry.Registry, opts ...Option) (*Orchestrator, error) {
	t, err := loader.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return New(t, reg, opts...)
}

// Topology returns the validated topology. Callers must not modify it.
func (o *Orchestrator) Topology() *domain.Topology {
	return o.topo
}

// State returns the current lifecycle phase
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// DataChannels hands out every node's data channel. After Start the map is
// empty: the nodes own their channels.
func (o *Orchestrator) DataChannels() map[domain.NodeID]channel.Pair[domain.Packet] {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.markExported(exportDataChannels)
	return o.set.DataChannels()
}

// EventReceiver hands out the receive side of the shared event channel
func (o *Orchestrator) EventReceiver() channel.Receiver[domain.Event] {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.markExported(exportEventReceiver)
	return o.set.EventReceiver()
}

// CommandSenders hands out a send endpoint per node command channel
func (o *Orchestrator) CommandSenders() map[domain.NodeID]channel.Sender[domain.Command] {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.markExported(exportCommandSenders)
	return o.set.CommandSenders()
}

// markExported records a handle export. Must be called with mu held.
func (o *Orchestrator) markExported(e export) {
	if o.state != StateInstantiated || o.exported&e != 0 {
		return
	}
	o.exported |= e
	if o.exported == exportAll {
		o.setState(StateInitialized)
	}
}

// setState must be called with mu held
func (o *Orchestrator) setState(s State) {
	o.logger.WithFields(logrus.Fields{
		"from": o.state,
		"to":   s,
	}).Debug("State transition")
	o.state = s
	if o.metrics != nil {
		o.metrics.SetOrchestratorState(s.String())
	}
}

// Start builds a node for every declaration and spawns it. sel restricts the
// variants per kind; nodes of a kind take the selected variants round-robin.
// Either every node is spawned or none is.
func (o *Orchestrator) Start(sel registry.Selection) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state {
	case StateInstantiated:
		return ErrNotInitialized
	case StateRunning:
		return ErrAlreadyRunning
	}

	var units []registry.Built
	for _, kind := range domain.NodeKinds {
		built, err := o.registry.Build(o.topo.Nodes(kind), kind, sel[kind], o.spec)
		if err != nil {
			o.logger.WithError(err).WithField("kind", kind).Error("Failed to build nodes")
			return err
		}
		units = append(units, built...)
	}

	o.set.Clear()
	for _, u := range units {
		o.spawn(u)
	}
	o.setState(StateRunning)
	o.logger.WithField("nodes", len(units)).Info("Network started")

	return nil
}

func (o *Orchestrator) spec(n domain.ParsedNode) (registry.Spec, error) {
	neighbors, err := o.set.BindSenders(n)
	if err != nil {
		return registry.Spec{}, err
	}
	ep, err := o.set.Endpoints(n.ID)
	if err != nil {
		return registry.Spec{}, err
	}
	return registry.Spec{
		Node:      n,
		Events:    ep.Events,
		Commands:  ep.Commands,
		Neighbors: neighbors,
		Data:      ep.Data,
		Logger:    o.logger.WithField("component", "node"),
	}, nil
}

// spawn must be called with mu held
func (o *Orchestrator) spawn(u registry.Built) {
	o.running[u.Node.ID] = u
	o.wg.Add(1)
	if o.metrics != nil {
		o.metrics.RecordNodeSpawned(string(u.Node.Kind), u.Variant)
	}

	go func() {
		defer o.wg.Done()

		exit := NodeExit{
			Node:    u.Node.ID,
			Kind:    u.Node.Kind,
			Variant: u.Variant,
			Outcome: OutcomeOK,
		}
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				exit.Outcome = OutcomePanicked
				exit.Err = fmt.Errorf("%w: %v", ErrNodePanicked, r)
				o.logger.WithFields(logrus.Fields{
					"node":    u.Node.ID,
					"kind":    u.Node.Kind,
					"variant": u.Variant,
					"panic":   r,
				}).Error("Node panicked")
			}
			exit.Duration = time.Since(start)
			o.finish(exit)
		}()

		u.Runnable.Run()
	}()
}

func (o *Orchestrator) finish(exit NodeExit) {
	o.mu.Lock()
	defer o.mu.Unlock()

	delete(o.running, exit.Node)
	o.exits = append(o.exits, exit)
	if exit.Outcome == OutcomeOK {
		o.logger.WithFields(logrus.Fields{
			"node":     exit.Node,
			"kind":     exit.Kind,
			"variant":  exit.Variant,
			"outcome":  exit.Outcome,
			"duration": exit.Duration,
		}).Info("Node shut down")
	}
	if o.metrics != nil {
		o.metrics.RecordNodeExit(string(exit.Kind), string(exit.Outcome), exit.Duration)
	}
}

// RunningNodes returns the ids of spawned nodes that have not terminated
func (o *Orchestrator) RunningNodes() []domain.NodeID {
	o.mu.Lock()
	defer o.mu.Unlock()

	ids := make([]domain.NodeID, 0, len(o.running))
	for id := range o.running {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Wait blocks until every spawned node has terminated and returns their exit
// reports ordered by node id. A panic in one node never affects the others.
func (o *Orchestrator) Wait() []NodeExit {
	o.wg.Wait()
	return o.Exits()
}

// Exits returns the exit reports collected so far, ordered by node id
func (o *Orchestrator) Exits() []NodeExit {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := append([]NodeExit(nil), o.exits...)
	sort.Slice(out, func(i, j int) bool { return out[i].Node < out[j].Node })
	return out
}

// Stop sends a crash command to every node and waits for them until ctx is
// done. Nodes still running at the deadline are abandoned.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateRunning {
		o.mu.Unlock()
		return ErrNotRunning
	}
	for id, tx := range o.commands {
		if err := tx.Send(domain.Crash()); err != nil {
			o.logger.WithError(err).WithField("node", id).Debug("Crash not delivered")
		}
	}
	o.mu.Unlock()

	o.logger.Info("Shutdown requested")

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.Info("All nodes stopped")
		return nil
	case <-ctx.Done():
		left := o.RunningNodes()
		o.logger.WithField("running", left).Warn("Shutdown deadline reached")
		return fmt.Errorf("%w: %d nodes still running", ErrShutdownTimeout, len(left))
	}
}

// Run starts the network and waits for it. When ctx is cancelled first, the
// network is stopped with the configured shutdown timeout.
func (o *Orchestrator) Run(ctx context.Context, sel registry.Selection) ([]NodeExit, error) {
	if err := o.Start(sel); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return o.Exits(), nil
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), o.shutdownTimeout)
	defer cancel()
	if err := o.Stop(stopCtx); err != nil {
		return o.Exits(), err
	}
	return o.Exits(), nil
}
