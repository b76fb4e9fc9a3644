// Package registry maps (node kind, variant) pairs to the constructors that
// build runnable nodes, and assigns variants to declared nodes.
package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"dronenet/internal/channel"
	"dronenet/internal/domain"
)

var (
	// ErrNoFactoryAvailable is returned when nodes of a kind exist but the
	// selection leaves no constructor for them
	ErrNoFactoryAvailable = errors.New("no factory available")
	// ErrDuplicateRegistration is returned by Register for a taken kind/variant
	ErrDuplicateRegistration = errors.New("factory already registered")
	// ErrInvalidRegistration is returned by Register for incomplete entries
	ErrInvalidRegistration = errors.New("invalid registration")
)

// NoFactoryError names the kind that could not be instantiated
type NoFactoryError struct {
	Kind   domain.NodeKind
	Filter []string
}

func (e *NoFactoryError) Error() string {
	if len(e.Filter) == 0 {
		return fmt.Sprintf("%v for %s nodes", ErrNoFactoryAvailable, e.Kind)
	}
	return fmt.Sprintf("%v for %s nodes (selected: %s)", ErrNoFactoryAvailable, e.Kind, strings.Join(e.Filter, ","))
}

func (e *NoFactoryError) Unwrap() error {
	return ErrNoFactoryAvailable
}

// Runnable is a constructed node. Run blocks until the node terminates.
type Runnable interface {
	ID() domain.NodeID
	Run()
}

// Spec is everything a constructor receives
type Spec struct {
	Node      domain.ParsedNode
	Events    channel.Sender[domain.Event]
	Commands  channel.Receiver[domain.Command]
	Neighbors map[domain.NodeID]channel.Sender[domain.Packet]
	Data      channel.Receiver[domain.Packet]
	Logger    *logrus.Entry
}

// Factory builds a node from its spec
type Factory func(Spec) (Runnable, error)

// Registration describes one constructor
type Registration struct {
	Kind        domain.NodeKind
	Variant     string
	Description string
	Factory     Factory
}

// Selection restricts the variants used per kind. A kind missing from the
// map, or mapped to an empty list, may use every registered variant.
type Selection map[domain.NodeKind][]string

// ParseSelection converts "kind=a,b" style config entries into a Selection
func ParseSelection(raw map[string][]string) (Selection, error) {
	sel := make(Selection, len(raw))
	for k, variants := range raw {
		kind, err := domain.ParseNodeKind(k)
		if err != nil {
			return nil, err
		}
		sel[kind] = append([]string(nil), variants...)
	}
	return sel, nil
}

// Built is a constructed node together with the variant that built it
type Built struct {
	Node     domain.ParsedNode
	Variant  string
	Runnable Runnable
}

// Registry holds registrations in insertion order
type Registry struct {
	mu      sync.RWMutex
	entries []Registration
	index   map[string]int
	logger  *logrus.Entry
}

// New creates an empty registry
func New(logger *logrus.Entry) *Registry {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{
		index:  make(map[string]int),
		logger: logger.WithField("component", "registry"),
	}
}

func key(kind domain.NodeKind, variant string) string {
	return string(kind) + "/" + variant
}

// Register adds a constructor
func (r *Registry) Register(reg Registration) error {
	if reg.Variant == "" || reg.Factory == nil {
		return fmt.Errorf("%w: %s/%q", ErrInvalidRegistration, reg.Kind, reg.Variant)
	}
	if _, err := domain.ParseNodeKind(string(reg.Kind)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRegistration, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(reg.Kind, reg.Variant)
	if _, exists := r.index[k]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRegistration, k)
	}

	r.index[k] = len(r.entries)
	r.entries = append(r.entries, reg)
	r.logger.WithFields(logrus.Fields{
		"kind":    reg.Kind,
		"variant": reg.Variant,
	}).Debug("Registered factory")

	return nil
}

// Variants returns the variant names registered for kind, in order
func (r *Registry) Variants(kind domain.NodeKind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, e := range r.entries {
		if e.Kind == kind {
			out = append(out, e.Variant)
		}
	}
	return out
}

// List returns every registration in order
func (r *Registry) List() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]Registration(nil), r.entries...)
}

// Select returns the registrations of kind allowed by filter, preserving
// registration order. An empty filter allows every variant.
func (r *Registry) Select(kind domain.NodeKind, filter []string) []Registration {
	allowed := make(map[string]bool, len(filter))
	for _, v := range filter {
		allowed[v] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Registration
	for _, e := range r.entries {
		if e.Kind != kind {
			continue
		}
		if len(filter) > 0 && !allowed[e.Variant] {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Build constructs every node of one kind. The node at position i gets the
// constructor at position i % n of the selected set. specFn supplies each
// node's channels. Nothing is returned unless every node was built.
func (r *Registry) Build(nodes []domain.ParsedNode, kind domain.NodeKind, filter []string, specFn func(domain.ParsedNode) (Spec, error)) ([]Built, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	factories := r.Select(kind, filter)
	if len(factories) == 0 {
		return nil, &NoFactoryError{Kind: kind, Filter: filter}
	}

	built := make([]Built, 0, len(nodes))
	for i, n := range nodes {
		reg := factories[i%len(factories)]
		n.Kind = kind

		spec, err := specFn(n)
		if err != nil {
			return nil, fmt.Errorf("wiring %s %d: %w", kind, n.ID, err)
		}
		if spec.Logger == nil {
			spec.Logger = r.logger
		}
		spec.Logger = spec.Logger.WithFields(logrus.Fields{
			"node":    n.ID,
			"kind":    kind,
			"variant": reg.Variant,
		})

		runnable, err := reg.Factory(spec)
		if err != nil {
			return nil, fmt.Errorf("building %s %d with %s: %w", kind, n.ID, reg.Variant, err)
		}
		built = append(built, Built{Node: n, Variant: reg.Variant, Runnable: runnable})
	}
	return built, nil
}
