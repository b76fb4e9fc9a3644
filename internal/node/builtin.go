package node

import (
	"dronenet/internal/domain"
	"dronenet/internal/registry"
)

// Built-in variant names
const (
	VariantFlood    = "flood"
	VariantSink     = "sink"
	VariantEndpoint = "endpoint"
)

// RegisterBuiltins registers every built-in variant with reg
func RegisterBuiltins(reg *registry.Registry) error {
	for _, r := range Builtins() {
		if err := reg.Register(r); err != nil {
			return err
		}
	}
	return nil
}

// Builtins returns the built-in registrations
func Builtins() []registry.Registration {
	return []registry.Registration{
		{
			Kind:        domain.NodeKindDrone,
			Variant:     VariantFlood,
			Description: "forwards every new packet to all neighbors but the previous hop, dropping with the configured rate",
			Factory:     NewFlood,
		},
		{
			Kind:        domain.NodeKindDrone,
			Variant:     VariantSink,
			Description: "consumes every packet it receives",
			Factory:     NewSink,
		},
		{
			Kind:        domain.NodeKindClient,
			Variant:     VariantEndpoint,
			Description: "originates packets on send commands and reports deliveries",
			Factory:     NewEndpoint,
		},
		{
			Kind:        domain.NodeKindServer,
			Variant:     VariantEndpoint,
			Description: "originates packets on send commands and reports deliveries",
			Factory:     NewEndpoint,
		},
	}
}

// NewFlood builds a flooding drone
func NewFlood(spec registry.Spec) (registry.Runnable, error) {
	return newNode(spec, VariantFlood, flood), nil
}

// NewSink builds a drone that swallows packets
func NewSink(spec registry.Spec) (registry.Runnable, error) {
	return newNode(spec, VariantSink, sink), nil
}

// NewEndpoint builds a client or server endpoint
func NewEndpoint(spec registry.Spec) (registry.Runnable, error) {
	return newNode(spec, VariantEndpoint, deliver), nil
}

func flood(n *Node, p domain.Packet) {
	if !n.markSeen(p) {
		return
	}
	if n.pdr > 0 && n.rng.Float64() < n.pdr {
		n.emit(domain.EventPacketDropped, &p, "")
		return
	}

	prev, hasPrev := p.PreviousHop()
	fwd := p.Forwarded(n.self.ID)
	var skip *domain.NodeID
	if hasPrev {
		skip = &prev
	}
	if n.broadcast(fwd, skip) == 0 {
		n.emit(domain.EventPacketDropped, &fwd, "no route")
		return
	}
	n.emit(domain.EventPacketSent, &fwd, "")
}

func sink(n *Node, p domain.Packet) {
	n.emit(domain.EventPacketDelivered, &p, "")
}

// deliver reports each packet once, however many paths it arrived on
func deliver(n *Node, p domain.Packet) {
	if !n.markSeen(p) {
		return
	}
	n.emit(domain.EventPacketDelivered, &p, "")
}
