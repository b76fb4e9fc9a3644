// Package fabric allocates the channels that connect a validated topology:
// one data channel and one command channel per node, plus the single event
// channel every node reports into.
package fabric

import (
	"errors"
	"fmt"

	"dronenet/internal/channel"
	"dronenet/internal/domain"
)

// ErrChannelNotFound is returned when a node or one of its neighbors has no
// allocated channel. It cannot happen for a topology that passed validation.
var ErrChannelNotFound = errors.New("channel not found")

// MissingChannelError names the node whose channel is missing
type MissingChannelError struct {
	Node domain.NodeID
	// Channel is "data" or "command"
	Channel string
}

func (e *MissingChannelError) Error() string {
	return fmt.Sprintf("%v: %s channel of node %d", ErrChannelNotFound, e.Channel, e.Node)
}

func (e *MissingChannelError) Unwrap() error {
	return ErrChannelNotFound
}

// Endpoints is what a single node needs to run besides its neighbor senders
type Endpoints struct {
	Data     channel.Receiver[domain.Packet]
	Commands channel.Receiver[domain.Command]
	Events   channel.Sender[domain.Event]
}

// ChannelSet holds every channel of a network.
// It is not safe for concurrent use; the owner serializes access.
type ChannelSet struct {
	data     map[domain.NodeID]channel.Pair[domain.Packet]
	commands map[domain.NodeID]channel.Pair[domain.Command]
	events   channel.Pair[domain.Event]
}

// Build allocates the channels for every declared node
func Build(t *domain.Topology) *ChannelSet {
	set := &ChannelSet{
		data:     make(map[domain.NodeID]channel.Pair[domain.Packet], t.Len()),
		commands: make(map[domain.NodeID]channel.Pair[domain.Command], t.Len()),
		events:   channel.NewPair[domain.Event](),
	}
	for _, n := range t.All() {
		set.data[n.ID] = channel.NewPair[domain.Packet]()
		set.commands[n.ID] = channel.NewPair[domain.Command]()
	}
	return set
}

// BindSenders returns a send endpoint into the data channel of every
// neighbor of node, keyed by neighbor id.
func (s *ChannelSet) BindSenders(node domain.ParsedNode) (map[domain.NodeID]channel.Sender[domain.Packet], error) {
	senders := make(map[domain.NodeID]channel.Sender[domain.Packet], len(node.NeighborIDs))
	for _, nb := range node.NeighborIDs {
		pair, ok := s.data[nb]
		if !ok {
			return nil, &MissingChannelError{Node: nb, Channel: "data"}
		}
		senders[nb] = pair.Sender
	}
	return senders, nil
}

// Endpoints returns the receive side of node's own channels and a clone of
// the shared event sender.
func (s *ChannelSet) Endpoints(node domain.NodeID) (Endpoints, error) {
	data, ok := s.data[node]
	if !ok {
		return Endpoints{}, &MissingChannelError{Node: node, Channel: "data"}
	}
	cmd, ok := s.commands[node]
	if !ok {
		return Endpoints{}, &MissingChannelError{Node: node, Channel: "command"}
	}
	return Endpoints{
		Data:     data.Receiver,
		Commands: cmd.Receiver,
		Events:   s.events.Sender,
	}, nil
}

// DataChannels returns a copy of the per-node data channels
func (s *ChannelSet) DataChannels() map[domain.NodeID]channel.Pair[domain.Packet] {
	out := make(map[domain.NodeID]channel.Pair[domain.Packet], len(s.data))
	for id, p := range s.data {
		out[id] = p
	}
	return out
}

// CommandSenders returns a send endpoint per node command channel
func (s *ChannelSet) CommandSenders() map[domain.NodeID]channel.Sender[domain.Command] {
	out := make(map[domain.NodeID]channel.Sender[domain.Command], len(s.commands))
	for id, p := range s.commands {
		out[id] = p.Sender
	}
	return out
}

// EventReceiver returns the receive side of the shared event channel
func (s *ChannelSet) EventReceiver() channel.Receiver[domain.Event] {
	return s.events.Receiver
}

// Clear drops the data channels once nodes own them.
// Command senders and the event receiver stay available to the controller.
func (s *ChannelSet) Clear() {
	s.data = make(map[domain.NodeID]channel.Pair[domain.Packet])
}

// Len returns the number of nodes with a command channel
func (s *ChannelSet) Len() int {
	return len(s.commands)
}
