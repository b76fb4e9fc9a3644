package domain

import (
	"time"

	"dronenet/internal/channel"
)

// Packet is the opaque application payload carried on data channels.
// Hops records every node that has handled the packet, origin first.
type Packet struct {
	SessionID uint64   `json:"session_id"`
	Source    NodeID   `json:"source"`
	Hops      []NodeID `json:"hops,omitempty"`
	Payload   []byte   `json:"payload,omitempty"`
}

// PreviousHop returns the last node that handled the packet
func (p *Packet) PreviousHop() (NodeID, bool) {
	if len(p.Hops) == 0 {
		return 0, false
	}
	return p.Hops[len(p.Hops)-1], true
}

// Forwarded returns a copy of the packet with id appended to its hops
func (p *Packet) Forwarded(id NodeID) Packet {
	c := *p
	c.Hops = make([]NodeID, 0, len(p.Hops)+1)
	c.Hops = append(c.Hops, p.Hops...)
	c.Hops = append(c.Hops, id)
	return c
}

// CommandKind identifies a controller directive
type CommandKind string

const (
	// CommandCrash asks the node to stop its run loop
	CommandCrash CommandKind = "crash"
	// CommandAddSender gives the node a send endpoint for a new neighbor
	CommandAddSender CommandKind = "add_sender"
	// CommandRemoveSender drops the send endpoint of a neighbor
	CommandRemoveSender CommandKind = "remove_sender"
	// CommandSetPacketDropRate changes a drone's drop probability
	CommandSetPacketDropRate CommandKind = "set_packet_drop_rate"
	// CommandSend asks the node to originate a packet
	CommandSend CommandKind = "send"
)

// Command is sent by the controller to a single node
type Command struct {
	Kind           CommandKind            `json:"kind"`
	Neighbor       NodeID                 `json:"neighbor,omitempty"`
	Sender         channel.Sender[Packet] `json:"-"`
	PacketDropRate float64                `json:"packet_drop_rate,omitempty"`
	Packet         *Packet                `json:"packet,omitempty"`
}

// Crash builds the shutdown command
func Crash() Command {
	return Command{Kind: CommandCrash}
}

// EventKind identifies a node notification
type EventKind string

const (
	EventPacketSent      EventKind = "packet_sent"
	EventPacketDropped   EventKind = "packet_dropped"
	EventPacketDelivered EventKind = "packet_delivered"
	EventNodeStopped     EventKind = "node_stopped"
)

// Event is emitted by nodes onto the shared controller channel
type Event struct {
	Kind   EventKind `json:"kind"`
	Node   NodeID    `json:"node"`
	Packet *Packet   `json:"packet,omitempty"`
	At     time.Time `json:"at"`
	Detail string    `json:"detail,omitempty"`
}

// NewEvent creates an event stamped with the current time
func NewEvent(kind EventKind, node NodeID, packet *Packet) Event {
	return Event{Kind: kind, Node: node, Packet: packet, At: time.Now()}
}
