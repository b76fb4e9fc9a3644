package domain

import (
	"fmt"
	"strconv"
)

// NodeID identifies a node. Drones, clients and servers share one id space.
type NodeID uint8

// String returns the decimal form of the id
func (id NodeID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// NodeKind represents the category of a simulated node
type NodeKind string

const (
	NodeKindDrone  NodeKind = "drone"
	NodeKindClient NodeKind = "client"
	NodeKindServer NodeKind = "server"
)

// NodeKinds lists every category in declaration order
var NodeKinds = []NodeKind{NodeKindDrone, NodeKindClient, NodeKindServer}

// ParseNodeKind converts a string into a NodeKind
func ParseNodeKind(s string) (NodeKind, error) {
	switch NodeKind(s) {
	case NodeKindDrone, NodeKindClient, NodeKindServer:
		return NodeKind(s), nil
	}
	return "", fmt.Errorf("unknown node kind %q", s)
}

// ParsedNode is a node as declared in the topology file
type ParsedNode struct {
	ID          NodeID   `json:"id"`
	Kind        NodeKind `json:"kind"`
	NeighborIDs []NodeID `json:"connected_drone_ids"`

	// PacketDropRate is the probability in [0,1] that a drone drops a packet.
	// Always zero for clients and servers.
	PacketDropRate float64 `json:"packet_drop_rate,omitempty"`
}

// NewDrone creates a drone declaration
func NewDrone(id NodeID, pdr float64, neighbors ...NodeID) ParsedNode {
	return ParsedNode{ID: id, Kind: NodeKindDrone, NeighborIDs: neighbors, PacketDropRate: pdr}
}

// NewClient creates a client declaration
func NewClient(id NodeID, neighbors ...NodeID) ParsedNode {
	return ParsedNode{ID: id, Kind: NodeKindClient, NeighborIDs: neighbors}
}

// NewServer creates a server declaration
func NewServer(id NodeID, neighbors ...NodeID) ParsedNode {
	return ParsedNode{ID: id, Kind: NodeKindServer, NeighborIDs: neighbors}
}

// HasNeighbor reports whether id appears in the neighbor list
func (n ParsedNode) HasNeighbor(id NodeID) bool {
	for _, nb := range n.NeighborIDs {
		if nb == id {
			return true
		}
	}
	return false
}

// Degree returns the number of declared neighbors
func (n ParsedNode) Degree() int {
	return len(n.NeighborIDs)
}

// Clone returns a deep copy of the declaration
func (n ParsedNode) Clone() ParsedNode {
	c := n
	if n.NeighborIDs != nil {
		c.NeighborIDs = append([]NodeID(nil), n.NeighborIDs...)
	}
	return c
}
