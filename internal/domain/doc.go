// Package domain defines the core types of the dronenet network initializer.
//
// # Topology
//
// Topology is the parsed, immutable description of a simulated network: three
// ordered collections of ParsedNode (drones, clients, servers) sharing one
// NodeID space. Each node lists the ids of its neighbors; edges are intended
// to be undirected, which the topology package verifies.
//
// # Messages
//
// Three message types travel on channels between the controller and nodes:
//
// Packet is the application payload carried on per-node data channels.
//
// Command is a controller directive (crash, add/remove sender, change drop
// rate, originate a packet) delivered on a per-node command channel.
//
// Event is a node notification sent on the single shared event channel.
//
// The payload semantics are intentionally opaque: this package does not define
// a wire protocol between nodes.
//
// # Design Principles
//
// - No I/O and no dependency on the loader or the orchestrator
// - Value types that are safe to copy between goroutines
package domain
