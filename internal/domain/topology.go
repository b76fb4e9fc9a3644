package domain

import "sort"

// Topology is the declared set of nodes and their adjacency.
// It is not mutated after loading; every consumer works on the same value.
type Topology struct {
	Drones  []ParsedNode `json:"drones"`
	Clients []ParsedNode `json:"clients"`
	Servers []ParsedNode `json:"servers"`
}

// NewTopology creates a topology from per-category declarations.
// Kind is forced to match the slice each node is declared in.
func NewTopology(drones, clients, servers []ParsedNode) *Topology {
	t := &Topology{
		Drones:  make([]ParsedNode, 0, len(drones)),
		Clients: make([]ParsedNode, 0, len(clients)),
		Servers: make([]ParsedNode, 0, len(servers)),
	}
	for _, n := range drones {
		n = n.Clone()
		n.Kind = NodeKindDrone
		t.Drones = append(t.Drones, n)
	}
	for _, n := range clients {
		n = n.Clone()
		n.Kind = NodeKindClient
		n.PacketDropRate = 0
		t.Clients = append(t.Clients, n)
	}
	for _, n := range servers {
		n = n.Clone()
		n.Kind = NodeKindServer
		n.PacketDropRate = 0
		t.Servers = append(t.Servers, n)
	}
	return t
}

// Len returns the total number of declared nodes
func (t *Topology) Len() int {
	return len(t.Drones) + len(t.Clients) + len(t.Servers)
}

// IsEmpty reports whether no node is declared
func (t *Topology) IsEmpty() bool {
	return t.Len() == 0
}

// Nodes returns the declarations of one category
func (t *Topology) Nodes(kind NodeKind) []ParsedNode {
	switch kind {
	case NodeKindDrone:
		return t.Drones
	case NodeKindClient:
		return t.Clients
	case NodeKindServer:
		return t.Servers
	}
	return nil
}

// All returns drones, clients and servers in declaration order
func (t *Topology) All() []ParsedNode {
	all := make([]ParsedNode, 0, t.Len())
	all = append(all, t.Drones...)
	all = append(all, t.Clients...)
	all = append(all, t.Servers...)
	return all
}

// Lookup finds a node by id. With duplicated ids the first declaration wins.
func (t *Topology) Lookup(id NodeID) (ParsedNode, bool) {
	for _, n := range t.All() {
		if n.ID == id {
			return n, true
		}
	}
	return ParsedNode{}, false
}

// Index builds an id -> node map for O(1) lookups
func (t *Topology) Index() map[NodeID]ParsedNode {
	idx := make(map[NodeID]ParsedNode, t.Len())
	for _, n := range t.All() {
		if _, exists := idx[n.ID]; !exists {
			idx[n.ID] = n
		}
	}
	return idx
}

// IDs returns every declared id in ascending order
func (t *Topology) IDs() []NodeID {
	ids := make([]NodeID, 0, t.Len())
	for _, n := range t.All() {
		ids = append(ids, n.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// EdgeCount returns the number of undirected edges, counting each declared
// direction as half an edge
func (t *Topology) EdgeCount() int {
	total := 0
	for _, n := range t.All() {
		total += n.Degree()
	}
	return total / 2
}
