package codec

import (
	"fmt"

	"dronenet/internal/domain"
)

// Document is the on-disk shape of a topology, before validation
type Document struct {
	Drones  []NodeRecord `yaml:"drones" json:"drones" toml:"drones" validate:"dive"`
	Clients []NodeRecord `yaml:"clients" json:"clients" toml:"clients" validate:"dive"`
	Servers []NodeRecord `yaml:"servers" json:"servers" toml:"servers" validate:"dive"`
}

// NodeRecord is one declared node. The drop rate may be spelled "pdr" or
// "packet_drop_rate"; only drones use it.
type NodeRecord struct {
	ID                int      `yaml:"id" json:"id" toml:"id" validate:"gte=0,lte=255"`
	ConnectedDroneIDs []int    `yaml:"connected_drone_ids" json:"connected_drone_ids" toml:"connected_drone_ids" validate:"dive,gte=0,lte=255"`
	PDR               *float64 `yaml:"pdr,omitempty" json:"pdr,omitempty" toml:"pdr,omitempty" validate:"omitempty,gte=0,lte=1"`
	PacketDropRate    *float64 `yaml:"packet_drop_rate,omitempty" json:"packet_drop_rate,omitempty" toml:"packet_drop_rate,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// DropRate returns the declared drop rate, zero when absent
func (r NodeRecord) DropRate() (float64, error) {
	switch {
	case r.PDR != nil && r.PacketDropRate != nil && *r.PDR != *r.PacketDropRate:
		return 0, fmt.Errorf("node %d: pdr %v conflicts with packet_drop_rate %v", r.ID, *r.PDR, *r.PacketDropRate)
	case r.PacketDropRate != nil:
		return *r.PacketDropRate, nil
	case r.PDR != nil:
		return *r.PDR, nil
	}
	return 0, nil
}

func (r NodeRecord) neighbors() []domain.NodeID {
	out := make([]domain.NodeID, len(r.ConnectedDroneIDs))
	for i, id := range r.ConnectedDroneIDs {
		out[i] = domain.NodeID(id)
	}
	return out
}

// Topology converts the document. Ids must already be range checked.
func (d *Document) Topology() (*domain.Topology, error) {
	drones := make([]domain.ParsedNode, 0, len(d.Drones))
	for _, r := range d.Drones {
		pdr, err := r.DropRate()
		if err != nil {
			return nil, err
		}
		drones = append(drones, domain.NewDrone(domain.NodeID(r.ID), pdr, r.neighbors()...))
	}

	clients := make([]domain.ParsedNode, 0, len(d.Clients))
	for _, r := range d.Clients {
		clients = append(clients, domain.NewClient(domain.NodeID(r.ID), r.neighbors()...))
	}

	servers := make([]domain.ParsedNode, 0, len(d.Servers))
	for _, r := range d.Servers {
		servers = append(servers, domain.NewServer(domain.NodeID(r.ID), r.neighbors()...))
	}

	return domain.NewTopology(drones, clients, servers), nil
}

// FromTopology builds the document for t. Drone rates use packet_drop_rate.
func FromTopology(t *domain.Topology) *Document {
	record := func(n domain.ParsedNode) NodeRecord {
		ids := make([]int, len(n.NeighborIDs))
		for i, id := range n.NeighborIDs {
			ids[i] = int(id)
		}
		return NodeRecord{ID: int(n.ID), ConnectedDroneIDs: ids}
	}

	d := &Document{
		Drones:  make([]NodeRecord, 0, len(t.Drones)),
		Clients: make([]NodeRecord, 0, len(t.Clients)),
		Servers: make([]NodeRecord, 0, len(t.Servers)),
	}
	for _, n := range t.Drones {
		r := record(n)
		pdr := n.PacketDropRate
		r.PacketDropRate = &pdr
		d.Drones = append(d.Drones, r)
	}
	for _, n := range t.Clients {
		d.Clients = append(d.Clients, record(n))
	}
	for _, n := range t.Servers {
		d.Servers = append(d.Servers, record(n))
	}
	return d
}
