// Package topology checks a parsed network description against the structural
// rules every simulated network must satisfy before any node is wired.
package topology

import "dronenet/internal/domain"

const (
	// MaxClientConnections is the highest degree a client may have
	MaxClientConnections = 2
	// MinServerConnections is the lowest degree a server may have
	MinServerConnections = 2
)

// Validate checks t and returns the first violation found.
//
// Checks run in a fixed order so the reported error is deterministic:
// id uniqueness, non-emptiness, per-node neighbor sanity, edge symmetry,
// then per-category degree limits. Within a phase nodes are visited drones
// first, then clients, then servers, each in declaration order, and a node's
// neighbors in declaration order. A neighbor may be of any category.
func Validate(t *domain.Topology) error {
	if t == nil {
		return ErrEmptyTopology
	}

	ids, err := uniqueIDs(t)
	if err != nil {
		return err
	}

	if t.IsEmpty() {
		return ErrEmptyTopology
	}

	nodes := t.All()

	if err := checkConnections(nodes, ids); err != nil {
		return err
	}

	if err := checkSymmetry(nodes, t.Index()); err != nil {
		return err
	}

	return checkDegrees(t)
}

func uniqueIDs(t *domain.Topology) (map[domain.NodeID]struct{}, error) {
	ids := make(map[domain.NodeID]struct{}, t.Len())
	for _, n := range t.All() {
		if _, exists := ids[n.ID]; exists {
			return nil, ErrDuplicatedNodeID
		}
		ids[n.ID] = struct{}{}
	}
	return ids, nil
}

func checkConnections(nodes []domain.ParsedNode, ids map[domain.NodeID]struct{}) error {
	for _, n := range nodes {
		seen := make(map[domain.NodeID]struct{}, len(n.NeighborIDs))
		for _, nb := range n.NeighborIDs {
			if nb == n.ID {
				return InvalidNodeConnection(n.ID, nb)
			}
			if _, dup := seen[nb]; dup {
				return InvalidNodeConnection(n.ID, nb)
			}
			seen[nb] = struct{}{}
			if _, known := ids[nb]; !known {
				return InvalidNodeConnection(n.ID, nb)
			}
		}
	}
	return nil
}

func checkSymmetry(nodes []domain.ParsedNode, index map[domain.NodeID]domain.ParsedNode) error {
	for _, n := range nodes {
		for _, nb := range n.NeighborIDs {
			if !index[nb].HasNeighbor(n.ID) {
				return UnidirectionalConnection(n.ID, nb)
			}
		}
	}
	return nil
}

func checkDegrees(t *domain.Topology) error {
	for _, c := range t.Clients {
		if c.Degree() > MaxClientConnections {
			return ClientWithMoreThanTwoConnections(c.ID, c.Degree())
		}
	}
	for _, s := range t.Servers {
		if s.Degree() < MinServerConnections {
			return ServerWithLessThanTwoConnections(s.ID, s.Degree())
		}
	}
	return nil
}
