package domain

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// Digest returns a deterministic fingerprint of the topology.
// Declaration order does not matter; neighbor order does not matter.
func Digest(t *Topology) string {
	nodes := t.All()
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	h, _ := blake2b.New256(nil)
	var buf [8]byte
	for _, n := range nodes {
		h.Write([]byte{byte(n.ID)})
		h.Write([]byte(n.Kind))

		binary.BigEndian.PutUint64(buf[:], math.Float64bits(n.PacketDropRate))
		h.Write(buf[:])

		neighbors := append([]NodeID(nil), n.NeighborIDs...)
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })
		binary.BigEndian.PutUint64(buf[:], uint64(len(neighbors)))
		h.Write(buf[:])
		for _, nb := range neighbors {
			h.Write([]byte{byte(nb)})
		}
	}

	return fmt.Sprintf("%x", h.Sum(nil))
}
