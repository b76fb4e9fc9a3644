package codec

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"

	"dronenet/internal/domain"
)

// TOMLCodec handles the TOML layout used by existing network files:
//
//	[[drones]]
//	id = 1
//	connected_drone_ids = [2, 3]
//	pdr = 0.05
type TOMLCodec struct{}

// NewTOMLCodec creates a new TOML codec
func NewTOMLCodec() *TOMLCodec {
	return &TOMLCodec{}
}

// Format returns the codec format identifier
func (c *TOMLCodec) Format() string {
	return "toml"
}

// Parse imports a topology document from TOML
func (c *TOMLCodec) Parse(r io.Reader) (*Document, error) {
	var doc Document
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return &doc, nil
}

// Export exports a topology to TOML
func (c *TOMLCodec) Export(t *domain.Topology, w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(FromTopology(t)); err != nil {
		return fmt.Errorf("failed to encode TOML: %w", err)
	}

	return nil
}
