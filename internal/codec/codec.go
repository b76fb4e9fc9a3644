// Package codec reads and writes topology documents in the supported file
// formats.
package codec

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"dronenet/internal/domain"
)

// Importer interface for importing topology documents from various formats
type Importer interface {
	Parse(r io.Reader) (*Document, error)
	Format() string
}

// Exporter interface for exporting topologies to various formats
type Exporter interface {
	Export(t *domain.Topology, w io.Writer) error
	Format() string
}

// Codec reads and writes one format
type Codec interface {
	Importer
	Exporter
}

// Formats lists the supported format identifiers
var Formats = []string{"toml", "yaml", "json"}

// ForFormat returns the codec for a format identifier
func ForFormat(format string) (Codec, error) {
	switch strings.ToLower(format) {
	case "toml":
		return NewTOMLCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	case "json":
		return NewJSONCodec(), nil
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// ForPath picks the codec from the file extension
func ForPath(path string) (Codec, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return nil, fmt.Errorf("cannot infer format of %s: no extension", path)
	}
	return ForFormat(ext)
}
