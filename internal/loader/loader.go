// Package loader reads topology files into domain values.
//
// Loading only checks what a single record can get wrong (id range, drop
// rate range, conflicting fields). Cross-node rules belong to the topology
// package.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"dronenet/internal/codec"
	"dronenet/internal/domain"
)

var (
	// ErrConfigRead is returned when the topology file cannot be read
	ErrConfigRead = errors.New("cannot read topology file")
	// ErrConfigParse is returned when the content is not a valid document
	ErrConfigParse = errors.New("cannot parse topology file")
)

var validate = validator.New()

// LoadFile reads and parses a topology file. The format follows the file
// extension.
func LoadFile(path string) (*domain.Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigRead, path, err)
	}

	c, err := codec.ForPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	t, err := decode(data, c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse parses topology data in the named format
func Parse(data []byte, format string) (*domain.Topology, error) {
	c, err := codec.ForFormat(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	return decode(data, c)
}

func decode(data []byte, c codec.Importer) (*domain.Topology, error) {
	doc, err := c.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, formatValidationError(err))
	}

	t, err := doc.Topology()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	return t, nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Report the first violation only
	for _, e := range validationErrs {
		switch e.Tag() {
		case "gte":
			return fmt.Errorf("%s: must be at least %s, got %v", e.Namespace(), e.Param(), e.Value())
		case "lte":
			return fmt.Errorf("%s: must not exceed %s, got %v", e.Namespace(), e.Param(), e.Value())
		default:
			return fmt.Errorf("%s: validation failed (%s)", e.Namespace(), e.Tag())
		}
	}
	return err
}
