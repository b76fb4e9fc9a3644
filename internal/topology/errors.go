package topology

import (
	"errors"
	"fmt"

	"dronenet/internal/domain"
)

// Structural errors. Each is returned bare or wrapped in a ConnectionError or
// DegreeError carrying the offending ids; errors.Is matches both forms.
var (
	ErrDuplicatedNodeID                 = errors.New("duplicated node id")
	ErrEmptyTopology                    = errors.New("empty topology")
	ErrInvalidNodeConnection            = errors.New("invalid node connection")
	ErrUnidirectionalConnection         = errors.New("unidirectional connection")
	ErrClientWithMoreThanTwoConnections = errors.New("client with more than two connections")
	ErrServerWithLessThanTwoConnections = errors.New("server with less than two connections")
)

// ConnectionError reports an invalid edge, offending node first
type ConnectionError struct {
	Err      error
	Node     domain.NodeID
	Neighbor domain.NodeID
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%v: node %d -> %d", e.Err, e.Node, e.Neighbor)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// DegreeError reports a node violating its category's degree constraint
type DegreeError struct {
	Err    error
	Node   domain.NodeID
	Degree int
}

func (e *DegreeError) Error() string {
	return fmt.Sprintf("%v: node %d has %d", e.Err, e.Node, e.Degree)
}

func (e *DegreeError) Unwrap() error {
	return e.Err
}

// InvalidNodeConnection builds the error for a self-loop, a repeated neighbor
// or a neighbor id that is not declared.
func InvalidNodeConnection(node, neighbor domain.NodeID) error {
	return &ConnectionError{Err: ErrInvalidNodeConnection, Node: node, Neighbor: neighbor}
}

// UnidirectionalConnection builds the error for node listing neighbor without
// the reverse edge.
func UnidirectionalConnection(node, neighbor domain.NodeID) error {
	return &ConnectionError{Err: ErrUnidirectionalConnection, Node: node, Neighbor: neighbor}
}

// ClientWithMoreThanTwoConnections builds the client degree error
func ClientWithMoreThanTwoConnections(node domain.NodeID, degree int) error {
	return &DegreeError{Err: ErrClientWithMoreThanTwoConnections, Node: node, Degree: degree}
}

// ServerWithLessThanTwoConnections builds the server degree error
func ServerWithLessThanTwoConnections(node domain.NodeID, degree int) error {
	return &DegreeError{Err: ErrServerWithLessThanTwoConnections, Node: node, Degree: degree}
}

// Reason returns a short label for the structural error class, for metrics
// and logs. Unknown errors map to "other".
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDuplicatedNodeID):
		return "duplicated_node_id"
	case errors.Is(err, ErrEmptyTopology):
		return "empty_topology"
	case errors.Is(err, ErrInvalidNodeConnection):
		return "invalid_node_connection"
	case errors.Is(err, ErrUnidirectionalConnection):
		return "unidirectional_connection"
	case errors.Is(err, ErrClientWithMoreThanTwoConnections):
		return "client_degree"
	case errors.Is(err, ErrServerWithLessThanTwoConnections):
		return "server_degree"
	}
	return "other"
}
