package repository

import (
	"context"
	"errors"
	"time"

	"dronenet/internal/domain"
)

// ErrNotFound is returned when a run does not exist
var ErrNotFound = errors.New("not found")

// RunStatus is the final state of a run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusStopped   RunStatus = "stopped"
	RunStatusTimedOut  RunStatus = "timed_out"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one execution of a network
type Run struct {
	ID             string              `json:"id"`
	TopologyPath   string              `json:"topology_path"`
	TopologyDigest string              `json:"topology_digest"`
	Nodes          int                 `json:"nodes"`
	Selection      map[string][]string `json:"selection,omitempty"`
	Status         RunStatus           `json:"status"`
	StartedAt      time.Time           `json:"started_at"`
	FinishedAt     *time.Time          `json:"finished_at,omitempty"`
}

// NodeExit is the recorded termination of one node unit
type NodeExit struct {
	Node     domain.NodeID   `json:"node"`
	Kind     domain.NodeKind `json:"kind"`
	Variant  string          `json:"variant"`
	Outcome  string          `json:"outcome"`
	Error    string          `json:"error,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// Ledger defines the interface for run history access
type Ledger interface {
	// Write operations
	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, id string, status RunStatus) error
	RecordNodeExit(ctx context.Context, runID string, exit NodeExit) error
	RecordEvent(ctx context.Context, runID string, ev domain.Event) error

	// Read operations
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	ListNodeExits(ctx context.Context, runID string) ([]NodeExit, error)
	CountEvents(ctx context.Context, runID string) (map[domain.EventKind]int, error)

	// Close releases resources
	Close() error
}
