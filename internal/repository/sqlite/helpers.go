package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Timestamps are stored as unix nanoseconds

func timeToInt(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func intToTime(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// nullToTimePtr converts a nullable timestamp column to *time.Time
func nullToTimePtr(ni sql.NullInt64) *time.Time {
	if !ni.Valid {
		return nil
	}
	t := intToTime(ni.Int64)
	return &t
}

// ============================================================================
// JSON Marshaling Helpers
// ============================================================================

// unmarshalJSONField safely unmarshals JSON from nullable string into target
func unmarshalJSONField(ns sql.NullString, target interface{}) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), target)
}

// marshalToNull marshals interface to nullable JSON string.
// Returns empty NullString for nil values and empty selections.
func marshalToNull(v interface{}) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}

	switch m := v.(type) {
	case map[string][]string:
		if len(m) == 0 {
			return sql.NullString{}, nil
		}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// ============================================================================
// Run Row Scanner
// ============================================================================

// runColumns must match runRow.scanArgs order
const runColumns = `id, topology_path, topology_digest, nodes, selection, status, started_at, finished_at`

// runRow holds all columns from a run query for scanning
type runRow struct {
	ID             string
	TopologyPath   sql.NullString
	TopologyDigest string
	Nodes          int
	SelectionJSON  sql.NullString
	Status         string
	StartedAt      int64
	FinishedAt     sql.NullInt64
}

func (r *runRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID, &r.TopologyPath, &r.TopologyDigest, &r.Nodes,
		&r.SelectionJSON, &r.Status, &r.StartedAt, &r.FinishedAt,
	}
}
