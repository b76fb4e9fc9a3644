package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"dronenet/internal/domain"
	"dronenet/internal/repository"
)

// Repository implements repository.Ledger using SQLite
type Repository struct {
	db *sql.DB
}

var _ repository.Ledger = (*Repository)(nil)

// New creates a new SQLite ledger. ":memory:" opens a private in-memory
// database.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" && !strings.Contains(dbPath, "?") {
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; also keeps every query on the same in-memory database
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		topology_path TEXT,
		topology_digest TEXT NOT NULL,
		nodes INTEGER NOT NULL DEFAULT 0,
		selection JSON,
		status TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);

	CREATE TABLE IF NOT EXISTS node_exits (
		run_id TEXT NOT NULL,
		node_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		variant TEXT NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT,
		duration_ns INTEGER NOT NULL,
		PRIMARY KEY (run_id, node_id),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		node_id INTEGER NOT NULL,
		session_id INTEGER,
		source_id INTEGER,
		detail TEXT,
		packet JSON,
		at INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_events_run_kind ON events(run_id, kind);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Close releases the database
func (r *Repository) Close() error {
	return r.db.Close()
}

// CreateRun inserts a run. A missing id is generated, a zero start time is
// set to now, and an empty status becomes running.
func (r *Repository) CreateRun(ctx context.Context, run *repository.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = repository.RunStatusRunning
	}

	selection, err := marshalToNull(run.Selection)
	if err != nil {
		return fmt.Errorf("failed to marshal selection: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO runs (id, topology_path, topology_digest, nodes, selection, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, stringToNull(run.TopologyPath), run.TopologyDigest, run.Nodes, selection, string(run.Status), timeToInt(run.StartedAt))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinishRun sets the final status and finish time of a run
func (r *Repository) FinishRun(ctx context.Context, id string, status repository.RunStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, finished_at = ? WHERE id = ?
	`, string(status), timeToInt(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

// RecordNodeExit stores how a node unit terminated. A second report for the
// same node replaces the first.
func (r *Repository) RecordNodeExit(ctx context.Context, runID string, exit repository.NodeExit) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO node_exits (run_id, node_id, kind, variant, outcome, error, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, node_id) DO UPDATE SET
			kind = excluded.kind,
			variant = excluded.variant,
			outcome = excluded.outcome,
			error = excluded.error,
			duration_ns = excluded.duration_ns
	`, runID, int(exit.Node), string(exit.Kind), exit.Variant, exit.Outcome, stringToNull(exit.Error), int64(exit.Duration))
	if err != nil {
		return fmt.Errorf("failed to record node exit: %w", err)
	}
	return nil
}

// RecordEvent stores a node event
func (r *Repository) RecordEvent(ctx context.Context, runID string, ev domain.Event) error {
	var session, source sql.NullInt64
	var packet sql.NullString
	if ev.Packet != nil {
		session = sql.NullInt64{Int64: int64(ev.Packet.SessionID), Valid: true}
		source = sql.NullInt64{Int64: int64(ev.Packet.Source), Valid: true}

		data, err := json.Marshal(ev.Packet)
		if err != nil {
			return fmt.Errorf("failed to marshal packet: %w", err)
		}
		packet = sql.NullString{String: string(data), Valid: true}
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events (run_id, kind, node_id, session_id, source_id, detail, packet, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, string(ev.Kind), int(ev.Node), session, source, stringToNull(ev.Detail), packet, timeToInt(at))
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// GetRun loads a single run
func (r *Repository) GetRun(ctx context.Context, id string) (*repository.Run, error) {
	var row runRow
	err := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id).Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return row.toDomain()
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]*repository.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*repository.Run
	for rows.Next() {
		var row runRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// ListNodeExits returns the exits of a run ordered by node id
func (r *Repository) ListNodeExits(ctx context.Context, runID string) ([]repository.NodeExit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT node_id, kind, variant, outcome, error, duration_ns
		FROM node_exits WHERE run_id = ? ORDER BY node_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query node exits: %w", err)
	}
	defer rows.Close()

	var exits []repository.NodeExit
	for rows.Next() {
		var (
			nodeID                 int
			kind, variant, outcome string
			errText                sql.NullString
			durationNS             int64
		)
		if err := rows.Scan(&nodeID, &kind, &variant, &outcome, &errText, &durationNS); err != nil {
			return nil, fmt.Errorf("failed to scan node exit: %w", err)
		}
		exits = append(exits, repository.NodeExit{
			Node:     domain.NodeID(nodeID),
			Kind:     domain.NodeKind(kind),
			Variant:  variant,
			Outcome:  outcome,
			Error:    nullToString(errText),
			Duration: time.Duration(durationNS),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating node exits: %w", err)
	}
	return exits, nil
}

// CountEvents returns the number of recorded events per kind for a run
func (r *Repository) CountEvents(ctx context.Context, runID string) (map[domain.EventKind]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM events WHERE run_id = ? GROUP BY kind
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.EventKind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[domain.EventKind(kind)] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event counts: %w", err)
	}
	return counts, nil
}

func (row *runRow) toDomain() (*repository.Run, error) {
	run := &repository.Run{
		ID:             row.ID,
		TopologyPath:   nullToString(row.TopologyPath),
		TopologyDigest: row.TopologyDigest,
		Nodes:          row.Nodes,
		Status:         repository.RunStatus(row.Status),
		StartedAt:      intToTime(row.StartedAt),
		FinishedAt:     nullToTimePtr(row.FinishedAt),
	}
	if err := unmarshalJSONField(row.SelectionJSON, &run.Selection); err != nil {
		return nil, fmt.Errorf("failed to unmarshal selection: %w", err)
	}
	return run, nil
}
