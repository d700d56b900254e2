// Package journal keeps a local SQLite history of runs, their per-operation
// results and the policy decisions made along the way.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/josephgoksu/voiceboard/internal/operation"
	"github.com/josephgoksu/voiceboard/internal/pipeline"
)

// FileName is the database file created under the journal directory.
const FileName = "journal.db"

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrAmbiguousRun = errors.New("run id prefix matches several runs")
)

// Journal is the SQLite-backed run history.
type Journal struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the journal under basePath. ":memory:" opens
// a private in-memory database.
func Open(basePath string) (*Journal, error) {
	var dbPath string
	if basePath == ":memory:" {
		dbPath = ":memory:"
	} else {
		dbPath = filepath.Join(basePath, FileName)
		if err := os.MkdirAll(basePath, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Every pooled connection to ":memory:" would otherwise see its own database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	j := &Journal{db: db, path: dbPath}
	if err := j.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return j, nil
}

// Path returns the database location.
func (j *Journal) Path() string { return j.path }

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

func (j *Journal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		transcript TEXT NOT NULL,
		tier TEXT NOT NULL,
		operation_count INTEGER NOT NULL DEFAULT 0,
		rejected_count INTEGER NOT NULL DEFAULT 0,
		attempted INTEGER NOT NULL DEFAULT 0,
		succeeded INTEGER NOT NULL DEFAULT 0,
		refresh TEXT,
		cancelled INTEGER NOT NULL DEFAULT 0,
		warnings TEXT NOT NULL DEFAULT '[]',
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		kind TEXT NOT NULL,
		target TEXT NOT NULL,
		outcome TEXT NOT NULL,
		reason TEXT,
		task_id TEXT,
		note TEXT,
		operation_json TEXT NOT NULL,
		warnings TEXT NOT NULL DEFAULT '[]',
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	-- Decisions are written while a run is still in flight, so run_id is not a foreign key.
	CREATE TABLE IF NOT EXISTS policy_decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		decision_id TEXT NOT NULL UNIQUE,
		run_id TEXT,
		policy_path TEXT NOT NULL,
		result TEXT NOT NULL,
		violations TEXT NOT NULL DEFAULT '[]',
		warnings TEXT NOT NULL DEFAULT '[]',
		input_json TEXT NOT NULL DEFAULT '{}',
		evaluated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id, position);
	CREATE INDEX IF NOT EXISTS idx_policy_decisions_run ON policy_decisions(run_id);
	CREATE INDEX IF NOT EXISTS idx_policy_decisions_result ON policy_decisions(result);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Run is a recorded run header.
type Run struct {
	ID         string        `json:"id"`
	Source     string        `json:"source"`
	Transcript string        `json:"transcript"`
	Tier       string        `json:"tier"`
	Operations int           `json:"operations"`
	Rejected   int           `json:"rejected"`
	Attempted  int           `json:"attempted"`
	Succeeded  int           `json:"succeeded"`
	Refresh    string        `json:"refresh,omitempty"`
	Cancelled  bool          `json:"cancelled,omitempty"`
	Warnings   []string      `json:"warnings,omitempty"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
}

// Failed returns the number of attempted operations that failed.
func (r Run) Failed() int { return r.Attempted - r.Succeeded }

// Entry is one recorded operation result.
type Entry struct {
	RunID     string              `json:"runId"`
	Position  int                 `json:"position"`
	Kind      string              `json:"kind"`
	Target    string              `json:"target"`
	Outcome   string              `json:"outcome"`
	Reason    string              `json:"reason,omitempty"`
	TaskID    string              `json:"taskId,omitempty"`
	Note      string              `json:"note,omitempty"`
	Operation operation.Operation `json:"operation"`
	Warnings  []string            `json:"warnings,omitempty"`
}

// Record stores a finished run and its results in one transaction. Dry runs
// are not recorded.
func (j *Journal) Record(ctx context.Context, r *pipeline.Report) error {
	if r == nil {
		return fmt.Errorf("report is nil")
	}
	if r.DryRun {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, source, transcript, tier, operation_count, rejected_count,
			attempted, succeeded, refresh, cancelled, warnings, started_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID,
		r.Source,
		r.Transcript,
		r.Tier.String(),
		len(r.Operations),
		len(r.Rejections),
		r.Attempted,
		r.Succeeded,
		string(r.Refresh),
		boolInt(r.Cancelled),
		marshalList(r.Warnings),
		r.StartedAt.UTC().Format(timeLayout),
		r.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, res := range r.Results {
		opJSON, err := json.Marshal(res.Operation)
		if err != nil {
			return fmt.Errorf("marshal operation %d: %w", i, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO results (
				run_id, position, kind, target, outcome, reason, task_id, note, operation_json, warnings
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID,
			i,
			string(res.Operation.Kind),
			res.Operation.Target(),
			string(res.Outcome),
			nullString(res.Reason),
			nullString(res.TaskID),
			nullString(res.Note),
			string(opJSON),
			marshalList(res.Warnings),
		)
		if err != nil {
			return fmt.Errorf("insert result %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// ListRunsOptions filters ListRuns.
type ListRunsOptions struct {
	Limit      int       // 0 = no limit
	Since      time.Time // started_at >= since
	FailedOnly bool      // only runs with at least one failed operation
}

const runColumns = `id, source, transcript, tier, operation_count, rejected_count,
	attempted, succeeded, refresh, cancelled, warnings, started_at, duration_ms`

// ListRuns returns runs, newest first.
func (j *Journal) ListRuns(ctx context.Context, opts ListRunsOptions) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	args := []any{}

	if !opts.Since.IsZero() {
		query += " AND started_at >= ?"
		args = append(args, opts.Since.UTC().Format(timeLayout))
	}
	if opts.FailedOnly {
		query += " AND succeeded < attempted"
	}
	query += " ORDER BY started_at DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun finds a run by its ID or a unique ID prefix.
func (j *Journal) GetRun(ctx context.Context, idOrPrefix string) (Run, error) {
	if idOrPrefix == "" {
		return Run{}, ErrRunNotFound
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ORDER BY id = ? DESC LIMIT 2`,
		idOrPrefix, idOrPrefix+"%", idOrPrefix)
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var found []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}

	switch {
	case len(found) == 0:
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, idOrPrefix)
	case found[0].ID == idOrPrefix || len(found) == 1:
		return found[0], nil
	default:
		return Run{}, fmt.Errorf("%w: %s", ErrAmbiguousRun, idOrPrefix)
	}
}

// Results returns the recorded results of a run in operation order.
func (j *Journal) Results(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, position, kind, target, outcome, reason, task_id, note, operation_json, warnings
		FROM results
		WHERE run_id = ?
		ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var reason, taskID, note sql.NullString
		var opJSON, warnings string
		if err := rows.Scan(&e.RunID, &e.Position, &e.Kind, &e.Target, &e.Outcome,
			&reason, &taskID, &note, &opJSON, &warnings); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		e.Reason, e.TaskID, e.Note = reason.String, taskID.String, note.String
		e.Warnings = parseList(warnings)
		if err := json.Unmarshal([]byte(opJSON), &e.Operation); err != nil {
			return nil, fmt.Errorf("decode operation: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune removes runs that started before now minus olderThan, with their results.
func (j *Journal) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(timeLayout)
	res, err := j.db.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	if _, err := j.db.ExecContext(ctx, "DELETE FROM policy_decisions WHERE evaluated_at < ?", cutoff); err != nil {
		return 0, fmt.Errorf("prune policy decisions: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	var refresh sql.NullString
	var cancelled int
	var warnings, startedAt string
	var durationMS int64

	err := s.Scan(&r.ID, &r.Source, &r.Transcript, &r.Tier, &r.Operations, &r.Rejected,
		&r.Attempted, &r.Succeeded, &refresh, &cancelled, &warnings, &startedAt, &durationMS)
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.Refresh = refresh.String
	r.Cancelled = cancelled != 0
	r.Warnings = parseList(warnings)
	r.Duration = time.Duration(durationMS) * time.Millisecond
	if r.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	return r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func parseList(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil
	}
	return v
}
