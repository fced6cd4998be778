// Package journal records every transform run in a SQLite database so that
// past renames and drops can be audited or reversed.
package journal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when no run matches an ID or ID prefix.
var ErrRunNotFound = errors.New("run not found")

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// Run is one invocation of a mutating command.
type Run struct {
	ID         string         `json:"id"`
	Command    string         `json:"command"`
	Document   string         `json:"document"`
	StartedAt  time.Time      `json:"started_at"`
	DryRun     bool           `json:"dry_run"`
	Written    bool           `json:"written"`
	Backup     string         `json:"backup,omitempty"`
	HashBefore string         `json:"hash_before"`
	HashAfter  string         `json:"hash_after,omitempty"`
	GitCommit  string         `json:"git_commit,omitempty"` // HEAD of the document's repository
	Summary    map[string]int `json:"summary,omitempty"`    // Change counts by action
	Error      string         `json:"error,omitempty"`
}

// Change is one logged step of a run.
type Change struct {
	Seq    int    `json:"seq"`
	Action string `json:"action"`
	Kind   string `json:"kind,omitempty"`
	Old    string `json:"old,omitempty"`
	New    string `json:"new,omitempty"`
	Line   int    `json:"line,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Open opens or creates the journal database at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			document TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			dry_run INTEGER NOT NULL,
			written INTEGER NOT NULL,
			backup TEXT,
			hash_before TEXT NOT NULL,
			hash_after TEXT,
			summary_json TEXT,
			error TEXT,
			git_commit TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

		CREATE TABLE IF NOT EXISTS changes (
			run_id TEXT NOT NULL REFERENCES runs(id),
			seq INTEGER NOT NULL,
			action TEXT NOT NULL,
			kind TEXT,
			old_key TEXT,
			new_key TEXT,
			line INTEGER,
			detail TEXT,
			PRIMARY KEY (run_id, seq)
		);
	`

	_, err := db.Exec(schema)
	return err
}

// Record stores a run and its changes in one transaction. A missing ID or
// start time is filled in; the stored run is returned.
func (d *DB) Record(run Run, changes []Change) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	var summary sql.NullString
	if len(run.Summary) > 0 {
		data, err := json.Marshal(run.Summary)
		if err != nil {
			return Run{}, fmt.Errorf("encoding summary: %w", err)
		}
		summary = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := d.db.Begin()
	if err != nil {
		return Run{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (
			id, command, document, started_at, dry_run, written,
			backup, hash_before, hash_after, summary_json, error, git_commit
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Command, run.Document, run.StartedAt.UnixMilli(), run.DryRun, run.Written,
		nullIfEmpty(run.Backup), run.HashBefore, nullIfEmpty(run.HashAfter), summary, nullIfEmpty(run.Error),
		nullIfEmpty(run.GitCommit))
	if err != nil {
		return Run{}, fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO changes (run_id, seq, action, kind, old_key, new_key, line, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return Run{}, fmt.Errorf("preparing change insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range changes {
		_, err := stmt.Exec(run.ID, i+1, c.Action,
			nullIfEmpty(c.Kind), nullIfEmpty(c.Old), nullIfEmpty(c.New), c.Line, nullIfEmpty(c.Detail))
		if err != nil {
			return Run{}, fmt.Errorf("inserting change %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("committing transaction: %w", err)
	}

	run.StartedAt = time.UnixMilli(run.StartedAt.UnixMilli())
	return run, nil
}

const selectRunFields = `id, command, document, started_at, dry_run, written,
	backup, hash_before, hash_after, summary_json, error, git_commit`

// List returns the most recent runs, newest first. A limit of zero or less
// returns every run.
func (d *DB) List(limit int) ([]Run, error) {
	query := "SELECT " + selectRunFields + " FROM runs ORDER BY started_at DESC, rowid DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get returns the run whose ID equals or uniquely starts with id.
func (d *DB) Get(id string) (Run, error) {
	rows, err := d.db.Query("SELECT "+selectRunFields+" FROM runs WHERE id LIKE ? ESCAPE '\\' LIMIT 2", escapeLike(id)+"%")
	if err != nil {
		return Run{}, fmt.Errorf("querying run: %w", err)
	}
	defer rows.Close()

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

	switch len(found) {
	case 0:
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return found[0], nil
	default:
		return Run{}, fmt.Errorf("run ID prefix %q is ambiguous", id)
	}
}

// Changes returns the changes of a run in order.
func (d *DB) Changes(runID string) ([]Change, error) {
	rows, err := d.db.Query(`
		SELECT seq, action, kind, old_key, new_key, line, detail
		FROM changes WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying changes: %w", err)
	}
	defer rows.Close()

	changes := []Change{}
	for rows.Next() {
		var c Change
		var kind, oldKey, newKey, detail sql.NullString
		var line sql.NullInt64
		if err := rows.Scan(&c.Seq, &c.Action, &kind, &oldKey, &newKey, &line, &detail); err != nil {
			return nil, fmt.Errorf("scanning change: %w", err)
		}
		c.Kind = kind.String
		c.Old = oldKey.String
		c.New = newKey.String
		c.Line = int(line.Int64)
		c.Detail = detail.String
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var run Run
	var startedAt int64
	var backup, hashAfter, summary, runErr, gitCommit sql.NullString
	err := s.Scan(&run.ID, &run.Command, &run.Document, &startedAt, &run.DryRun, &run.Written,
		&backup, &run.HashBefore, &hashAfter, &summary, &runErr, &gitCommit)
	if err != nil {
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}

	run.StartedAt = time.UnixMilli(startedAt)
	run.Backup = backup.String
	run.HashAfter = hashAfter.String
	run.Error = runErr.String
	run.GitCommit = gitCommit.String
	if summary.Valid && summary.String != "" {
		if err := json.Unmarshal([]byte(summary.String), &run.Summary); err != nil {
			return Run{}, fmt.Errorf("parsing summary of run %s: %w", run.ID, err)
		}
	}
	return run, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
