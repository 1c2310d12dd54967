// Package store keeps the history of test runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/eykd/dgrun/internal/outcome"
)

// ErrNotFound is returned for unknown run IDs.
var ErrNotFound = errors.New("run not found")

// Store wraps SQLite access for runs, results and entries.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating history: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			target TEXT NOT NULL,
			srcdir TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS results (
			run_id TEXT NOT NULL REFERENCES runs(id),
			test_id TEXT NOT NULL,
			family TEXT,
			status TEXT NOT NULL,
			cause TEXT,
			duration_ms INTEGER,
			PRIMARY KEY (run_id, test_id)
		);`,
		`CREATE TABLE IF NOT EXISTS entries (
			run_id TEXT NOT NULL,
			test_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			message TEXT NOT NULL,
			PRIMARY KEY (run_id, test_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// Run is one recorded run of the suite.
type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Target     string     `json:"target"`
	SrcDir     string     `json:"srcdir"`
	Tests      int        `json:"tests"`
	Failed     int        `json:"failed"`
}

// BeginRun records the start of a run and returns it with a fresh UUIDv7.
func (s *Store) BeginRun(ctx context.Context, target, srcdir string) (*Run, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating run id: %w", err)
	}
	r := &Run{ID: id.String(), StartedAt: s.now().UTC(), Target: target, SrcDir: srcdir}
	_, err = s.db.ExecContext(ctx, `INSERT INTO runs(id, started_at, target, srcdir) VALUES(?, ?, ?, ?)`,
		r.ID, formatTime(r.StartedAt), r.Target, r.SrcDir)
	if err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	return r, nil
}

// FinishRun stamps the run's finish time.
func (s *Store) FinishRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET finished_at = ? WHERE id = ?`, formatTime(s.now()), runID)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return nil
}

// RecordResult stores one test result and its entries.
func (s *Store) RecordResult(ctx context.Context, runID string, r *outcome.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("recording result: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO results(run_id, test_id, family, status, cause, duration_ms) VALUES(?, ?, ?, ?, ?, ?)`,
		runID, r.ID, r.Family, string(r.Status), r.Cause, r.Duration.Milliseconds()); err != nil {
		return fmt.Errorf("recording result %s: %w", r.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE run_id = ? AND test_id = ?`, runID, r.ID); err != nil {
		return fmt.Errorf("recording result %s: %w", r.ID, err)
	}
	for i, e := range r.Entries {
		if _, err := tx.ExecContext(ctx, `INSERT INTO entries(run_id, test_id, seq, outcome, message) VALUES(?, ?, ?, ?, ?)`,
			runID, r.ID, i, string(e.Outcome), e.Message); err != nil {
			return fmt.Errorf("recording entry %d of %s: %w", i, r.ID, err)
		}
	}
	return tx.Commit()
}

// Runs returns up to limit runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.started_at, r.finished_at, r.target, r.srcdir,
			COUNT(res.test_id),
			COALESCE(SUM(CASE WHEN res.status IN ('FAIL', 'ERROR') THEN 1 ELSE 0 END), 0)
		FROM runs r LEFT JOIN results res ON res.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC, r.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Target, &r.SrcDir, &r.Tests, &r.Failed); err != nil {
			return nil, fmt.Errorf("listing runs: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("run %s: %w", r.ID, err)
		}
		if finished.Valid {
			t, err := parseTime(finished.String)
			if err != nil {
				return nil, fmt.Errorf("run %s: %w", r.ID, err)
			}
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Results returns every result of a run, ordered by test ID.
func (s *Store) Results(ctx context.Context, runID string) ([]*outcome.Result, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("loading run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT test_id, COALESCE(family, ''), status, COALESCE(cause, ''), COALESCE(duration_ms, 0)
		FROM results WHERE run_id = ? ORDER BY test_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("loading results: %w", err)
	}
	var results []*outcome.Result
	byID := map[string]*outcome.Result{}
	for rows.Next() {
		r := outcome.NewResult("")
		var status string
		var ms int64
		if err := rows.Scan(&r.ID, &r.Family, &status, &r.Cause, &ms); err != nil {
			rows.Close()
			return nil, fmt.Errorf("loading results: %w", err)
		}
		r.Status = outcome.Status(status)
		r.Duration = time.Duration(ms) * time.Millisecond
		results = append(results, r)
		byID[r.ID] = r
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading results: %w", err)
	}

	erows, err := s.db.QueryContext(ctx, `
		SELECT test_id, outcome, message FROM entries WHERE run_id = ? ORDER BY test_id, seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("loading entries: %w", err)
	}
	defer erows.Close()
	for erows.Next() {
		var id, o, msg string
		if err := erows.Scan(&id, &o, &msg); err != nil {
			return nil, fmt.Errorf("loading entries: %w", err)
		}
		if r, ok := byID[id]; ok {
			r.Entries = append(r.Entries, outcome.Entry{Outcome: outcome.Outcome(o), Message: msg})
		}
	}
	return results, erows.Err()
}
