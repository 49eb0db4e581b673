// Package storage persists run history and delivered-paper records in a
// local SQLite database. A nil *Store is valid and disables persistence:
// every method degrades to a no-op so the pipeline can run stateless.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"paperlens/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	started_at      TIMESTAMP NOT NULL,
	finished_at     TIMESTAMP NOT NULL,
	discovered      INTEGER NOT NULL DEFAULT 0,
	relevant        INTEGER NOT NULL DEFAULT 0,
	selected        INTEGER NOT NULL DEFAULT 0,
	delivered       INTEGER NOT NULL DEFAULT 0,
	filter_failed   INTEGER NOT NULL DEFAULT 0,
	filter_total    INTEGER NOT NULL DEFAULT 0,
	scorer_failed   INTEGER NOT NULL DEFAULT 0,
	scorer_total    INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS delivered_papers (
	paper_id     TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	title        TEXT NOT NULL,
	delivered_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_delivered_run ON delivered_papers(run_id);
`

// RunRecord summarizes one pipeline run.
type RunRecord struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Discovered   int
	Relevant     int
	Selected     int
	Delivered    int
	FilterFailed int
	FilterTotal  int
	ScorerFailed int
	ScorerTotal  int
	Status       string
}

// Store is the SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open creates the database file (and its directory) if needed and
// initializes the schema.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun persists the summary of a completed run.
func (s *Store) RecordRun(ctx context.Context, rec RunRecord) error {
	if s == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, discovered, relevant, selected,
			delivered, filter_failed, filter_total, scorer_failed, scorer_total, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StartedAt.UTC(), rec.FinishedAt.UTC(), rec.Discovered, rec.Relevant,
		rec.Selected, rec.Delivered, rec.FilterFailed, rec.FilterTotal,
		rec.ScorerFailed, rec.ScorerTotal, rec.Status)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// MarkDelivered records each paper as delivered so later runs can skip it.
// Re-delivery of an already recorded paper is ignored.
func (s *Store) MarkDelivered(ctx context.Context, runID string, papers []types.Paper) error {
	if s == nil || len(papers) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, p := range papers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO delivered_papers (paper_id, run_id, title, delivered_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(paper_id) DO NOTHING`,
			p.ID, runID, p.Title, now)
		if err != nil {
			return fmt.Errorf("failed to mark paper %s delivered: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delivered papers: %w", err)
	}
	return nil
}

// FilterNew drops papers already delivered in earlier runs. Lookup errors
// keep the paper; a broken history database must not suppress papers.
func (s *Store) FilterNew(ctx context.Context, papers []types.Paper) []types.Paper {
	if s == nil || len(papers) == 0 {
		return papers
	}

	fresh := make([]types.Paper, 0, len(papers))
	for _, p := range papers {
		var one int
		err := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM delivered_papers WHERE paper_id = ?`, p.ID).Scan(&one)
		switch {
		case err == sql.ErrNoRows:
			fresh = append(fresh, p)
		case err != nil:
			slog.Warn("delivered-paper lookup failed, keeping paper", "paper_id", p.ID, "error", err)
			fresh = append(fresh, p)
		default:
			slog.Debug("skipping previously delivered paper", "paper_id", p.ID, "title", p.Title)
		}
	}

	if len(fresh) < len(papers) {
		slog.Info("dropped previously delivered papers",
			"before", len(papers), "after", len(fresh))
	}
	return fresh
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, discovered, relevant, selected,
			delivered, filter_failed, filter_total, scorer_failed, scorer_total, status
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.ID, &rec.StartedAt, &rec.FinishedAt, &rec.Discovered,
			&rec.Relevant, &rec.Selected, &rec.Delivered, &rec.FilterFailed,
			&rec.FilterTotal, &rec.ScorerFailed, &rec.ScorerTotal, &rec.Status); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}
