package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/trainbox/trainbox/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    session_id TEXT PRIMARY KEY,
    script TEXT NOT NULL,
    args TEXT,
    status TEXT NOT NULL,
    exit_code INTEGER,
    started_at TEXT NOT NULL,
    ended_at TEXT NOT NULL,
    duration_ms INTEGER
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// Store keeps one durable record per execution session in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the run-history database under dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "history.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun persists one finished execution session.
func (s *Store) RecordRun(rec types.RunRecord) error {
	argsJSON, _ := json.Marshal(rec.Args)
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO runs (session_id, script, args, status, exit_code, started_at, ended_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Script, string(argsJSON), rec.Status, rec.ExitCode,
		rec.StartedAt, rec.EndedAt, rec.DurationMs)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]types.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT session_id, script, args, status, exit_code, started_at, ended_at, duration_ms
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []types.RunRecord
	for rows.Next() {
		var rec types.RunRecord
		var argsJSON string
		if err := rows.Scan(&rec.SessionID, &rec.Script, &argsJSON, &rec.Status,
			&rec.ExitCode, &rec.StartedAt, &rec.EndedAt, &rec.DurationMs); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if argsJSON != "" {
			_ = json.Unmarshal([]byte(argsJSON), &rec.Args)
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}
