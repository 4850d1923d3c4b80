// Package history persists merge and audit runs to a local sqlite
// database, one row per invocation.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Record inserts one run. Missing ID and timestamp are filled in, and
// the stored run is returned.
func (s *Store) Record(run Run) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.ProjectKey == "" {
		run.ProjectKey = "default"
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}

	query := `
INSERT INTO runs (
  id, project_key, mode, entry, ts_utc, duration_ms, module_count,
  symbol_count, renamed_count, error_count, warning_count, error_kind, detail
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	err := s.withRetry("record run", func() error {
		_, err := s.db.Exec(
			query,
			run.ID,
			run.ProjectKey,
			run.Mode,
			run.Entry,
			run.Timestamp.UTC().Format(time.RFC3339Nano),
			run.Duration.Milliseconds(),
			run.Modules,
			run.Symbols,
			run.Renamed,
			run.Errors,
			run.Warnings,
			run.ErrorKind,
			run.Detail,
		)
		return err
	})
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// Recent returns up to limit runs for a project, newest first.
func (s *Store) Recent(projectKey string, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if projectKey == "" {
		projectKey = "default"
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
SELECT
  id, project_key, mode, entry, ts_utc, duration_ms, module_count,
  symbol_count, renamed_count, error_count, warning_count, error_kind, detail
FROM runs
WHERE project_key = ?
ORDER BY ts_utc DESC
LIMIT ?
`
	var rows *sql.Rows
	err := s.withRetry("load runs", func() error {
		var qErr error
		rows, qErr = s.db.Query(query, projectKey, limit)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var (
			run        Run
			tsRaw      string
			durationMS int64
		)
		if err := rows.Scan(
			&run.ID,
			&run.ProjectKey,
			&run.Mode,
			&run.Entry,
			&tsRaw,
			&durationMS,
			&run.Modules,
			&run.Symbols,
			&run.Renamed,
			&run.Errors,
			&run.Warnings,
			&run.ErrorKind,
			&run.Detail,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}

		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp %q: %w", tsRaw, err)
		}
		run.Timestamp = ts.UTC()
		run.Duration = time.Duration(durationMS) * time.Millisecond

		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	return runs, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
