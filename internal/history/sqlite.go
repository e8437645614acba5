package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	ferrors "git.home.luguber.info/inful/pagebuilder/internal/foundation/errors"
)

// MemoryPath opens a private in-memory ledger.
const MemoryPath = ":memory:"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the ledger at dbPath, creating parent directories.
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "create history directory").
				WithContext("path", dbPath).
				Build()
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "open history database").
			WithContext("path", dbPath).
			Build()
	}
	// One connection keeps an in-memory database shared and serializes writers.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "initialize history schema").
			WithContext("path", dbPath).
			Build()
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL,
		page TEXT NOT NULL,
		version TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_builds_page ON builds(page, id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_builds_build_id ON builds(build_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts e.
func (s *SQLiteStore) Record(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errText sql.NullString
	if e.Error != "" {
		errText = sql.NullString{String: e.Error, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO builds (build_id, page, version, timestamp, status, started_at, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.BuildID, e.Page, e.Version, e.Timestamp, e.Status, e.StartedAt.UnixMilli(), e.DurationMS, errText,
	)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	return nil
}

// Recent returns the latest entries of page. A limit <= 0 returns all.
func (s *SQLiteStore) Recent(ctx context.Context, page string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, build_id, page, version, timestamp, status, started_at, duration_ms, error
		FROM builds WHERE page = ? ORDER BY id DESC LIMIT ?`,
		page, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Stats counts the entries of page per status and returns the latest success.
func (s *SQLiteStore) Stats(ctx context.Context, page string) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM builds WHERE page = ? GROUP BY status", page)
	if err != nil {
		return st, fmt.Errorf("query build counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return st, fmt.Errorf("scan build count: %w", err)
		}
		st.Total += n
		switch status {
		case StatusSuccess:
			st.Succeeded = n
		case StatusFailed:
			st.Failed = n
		case StatusCanceled:
			st.Canceled = n
		}
	}
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("iterate build counts: %w", err)
	}
	_ = rows.Close()

	last, err := s.db.QueryContext(ctx,
		`SELECT id, build_id, page, version, timestamp, status, started_at, duration_ms, error
		FROM builds WHERE page = ? AND status = ? ORDER BY id DESC LIMIT 1`,
		page, StatusSuccess,
	)
	if err != nil {
		return st, fmt.Errorf("query last success: %w", err)
	}
	defer last.Close()
	entries, err := scanEntries(last)
	if err != nil {
		return st, err
	}
	if len(entries) > 0 {
		st.LastSuccess = &entries[0]
	}
	return st, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var startedAt int64
		var errText sql.NullString
		err := rows.Scan(&e.ID, &e.BuildID, &e.Page, &e.Version, &e.Timestamp, &e.Status, &startedAt, &e.DurationMS, &errText)
		if err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		e.StartedAt = time.UnixMilli(startedAt)
		e.Error = errText.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate builds: %w", err)
	}
	return entries, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}
