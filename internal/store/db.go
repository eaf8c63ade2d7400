// Package store provides the durable local record store and sync outbox.
//
// The store is a single SQLite database holding one table per domain
// (tasks, bills, projects, goals, habits) plus the outbox ledger. It runs
// in WAL mode for concurrent reads while the sync workers write.
//
// Every entity mutation that should reach the remote system is paired, in
// the same transaction, with a pending outbox entry. The push worker later
// drains those entries; the pull worker overwrites entity fields and
// appends audit entries. Sync timestamps (synced_at) are only ever written
// by the sync workers, and only move forward.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection with domain-scoped CRUD and the outbox.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a new store at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database doesn't exist, it is created; call InitSchema before use.
//
// The caller MUST call Close() when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		conn: conn,
		path: path,
	}

	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := s.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return s, nil
}

// RawDB returns the underlying sql.DB connection.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// Idempotent - safe to call multiple times.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	schema := `
	-- Domain tables. remote_id is set once a record has been pushed;
	-- SQLite UNIQUE permits any number of NULLs, so unlinked rows coexist.
	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		remote_id TEXT UNIQUE,
		title TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'todo',
		priority INTEGER NOT NULL DEFAULT 2,
		due_at TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		synced_at TEXT
	);

	CREATE TABLE IF NOT EXISTS bills (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		remote_id TEXT UNIQUE,
		name TEXT NOT NULL,
		amount_cents INTEGER NOT NULL DEFAULT 0,
		due_at TEXT,
		paid INTEGER NOT NULL DEFAULT 0,
		paid_at TEXT,
		auto_pay INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		synced_at TEXT
	);

	CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		remote_id TEXT UNIQUE,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		progress INTEGER NOT NULL DEFAULT 0,
		started_at TEXT,
		target_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		synced_at TEXT
	);

	CREATE TABLE IF NOT EXISTS goals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		remote_id TEXT UNIQUE,
		title TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		progress INTEGER NOT NULL DEFAULT 0,
		target_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		synced_at TEXT
	);

	CREATE TABLE IF NOT EXISTS habits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		remote_id TEXT UNIQUE,
		name TEXT NOT NULL,
		streak INTEGER NOT NULL DEFAULT 0,
		last_completed_at TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		synced_at TEXT
	);

	-- Sync ledger. Outgoing entries are written in the same transaction as
	-- the entity mutation; incoming entries are pull-worker audit rows.
	CREATE TABLE IF NOT EXISTS outbox (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		domain TEXT NOT NULL,
		direction TEXT NOT NULL,
		local_id INTEGER,
		remote_id TEXT,
		action TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		error_message TEXT,
		created_at TEXT NOT NULL,
		synced_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(due_at);
	CREATE INDEX IF NOT EXISTS idx_bills_due ON bills(paid, due_at);
	CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);
	CREATE INDEX IF NOT EXISTS idx_goals_status ON goals(status);
	CREATE INDEX IF NOT EXISTS idx_habits_active ON habits(active);

	-- Composite index for the push worker's dequeue query
	CREATE INDEX IF NOT EXISTS idx_outbox_pending
	    ON outbox(status, direction, created_at);
	CREATE INDEX IF NOT EXISTS idx_outbox_domain ON outbox(domain, status);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// timeFormat is the storage format for all timestamps. Fixed-width
// nanosecond precision keeps the lexicographic order of the TEXT columns
// equal to time order, which the monotonic synced_at guard relies on.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// timeToNullString converts a *time.Time to a nullable string.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// parseTime parses a stored timestamp. RFC3339Nano also accepts the
// fixed-width form and second-precision values from older rows.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// nullStringToTime converts a nullable string back to a *time.Time.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// nullStringToPtr converts a nullable string to *string.
func nullStringToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// nullInt64ToPtr converts a nullable integer to *int64.
func nullInt64ToPtr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}
