// Package db provides the durable local vault for shynote: embedded SQLite
// storage for notes, folders, and the pending change log that drives
// outbound sync.
//
// The database runs in embedded mode using the ncruces sqlite3 driver with
// WAL enabled so sibling processes on the same device (other windows or
// app instances sharing the vault) can read concurrently while one writes.
//
// Layout:
//   - Database file: <vault dir>/vault.db
//   - Tables: notes, folders, pending_logs
//   - Indexes: owner id, sync status, change-log creation time
//
// Every entity mutation and its change-log entry are written in a single
// transaction: an observer can never see a dirty entity without a matching
// pending entry, or the reverse.
package db

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

// schemaVersion is stamped into PRAGMA user_version. Schema changes are
// destructive: a mismatched vault is wiped and rebuilt from the remote
// store on the next full pull.
const schemaVersion = 2

// DB wraps the SQLite connection with vault-specific functionality.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens the vault database at the specified path.
//
// If the on-disk schema version does not match, all tables are dropped and
// recreated; callers are expected to repopulate from the remote store.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	vault, err := db.Open(filepath.Join(dir, "vault.db"))
//	if err != nil {
//	    return err
//	}
//	defer vault.Close()
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
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

	db := &DB{conn: conn, path: path}

	// WAL for concurrent readers during writes.
	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := db.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// initSchema creates the tables, wiping first when the stored schema
// version is stale. Idempotent for a current-version vault.
func (db *DB) initSchema(ctx context.Context) error {
	var current int
	if err := db.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if current != 0 && current != schemaVersion {
		if err := db.dropAll(ctx); err != nil {
			return err
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		folder_id TEXT,
		owner_id TEXT NOT NULL,
		pinned INTEGER NOT NULL DEFAULT 0,
		is_shared INTEGER NOT NULL DEFAULT 0,
		share_id TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		local_updated_at TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'dirty'
	);

	CREATE TABLE IF NOT EXISTS folders (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'dirty'
	);

	-- Write-ahead log of outbound mutations
	CREATE TABLE IF NOT EXISTS pending_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		entity TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notes_owner ON notes(owner_id);
	CREATE INDEX IF NOT EXISTS idx_notes_status ON notes(sync_status);
	CREATE INDEX IF NOT EXISTS idx_notes_folder ON notes(folder_id);
	CREATE INDEX IF NOT EXISTS idx_folders_owner ON folders(owner_id);
	CREATE INDEX IF NOT EXISTS idx_folders_status ON folders(sync_status);
	CREATE INDEX IF NOT EXISTS idx_logs_created ON pending_logs(created_at);
	CREATE INDEX IF NOT EXISTS idx_logs_entity ON pending_logs(entity_id);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	if _, err := db.conn.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version=%d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to stamp schema version: %w", err)
	}

	return nil
}

// dropAll removes every vault table. Used on schema version bumps.
func (db *DB) dropAll(ctx context.Context) error {
	for _, table := range []string{"notes", "folders", "pending_logs"} {
		if _, err := db.conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}
	return nil
}

// Reset wipes all vault contents, including the change log. Used for cache
// resets before a rebuild from the remote store.
func (db *DB) Reset(ctx context.Context) error {
	if err := db.dropAll(ctx); err != nil {
		return err
	}
	return db.initSchema(ctx)
}

// stringToNull converts an optional string to a nullable SQL value.
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullToString unwraps a nullable SQL string, mapping NULL to "".
func nullToString(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}

// formatTime renders timestamps for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime reads stored timestamps, tolerating second precision.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
