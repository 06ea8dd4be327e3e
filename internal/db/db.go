package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"bindery/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Queryer is the query surface shared by *sql.DB and *sql.Tx. Operations that
// only read, or that write a single row, accept a Queryer so they run the
// same inside and outside a transaction.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Beginner is a Queryer that can open transactions. *sql.DB satisfies it;
// *sql.Tx does not. Compound writes (rebind with note cloning) require it.
type Beginner interface {
	Queryer
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Init initializes the SQLite database at baseDir/bindery.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.bindery.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(baseDir, 0700)

	// Open database with pragmas in connection string (applies to all connections)
	dbPath := filepath.Join(baseDir, "bindery.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify WAL mode is active
	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS pages (
		  id                 TEXT PRIMARY KEY,
		  binder_raw         TEXT NOT NULL,
		  binder_norm        TEXT NOT NULL,
		  name_raw           TEXT,
		  name_norm          TEXT,
		  title              TEXT,
		  bundle_id          TEXT NOT NULL,
		  page_offset        INTEGER NOT NULL,
		  current_version_id TEXT NOT NULL,
		  ordinal            INTEGER NOT NULL DEFAULT 0,
		  tags_json          TEXT,
		  vars_json          TEXT,
		  rev                INTEGER NOT NULL DEFAULT 0,
		  created_at         INTEGER NOT NULL,
		  updated_at         INTEGER NOT NULL,
		  deleted_at         INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_pages_binder_ordinal
		ON pages(binder_norm, ordinal, created_at)
		WHERE deleted_at IS NULL;

		CREATE UNIQUE INDEX IF NOT EXISTS idx_pages_binder_name_norm
		ON pages(binder_norm, name_norm)
		WHERE name_norm IS NOT NULL AND deleted_at IS NULL;

		CREATE TABLE IF NOT EXISTS versions (
		  id                TEXT PRIMARY KEY,
		  page_id           TEXT NOT NULL,
		  bundle_id         TEXT NOT NULL,
		  page_offset       INTEGER NOT NULL,
		  snapshot          BLOB,
		  inherit_tags      INTEGER NOT NULL DEFAULT 0,
		  inherit_variables INTEGER NOT NULL DEFAULT 0,
		  inherit_notes     INTEGER NOT NULL DEFAULT 0,
		  created_at        INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_versions_page
		ON versions(page_id, created_at, id);

		CREATE TABLE IF NOT EXISTS bundles (
		  id              TEXT PRIMARY KEY,
		  label_raw       TEXT NOT NULL,
		  label_norm      TEXT NOT NULL,
		  primary_path    TEXT,
		  original_path   TEXT,
		  textsource_path TEXT,
		  created_at      INTEGER NOT NULL,
		  updated_at      INTEGER NOT NULL,
		  deleted_at      INTEGER
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_bundles_label_norm
		ON bundles(label_norm)
		WHERE deleted_at IS NULL;

		CREATE TABLE IF NOT EXISTS bundle_texts (
		  bundle_id   TEXT NOT NULL,
		  page_offset INTEGER NOT NULL,
		  text        TEXT NOT NULL,
		  PRIMARY KEY (bundle_id, page_offset)
		);

		CREATE TABLE IF NOT EXISTS notes (
		  id               TEXT PRIMARY KEY,
		  version_id       TEXT NOT NULL,
		  page_id          TEXT NOT NULL,
		  parent_id        TEXT,
		  child_order_json TEXT,
		  body             TEXT NOT NULL,
		  rect_x           REAL NOT NULL DEFAULT 0,
		  rect_y           REAL NOT NULL DEFAULT 0,
		  rect_w           REAL NOT NULL DEFAULT 0,
		  rect_h           REAL NOT NULL DEFAULT 0,
		  tags_json        TEXT,
		  vars_json        TEXT,
		  cloned_from      TEXT,
		  created_at       INTEGER NOT NULL,
		  updated_at       INTEGER NOT NULL,
		  deleted_at       INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_notes_version
		ON notes(version_id, created_at, id);

		CREATE INDEX IF NOT EXISTS idx_notes_page
		ON notes(page_id)
		WHERE deleted_at IS NULL;
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
