// Package sqlite implements the storage provider contract over an
// embedded SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// providerName identifies this engine in error contexts and logs.
const providerName = "sqlite"

// schemaMigrations holds one additive migration per schema generation.
// Generation N is schemaMigrations[N-1]. Upgrades only ever add tables
// and indexes; existing records must survive every step.
var schemaMigrations = []string{
	// v1: base collections and single-field indexes.
	`
CREATE TABLE IF NOT EXISTS notes (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '[]',
	is_pinned  INTEGER NOT NULL DEFAULT 0,
	is_shared  INTEGER NOT NULL DEFAULT 0,
	folder_id  TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS folders (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	name       TEXT NOT NULL,
	color      TEXT,
	parent_id  TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS recent_notes (
	id          TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	accessed_at DATETIME NOT NULL,
	PRIMARY KEY (id, user_id)
);

CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_user ON notes(user_id);
CREATE INDEX IF NOT EXISTS idx_notes_folder ON notes(folder_id);
CREATE INDEX IF NOT EXISTS idx_notes_updated ON notes(updated_at);
CREATE INDEX IF NOT EXISTS idx_folders_user ON folders(user_id);
CREATE INDEX IF NOT EXISTS idx_folders_parent ON folders(parent_id);
CREATE INDEX IF NOT EXISTS idx_recent_user ON recent_notes(user_id);
`,
	// v2: composite indexes for user-scoped queries.
	`
CREATE INDEX IF NOT EXISTS idx_notes_user_folder ON notes(user_id, folder_id);
CREATE INDEX IF NOT EXISTS idx_folders_user_parent ON folders(user_id, parent_id);
CREATE INDEX IF NOT EXISTS idx_recent_user_accessed ON recent_notes(user_id, accessed_at);
`,
}

// openDB opens (or creates) the database file with the engine's
// standard connection options. The caller pings.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	return db, nil
}

// migrate brings the schema up to target, applying each pending
// generation in its own transaction. The stored version never
// decreases: a database newer than target is rejected.
func migrate(db *sql.DB, target int) error {
	if target < 1 || target > len(schemaMigrations) {
		return fmt.Errorf("sqlite: unsupported schema version %d", target)
	}

	var current int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}
	if current > target {
		return fmt.Errorf("sqlite: database schema version %d is newer than requested %d", current, target)
	}

	for v := current; v < target; v++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("sqlite: begin migration tx: %w", err)
		}
		if _, err := tx.Exec(schemaMigrations[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite: apply schema v%d: %w", v+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite: set schema version %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("sqlite: commit schema v%d: %w", v+1, err)
		}
	}
	return nil
}
