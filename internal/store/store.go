// Package store provides the persistence repositories for skill
// metadata, sync configuration and sync history.
package store

import (
	"fmt"

	"github.com/skillsync/skillsync/internal/db"
)

// Migrate creates the metadata tables. The embedding table is owned by
// the vector store and migrated there.
func Migrate(d *db.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS skills (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL,
		version      TEXT NOT NULL DEFAULT '',
		tags         TEXT,
		updated_at   TEXT NOT NULL,
		synced_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_skills_hash ON skills(content_hash);
	CREATE INDEX IF NOT EXISTS idx_skills_name ON skills(name);

	CREATE TABLE IF NOT EXISTS sync_config (
		id           INTEGER PRIMARY KEY CHECK (id = 1),
		enabled      INTEGER NOT NULL DEFAULT 1,
		frequency    TEXT NOT NULL DEFAULT 'daily',
		interval_ms  INTEGER NOT NULL,
		last_sync_at TEXT
	);

	CREATE TABLE IF NOT EXISTS sync_history (
		run_id        TEXT PRIMARY KEY,
		started_at    TEXT NOT NULL,
		finished_at   TEXT,
		status        TEXT NOT NULL,
		added         INTEGER NOT NULL DEFAULT 0,
		updated       INTEGER NOT NULL DEFAULT 0,
		unchanged     INTEGER NOT NULL DEFAULT 0,
		failed        INTEGER NOT NULL DEFAULT 0,
		error_message TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_history_started ON sync_history(started_at DESC);
	`
	if _, err := d.Exec(schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
