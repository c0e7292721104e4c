// Package db opens the embedded relational store behind a single
// engine-agnostic handle. Two SQLite engines are supported: a native
// cgo build (mattn/go-sqlite3) and a portable pure-Go build
// (modernc.org/sqlite). The engine is chosen once at startup by
// probing, so the rest of the system never sees driver differences.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds the database lock.
var ErrLocked = errors.New("database is locked by another process")

// Engine opens a *sql.DB for a given database path.
type Engine interface {
	Name() string
	Open(path string) (*sql.DB, error)
}

// DB wraps the chosen engine's connection plus the writer lock.
// The lock enforces the single-local-writer contract: one process
// owns the database file at a time.
type DB struct {
	*sql.DB
	engine string
	path   string
	lock   *flock.Flock
}

// Open creates the database directory, acquires the writer lock and
// probes engines in preference order until one opens successfully.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire db lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}

	var lastErr error
	for _, eng := range probeOrder() {
		sqlDB, err := eng.Open(path)
		if err != nil {
			lastErr = err
			continue
		}
		if err := sqlDB.Ping(); err != nil {
			sqlDB.Close()
			lastErr = err
			continue
		}
		slog.Debug("database opened", "engine", eng.Name(), "path", path)
		return &DB{DB: sqlDB, engine: eng.Name(), path: path, lock: lock}, nil
	}

	lock.Unlock()
	if lastErr == nil {
		lastErr = errors.New("no sqlite engine available")
	}
	return nil, fmt.Errorf("open db: %w", lastErr)
}

// EngineName reports which engine was selected at startup.
func (d *DB) EngineName() string { return d.engine }

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// Close closes the connection and releases the writer lock.
func (d *DB) Close() error {
	err := d.DB.Close()
	if uerr := d.lock.Unlock(); uerr != nil && err == nil {
		err = uerr
	}
	return err
}
