//go:build cgo

package db

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// nativeEngine is the compiled SQLite build. Faster, needs cgo.
type nativeEngine struct{}

func (nativeEngine) Name() string { return "native" }

func (nativeEngine) Open(path string) (*sql.DB, error) {
	return sql.Open("sqlite3",
		path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
}

func probeOrder() []Engine {
	return []Engine{nativeEngine{}, portableEngine{}}
}
