package db

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// portableEngine is the pure-Go SQLite build. Always available.
type portableEngine struct{}

func (portableEngine) Name() string { return "portable" }

func (portableEngine) Open(path string) (*sql.DB, error) {
	return sql.Open("sqlite",
		path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
}
