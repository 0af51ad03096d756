// internal/storage/sqlite.go
package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

func openSQLite(path string) (*sqlx.DB, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&_time_format=sqlite"

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer; one connection keeps the busy
	// handler out of the picture.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

func sqliteCode(err error) int {
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code()
	}
	return 0
}

func sqliteUniqueViolation(err error) bool {
	code := sqliteCode(err)
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func sqliteForeignKeyViolation(err error) bool {
	return sqliteCode(err) == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	owner_id        TEXT NOT NULL,
	body            TEXT NOT NULL,
	anonymous_token TEXT NOT NULL UNIQUE,
	status          TEXT NOT NULL DEFAULT 'available',
	allow_replies   BOOLEAN NOT NULL DEFAULT 1,
	claimed_by      TEXT,
	claimed_at      DATETIME,
	created_at      DATETIME NOT NULL,
	CHECK (
		(status = 'claimed' AND claimed_by IS NOT NULL AND claimed_at IS NOT NULL)
		OR (status <> 'claimed' AND claimed_by IS NULL AND claimed_at IS NULL)
	)
);

CREATE INDEX IF NOT EXISTS idx_messages_owner ON messages (owner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_messages_status ON messages (status, id);

CREATE TABLE IF NOT EXISTS replies (
	id         TEXT PRIMARY KEY,
	message_id TEXT NOT NULL REFERENCES messages (id),
	author_id  TEXT NOT NULL,
	body       TEXT NOT NULL,
	is_read    BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_replies_author ON replies (author_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_replies_message ON replies (message_id, created_at DESC);
`
