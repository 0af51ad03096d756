// internal/storage/postgres.go
package storage

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func openPostgres(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	return db, nil
}

func postgresUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func postgresForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id              UUID PRIMARY KEY,
	owner_id        TEXT NOT NULL,
	body            TEXT NOT NULL,
	anonymous_token TEXT NOT NULL UNIQUE,
	status          TEXT NOT NULL DEFAULT 'available',
	allow_replies   BOOLEAN NOT NULL DEFAULT TRUE,
	claimed_by      TEXT,
	claimed_at      TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT messages_claim_fields CHECK (
		(status = 'claimed' AND claimed_by IS NOT NULL AND claimed_at IS NOT NULL)
		OR (status <> 'claimed' AND claimed_by IS NULL AND claimed_at IS NULL)
	)
);

CREATE INDEX IF NOT EXISTS idx_messages_owner ON messages (owner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_messages_status ON messages (status, id);

CREATE TABLE IF NOT EXISTS replies (
	id         UUID PRIMARY KEY,
	message_id UUID NOT NULL REFERENCES messages (id),
	author_id  TEXT NOT NULL,
	body       TEXT NOT NULL,
	is_read    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_replies_author ON replies (author_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_replies_message ON replies (message_id, created_at DESC);
`
