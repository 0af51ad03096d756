// internal/storage/storage.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrPreconditionFailed means a conditional write matched no row
	// although the target exists.
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrDuplicateToken     = errors.New("anonymous token already in use")
)

type Storage struct {
	DB     *sqlx.DB
	driver string

	// Now and Intn are replaceable in tests.
	Now  func() time.Time
	Intn func(n int) int
}

// NewStorage opens and pings the database for the given driver and applies
// the schema.
func NewStorage(driver, dsn string) (*Storage, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch driver {
	case DriverPostgres:
		db, err = openPostgres(dsn)
	case DriverSQLite:
		db, err = openSQLite(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	s := &Storage{
		DB:     db,
		driver: driver,
		Now:    func() time.Time { return time.Now() },
		Intn:   rand.IntN,
	}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if s.driver == DriverSQLite {
		schema = sqliteSchema
	}
	if _, err := s.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *Storage) Close() error {
	return s.DB.Close()
}

// timestamp returns the current time in the precision both dialects keep.
func (s *Storage) timestamp() time.Time {
	return s.Now().UTC().Truncate(time.Microsecond)
}

func (s *Storage) isUniqueViolation(err error) bool {
	if s.driver == DriverSQLite {
		return sqliteUniqueViolation(err)
	}
	return postgresUniqueViolation(err)
}

func (s *Storage) isForeignKeyViolation(err error) bool {
	if s.driver == DriverSQLite {
		return sqliteForeignKeyViolation(err)
	}
	return postgresForeignKeyViolation(err)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
