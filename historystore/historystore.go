// Package historystore implements the optional history store: one row
// per completed or aborted sync cycle, for operators running a fleet
// of senders. Grounded on a database/sql plus github.com/lib/pq
// Postgres driver pairing; this package targets one fixed table
// rather than mapping-driven table generation, since a sender has
// exactly one outcome shape to record.
package historystore

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/tsreplica/sender/errs"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS sender_cycles (
	id                   SERIAL PRIMARY KEY,
	started_at           TIMESTAMPTZ NOT NULL,
	ended_at             TIMESTAMPTZ NOT NULL,
	groups_processed     INT NOT NULL,
	files_shipped        INT NOT NULL,
	bytes_shipped        BIGINT NOT NULL,
	schema_lines_shipped INT NOT NULL,
	error                TEXT
)`

// CycleOutcome is one completed or aborted sync cycle's summary.
type CycleOutcome struct {
	StartedAt          time.Time
	EndedAt            time.Time
	GroupsProcessed    int
	FilesShipped       int
	BytesShipped       int64
	SchemaLinesShipped int
	Err                error
}

// Store persists CycleOutcomes to a Postgres table. A nil *Store is
// valid and every method on it is a no-op, so the orchestrator can
// hold one unconditionally whether or not a DSN was configured.
type Store struct {
	db *sql.DB
}

// Open connects to dsn and ensures the sender_cycles table exists.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, nil
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "opening history store")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.IOError, "connecting to history store")
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.IOError, "creating sender_cycles table")
	}
	return &Store{db: db}, nil
}

// Insert records one cycle outcome. Failures are the caller's to log
// and ignore; the history store is never required for correctness.
func (s *Store) Insert(o CycleOutcome) error {
	if s == nil {
		return nil
	}
	var errText interface{}
	if o.Err != nil {
		errText = o.Err.Error()
	}
	_, err := s.db.Exec(
		`INSERT INTO sender_cycles
			(started_at, ended_at, groups_processed, files_shipped, bytes_shipped, schema_lines_shipped, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.StartedAt, o.EndedAt, o.GroupsProcessed, o.FilesShipped, o.BytesShipped, o.SchemaLinesShipped, errText,
	)
	if err != nil {
		return errs.Wrap(errs.IOError, "inserting cycle outcome")
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}
