// Package store persists samples in an embedded SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const defaultBusyTimeout = 5 * time.Second

// ErrNotFound reports an empty result on a healthy store.
var ErrNotFound = errors.New("no samples recorded")

// ErrCheckpoint reports a rotation whose delete committed but whose WAL checkpoint failed.
var ErrCheckpoint = errors.New("wal checkpoint failed")

// Options configures the SQLite store.
// Params: Path database file; BusyTimeout SQLite lock wait.
// Returns: store open settings.
type Options struct {
	Path        string
	BusyTimeout time.Duration
}

// Store is the append-only samples repository.
// Params: pooled database handle plus insert clock state.
// Returns: store instance safe for concurrent use.
type Store struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time

	// mu serializes inserts so recorded_at never decreases.
	mu           sync.Mutex
	lastRecorded int64

	schemaVersion int
}

// Open creates the data directory, opens the database, verifies connectivity, and migrates schema.
// Params: ctx for startup deadline; opts store options.
// Returns: ready store or error (treated as fatal at startup).
func Open(ctx context.Context, opts Options) (*Store, error) {
	dbPath := strings.TrimSpace(opts.Path)
	if dbPath == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: every read and write is serialized.
	db.SetMaxOpenConns(1)

	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busy.Milliseconds()),
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, _, err := runMigrations(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath, now: time.Now, schemaVersion: version}
	if err := s.loadLastRecorded(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
// Params: none.
// Returns: close error.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is reachable.
// Params: ctx for deadline.
// Returns: connectivity error.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SchemaVersion returns the latest applied migration version.
// Params: none.
// Returns: schema version number.
func (s *Store) SchemaVersion() int {
	return s.schemaVersion
}

func (s *Store) loadLastRecorded(ctx context.Context) error {
	var last sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(recorded_at) FROM samples").Scan(&last); err != nil {
		return fmt.Errorf("read last recorded_at: %w", err)
	}
	if last.Valid {
		s.lastRecorded = last.Int64
	}
	return nil
}
