package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Stats summarizes sample rows and on-disk footprint.
type Stats struct {
	Rows          int64      `json:"rows"`
	Oldest        *time.Time `json:"oldest,omitempty"`
	Newest        *time.Time `json:"newest,omitempty"`
	DatabaseBytes int64      `json:"database_bytes"`
	WALBytes      int64      `json:"wal_bytes"`
	SHMBytes      int64      `json:"shm_bytes"`
	TotalBytes    int64      `json:"total_bytes"`
	SchemaVersion int        `json:"schema_version"`
	CollectedAt   time.Time  `json:"collected_at"`
}

// Stats reads row counts, time bounds, and database file sizes.
// Params: ctx for deadline.
// Returns: storage stats or error.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		SchemaVersion: s.schemaVersion,
		CollectedAt:   time.Now().UTC(),
	}

	var oldest, newest sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), MIN(recorded_at), MAX(recorded_at) FROM samples",
	).Scan(&stats.Rows, &oldest, &newest); err != nil {
		return Stats{}, fmt.Errorf("query sample stats: %w", err)
	}
	if oldest.Valid {
		at := time.Unix(0, oldest.Int64)
		stats.Oldest = &at
	}
	if newest.Valid {
		at := time.Unix(0, newest.Int64)
		stats.Newest = &at
	}

	var err error
	if stats.DatabaseBytes, err = fileSizeBestEffort(s.dbPath); err != nil {
		return Stats{}, err
	}
	if stats.WALBytes, err = fileSizeBestEffort(s.dbPath + "-wal"); err != nil {
		return Stats{}, err
	}
	if stats.SHMBytes, err = fileSizeBestEffort(s.dbPath + "-shm"); err != nil {
		return Stats{}, err
	}
	stats.TotalBytes = stats.DatabaseBytes + stats.WALBytes + stats.SHMBytes
	return stats, nil
}

func (s *Store) walCheckpoint(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return err
	}
	return nil
}

func fileSizeBestEffort(path string) (int64, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.Size(), nil
}
