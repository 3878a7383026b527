package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"hostwatch/internal/metrics"
)

const sampleColumns = `id, recorded_at, cpu_temperature, cpu_usage, memory_usage,
	disk_usage, gpu_usage, network_rx, network_tx`

// Insert appends one sample and assigns ID and RecordedAt.
// Params: ctx for deadline; sample normalized values (ID/RecordedAt ignored).
// Returns: stored sample or storage error.
func (s *Store) Insert(ctx context.Context, sample metrics.Sample) (metrics.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recordedAt := s.now().UnixNano()
	if recordedAt < s.lastRecorded {
		recordedAt = s.lastRecorded
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO samples (recorded_at, cpu_temperature, cpu_usage, memory_usage,
			disk_usage, gpu_usage, network_rx, network_tx)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		recordedAt,
		sample.CPUTemperature,
		sample.CPUUsage,
		sample.MemoryUsage,
		sample.DiskUsage,
		sample.GPUUsage,
		counterToInt64(sample.NetworkRX),
		counterToInt64(sample.NetworkTX),
	)
	if err != nil {
		return metrics.Sample{}, fmt.Errorf("insert sample: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return metrics.Sample{}, fmt.Errorf("read sample id: %w", err)
	}

	s.lastRecorded = recordedAt
	sample.ID = id
	sample.RecordedAt = time.Unix(0, recordedAt)
	return sample, nil
}

// Latest returns the most recently recorded sample.
// Params: ctx for deadline.
// Returns: sample, ErrNotFound when empty, or storage error.
func (s *Store) Latest(ctx context.Context) (metrics.Sample, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sampleColumns+" FROM samples ORDER BY recorded_at DESC, id DESC LIMIT 1",
	)
	sample, err := scanSample(row)
	if errors.Is(err, sql.ErrNoRows) {
		return metrics.Sample{}, ErrNotFound
	}
	if err != nil {
		return metrics.Sample{}, fmt.Errorf("query latest sample: %w", err)
	}
	return sample, nil
}

// History returns up to limit most recent samples in chronological order.
// Params: ctx for deadline; limit maximum samples (<= 0 yields none).
// Returns: oldest-first samples or storage error.
func (s *Store) History(ctx context.Context, limit int) ([]metrics.Sample, error) {
	if limit <= 0 {
		return []metrics.Sample{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+sampleColumns+" FROM samples ORDER BY recorded_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]metrics.Sample, 0, limit)
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	slices.Reverse(out)
	return out, nil
}

// Rotate deletes samples recorded before now minus horizon.
// Params: ctx for deadline; horizon retention window (must be > 0).
// Returns: removed row count or storage error; ErrCheckpoint wraps a checkpoint failure after a committed delete.
func (s *Store) Rotate(ctx context.Context, horizon time.Duration) (int64, error) {
	if horizon <= 0 {
		return 0, fmt.Errorf("retention horizon must be > 0")
	}
	cutoff := s.now().Add(-horizon).UnixNano()

	removed, err := deleteRows(ctx, s.db, "DELETE FROM samples WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("rotate samples: %w", err)
	}
	if removed > 0 {
		if err := s.walCheckpoint(ctx); err != nil {
			return removed, fmt.Errorf("%w: %w", ErrCheckpoint, err)
		}
	}
	return removed, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSample(row rowScanner) (metrics.Sample, error) {
	var (
		sample     metrics.Sample
		recordedAt int64
		rx, tx     int64
	)
	if err := row.Scan(
		&sample.ID,
		&recordedAt,
		&sample.CPUTemperature,
		&sample.CPUUsage,
		&sample.MemoryUsage,
		&sample.DiskUsage,
		&sample.GPUUsage,
		&rx,
		&tx,
	); err != nil {
		return metrics.Sample{}, err
	}
	sample.RecordedAt = time.Unix(0, recordedAt)
	sample.NetworkRX = uint64(max(rx, 0))
	sample.NetworkTX = uint64(max(tx, 0))
	return sample, nil
}

// counterToInt64 maps a byte counter into SQLite's signed INTEGER range.
func counterToInt64(value uint64) int64 {
	if value > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(value)
}

func deleteRows(ctx context.Context, db *sql.DB, query string, args ...any) (int64, error) {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
