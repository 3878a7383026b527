package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"hostwatch/internal/metrics"
)

type fakeClock struct {
	at time.Time
}

func (c *fakeClock) now() time.Time { return c.at }

func (c *fakeClock) advance(d time.Duration) { c.at = c.at.Add(d) }

func newTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "hostwatch.db")
	s, err := Open(context.Background(), Options{Path: dbPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	clock := &fakeClock{at: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s.now = clock.now
	return s, clock
}

func sampleWithCPU(cpu float64) metrics.Sample {
	return metrics.Sample{CPUTemperature: 45, CPUUsage: cpu, MemoryUsage: 30, DiskUsage: 50, NetworkRX: 100, NetworkTX: 200}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "sub", "hostwatch.db")
	s, err := Open(context.Background(), Options{Path: dbPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.SchemaVersion() != 1 {
		t.Fatalf("SchemaVersion() = %d, want 1", s.SchemaVersion())
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	_ = s.Close()

	// Reopening an existing database must not re-apply migrations.
	again, err := Open(context.Background(), Options{Path: dbPath})
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	_ = again.Close()
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), Options{Path: " "}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestLatestEmpty(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	_, err := s.Latest(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Latest() error = %v, want ErrNotFound", err)
	}

	history, err := s.History(context.Background(), 50)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("History() returned %d samples, want 0", len(history))
	}
}

func TestInsertAndLatest(t *testing.T) {
	t.Parallel()

	s, clock := newTestStore(t)
	ctx := context.Background()

	first, err := s.Insert(ctx, sampleWithCPU(10))
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if first.ID == 0 {
		t.Fatal("expected store-assigned id")
	}
	if !first.RecordedAt.Equal(clock.at) {
		t.Fatalf("RecordedAt = %v, want %v", first.RecordedAt, clock.at)
	}

	clock.advance(5 * time.Minute)
	if _, err := s.Insert(ctx, sampleWithCPU(20)); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	latest, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.CPUUsage != 20 {
		t.Fatalf("Latest().CPUUsage = %v, want 20", latest.CPUUsage)
	}
	if latest.NetworkRX != 100 || latest.NetworkTX != 200 {
		t.Fatalf("unexpected counters: rx=%d tx=%d", latest.NetworkRX, latest.NetworkTX)
	}
}

func TestInsertKeepsRecordedAtMonotonic(t *testing.T) {
	t.Parallel()

	s, clock := newTestStore(t)
	ctx := context.Background()

	first, err := s.Insert(ctx, sampleWithCPU(1))
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	clock.advance(-time.Hour)
	second, err := s.Insert(ctx, sampleWithCPU(2))
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if second.RecordedAt.Before(first.RecordedAt) {
		t.Fatalf("recorded_at went backwards: %v < %v", second.RecordedAt, first.RecordedAt)
	}

	latest, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.ID != second.ID {
		t.Fatalf("Latest().ID = %d, want %d", latest.ID, second.ID)
	}
}

func TestHistoryOrderAndLimit(t *testing.T) {
	t.Parallel()

	s, clock := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if _, err := s.Insert(ctx, sampleWithCPU(float64(i))); err != nil {
			t.Fatalf("Insert(%d) error = %v", i, err)
		}
		clock.advance(time.Minute)
	}

	got, err := s.History(ctx, 3)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("History(3) returned %d samples", len(got))
	}
	for i, want := range []float64{3, 4, 5} {
		if got[i].CPUUsage != want {
			t.Fatalf("History(3)[%d].CPUUsage = %v, want %v", i, got[i].CPUUsage, want)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].RecordedAt.Before(got[i-1].RecordedAt) {
			t.Fatalf("history not chronological at %d", i)
		}
	}

	all, err := s.History(ctx, 50)
	if err != nil {
		t.Fatalf("History(50) error = %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("History(50) returned %d samples, want 5", len(all))
	}

	none, err := s.History(ctx, 0)
	if err != nil {
		t.Fatalf("History(0) error = %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("History(0) returned %d samples, want 0", len(none))
	}
}

func TestRotateRemovesOldSamplesIdempotently(t *testing.T) {
	t.Parallel()

	s, clock := newTestStore(t)
	ctx := context.Background()
	horizon := 7 * 24 * time.Hour

	if _, err := s.Insert(ctx, sampleWithCPU(1)); err != nil {
		t.Fatalf("Insert(old) error = %v", err)
	}
	clock.advance(8 * 24 * time.Hour)
	if _, err := s.Insert(ctx, sampleWithCPU(2)); err != nil {
		t.Fatalf("Insert(new) error = %v", err)
	}

	removed, err := s.Rotate(ctx, horizon)
	if err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}
	if removed != 1 {
		t.Fatalf("Rotate() removed %d rows, want 1", removed)
	}

	removed, err = s.Rotate(ctx, horizon)
	if err != nil {
		t.Fatalf("second Rotate() error = %v", err)
	}
	if removed != 0 {
		t.Fatalf("second Rotate() removed %d rows, want 0", removed)
	}

	history, err := s.History(ctx, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 || history[0].CPUUsage != 2 {
		t.Fatalf("unexpected history after rotation: %+v", history)
	}

	if _, err := s.Rotate(ctx, 0); err == nil {
		t.Fatal("expected error for zero horizon")
	}
}

func TestOpenRestoresLastRecorded(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "hostwatch.db")
	ctx := context.Background()
	future := time.Now().Add(time.Hour)

	s, err := Open(ctx, Options{Path: dbPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s.now = func() time.Time { return future }
	first, err := s.Insert(ctx, sampleWithCPU(1))
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	_ = s.Close()

	reopened, err := Open(ctx, Options{Path: dbPath})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer func() { _ = reopened.Close() }()

	second, err := reopened.Insert(ctx, sampleWithCPU(2))
	if err != nil {
		t.Fatalf("Insert() after reopen error = %v", err)
	}
	if second.RecordedAt.Before(first.RecordedAt) {
		t.Fatalf("recorded_at regressed across reopen: %v < %v", second.RecordedAt, first.RecordedAt)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	s, clock := newTestStore(t)
	ctx := context.Background()

	empty, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if empty.Rows != 0 || empty.Oldest != nil || empty.Newest != nil {
		t.Fatalf("unexpected empty stats: %+v", empty)
	}

	start := clock.at
	for i := 0; i < 3; i++ {
		if _, err := s.Insert(ctx, sampleWithCPU(float64(i))); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		clock.advance(time.Minute)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Rows != 3 {
		t.Fatalf("Rows = %d, want 3", stats.Rows)
	}
	if stats.Oldest == nil || !stats.Oldest.Equal(start) {
		t.Fatalf("Oldest = %v, want %v", stats.Oldest, start)
	}
	if stats.Newest == nil || !stats.Newest.Equal(start.Add(2*time.Minute)) {
		t.Fatalf("Newest = %v, want %v", stats.Newest, start.Add(2*time.Minute))
	}
	if stats.TotalBytes <= 0 || stats.TotalBytes != stats.DatabaseBytes+stats.WALBytes+stats.SHMBytes {
		t.Fatalf("unexpected byte stats: %+v", stats)
	}
}
