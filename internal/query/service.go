// Package query serves read-only views over the sample store.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hostwatch/internal/metrics"
	"hostwatch/internal/store"
)

const (
	DefaultHistoryLimit    = 50
	DefaultMaxHistoryLimit = 1000

	// TimestampLayout formats history labels for the dashboard.
	TimestampLayout = "15:04:05"
)

// ErrUnavailable marks a failed store read, as opposed to an empty store.
var ErrUnavailable = errors.New("metrics store unavailable")

// SampleReader is the read side of the sample store.
type SampleReader interface {
	Latest(ctx context.Context) (metrics.Sample, error)
	History(ctx context.Context, limit int) ([]metrics.Sample, error)
}

// Series is a chronological history in parallel arrays.
type Series struct {
	Timestamps   []string  `json:"timestamps"`
	Temperatures []float64 `json:"temperatures"`
	CPUUsage     []float64 `json:"cpu_usage"`
	MemoryUsage  []float64 `json:"memory_usage"`
	DiskUsage    []float64 `json:"disk_usage"`
}

// Len returns number of points in series.
func (s Series) Len() int {
	return len(s.Timestamps)
}

// Options configures history limits.
type Options struct {
	HistoryLimit    int
	MaxHistoryLimit int
	Location        *time.Location
}

// Service answers "current" and "recent history" queries.
type Service struct {
	reader       SampleReader
	historyLimit int
	maxLimit     int
	location     *time.Location
}

// New creates a query service.
// Params: reader store read side; opts limits (zero values get defaults).
// Returns: service instance.
func New(reader SampleReader, opts Options) *Service {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.MaxHistoryLimit <= 0 {
		opts.MaxHistoryLimit = DefaultMaxHistoryLimit
	}
	if opts.HistoryLimit > opts.MaxHistoryLimit {
		opts.HistoryLimit = opts.MaxHistoryLimit
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Service{
		reader:       reader,
		historyLimit: opts.HistoryLimit,
		maxLimit:     opts.MaxHistoryLimit,
		location:     opts.Location,
	}
}

// Current returns the latest sample.
// Params: ctx request context.
// Returns: sample, nil sample with nil error when no data yet, or ErrUnavailable-wrapped error.
func (s *Service) Current(ctx context.Context) (*metrics.Sample, error) {
	sample, err := s.reader.Latest(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &sample, nil
}

// Samples returns the most recent samples oldest-first.
// Params: ctx request context; limit requested size (<=0 uses default, capped at max).
// Returns: samples or ErrUnavailable-wrapped error.
func (s *Service) Samples(ctx context.Context, limit int) ([]metrics.Sample, error) {
	samples, err := s.reader.History(ctx, s.ResolveLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return samples, nil
}

// History returns the recent window as dashboard series.
// Params: ctx request context; limit requested size.
// Returns: series with equal-length arrays or ErrUnavailable-wrapped error.
func (s *Service) History(ctx context.Context, limit int) (Series, error) {
	samples, err := s.Samples(ctx, limit)
	if err != nil {
		return EmptySeries(), err
	}
	return s.toSeries(samples), nil
}

// ResolveLimit applies default and maximum history limits.
// Params: limit requested size.
// Returns: effective limit.
func (s *Service) ResolveLimit(limit int) int {
	if limit <= 0 {
		return s.historyLimit
	}
	if limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}

func (s *Service) toSeries(samples []metrics.Sample) Series {
	out := Series{
		Timestamps:   make([]string, 0, len(samples)),
		Temperatures: make([]float64, 0, len(samples)),
		CPUUsage:     make([]float64, 0, len(samples)),
		MemoryUsage:  make([]float64, 0, len(samples)),
		DiskUsage:    make([]float64, 0, len(samples)),
	}
	for _, sample := range samples {
		out.Timestamps = append(out.Timestamps, sample.RecordedAt.In(s.location).Format(TimestampLayout))
		out.Temperatures = append(out.Temperatures, sample.CPUTemperature)
		out.CPUUsage = append(out.CPUUsage, sample.CPUUsage)
		out.MemoryUsage = append(out.MemoryUsage, sample.MemoryUsage)
		out.DiskUsage = append(out.DiskUsage, sample.DiskUsage)
	}
	return out
}

// EmptySeries returns a series whose arrays encode as [] rather than null.
func EmptySeries() Series {
	return Series{
		Timestamps:   []string{},
		Temperatures: []float64{},
		CPUUsage:     []float64{},
		MemoryUsage:  []float64{},
		DiskUsage:    []float64{},
	}
}
