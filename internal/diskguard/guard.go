// Package diskguard evaluates the low-disk policy before each collection cycle.
package diskguard

import (
	"context"
	"fmt"
	"strings"

	"hostwatch/internal/metrics"
)

// DefaultThreshold is the default maximum disk utilization in percent.
const DefaultThreshold = 85.0

// Decision is the outcome of one guard check.
type Decision uint8

const (
	// Proceed allows the collection cycle to continue.
	Proceed Decision = iota
	// Halt stops the collector for good.
	Halt
)

// String returns the human-readable decision name.
func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case Halt:
		return "halt"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(d))
	}
}

// Config configures the guard.
// Params: Path mount point to inspect; Threshold static percent limit.
// Returns: guard settings.
type Config struct {
	Path      string
	Threshold float64
}

// Guard is a static-threshold circuit breaker over disk utilization.
// Params: config and disk usage reader.
// Returns: guard instance.
type Guard struct {
	path      string
	threshold float64
	usage     metrics.DiskUsageFunc
}

// New creates a guard.
// Params: cfg guard settings; usage disk reader (nil uses gopsutil).
// Returns: configured guard.
func New(cfg Config, usage metrics.DiskUsageFunc) *Guard {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = "/"
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if usage == nil {
		usage = metrics.ReadDiskUsage
	}
	return &Guard{path: path, threshold: threshold, usage: usage}
}

// Threshold returns the configured utilization limit.
// Params: none.
// Returns: threshold percent.
func (g *Guard) Threshold() float64 {
	return g.threshold
}

// Check reads current utilization and decides whether collection may continue.
// Params: ctx for cancellation.
// Returns: Halt iff usage strictly exceeds threshold; on read error Proceed with the error.
func (g *Guard) Check(ctx context.Context) (Decision, float64, error) {
	usage, err := g.usage(ctx, g.path)
	if err != nil {
		return Proceed, 0, fmt.Errorf("check disk space: %w", err)
	}
	return Evaluate(usage, g.threshold), usage, nil
}

// Evaluate applies the threshold rule to one reading.
// Params: usage percent; threshold percent.
// Returns: Halt when usage > threshold, otherwise Proceed.
func Evaluate(usage, threshold float64) Decision {
	if usage > threshold {
		return Halt
	}
	return Proceed
}
