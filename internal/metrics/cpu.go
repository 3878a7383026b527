package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
)

// readCPUUsage measures total CPU utilization over window.
// Params: ctx for cancellation; percent gopsutil-compatible reader; window measurement interval.
// Returns: utilization percent or read error.
func readCPUUsage(
	ctx context.Context,
	percent func(context.Context, time.Duration, bool) ([]float64, error),
	window time.Duration,
) (float64, error) {
	if percent == nil {
		percent = cpu.PercentWithContext
	}
	total, err := percent(ctx, window, false)
	if err != nil {
		return 0, fmt.Errorf("read total CPU percent: %w", err)
	}
	if len(total) == 0 {
		return 0, fmt.Errorf("read total CPU percent: empty result")
	}
	return total[0], nil
}
