package metrics

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"
)

// DiskUsageFunc reads filesystem utilization for one mount path.
// Params: ctx for cancellation; path mount point.
// Returns: used percent or read error.
type DiskUsageFunc func(ctx context.Context, path string) (float64, error)

// ReadDiskUsage reads filesystem utilization of path through gopsutil.
// Params: ctx for cancellation; path mount point (defaults to "/").
// Returns: used percent or read error.
func ReadDiskUsage(ctx context.Context, path string) (float64, error) {
	return readDiskUsage(ctx, disk.UsageWithContext, path)
}

// readDiskUsage reads filesystem utilization using injected usage reader.
// Params: ctx for cancellation; usage gopsutil-compatible reader; path mount point.
// Returns: used percent or read error.
func readDiskUsage(
	ctx context.Context,
	usage func(context.Context, string) (*disk.UsageStat, error),
	path string,
) (float64, error) {
	mpoint := strings.TrimSpace(path)
	if mpoint == "" {
		mpoint = "/"
	}
	if usage == nil {
		usage = disk.UsageWithContext
	}

	stat, err := usage(ctx, mpoint)
	if err != nil {
		return 0, fmt.Errorf("read disk usage %q: %w", mpoint, err)
	}
	if stat == nil {
		return 0, fmt.Errorf("read disk usage %q: empty result", mpoint)
	}
	util := stat.UsedPercent
	if math.IsNaN(util) || math.IsInf(util, 0) {
		return 0, fmt.Errorf("read disk usage %q: invalid percent", mpoint)
	}
	return util, nil
}
