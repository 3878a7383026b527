package metrics

import (
	"context"
	"fmt"

	netio "github.com/shirou/gopsutil/v4/net"
)

// readNetworkCounters reads cumulative rx/tx bytes summed over all interfaces.
// Params: ctx for cancellation; counters gopsutil-compatible reader.
// Returns: received bytes, sent bytes, or read error.
func readNetworkCounters(
	ctx context.Context,
	counters func(context.Context, bool) ([]netio.IOCountersStat, error),
) (uint64, uint64, error) {
	if counters == nil {
		counters = netio.IOCountersWithContext
	}
	stats, err := counters(ctx, false)
	if err != nil {
		return 0, 0, fmt.Errorf("read net counters: %w", err)
	}
	if len(stats) == 0 {
		return 0, 0, fmt.Errorf("read net counters: empty result")
	}

	// pernic=false yields a single "all" row; per-NIC rows are summed.
	var rx, tx uint64
	for _, stat := range stats {
		rx += stat.BytesRecv
		tx += stat.BytesSent
	}
	return rx, tx, nil
}
