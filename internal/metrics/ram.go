package metrics

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/mem"
)

// readMemoryUsage reads RAM utilization as (total-available)/total.
// Params: ctx for cancellation; virtualMemory gopsutil-compatible reader.
// Returns: utilization percent or read error.
func readMemoryUsage(
	ctx context.Context,
	virtualMemory func(context.Context) (*mem.VirtualMemoryStat, error),
) (float64, error) {
	if virtualMemory == nil {
		virtualMemory = mem.VirtualMemoryWithContext
	}
	vm, err := virtualMemory(ctx)
	if err != nil {
		return 0, fmt.Errorf("read virtual memory: %w", err)
	}
	if vm == nil || vm.Total == 0 {
		return 0, fmt.Errorf("read virtual memory: total is zero")
	}

	used := vm.Total - vm.Available
	if vm.Available > vm.Total {
		used = 0
	}
	return (float64(used) / float64(vm.Total)) * 100, nil
}
