package metrics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	netio "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/sensors"
)

const defaultCPUWindow = time.Second

// HostOptions configures HostProvider sources.
// Params: disk mount path, thermal zone path, CPU measurement window.
// Returns: provider options.
type HostOptions struct {
	DiskPath    string
	ThermalPath string
	CPUWindow   time.Duration
}

// HostProvider reads OS health signals through gopsutil and sysfs.
// Params: configured sources and injectable readers for tests.
// Returns: Provider implementation.
type HostProvider struct {
	diskPath    string
	thermalPath string
	cpuWindow   time.Duration

	cpuPercent    func(context.Context, time.Duration, bool) ([]float64, error)
	virtualMemory func(context.Context) (*mem.VirtualMemoryStat, error)
	diskUsage     func(context.Context, string) (*disk.UsageStat, error)
	netCounters   func(context.Context, bool) ([]netio.IOCountersStat, error)
	temperatures  func(context.Context) ([]sensors.TemperatureStat, error)
	readFile      func(string) ([]byte, error)
}

// NewHostProvider creates a host provider.
// Params: opts source options; empty values use defaults.
// Returns: configured provider.
func NewHostProvider(opts HostOptions) *HostProvider {
	diskPath := strings.TrimSpace(opts.DiskPath)
	if diskPath == "" {
		diskPath = "/"
	}
	thermalPath := strings.TrimSpace(opts.ThermalPath)
	if thermalPath == "" {
		thermalPath = DefaultThermalPath
	}
	window := opts.CPUWindow
	if window < 0 {
		window = defaultCPUWindow
	}

	return &HostProvider{
		diskPath:      diskPath,
		thermalPath:   thermalPath,
		cpuWindow:     window,
		cpuPercent:    cpu.PercentWithContext,
		virtualMemory: mem.VirtualMemoryWithContext,
		diskUsage:     disk.UsageWithContext,
		netCounters:   netio.IOCountersWithContext,
		temperatures:  sensors.TemperaturesWithContext,
		readFile:      os.ReadFile,
	}
}

// Sample reads all signals; unavailable ones default to 0 and are listed in Missing.
// Params: ctx for cancellation and deadlines.
// Returns: raw snapshot, or error when every OS read failed.
func (p *HostProvider) Sample(ctx context.Context) (RawSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return RawSnapshot{}, err
	}

	var (
		snapshot RawSnapshot
		failures []error
	)

	if value, ok := p.readCPUTemperature(ctx); ok {
		snapshot.CPUTemperature = value
	} else {
		snapshot.Missing = append(snapshot.Missing, FieldCPUTemperature)
	}

	if value, err := readCPUUsage(ctx, p.cpuPercent, p.cpuWindow); err == nil {
		snapshot.CPUUsage = value
	} else {
		failures = append(failures, err)
		snapshot.Missing = append(snapshot.Missing, FieldCPUUsage)
	}

	if value, err := readMemoryUsage(ctx, p.virtualMemory); err == nil {
		snapshot.MemoryUsage = value
	} else {
		failures = append(failures, err)
		snapshot.Missing = append(snapshot.Missing, FieldMemoryUsage)
	}

	if value, err := readDiskUsage(ctx, p.diskUsage, p.diskPath); err == nil {
		snapshot.DiskUsage = value
	} else {
		failures = append(failures, err)
		snapshot.Missing = append(snapshot.Missing, FieldDiskUsage)
	}

	if rx, tx, err := readNetworkCounters(ctx, p.netCounters); err == nil {
		snapshot.NetworkRX = rx
		snapshot.NetworkTX = tx
	} else {
		failures = append(failures, err)
		snapshot.Missing = append(snapshot.Missing, FieldNetwork)
	}

	// No GPU source is read on this host; the field stays 0.
	snapshot.Missing = append(snapshot.Missing, FieldGPUUsage)

	if len(failures) == 4 {
		return RawSnapshot{}, fmt.Errorf("host metrics unavailable: %w", errors.Join(failures...))
	}
	if err := ctx.Err(); err != nil {
		return RawSnapshot{}, fmt.Errorf("sample interrupted: %w", err)
	}

	return snapshot, nil
}
