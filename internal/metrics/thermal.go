package metrics

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/sensors"
)

// DefaultThermalPath is the first thermal zone exposed by Linux sysfs.
const DefaultThermalPath = "/sys/class/thermal/thermal_zone0/temp"

var cpuSensorHints = []string{"cpu", "coretemp", "k10temp", "package", "soc", "tctl"}

// readThermalZone reads a sysfs thermal zone value in millidegrees.
// Params: readFile file reader; path thermal zone file.
// Returns: temperature in degrees Celsius or read/parse error.
func readThermalZone(readFile func(string) ([]byte, error), path string) (float64, error) {
	if strings.TrimSpace(path) == "" {
		return 0, fmt.Errorf("thermal path is empty")
	}
	if readFile == nil {
		readFile = os.ReadFile
	}
	raw, err := readFile(path)
	if err != nil {
		return 0, fmt.Errorf("read thermal zone %q: %w", path, err)
	}
	return parseMillidegrees(raw)
}

// parseMillidegrees converts sysfs millidegree payload to degrees.
// Params: raw file content, e.g. "48312\n".
// Returns: degrees Celsius or parse error.
func parseMillidegrees(raw []byte) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse thermal value: %w", err)
	}
	return value / 1000.0, nil
}

// pickCPUTemperature selects the most CPU-like sensor reading.
// Params: stats sensor readings as returned by gopsutil.
// Returns: temperature and true when a usable reading exists.
func pickCPUTemperature(stats []sensors.TemperatureStat) (float64, bool) {
	fallback, hasFallback := 0.0, false
	for _, stat := range stats {
		if math.IsNaN(stat.Temperature) || stat.Temperature <= 0 {
			continue
		}
		key := strings.ToLower(stat.SensorKey)
		for _, hint := range cpuSensorHints {
			if strings.Contains(key, hint) {
				return stat.Temperature, true
			}
		}
		if !hasFallback {
			fallback, hasFallback = stat.Temperature, true
		}
	}
	return fallback, hasFallback
}

// readCPUTemperature reads thermal zone first and falls back to hardware sensors.
// Params: ctx for cancellation; p provider with injectable readers.
// Returns: temperature and true when any source produced a value.
func (p *HostProvider) readCPUTemperature(ctx context.Context) (float64, bool) {
	if value, err := readThermalZone(p.readFile, p.thermalPath); err == nil {
		return value, true
	}

	temperatures := p.temperatures
	if temperatures == nil {
		temperatures = sensors.TemperaturesWithContext
	}
	// gopsutil returns partial readings together with a warnings error.
	stats, _ := temperatures(ctx)
	return pickCPUTemperature(stats)
}
