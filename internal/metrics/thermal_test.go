package metrics

import (
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v4/sensors"
)

func TestParseMillidegrees(t *testing.T) {
	got, err := parseMillidegrees([]byte("48312\n"))
	if err != nil {
		t.Fatalf("parseMillidegrees() error: %v", err)
	}
	if got != 48.312 {
		t.Fatalf("unexpected temperature: %v", got)
	}

	if _, err := parseMillidegrees([]byte("n/a")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestReadThermalZone_MissingFile(t *testing.T) {
	readFile := func(string) ([]byte, error) {
		return nil, errors.New("no such file")
	}
	if _, err := readThermalZone(readFile, DefaultThermalPath); err == nil {
		t.Fatalf("expected error for missing thermal zone")
	}
	if _, err := readThermalZone(readFile, " "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestPickCPUTemperature(t *testing.T) {
	cases := []struct {
		name  string
		stats []sensors.TemperatureStat
		want  float64
		ok    bool
	}{
		{name: "empty", stats: nil, want: 0, ok: false},
		{
			name: "prefers cpu sensor",
			stats: []sensors.TemperatureStat{
				{SensorKey: "nvme_composite", Temperature: 38},
				{SensorKey: "coretemp_package_id_0", Temperature: 52},
			},
			want: 52,
			ok:   true,
		},
		{
			name: "falls back to first positive",
			stats: []sensors.TemperatureStat{
				{SensorKey: "acpitz", Temperature: 0},
				{SensorKey: "acpitz_1", Temperature: 41},
				{SensorKey: "nvme", Temperature: 35},
			},
			want: 41,
			ok:   true,
		},
	}

	for _, tc := range cases {
		got, ok := pickCPUTemperature(tc.stats)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("%s: pickCPUTemperature()=(%v,%v) want (%v,%v)", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}
