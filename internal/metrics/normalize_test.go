package metrics

import (
	"math"
	"testing"
)

// TestNormalize_ClampsRanges verifies temperature and percent ceilings and floors.
// Params: testing.T for assertions.
// Returns: none.
func TestNormalize_ClampsRanges(t *testing.T) {
	cases := []struct {
		name string
		raw  RawSnapshot
		want Sample
	}{
		{
			name: "in range",
			raw:  RawSnapshot{CPUTemperature: 48.5, CPUUsage: 12, MemoryUsage: 40, DiskUsage: 61, NetworkRX: 10, NetworkTX: 20},
			want: Sample{CPUTemperature: 48.5, CPUUsage: 12, MemoryUsage: 40, DiskUsage: 61, NetworkRX: 10, NetworkTX: 20},
		},
		{
			name: "saturated sensor",
			raw:  RawSnapshot{CPUTemperature: 200, CPUUsage: 150, MemoryUsage: 100.1, DiskUsage: 1e9, GPUUsage: 101},
			want: Sample{CPUTemperature: 125, CPUUsage: 100, MemoryUsage: 100, DiskUsage: 100, GPUUsage: 100},
		},
		{
			name: "negative readings",
			raw:  RawSnapshot{CPUTemperature: -40, CPUUsage: -1, MemoryUsage: -0.5, DiskUsage: -100, GPUUsage: -3},
			want: Sample{},
		},
		{
			name: "not a number",
			raw:  RawSnapshot{CPUTemperature: math.NaN(), CPUUsage: math.Inf(1), MemoryUsage: math.Inf(-1)},
			want: Sample{CPUUsage: 100},
		},
	}

	for _, tc := range cases {
		got := Normalize(tc.raw)
		if got != tc.want {
			t.Fatalf("%s: Normalize()=%+v want %+v", tc.name, got, tc.want)
		}
	}
}

// TestNormalize_Idempotent verifies normalize(normalize(x)) == normalize(x) over a value grid.
// Params: testing.T for assertions.
// Returns: none.
func TestNormalize_Idempotent(t *testing.T) {
	values := []float64{-1e6, -1, 0, 0.001, 50, 99.999, 100, 100.0001, 124.9, 125, 125.1, 1e6, math.NaN()}
	for _, temp := range values {
		for _, pct := range values {
			raw := RawSnapshot{CPUTemperature: temp, CPUUsage: pct, MemoryUsage: pct, DiskUsage: pct, GPUUsage: pct}
			once := Normalize(raw)
			twice := Normalize(once.Raw())
			if once != twice {
				t.Fatalf("not idempotent for temp=%v pct=%v: %+v vs %+v", temp, pct, once, twice)
			}
			if once.CPUTemperature < 0 || once.CPUTemperature > MaxTemperature {
				t.Fatalf("temperature out of range: %v", once.CPUTemperature)
			}
			for _, v := range []float64{once.CPUUsage, once.MemoryUsage, once.DiskUsage, once.GPUUsage} {
				if v < 0 || v > MaxPercent {
					t.Fatalf("percent out of range: %v", v)
				}
			}
		}
	}
}
