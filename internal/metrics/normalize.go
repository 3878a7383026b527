package metrics

import "math"

// Domain ceilings applied by Normalize.
const (
	MaxTemperature = 125.0
	MaxPercent     = 100.0
)

// Normalize clamps a raw snapshot into persisted sample ranges.
// Params: raw provider snapshot; out-of-range values saturate instead of failing.
// Returns: sample without ID/RecordedAt (assigned by the store).
func Normalize(raw RawSnapshot) Sample {
	return Sample{
		CPUTemperature: clamp(raw.CPUTemperature, MaxTemperature),
		CPUUsage:       clamp(raw.CPUUsage, MaxPercent),
		MemoryUsage:    clamp(raw.MemoryUsage, MaxPercent),
		DiskUsage:      clamp(raw.DiskUsage, MaxPercent),
		GPUUsage:       clamp(raw.GPUUsage, MaxPercent),
		NetworkRX:      raw.NetworkRX,
		NetworkTX:      raw.NetworkTX,
	}
}

// Raw converts a sample back into snapshot form.
// Params: sample previously produced by Normalize.
// Returns: raw snapshot with the same values.
func (s Sample) Raw() RawSnapshot {
	return RawSnapshot{
		CPUTemperature: s.CPUTemperature,
		CPUUsage:       s.CPUUsage,
		MemoryUsage:    s.MemoryUsage,
		DiskUsage:      s.DiskUsage,
		GPUUsage:       s.GPUUsage,
		NetworkRX:      s.NetworkRX,
		NetworkTX:      s.NetworkTX,
	}
}

// clamp bounds value to [0, ceiling]; NaN maps to 0.
// Params: value raw reading; ceiling domain maximum.
// Returns: clamped value.
func clamp(value, ceiling float64) float64 {
	switch {
	case math.IsNaN(value), value < 0:
		return 0
	case value > ceiling:
		return ceiling
	default:
		return value
	}
}
