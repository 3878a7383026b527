package metrics

import (
	"context"
	"time"
)

// Field names reported in RawSnapshot.Missing when a reading is unavailable.
const (
	FieldCPUTemperature = "cpu_temperature"
	FieldCPUUsage       = "cpu_usage"
	FieldMemoryUsage    = "memory_usage"
	FieldDiskUsage      = "disk_usage"
	FieldGPUUsage       = "gpu_usage"
	FieldNetwork        = "network"
)

// RawSnapshot carries one unclamped host reading.
// Params: raw values read from the OS; unavailable values stay 0 and are named in Missing.
// Returns: provider output consumed by Normalize.
type RawSnapshot struct {
	CPUTemperature float64
	CPUUsage       float64
	MemoryUsage    float64
	DiskUsage      float64
	GPUUsage       float64
	NetworkRX      uint64
	NetworkTX      uint64
	Missing        []string
}

// Sample is one normalized observation as persisted by the store.
// Params: clamped readings plus store-assigned ID and RecordedAt.
// Returns: immutable sample value.
type Sample struct {
	ID             int64     `json:"id"`
	RecordedAt     time.Time `json:"recorded_at"`
	CPUTemperature float64   `json:"cpu_temperature"`
	CPUUsage       float64   `json:"cpu_usage"`
	MemoryUsage    float64   `json:"memory_usage"`
	DiskUsage      float64   `json:"disk_usage"`
	GPUUsage       float64   `json:"gpu_usage"`
	NetworkRX      uint64    `json:"network_rx"`
	NetworkTX      uint64    `json:"network_tx"`
}

// Provider reads one host snapshot.
// Params: context for cancellation and deadlines.
// Returns: raw snapshot or error when the OS read subsystem is unreachable.
type Provider interface {
	Sample(ctx context.Context) (RawSnapshot, error)
}
