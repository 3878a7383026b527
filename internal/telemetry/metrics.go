// Package telemetry exposes pipeline self-metrics in Prometheus format.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hostwatch/internal/metrics"
)

const namespace = "hostwatch"

// Metrics owns one Prometheus registry with collector and HTTP series.
// Params: none; create with New.
// Returns: nil-safe recorder used by collector loop and API.
type Metrics struct {
	registry *prometheus.Registry

	cycles          prometheus.Counter
	samples         prometheus.Counter
	sampleFailures  prometheus.Counter
	insertFailures  prometheus.Counter
	rotations       *prometheus.CounterVec
	rowsRotated     prometheus.Counter
	halts           prometheus.Counter
	rotationCounter prometheus.Gauge
	diskGuardUsage  prometheus.Gauge
	lastSample      *prometheus.GaugeVec
	lastSampleTime  prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpActive   *prometheus.GaugeVec
}

// New creates and registers all series on a private registry.
// Params: none.
// Returns: metrics recorder.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "collector_cycles_total",
			Help: "Completed collection cycles.",
		}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "collector_samples_persisted_total",
			Help: "Samples written to the store.",
		}),
		sampleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "collector_sample_failures_total",
			Help: "Cycles skipped because host metrics could not be read.",
		}),
		insertFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "collector_insert_failures_total",
			Help: "Cycles skipped because the store rejected the insert.",
		}),
		rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "collector_rotations_total",
			Help: "Rotation attempts by result.",
		}, []string{"result"}),
		rowsRotated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "collector_rotated_rows_total",
			Help: "Samples deleted by rotation.",
		}),
		halts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "collector_policy_halts_total",
			Help: "Collector stops triggered by the disk guard.",
		}),
		rotationCounter: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "collector_rotation_counter",
			Help: "Cycles counted since the last successful rotation.",
		}),
		diskGuardUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "diskguard_usage_percent",
			Help: "Disk utilization observed by the last guard check.",
		}),
		lastSample: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sample_value",
			Help: "Values of the last persisted sample.",
		}, []string{"field"}),
		lastSampleTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sample_recorded_timestamp_seconds",
			Help: "recorded_at of the last persisted sample.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "Request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "http_requests_active",
			Help: "Number of in-flight HTTP requests.",
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cycles,
		m.samples,
		m.sampleFailures,
		m.insertFailures,
		m.rotations,
		m.rowsRotated,
		m.halts,
		m.rotationCounter,
		m.diskGuardUsage,
		m.lastSample,
		m.lastSampleTime,
		m.httpRequests,
		m.httpDuration,
		m.httpActive,
	)
	return m
}

// Registry returns the private registry (tests, custom gatherers).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in exposition format.
// Params: none.
// Returns: HTTP handler for /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CycleCompleted(rotationCounter int) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.rotationCounter.Set(float64(rotationCounter))
}

func (m *Metrics) SampleFailed() {
	if m == nil {
		return
	}
	m.sampleFailures.Inc()
}

func (m *Metrics) InsertFailed() {
	if m == nil {
		return
	}
	m.insertFailures.Inc()
}

// SamplePersisted records values of a stored sample.
// Params: sample as returned by the store.
// Returns: none.
func (m *Metrics) SamplePersisted(sample metrics.Sample) {
	if m == nil {
		return
	}
	m.samples.Inc()
	m.lastSample.WithLabelValues("cpu_temperature").Set(sample.CPUTemperature)
	m.lastSample.WithLabelValues("cpu_usage").Set(sample.CPUUsage)
	m.lastSample.WithLabelValues("memory_usage").Set(sample.MemoryUsage)
	m.lastSample.WithLabelValues("disk_usage").Set(sample.DiskUsage)
	m.lastSample.WithLabelValues("gpu_usage").Set(sample.GPUUsage)
	m.lastSample.WithLabelValues("network_rx").Set(float64(sample.NetworkRX))
	m.lastSample.WithLabelValues("network_tx").Set(float64(sample.NetworkTX))
	m.lastSampleTime.Set(float64(sample.RecordedAt.UnixNano()) / float64(time.Second))
}

// RotationFinished records one rotation attempt.
// Params: removed deleted rows; err rotation error (nil on success).
// Returns: none.
func (m *Metrics) RotationFinished(removed int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.rotations.WithLabelValues("error").Inc()
		return
	}
	m.rotations.WithLabelValues("ok").Inc()
	m.rowsRotated.Add(float64(removed))
}

func (m *Metrics) DiskChecked(usage float64) {
	if m == nil {
		return
	}
	m.diskGuardUsage.Set(usage)
}

func (m *Metrics) Halted() {
	if m == nil {
		return
	}
	m.halts.Inc()
}

// RequestStarted marks one in-flight request.
// Params: method HTTP method; route path template.
// Returns: completion callback taking response status.
func (m *Metrics) RequestStarted(method, route string) func(status int) {
	if m == nil {
		return func(int) {}
	}
	start := time.Now()
	m.httpActive.WithLabelValues(method, route).Inc()
	return func(status int) {
		m.httpActive.WithLabelValues(method, route).Dec()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	}
}
