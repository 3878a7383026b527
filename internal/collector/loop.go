// Package collector runs the sampling/persistence/rotation cycle.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hostwatch/internal/diskguard"
	"hostwatch/internal/events"
	"hostwatch/internal/metrics"
	"hostwatch/internal/store"
	"hostwatch/internal/telemetry"
)

const (
	DefaultInterval       = 300 * time.Second
	DefaultRotationCycles = 288
	DefaultRetention      = 7 * 24 * time.Hour
	DefaultSampleTimeout  = 10 * time.Second
	DefaultWriteTimeout   = 10 * time.Second
)

// ErrPolicyHalt reports a deliberate stop requested by the disk guard.
var ErrPolicyHalt = errors.New("collector halted: disk usage above threshold")

// DiskGuard decides whether one more cycle may write to disk.
type DiskGuard interface {
	Check(ctx context.Context) (diskguard.Decision, float64, error)
	Threshold() float64
}

// SampleStore is the write side of the sample store.
type SampleStore interface {
	Insert(ctx context.Context, sample metrics.Sample) (metrics.Sample, error)
	Rotate(ctx context.Context, horizon time.Duration) (int64, error)
}

// HealthReporter receives store write health after every insert.
type HealthReporter interface {
	SetServing(serving bool)
}

// Config defines loop cadence and thresholds.
// Params: values resolved from [collector] and [store] sections.
// Returns: loop runtime configuration.
type Config struct {
	Interval          time.Duration
	RotationCycles    int
	RotateEvery       time.Duration
	Retention         time.Duration
	HighTempThreshold float64
	SampleTimeout     time.Duration
	WriteTimeout      time.Duration
}

// Deps holds loop collaborators; Hub, Metrics, Health and Progress are optional.
type Deps struct {
	Guard    DiskGuard
	Provider metrics.Provider
	Store    SampleStore
	Hub      *events.Hub
	Metrics  *telemetry.Metrics
	Health   HealthReporter
	Logger   *slog.Logger
	// Progress resumes rotation cadence from a previous loop when set.
	Progress *Progress
}

// Status is a read-only snapshot of loop progress.
type Status struct {
	State           State     `json:"state"`
	Cycles          uint64    `json:"cycles"`
	RotationCounter int       `json:"rotation_counter"`
	StartedAt       time.Time `json:"started_at,omitzero"`
	LastSampleAt    time.Time `json:"last_sample_at,omitzero"`
	LastRotationAt  time.Time `json:"last_rotation_at,omitzero"`
	LastDiskUsage   float64   `json:"last_disk_usage"`
	LastError       string    `json:"last_error,omitempty"`
}

// Loop is the single sequential collector.
type Loop struct {
	cfg  Config
	deps Deps

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool

	mu           sync.RWMutex
	status       Status
	lastRotation time.Time
}

// New validates config and builds an idle loop.
// Params: cfg loop settings (zero fields get defaults); deps collaborators.
// Returns: loop or validation error.
func New(cfg Config, deps Deps) (*Loop, error) {
	if deps.Guard == nil {
		return nil, fmt.Errorf("disk guard is required")
	}
	if deps.Provider == nil {
		return nil, fmt.Errorf("metrics provider is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("sample store is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.RotationCycles <= 0 {
		cfg.RotationCycles = DefaultRotationCycles
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.SampleTimeout <= 0 {
		cfg.SampleTimeout = DefaultSampleTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.RotateEvery < 0 {
		return nil, fmt.Errorf("rotate_every must be >= 0")
	}

	return &Loop{
		cfg:    cfg,
		deps:   deps,
		now:    time.Now,
		sleep:  sleepContext,
		status: Status{State: StateIdle},
	}, nil
}

// Status returns current loop snapshot.
// Params: none.
// Returns: copy of loop status.
func (l *Loop) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

// Config returns resolved loop settings.
func (l *Loop) Config() Config {
	return l.cfg
}

// Run executes cycles until cancellation or policy halt.
// Params: ctx lifecycle context; cancellation is observed between cycles and during sleep.
// Returns: nil on cancellation; ErrPolicyHalt when disk guard stops the loop.
func (l *Loop) Run(ctx context.Context) error {
	start := l.now()
	counter, since, rotatedAt := l.deps.Progress.load()
	if since.IsZero() {
		since = start
	}
	l.mu.Lock()
	l.status.StartedAt = start
	l.status.RotationCounter = counter
	l.status.LastRotationAt = rotatedAt
	l.lastRotation = since
	l.mu.Unlock()

	l.deps.Logger.Info(
		"collector started",
		slog.String("interval", l.cfg.Interval.String()),
		slog.Int("rotation_cycles", l.cfg.RotationCycles),
		slog.String("retention", l.cfg.Retention.String()),
		slog.Int("rotation_counter", counter),
	)

	for {
		if ctx.Err() != nil {
			l.setState(StateStopped)
			l.deps.Logger.Info("collector stopped")
			return nil
		}
		if halted := l.runCycle(ctx); halted {
			return ErrPolicyHalt
		}

		l.setState(StateSleeping)
		if !l.sleep(ctx, l.cfg.Interval) {
			l.setState(StateStopped)
			l.deps.Logger.Info("collector stopped")
			return nil
		}
	}
}

// runCycle performs one check/sample/persist/rotate pass.
// Params: ctx lifecycle context.
// Returns: true when disk guard halted the loop.
func (l *Loop) runCycle(ctx context.Context) bool {
	l.setState(StateCheckingDisk)
	decision, usage, err := l.checkDisk(ctx)
	if err != nil {
		l.deps.Logger.Warn("disk check failed", slog.String("error", err.Error()))
	} else {
		l.deps.Metrics.DiskChecked(usage)
		l.mu.Lock()
		l.status.LastDiskUsage = usage
		l.mu.Unlock()
	}

	if decision == diskguard.Halt {
		l.halt(usage)
		return true
	}

	l.collect(ctx)

	l.mu.Lock()
	l.status.Cycles++
	l.status.RotationCounter++
	l.mu.Unlock()

	if l.rotationDue() {
		l.rotate(ctx)
	}

	l.mu.RLock()
	counter, since, rotatedAt := l.status.RotationCounter, l.lastRotation, l.status.LastRotationAt
	l.mu.RUnlock()
	l.deps.Progress.save(counter, since, rotatedAt)

	l.deps.Metrics.CycleCompleted(counter)
	return false
}

type diskReading struct {
	decision diskguard.Decision
	usage    float64
}

// checkDisk runs the disk guard bounded by sample_timeout.
// Params: ctx lifecycle context.
// Returns: guard verdict; Proceed with an error when the read does not return in time.
func (l *Loop) checkDisk(ctx context.Context) (diskguard.Decision, float64, error) {
	reading, err := callWithin(ctx, l.cfg.SampleTimeout, func(checkCtx context.Context) (diskReading, error) {
		decision, usage, err := l.deps.Guard.Check(checkCtx)
		return diskReading{decision: decision, usage: usage}, err
	})
	if errors.Is(err, errReadAbandoned) {
		return diskguard.Proceed, 0, fmt.Errorf("check disk space: %w", err)
	}
	return reading.decision, reading.usage, err
}

// errReadAbandoned marks an OS read that did not return within its bound.
var errReadAbandoned = errors.New("read abandoned")

type callResult[T any] struct {
	value T
	err   error
}

// callWithin runs call in its own goroutine and stops waiting once timeout elapses.
// Reads that ignore ctx (statfs, sysfs, /proc) keep running in the background and their result is dropped.
// Params: ctx parent context; timeout wait bound; call the read.
// Returns: call result, or an errReadAbandoned error wrapping the context error.
func callWithin[T any](ctx context.Context, timeout time.Duration, call func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan callResult[T], 1)
	go func() {
		value, err := call(callCtx)
		done <- callResult[T]{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-callCtx.Done():
		var zero T
		return zero, fmt.Errorf("%w after %s: %w", errReadAbandoned, timeout, callCtx.Err())
	}
}

// collect samples, normalizes, and persists one sample; failures skip the rest of the cycle.
// Params: ctx lifecycle context.
// Returns: none.
func (l *Loop) collect(ctx context.Context) {
	l.setState(StateSampling)
	raw, err := callWithin(ctx, l.cfg.SampleTimeout, l.deps.Provider.Sample)
	if err != nil {
		l.deps.Logger.Error("sample failed", slog.String("error", err.Error()))
		l.deps.Metrics.SampleFailed()
		l.recordError(err)
		return
	}
	if len(raw.Missing) > 0 {
		l.deps.Logger.Debug("sample incomplete", slog.Any("missing", raw.Missing))
	}

	l.setState(StateNormalizing)
	sample := metrics.Normalize(raw)

	l.setState(StatePersisting)
	writeCtx, cancelWrite := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.WriteTimeout)
	stored, err := l.deps.Store.Insert(writeCtx, sample)
	cancelWrite()
	if err != nil {
		l.deps.Logger.Error("insert failed", slog.String("error", err.Error()))
		l.deps.Metrics.InsertFailed()
		l.setServing(false)
		l.recordError(err)
		return
	}

	l.setServing(true)
	l.deps.Metrics.SamplePersisted(stored)
	l.deps.Hub.Publish(events.NewSampleEvent(stored))
	l.mu.Lock()
	l.status.LastSampleAt = stored.RecordedAt
	l.status.LastError = ""
	l.mu.Unlock()

	l.deps.Logger.Info(
		"sample persisted",
		slog.Int64("id", stored.ID),
		slog.String("recorded_at", stored.RecordedAt.Format(time.RFC3339)),
		slog.Float64("cpu_temperature", stored.CPUTemperature),
		slog.Float64("cpu_usage", stored.CPUUsage),
	)
	if l.cfg.HighTempThreshold > 0 && stored.CPUTemperature > l.cfg.HighTempThreshold {
		l.deps.Logger.Warn(
			"cpu temperature above threshold",
			slog.Float64("cpu_temperature", stored.CPUTemperature),
			slog.Float64("threshold", l.cfg.HighTempThreshold),
		)
	}
}

// rotationDue applies cycle-count cadence, or wall-clock cadence when rotate_every is set.
// Params: none.
// Returns: true when rotation must run in this cycle.
func (l *Loop) rotationDue() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.cfg.RotateEvery > 0 {
		return l.now().Sub(l.lastRotation) >= l.cfg.RotateEvery
	}
	return l.status.RotationCounter >= l.cfg.RotationCycles
}

// rotate purges expired samples; the counter resets only on success (a committed delete whose checkpoint failed counts).
// Params: ctx lifecycle context; its cancellation does not abort the delete.
// Returns: none.
func (l *Loop) rotate(ctx context.Context) {
	l.setState(StateRotating)
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.WriteTimeout)
	removed, err := l.deps.Store.Rotate(writeCtx, l.cfg.Retention)
	cancel()
	if errors.Is(err, store.ErrCheckpoint) {
		l.deps.Logger.Warn("rotation checkpoint failed", slog.Int64("removed", removed), slog.String("error", err.Error()))
		err = nil
	}
	l.deps.Metrics.RotationFinished(removed, err)
	if err != nil {
		l.deps.Logger.Error(
			"rotation failed",
			slog.Int("rotation_counter", l.Status().RotationCounter),
			slog.String("error", err.Error()),
		)
		l.recordError(err)
		return
	}

	now := l.now()
	l.mu.Lock()
	l.status.RotationCounter = 0
	l.status.LastRotationAt = now
	l.lastRotation = now
	l.mu.Unlock()
	l.deps.Logger.Info("rotation completed", slog.Int64("removed", removed))
}

// halt moves loop to Stopped after a disk guard Halt.
// Params: usage observed disk utilization.
// Returns: none.
func (l *Loop) halt(usage float64) {
	message := fmt.Sprintf("disk usage %.1f%% exceeds threshold %.1f%%", usage, l.deps.Guard.Threshold())
	l.deps.Logger.Warn(
		"low disk space, stopping collector",
		slog.Float64("disk_usage", usage),
		slog.Float64("threshold", l.deps.Guard.Threshold()),
	)
	l.deps.Metrics.Halted()
	l.setServing(false)
	l.deps.Hub.Publish(events.NewHaltEvent(message))

	l.mu.Lock()
	l.status.State = StateStopped
	l.status.LastError = message
	l.mu.Unlock()
}

func (l *Loop) setState(state State) {
	l.mu.Lock()
	l.status.State = state
	l.mu.Unlock()
}

func (l *Loop) recordError(err error) {
	l.mu.Lock()
	l.status.LastError = err.Error()
	l.mu.Unlock()
}

func (l *Loop) setServing(serving bool) {
	if l.deps.Health != nil {
		l.deps.Health.SetServing(serving)
	}
}

// sleepContext waits for d or ctx cancellation.
// Params: ctx cancellation source; d wait duration.
// Returns: true when full duration elapsed.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
