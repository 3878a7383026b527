package app

import (
	"context"
	"fmt"
	"log/slog"

	"hostwatch/internal/api"
	"hostwatch/internal/collector"
	"hostwatch/internal/config"
	"hostwatch/internal/diskguard"
	"hostwatch/internal/events"
	"hostwatch/internal/metrics"
	"hostwatch/internal/query"
	"hostwatch/internal/telemetry"
)

// sampleStore is the store surface used by the collector, query and API layers.
type sampleStore interface {
	collector.SampleStore
	query.SampleReader
	api.StorageInspector
	Close() error
}

type component struct {
	name string
	run  func(context.Context) error
}

type componentResult struct {
	name string
	err  error
}

// engine runs the collector loop next to the query servers.
type engine struct {
	components []component
	logger     *slog.Logger
}

// newEngine wires collector, query service and servers for one runtime.
// Params: _ runtime context; cfg validated config; st opened store; logger root logger; progress cadence carried from earlier runtimes.
// Returns: engine or listener/validation error.
func newEngine(_ context.Context, cfg *config.Config, st sampleStore, logger *slog.Logger, progress *collector.Progress) (*engine, error) {
	logger = logger.With(slog.String("host", cfg.Global.Host))
	recorder := telemetry.New()
	hub := events.NewHub()

	var health *api.HealthServer
	if cfg.GRPC.Enabled {
		hs, err := api.NewHealthServer(cfg.GRPC.Listen, logger)
		if err != nil {
			return nil, fmt.Errorf("start grpc health: %w", err)
		}
		health = hs
	}

	deps := collector.Deps{
		Guard: diskguard.New(diskguard.Config{
			Path:      cfg.Collector.DiskPath,
			Threshold: cfg.Collector.LowDiskThreshold,
		}, nil),
		Provider: metrics.NewHostProvider(metrics.HostOptions{
			DiskPath:    cfg.Collector.DiskPath,
			ThermalPath: cfg.Collector.ThermalPath,
			CPUWindow:   cfg.Collector.CPUWindow.Duration,
		}),
		Store:    st,
		Hub:      hub,
		Metrics:  recorder,
		Logger:   logger,
		Progress: progress,
	}
	if health != nil {
		deps.Health = health
	}

	loop, err := collector.New(collector.Config{
		Interval:          cfg.Collector.Interval.Duration,
		RotationCycles:    cfg.Collector.RotationCycles,
		RotateEvery:       cfg.Collector.RotateEvery.Duration,
		Retention:         cfg.Collector.Retention(),
		HighTempThreshold: cfg.Collector.HighTempThreshold,
		SampleTimeout:     cfg.Collector.SampleTimeout.Duration,
		WriteTimeout:      cfg.Store.WriteTimeout.Duration,
	}, deps)
	if err != nil {
		closeHealth(health)
		return nil, fmt.Errorf("build collector: %w", err)
	}

	router := api.NewRouter(api.Options{
		Query: query.New(st, query.Options{
			HistoryLimit:    cfg.API.HistoryLimit,
			MaxHistoryLimit: cfg.API.MaxHistoryLimit,
		}),
		Status:            loop,
		Storage:           st,
		Hub:               hub,
		Metrics:           recorder,
		Logger:            logger,
		HighTempThreshold: cfg.Collector.HighTempThreshold,
		LowDiskThreshold:  cfg.Collector.LowDiskThreshold,
		Pprof:             cfg.API.Pprof,
	})
	httpServer, err := api.NewHTTPServer(cfg.API.Listen, router, logger)
	if err != nil {
		closeHealth(health)
		return nil, fmt.Errorf("start http api: %w", err)
	}

	components := []component{
		{name: "collector", run: loop.Run},
		{name: "http", run: httpServer.Run},
	}
	if health != nil {
		components = append(components, component{name: "grpc", run: health.Run})
	}

	return &engine{components: components, logger: logger}, nil
}

// Run starts all components; the first one to return stops the rest.
// Params: ctx lifecycle context.
// Returns: first component error (collector.ErrPolicyHalt on disk halt), nil on graceful stop.
func (e *engine) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan componentResult, len(e.components))
	for _, c := range e.components {
		go func(c component) {
			results <- componentResult{name: c.name, err: c.run(runCtx)}
		}(c)
	}

	first := <-results
	cancel()
	for i := 1; i < len(e.components); i++ {
		res := <-results
		if first.err == nil && res.err != nil {
			first = res
		}
	}

	if first.err != nil {
		return fmt.Errorf("%s: %w", first.name, first.err)
	}
	return nil
}

func closeHealth(health *api.HealthServer) {
	if health != nil {
		_ = health.Close()
	}
}
