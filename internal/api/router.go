// Package api exposes the query surface over HTTP, websocket and gRPC health.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	pprofhttp "net/http/pprof"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"hostwatch/internal/collector"
	"hostwatch/internal/events"
	"hostwatch/internal/metrics"
	"hostwatch/internal/query"
	"hostwatch/internal/store"
	"hostwatch/internal/telemetry"
)

// StatusSource reports collector progress.
type StatusSource interface {
	Status() collector.Status
}

// StorageInspector reports store health and footprint.
type StorageInspector interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (store.Stats, error)
}

// Options wires handlers to runtime collaborators.
// Params: Query is required; the rest are optional.
// Returns: handler configuration.
type Options struct {
	Query             *query.Service
	Status            StatusSource
	Storage           StorageInspector
	Hub               *events.Hub
	Metrics           *telemetry.Metrics
	Logger            *slog.Logger
	HighTempThreshold float64
	LowDiskThreshold  float64
	Pprof             bool
}

type handlers struct {
	opts   Options
	logger *slog.Logger
	feed   *liveFeed
}

type currentResponse struct {
	Sample *metrics.Sample `json:"sample"`
	Error  string          `json:"error,omitempty"`
}

// dashboardCurrentResponse is the payload shape of the /api/current_stats route.
type dashboardCurrentResponse struct {
	Current *metrics.Sample `json:"current"`
	Error   string          `json:"error,omitempty"`
}

type historyResponse struct {
	query.Series
	Error string `json:"error,omitempty"`
}

type thresholds struct {
	HighTemperature float64 `json:"high_temperature"`
	LowDisk         float64 `json:"low_disk"`
}

type statusResponse struct {
	Collector       *collector.Status `json:"collector,omitempty"`
	Thresholds      thresholds        `json:"thresholds"`
	TemperatureHigh bool              `json:"temperature_high"`
	LiveClients     int               `json:"live_clients"`
	Error           string            `json:"error,omitempty"`
}

// NewRouter builds the HTTP API router.
// Params: opts runtime collaborators.
// Returns: router with metrics middleware attached.
func NewRouter(opts Options) *mux.Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{
		opts:   opts,
		logger: logger,
		feed:   newLiveFeed(opts.Hub, logger),
	}

	r := mux.NewRouter()
	r.Use(metricsMiddleware(opts.Metrics))

	r.HandleFunc("/api/current", h.current).Methods(http.MethodGet)
	r.HandleFunc("/api/current_stats", h.currentStats).Methods(http.MethodGet)
	r.HandleFunc("/api/history", h.history).Methods(http.MethodGet)
	r.HandleFunc("/api/status", h.status).Methods(http.MethodGet)
	r.HandleFunc("/api/storage", h.storage).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.HandleFunc("/ws", h.feed.serve).Methods(http.MethodGet)
	r.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)

	if opts.Pprof {
		r.HandleFunc("/debug/pprof/cmdline", pprofhttp.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprofhttp.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprofhttp.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprofhttp.Trace)
		r.PathPrefix("/debug/pprof/").HandlerFunc(pprofhttp.Index)
	}
	return r
}

// current serves the latest sample; empty store yields a null sample.
func (h *handlers) current(w http.ResponseWriter, r *http.Request) {
	sample, err := h.opts.Query.Current(r.Context())
	if err != nil {
		h.logger.Error("current query failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, currentResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, currentResponse{Sample: sample})
}

// currentStats serves the latest sample under the dashboard's "current" key.
func (h *handlers) currentStats(w http.ResponseWriter, r *http.Request) {
	sample, err := h.opts.Query.Current(r.Context())
	if err != nil {
		h.logger.Error("current query failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, dashboardCurrentResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, dashboardCurrentResponse{Current: sample})
}

// history serves the recent window as parallel arrays.
func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, historyResponse{Series: query.EmptySeries(), Error: err.Error()})
		return
	}

	series, err := h.opts.Query.History(r.Context(), limit)
	if err != nil {
		h.logger.Error("history query failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, historyResponse{Series: series, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Series: series})
}

// status reports collector state plus the advisory temperature flag.
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Thresholds: thresholds{
			HighTemperature: h.opts.HighTempThreshold,
			LowDisk:         h.opts.LowDiskThreshold,
		},
		LiveClients: h.opts.Hub.Subscribers(),
	}
	if h.opts.Status != nil {
		st := h.opts.Status.Status()
		resp.Collector = &st
	}

	sample, err := h.opts.Query.Current(r.Context())
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	if sample != nil && h.opts.HighTempThreshold > 0 {
		resp.TemperatureHigh = sample.CPUTemperature > h.opts.HighTempThreshold
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) storage(w http.ResponseWriter, r *http.Request) {
	if h.opts.Storage == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "storage stats disabled"})
		return
	}
	stats, err := h.opts.Storage.Stats(r.Context())
	if err != nil {
		h.logger.Error("storage stats failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if h.opts.Storage != nil {
		if err := h.opts.Storage.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseLimit reads optional positive limit query value.
// Params: raw query string value.
// Returns: limit (0 when absent) or validation error.
func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	return limit, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
