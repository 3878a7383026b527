package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second

	// StoreService is the health service name tracking sample writes.
	StoreService = "hostwatch.store"
)

// HTTPServer runs an HTTP server tied to a lifecycle context.
// Params: listen address, handler, and logger for diagnostics.
// Returns: runnable HTTP server instance.
type HTTPServer struct {
	listen string
	ln     net.Listener
	server *http.Server
	logger *slog.Logger
}

// NewHTTPServer creates an HTTP server and binds to the listen address.
// Params: listen address in host:port; handler HTTP handler; logger root logger.
// Returns: server instance or bind error.
func NewHTTPServer(listen string, handler http.Handler, logger *slog.Logger) (*HTTPServer, error) {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", listen, err)
	}

	return &HTTPServer{
		listen: listen,
		ln:     ln,
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		logger: logger,
	}, nil
}

// Addr returns the bound listener address.
func (s *HTTPServer) Addr() string {
	return s.ln.Addr().String()
}

// Run starts serving and shuts down on context cancellation.
// Params: ctx lifecycle context.
// Returns: nil on graceful stop; error on early serve failures.
func (s *HTTPServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(s.ln)
	}()
	s.logger.Info("http api started", slog.String("listen", s.Addr()))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		err := <-errCh
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.logger.Error("http api stopped unexpectedly", slog.String("listen", s.listen), slog.String("error", err.Error()))
		return err
	}
}

// Close releases the listener of a server that was never run.
func (s *HTTPServer) Close() error {
	return s.ln.Close()
}

// HealthServer serves grpc.health.v1 and tracks store write health.
type HealthServer struct {
	listen string
	ln     net.Listener
	server *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// NewHealthServer binds the gRPC listener and registers the health service.
// Params: listen address in host:port; logger root logger.
// Returns: health server (store service SERVING) or bind error.
func NewHealthServer(listen string, logger *slog.Logger) (*HealthServer, error) {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", listen, err)
	}

	hs := health.NewServer()
	hs.SetServingStatus(StoreService, healthpb.HealthCheckResponse_SERVING)

	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	return &HealthServer{
		listen: listen,
		ln:     ln,
		server: server,
		health: hs,
		logger: logger,
	}, nil
}

// Addr returns the bound listener address.
func (h *HealthServer) Addr() string {
	return h.ln.Addr().String()
}

// SetServing flips the store service status.
// Params: serving true for SERVING, false for NOT_SERVING.
// Returns: none.
func (h *HealthServer) SetServing(serving bool) {
	if h == nil {
		return
	}
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(StoreService, status)
}

// Run serves gRPC until ctx is canceled.
// Params: ctx lifecycle context.
// Returns: nil on graceful stop; serve error otherwise.
func (h *HealthServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.server.Serve(h.ln)
	}()
	h.logger.Info("grpc health started", slog.String("listen", h.Addr()))

	select {
	case <-ctx.Done():
		h.health.Shutdown()
		stopped := make(chan struct{})
		go func() {
			h.server.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(shutdownTimeout):
			h.server.Stop()
		}
		<-errCh
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		h.logger.Error("grpc health stopped unexpectedly", slog.String("listen", h.listen), slog.String("error", err.Error()))
		return err
	}
}

// Close releases the listener of a server that was never run.
func (h *HealthServer) Close() error {
	h.server.Stop()
	return h.ln.Close()
}
