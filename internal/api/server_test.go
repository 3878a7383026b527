package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHTTPServerServesAndStops(t *testing.T) {
	srv, err := NewHTTPServer("127.0.0.1:0", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), testLogger())
	if err != nil {
		t.Fatalf("NewHTTPServer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	resp, err := http.Get("http://" + srv.Addr() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status=%d want 204", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewHTTPServerBindError(t *testing.T) {
	first, err := NewHTTPServer("127.0.0.1:0", http.NotFoundHandler(), testLogger())
	if err != nil {
		t.Fatalf("NewHTTPServer: %v", err)
	}
	defer first.Close()

	if _, err := NewHTTPServer(first.Addr(), http.NotFoundHandler(), testLogger()); err == nil {
		t.Fatal("expected bind error for busy address")
	}
}

func TestHealthServerReportsStoreStatus(t *testing.T) {
	hs, err := NewHealthServer("127.0.0.1:0", testLogger())
	if err != nil {
		t.Fatalf("NewHealthServer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hs.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	conn, err := grpc.NewClient(hs.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer callCancel()
		resp, err := client.Check(callCtx, &healthpb.HealthCheckRequest{Service: StoreService})
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		return resp.GetStatus()
	}

	if got := check(); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status=%s want SERVING", got)
	}
	hs.SetServing(false)
	if got := check(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status=%s want NOT_SERVING", got)
	}
}

func TestNilHealthServerSetServing(t *testing.T) {
	var hs *HealthServer
	hs.SetServing(true)
}
