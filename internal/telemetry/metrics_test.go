package telemetry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"hostwatch/internal/metrics"
)

func TestMetricsCollectorSeries(t *testing.T) {
	m := New()

	m.CycleCompleted(3)
	m.SampleFailed()
	m.InsertFailed()
	m.SamplePersisted(metrics.Sample{CPUTemperature: 51, CPUUsage: 12, RecordedAt: time.Unix(1700000000, 0)})
	m.RotationFinished(4, nil)
	m.RotationFinished(0, errors.New("locked"))
	m.DiskChecked(86)
	m.Halted()

	if got := testutil.ToFloat64(m.cycles); got != 1 {
		t.Fatalf("cycles=%v want 1", got)
	}
	if got := testutil.ToFloat64(m.rotationCounter); got != 3 {
		t.Fatalf("rotation counter=%v want 3", got)
	}
	if got := testutil.ToFloat64(m.rotations.WithLabelValues("ok")); got != 1 {
		t.Fatalf("ok rotations=%v want 1", got)
	}
	if got := testutil.ToFloat64(m.rotations.WithLabelValues("error")); got != 1 {
		t.Fatalf("failed rotations=%v want 1", got)
	}
	if got := testutil.ToFloat64(m.rowsRotated); got != 4 {
		t.Fatalf("rotated rows=%v want 4", got)
	}
	if got := testutil.ToFloat64(m.lastSample.WithLabelValues("cpu_temperature")); got != 51 {
		t.Fatalf("cpu_temperature gauge=%v want 51", got)
	}
	if got := testutil.ToFloat64(m.lastSampleTime); got != 1700000000 {
		t.Fatalf("sample timestamp=%v want 1700000000", got)
	}
	if got := testutil.ToFloat64(m.diskGuardUsage); got != 86 {
		t.Fatalf("disk usage=%v want 86", got)
	}
}

func TestMetricsHandlerExposesRequests(t *testing.T) {
	m := New()
	done := m.RequestStarted(http.MethodGet, "/api/current")
	done(http.StatusOK)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `hostwatch_http_requests_total{method="GET",route="/api/current",status="200"} 1`) {
		t.Fatalf("expected request counter in exposition, got:\n%s", body)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.CycleCompleted(1)
	m.SamplePersisted(metrics.Sample{})
	m.RotationFinished(1, nil)
	m.RequestStarted(http.MethodGet, "/")(http.StatusOK)
	if m.Registry() != nil {
		t.Fatal("expected nil registry")
	}
}
