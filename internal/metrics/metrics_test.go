package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilRegistryIsSafe(t *testing.T) {
	var r *Registry
	r.IngestOutcome("authorized")
	r.ClassifierFailure()
	r.AlertEnqueued()
	r.SetQueueDepth(3)
	r.AlertDelivery(ResultDelivered, time.Second)
	r.CallbackAction("auth", true)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 from nil registry handler, got %d", rec.Code)
	}
}

func TestCounters(t *testing.T) {
	r := New()
	r.IngestOutcome("intruder_detected")
	r.IngestOutcome("intruder_detected")
	r.IngestOutcome("no_faces")
	r.ClassifierFailure()
	r.AlertEnqueued()
	r.SetQueueDepth(7)
	r.AlertDelivery(ResultFailed, 10*time.Millisecond)
	r.CallbackAction("auth", false)

	if got := testutil.ToFloat64(r.ingest.WithLabelValues("intruder_detected")); got != 2 {
		t.Errorf("ingest intruder_detected = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.ingest.WithLabelValues("no_faces")); got != 1 {
		t.Errorf("ingest no_faces = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.classifierFailures); got != 1 {
		t.Errorf("classifier failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.queueDepth); got != 7 {
		t.Errorf("queue depth = %v, want 7", got)
	}
	if got := testutil.ToFloat64(r.deliveries.WithLabelValues(ResultFailed)); got != 1 {
		t.Errorf("failed deliveries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.callbackActions.WithLabelValues("auth", "failed")); got != 1 {
		t.Errorf("auth failed callbacks = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.AlertEnqueued()

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, name := range []string{"securenet_alerts_enqueued_total 1", "securenet_alert_queue_depth", "go_goroutines"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %q", name)
		}
	}
}
