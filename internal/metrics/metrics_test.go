package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ResultRecorded("success")
	m.PayloadRejected("crater.task.completed")
	m.TasksScheduled("nightly", 3)
	m.RegistryQuarantined(1)
	m.ObserveReport("weekly", time.Second)
	m.ArchiveRun("s3", nil)

	h := Middleware(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ResultRecorded("success")
	m.ResultRecorded("success")
	m.ResultRecorded("failure")
	if got := testutil.ToFloat64(m.ResultsRecordedTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("results{success} = %v, want 2", got)
	}

	m.TasksScheduled("beta", 5)
	if got := testutil.ToFloat64(m.TasksScheduledTotal.WithLabelValues("beta")); got != 5 {
		t.Errorf("tasks{beta} = %v, want 5", got)
	}

	m.ArchiveRun("git", errors.New("push rejected"))
	if got := testutil.ToFloat64(m.ArchiveRunsTotal.WithLabelValues("git", "error")); got != 1 {
		t.Errorf("archive{git,error} = %v, want 1", got)
	}

	m.RegistryQuarantined(4)
	if got := testutil.ToFloat64(m.RegistryQuarantinedTotal); got != 4 {
		t.Errorf("quarantined = %v, want 4", got)
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/results/{toolchain}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	mux.Handle("GET /metrics", Handler(registry))
	srv := httptest.NewServer(Middleware(m, mux))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/results/nightly-2015-03-01")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "GET /v1/results/{toolchain}", "418"))
	if got != 1 {
		t.Errorf("http_requests_total = %v, want 1", got)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "crater_http_requests_total") {
		t.Error("metrics output missing crater_http_requests_total")
	}
}
