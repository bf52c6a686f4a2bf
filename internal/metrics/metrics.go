// Package metrics holds the Prometheus collectors shared by the server,
// the monitor and the archive scheduler. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Pipeline metrics
	ResultsRecordedTotal     *prometheus.CounterVec
	PayloadsRejectedTotal    *prometheus.CounterVec
	TasksScheduledTotal      *prometheus.CounterVec
	RegistryQuarantinedTotal prometheus.Counter

	// Report metrics
	ReportDuration   *prometheus.HistogramVec
	ArchiveRunsTotal *prometheus.CounterVec
}

// New creates and registers all metrics with registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crater_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crater_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		ResultsRecordedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crater_results_recorded_total",
				Help: "Total number of build results recorded",
			},
			[]string{"outcome"},
		),
		PayloadsRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crater_bus_payloads_rejected_total",
				Help: "Total number of bus payloads that failed to decode or validate",
			},
			[]string{"topic"},
		),
		TasksScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crater_tasks_scheduled_total",
				Help: "Total number of build tasks published",
			},
			[]string{"channel"},
		),
		RegistryQuarantinedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crater_registry_quarantined_lines_total",
				Help: "Total number of malformed registry descriptor lines skipped",
			},
		),
		ReportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crater_report_duration_seconds",
				Help:    "Report assembly duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"report"},
		),
		ArchiveRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crater_archive_runs_total",
				Help: "Total number of report archive writes",
			},
			[]string{"destination", "status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ResultsRecordedTotal,
		m.PayloadsRejectedTotal,
		m.TasksScheduledTotal,
		m.RegistryQuarantinedTotal,
		m.ReportDuration,
		m.ArchiveRunsTotal,
	)

	return m
}

// ResultRecorded counts a stored build result.
func (m *Metrics) ResultRecorded(outcome string) {
	if m == nil {
		return
	}
	m.ResultsRecordedTotal.WithLabelValues(outcome).Inc()
}

// PayloadRejected counts a bus payload that could not be used.
func (m *Metrics) PayloadRejected(topic string) {
	if m == nil {
		return
	}
	m.PayloadsRejectedTotal.WithLabelValues(topic).Inc()
}

// TasksScheduled counts published build tasks.
func (m *Metrics) TasksScheduled(channel string, n int) {
	if m == nil {
		return
	}
	m.TasksScheduledTotal.WithLabelValues(channel).Add(float64(n))
}

// RegistryQuarantined counts skipped registry lines.
func (m *Metrics) RegistryQuarantined(n int) {
	if m == nil {
		return
	}
	m.RegistryQuarantinedTotal.Add(float64(n))
}

// ObserveReport records how long a report took to assemble.
func (m *Metrics) ObserveReport(report string, d time.Duration) {
	if m == nil {
		return
	}
	m.ReportDuration.WithLabelValues(report).Observe(d.Seconds())
}

// ArchiveRun counts one archive write to a destination.
func (m *Metrics) ArchiveRun(destination string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ArchiveRunsTotal.WithLabelValues(destination, status).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush passes through to the underlying writer so event streams work
// behind the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware instruments HTTP requests. Requests are labelled by their
// route pattern so that path parameters do not create new series.
func Middleware(m *Metrics, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(rw.statusCode)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
