package server

import (
	"encoding/json"
	"net/http"

	"github.com/alfredjeanlab/crater/internal/metrics"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health and
// GET /metrics) must include a valid Authorization: Bearer <token> header.
// metricsHandler may be nil to leave /metrics unserved.
func (s *CraterServer) NewHTTPHandler(authToken string, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/toolchains", s.handleListToolchains)
	mux.HandleFunc("GET /v1/toolchains/current", s.handleCurrentToolchains)
	mux.HandleFunc("GET /v1/reports/comparison", s.handleComparisonReport)
	mux.HandleFunc("GET /v1/reports/weekly", s.handleWeeklyReport)
	mux.HandleFunc("GET /v1/reports/popularity", s.handlePopularityReport)
	mux.HandleFunc("GET /v1/reports/toolchain/{toolchain}", s.handleToolchainReport)
	mux.HandleFunc("GET /v1/results/{toolchain}", s.handleGetResults)
	mux.HandleFunc("GET /v1/results/{toolchain}/{crate}/{vers}", s.handleGetResult)
	mux.HandleFunc("GET /v1/custom-builds", s.handleListCustomBuilds)
	mux.HandleFunc("POST /v1/custom-builds", s.handleCustomBuild)
	mux.HandleFunc("POST /v1/crate-builds", s.handleCrateBuild)
	mux.HandleFunc("GET /v1/tasks", s.handleListTasks)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	return AuthMiddleware(authToken, metrics.Middleware(s.metrics, mux))
}

// handleHealth handles GET /v1/health.
func (s *CraterServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeErr writes err with the status errorStatus picks for it.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, errorStatus(err), err.Error())
}
