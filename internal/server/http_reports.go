package server

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/crater/internal/model"
	"github.com/alfredjeanlab/crater/internal/report"
)

// writeReport writes rep as JSON, or as markdown when the request asks for
// ?format=markdown.
func writeReport[T any](w http.ResponseWriter, r *http.Request, rep *T, render func(io.Writer, *T) error) {
	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, rep)
	case "markdown", "md":
		var buf bytes.Buffer
		if err := render(&buf, rep); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	default:
		writeError(w, http.StatusBadRequest, "format must be json or markdown")
	}
}

// dateParam returns ?date=, defaulting to today.
func (s *CraterServer) dateParam(r *http.Request) string {
	if d := r.URL.Query().Get("date"); d != "" {
		return d
	}
	return s.today()
}

// handleCurrentToolchains handles GET /v1/toolchains/current.
func (s *CraterServer) handleCurrentToolchains(w http.ResponseWriter, r *http.Request) {
	rep, err := s.reports.Current(r.Context(), s.dateParam(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeReport(w, r, rep, report.RenderCurrent)
}

// handleComparisonReport handles GET /v1/reports/comparison.
func (s *CraterServer) handleComparisonReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := model.ParseToolchain(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from: "+err.Error())
		return
	}
	to, err := model.ParseToolchain(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to: "+err.Error())
		return
	}

	rep, err := s.reports.Comparison(r.Context(), &from, &to)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeReport(w, r, rep, report.RenderComparison)
}

// handleWeeklyReport handles GET /v1/reports/weekly.
func (s *CraterServer) handleWeeklyReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.reports.Weekly(r.Context(), s.dateParam(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeReport(w, r, rep, report.RenderWeekly)
}

// handlePopularityReport handles GET /v1/reports/popularity.
func (s *CraterServer) handlePopularityReport(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	rep, err := s.reports.Popularity(r.Context(), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeReport(w, r, rep, report.RenderPopularity)
}

// handleToolchainReport handles GET /v1/reports/toolchain/{toolchain}.
func (s *CraterServer) handleToolchainReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.reports.Toolchain(r.Context(), r.PathValue("toolchain"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeReport(w, r, rep, report.RenderToolchain)
}
