package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/alfredjeanlab/crater/internal/inflight"
	"github.com/alfredjeanlab/crater/internal/model"
)

// handleListToolchains handles GET /v1/toolchains. It lists the dated
// toolchains with results alongside the published archive and the
// requested custom toolchains.
func (s *CraterServer) handleListToolchains(w http.ResponseWriter, r *http.Request) {
	channels, err := s.toolchains.AvailableToolchains(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to list toolchains: "+err.Error())
		return
	}
	withResults, err := s.store.ListResultToolchains(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list result toolchains")
		return
	}
	if withResults == nil {
		withResults = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"available":    channels,
		"with_results": withResults,
	})
}

// handleGetResults handles GET /v1/results/{toolchain}.
func (s *CraterServer) handleGetResults(w http.ResponseWriter, r *http.Request) {
	tc, err := model.ParseToolchain(r.PathValue("toolchain"))
	if err != nil {
		writeErr(w, err)
		return
	}
	results, err := s.store.GetResults(r.Context(), tc.String())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get results")
		return
	}
	if results == nil {
		results = []*model.BuildResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "total": len(results)})
}

// handleGetResult handles GET /v1/results/{toolchain}/{crate}/{vers}.
func (s *CraterServer) handleGetResult(w http.ResponseWriter, r *http.Request) {
	key := model.BuildResultKey{
		Toolchain: r.PathValue("toolchain"),
		CrateName: r.PathValue("crate"),
		CrateVers: r.PathValue("vers"),
	}
	result, err := s.store.GetBuildResult(r.Context(), key)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListCustomBuilds handles GET /v1/custom-builds.
func (s *CraterServer) handleListCustomBuilds(w http.ResponseWriter, r *http.Request) {
	customs, err := s.store.ListCustomToolchains(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list custom builds")
		return
	}
	if customs == nil {
		customs = []*model.CustomToolchain{}
	}
	writeJSON(w, http.StatusOK, customs)
}

type customBuildInput struct {
	URL    string `json:"url"`
	Commit string `json:"commit"`
}

// handleCustomBuild handles POST /v1/custom-builds.
func (s *CraterServer) handleCustomBuild(w http.ResponseWriter, r *http.Request) {
	var in customBuildInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.URL == "" || in.Commit == "" {
		writeError(w, http.StatusBadRequest, "url and commit are required")
		return
	}

	custom, err := s.builds.CustomBuild(r.Context(), in.URL, in.Commit)
	if err != nil {
		slog.Warn("custom build failed", "url", in.URL, "commit", in.Commit, "err", err)
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, custom)
}

type crateBuildInput struct {
	Toolchain      string `json:"toolchain"`
	MostRecentOnly bool   `json:"most_recent_only"`
	Cutoff         string `json:"cutoff,omitempty"` // YYYY-MM-DD; empty uses the server default
}

// handleCrateBuild handles POST /v1/crate-builds.
func (s *CraterServer) handleCrateBuild(w http.ResponseWriter, r *http.Request) {
	var in crateBuildInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	tc, err := model.ParseToolchain(in.Toolchain)
	if err != nil {
		writeErr(w, err)
		return
	}

	var cutoff time.Time
	if in.Cutoff != "" {
		if cutoff, err = time.Parse(time.DateOnly, in.Cutoff); err != nil {
			writeError(w, http.StatusBadRequest, "cutoff must be a YYYY-MM-DD date")
			return
		}
	}

	tasks, err := s.builds.CrateBuild(r.Context(), tc, in.MostRecentOnly, cutoff)
	if err != nil {
		slog.Warn("crate build failed", "toolchain", tc.String(), "err", err)
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"toolchain":        tc.String(),
		"most_recent_only": in.MostRecentOnly,
		"tasks":            len(tasks),
	})
}

// handleListTasks handles GET /v1/tasks.
func (s *CraterServer) handleListTasks(w http.ResponseWriter, _ *http.Request) {
	tracked := s.tasks.Load()
	if tracked == nil {
		writeError(w, http.StatusServiceUnavailable, "task tracking is not enabled on this server")
		return
	}
	tasks := (*tracked).Snapshot()
	lost := 0
	for _, t := range tasks {
		if t.Lost {
			lost++
		}
	}
	if tasks == nil {
		tasks = []inflight.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks, "total": len(tasks), "lost": lost})
}
