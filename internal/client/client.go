// Package client provides the interface the crater CLI uses to talk to a
// crater server and an HTTP/JSON implementation of it.
package client

import (
	"context"

	"github.com/alfredjeanlab/crater/internal/inflight"
	"github.com/alfredjeanlab/crater/internal/model"
	"github.com/alfredjeanlab/crater/internal/report"
)

// CraterClient is the interface that all crater CLI commands use to
// communicate with the server.
type CraterClient interface {
	// Reports
	CurrentToolchains(ctx context.Context, date string) (*report.CurrentReport, error)
	ComparisonReport(ctx context.Context, from, to string) (*report.ComparisonReport, error)
	WeeklyReport(ctx context.Context, date string) (*report.WeeklyReport, error)
	PopularityReport(ctx context.Context, limit int) (*report.PopularityReport, error)
	ToolchainReport(ctx context.Context, toolchain string) (*report.ToolchainReport, error)

	// Results and toolchains
	ListToolchains(ctx context.Context) (*ToolchainsResponse, error)
	GetResults(ctx context.Context, toolchain string) (*ResultsResponse, error)
	GetResult(ctx context.Context, key model.BuildResultKey) (*model.BuildResult, error)

	// Builds
	ListCustomBuilds(ctx context.Context) ([]*model.CustomToolchain, error)
	CustomBuild(ctx context.Context, repoURL, commit string) (*model.CustomToolchain, error)
	CrateBuild(ctx context.Context, req *CrateBuildRequest) (*CrateBuildResponse, error)
	ListTasks(ctx context.Context) (*TasksResponse, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// ToolchainsResponse is the response from ListToolchains.
type ToolchainsResponse struct {
	Available   model.Channels `json:"available"`
	WithResults []string       `json:"with_results"`
}

// ResultsResponse is the response from GetResults.
type ResultsResponse struct {
	Results []*model.BuildResult `json:"results"`
	Total   int                  `json:"total"`
}

// CrateBuildRequest holds parameters for scheduling a crate build.
type CrateBuildRequest struct {
	Toolchain      string `json:"toolchain"`
	MostRecentOnly bool   `json:"most_recent_only"`
	Cutoff         string `json:"cutoff,omitempty"`
}

// CrateBuildResponse is the response from CrateBuild.
type CrateBuildResponse struct {
	Toolchain      string `json:"toolchain"`
	MostRecentOnly bool   `json:"most_recent_only"`
	Tasks          int    `json:"tasks"`
}

// TasksResponse is the response from ListTasks.
type TasksResponse struct {
	Tasks []inflight.Entry `json:"tasks"`
	Total int              `json:"total"`
	Lost  int              `json:"lost"`
}
