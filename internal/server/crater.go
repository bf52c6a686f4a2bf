package server

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/alfredjeanlab/crater/internal/inflight"
	"github.com/alfredjeanlab/crater/internal/metrics"
	"github.com/alfredjeanlab/crater/internal/model"
	"github.com/alfredjeanlab/crater/internal/report"
	"github.com/alfredjeanlab/crater/internal/store"
)

// Reports assembles the regression reports served over HTTP.
type Reports interface {
	Current(ctx context.Context, date string) (*report.CurrentReport, error)
	Comparison(ctx context.Context, from, to *model.Toolchain) (*report.ComparisonReport, error)
	Weekly(ctx context.Context, date string) (*report.WeeklyReport, error)
	Popularity(ctx context.Context, limit int) (*report.PopularityReport, error)
	Toolchain(ctx context.Context, toolchain string) (*report.ToolchainReport, error)
}

// Builds schedules build work.
type Builds interface {
	CustomBuild(ctx context.Context, repoURL, commit string) (*model.CustomToolchain, error)
	CrateBuild(ctx context.Context, tc model.Toolchain, mostRecentOnly bool, cutoff time.Time) ([]*model.BuildTask, error)
}

// Toolchains lists the published toolchain archive.
type Toolchains interface {
	AvailableToolchains(ctx context.Context) (model.Channels, error)
}

// Tasks lists the build tasks awaiting a result.
type Tasks interface {
	Snapshot() []inflight.Entry
}

// CraterServer serves reports, results and build requests.
type CraterServer struct {
	store      store.Store
	reports    Reports
	builds     Builds
	toolchains Toolchains
	metrics    *metrics.Metrics
	hub        *eventHub
	tasks      atomic.Pointer[Tasks]

	now func() time.Time
}

// NewCraterServer returns a server over the given collaborators; m may be nil.
func NewCraterServer(s store.Store, r Reports, b Builds, t Toolchains, m *metrics.Metrics) *CraterServer {
	return &CraterServer{
		store:      s,
		reports:    r,
		builds:     b,
		toolchains: t,
		metrics:    m,
		hub:        newEventHub(),
		now:        time.Now,
	}
}

// ServeTasks exposes t on GET /v1/tasks. Without it the endpoint reports
// that tracking is disabled. It is safe to call while serving.
func (s *CraterServer) ServeTasks(t Tasks) {
	s.tasks.Store(&t)
}

// today is the default report date.
func (s *CraterServer) today() string {
	return s.now().UTC().Format(model.DateLayout)
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// errorStatus maps an error to an HTTP status code.
func errorStatus(err error) int {
	var (
		ie inputError
		ve *model.ValidationError
	)
	switch {
	case errors.As(err, &ie), errors.As(err, &ve),
		errors.Is(err, model.ErrInvalidToolchain), errors.Is(err, report.ErrInvalidDate):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
