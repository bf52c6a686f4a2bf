// Package report assembles the regression reports from the registry
// catalog, the toolchain archive and the recorded build results.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/package-url/packageurl-go"
	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/crater/internal/analysis"
	"github.com/alfredjeanlab/crater/internal/metrics"
	"github.com/alfredjeanlab/crater/internal/model"
)

// ErrInvalidDate is returned for report dates not in YYYY-MM-DD form.
var ErrInvalidDate = errors.New("invalid date")

// PackageSource provides the registry snapshot.
type PackageSource interface {
	LoadPackages(ctx context.Context) ([]model.PackageVersion, error)
}

// ToolchainSource provides the published toolchain archive dates.
type ToolchainSource interface {
	AvailableToolchains(ctx context.Context) (model.Channels, error)
}

// ResultSource provides recorded build results.
type ResultSource interface {
	GetResults(ctx context.Context, toolchain string) ([]*model.BuildResult, error)
	GetResultPairs(ctx context.Context, from, to string) ([]model.ResultPair, error)
}

// Assembler builds reports. It holds no report state of its own; every
// call loads a fresh snapshot from its sources.
type Assembler struct {
	packages   PackageSource
	toolchains ToolchainSource
	results    ResultSource

	dropBrokenDeps bool
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithDropBrokenDeps removes package versions with unsatisfiable
// dependencies from the catalog before the dependency graph is built.
func WithDropBrokenDeps(drop bool) Option {
	return func(a *Assembler) {
		a.dropBrokenDeps = drop
	}
}

// WithMetrics records report durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Assembler) {
		a.metrics = m
	}
}

// WithLogger sets the logger used for report diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assembler) {
		a.logger = l
	}
}

// NewAssembler creates an Assembler over the given sources.
func NewAssembler(p PackageSource, t ToolchainSource, r ResultSource, opts ...Option) *Assembler {
	a := &Assembler{
		packages:   p,
		toolchains: t,
		results:    r,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Entry is one package version in a report.
type Entry struct {
	Name       string       `json:"name"`
	Version    string       `json:"version"`
	PURL       string       `json:"purl"`
	Popularity int          `json:"popularity"`
	Status     model.Status `json:"status,omitempty"`
}

// CurrentReport names the newest toolchain of each channel before Date.
type CurrentReport struct {
	Date    string           `json:"date"`
	Nightly *model.Toolchain `json:"nightly"`
	Beta    *model.Toolchain `json:"beta"`
	Stable  *model.Toolchain `json:"stable"`
}

// ComparisonReport classifies every package version built with both
// toolchains. Regressions are split into roots, which are worth
// investigating, and non-roots, which depend on another regressed package.
type ComparisonReport struct {
	From               string        `json:"from"`
	To                 string        `json:"to"`
	Summary            model.Summary `json:"summary"`
	RootRegressions    []Entry       `json:"root_regressions"`
	NonRootRegressions []Entry       `json:"non_root_regressions"`
	Fixed              []Entry       `json:"fixed"`
}

// WeeklyReport compares the current release channels against each other.
type WeeklyReport struct {
	Date    string           `json:"date"`
	Current CurrentReport    `json:"current"`
	Beta    ComparisonReport `json:"beta"`
	Nightly ComparisonReport `json:"nightly"`
}

// PopularityReport ranks packages by the number of packages depending on them.
type PopularityReport struct {
	Packages []analysis.PackageRank `json:"packages"`
}

// ToolchainReport summarizes the results recorded for one toolchain.
type ToolchainReport struct {
	Toolchain string  `json:"toolchain"`
	Successes int     `json:"successes"`
	Unknown   int     `json:"unknown"`
	Failures  []Entry `json:"failures"`
}

// Current returns the newest toolchain of each channel strictly before date
// (YYYY-MM-DD).
func (a *Assembler) Current(ctx context.Context, date string) (*CurrentReport, error) {
	defer a.observe("current", time.Now())
	return a.current(ctx, date)
}

func (a *Assembler) current(ctx context.Context, date string) (*CurrentReport, error) {
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	channels, err := a.toolchains.AvailableToolchains(ctx)
	if err != nil {
		return nil, fmt.Errorf("available toolchains: %w", err)
	}
	return &CurrentReport{
		Date:    date,
		Nightly: channels.LatestBefore(model.ChannelNightly, date),
		Beta:    channels.LatestBefore(model.ChannelBeta, date),
		Stable:  channels.LatestBefore(model.ChannelStable, date),
	}, nil
}

// Comparison compares two toolchains. A nil toolchain yields an empty
// report rather than an error.
func (a *Assembler) Comparison(ctx context.Context, from, to *model.Toolchain) (*ComparisonReport, error) {
	defer a.observe("comparison", time.Now())

	if from == nil || to == nil {
		return emptyComparison(from, to), nil
	}

	var (
		view  *catalogView
		pairs []model.ResultPair
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		view, err = a.loadView(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		pairs, err = a.results.GetResultPairs(gctx, from.String(), to.String())
		if err != nil {
			return fmt.Errorf("result pairs: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return view.compare(from, to, pairs), nil
}

// Weekly compares stable against beta and beta against nightly, using the
// toolchains current at date.
func (a *Assembler) Weekly(ctx context.Context, date string) (*WeeklyReport, error) {
	defer a.observe("weekly", time.Now())

	cur, err := a.current(ctx, date)
	if err != nil {
		return nil, err
	}

	var (
		view                    *catalogView
		betaPairs, nightlyPairs []model.ResultPair
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		view, err = a.loadView(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		betaPairs, err = a.pairs(gctx, cur.Stable, cur.Beta)
		return err
	})
	g.Go(func() error {
		var err error
		nightlyPairs, err = a.pairs(gctx, cur.Beta, cur.Nightly)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &WeeklyReport{
		Date:    date,
		Current: *cur,
		Beta:    *view.compare(cur.Stable, cur.Beta, betaPairs),
		Nightly: *view.compare(cur.Beta, cur.Nightly, nightlyPairs),
	}, nil
}

// pairs loads result pairs, returning none when either toolchain is missing.
func (a *Assembler) pairs(ctx context.Context, from, to *model.Toolchain) ([]model.ResultPair, error) {
	if from == nil || to == nil {
		return nil, nil
	}
	pairs, err := a.results.GetResultPairs(ctx, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("result pairs %s..%s: %w", from, to, err)
	}
	return pairs, nil
}

// Popularity ranks every package in the catalog. A positive limit keeps
// only the first limit packages.
func (a *Assembler) Popularity(ctx context.Context, limit int) (*PopularityReport, error) {
	defer a.observe("popularity", time.Now())

	view, err := a.loadView(ctx)
	if err != nil {
		return nil, err
	}
	ranked := view.popularity.Ranked(view.catalog.Names())
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return &PopularityReport{Packages: ranked}, nil
}

// Toolchain summarizes one toolchain's results, listing failures by
// descending popularity.
func (a *Assembler) Toolchain(ctx context.Context, toolchain string) (*ToolchainReport, error) {
	defer a.observe("toolchain", time.Now())

	tc, err := model.ParseToolchain(toolchain)
	if err != nil {
		return nil, err
	}

	var (
		view    *catalogView
		results []*model.BuildResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		view, err = a.loadView(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		results, err = a.results.GetResults(gctx, tc.String())
		if err != nil {
			return fmt.Errorf("results: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep := &ToolchainReport{Toolchain: tc.String(), Failures: []Entry{}}
	var failed []model.StatusEntry
	for _, r := range results {
		switch r.Outcome {
		case model.OutcomeSuccess:
			rep.Successes++
		case model.OutcomeFailure:
			failed = append(failed, model.StatusEntry{
				PackageName:    r.CrateName,
				PackageVersion: r.CrateVers,
				To:             model.OutcomeFailure,
			})
		default:
			rep.Unknown++
		}
	}
	rep.Failures = view.entries(analysis.SortByPopularity(failed, view.popularity))
	return rep, nil
}

func (a *Assembler) observe(report string, start time.Time) {
	a.metrics.ObserveReport(report, time.Since(start))
}

// catalogView is the part of a report derived from the registry snapshot.
type catalogView struct {
	catalog    *analysis.Catalog
	graph      *analysis.Graph
	popularity analysis.Popularity
}

func (a *Assembler) loadView(ctx context.Context) (*catalogView, error) {
	pvs, err := a.packages.LoadPackages(ctx)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}
	catalog := analysis.NewCatalog(pvs)
	if a.dropBrokenDeps {
		var broken []model.PackageVersion
		catalog, broken = catalog.WithoutBrokenDeps()
		if len(broken) > 0 {
			a.logger.Info("report: dropped versions with broken dependencies", "count", len(broken))
		}
	}
	graph := analysis.BuildDependencyGraph(catalog)
	return &catalogView{
		catalog:    catalog,
		graph:      graph,
		popularity: analysis.PopularityOf(catalog.Names(), graph),
	}, nil
}

func (v *catalogView) compare(from, to *model.Toolchain, pairs []model.ResultPair) *ComparisonReport {
	if from == nil || to == nil {
		return emptyComparison(from, to)
	}
	statuses := analysis.ClassifyPairs(from, to, pairs)
	roots, nonRoots := analysis.PartitionRegressions(
		analysis.FilterStatus(statuses, model.StatusRegressed), v.graph)
	fixed := analysis.FilterStatus(statuses, model.StatusFixed)

	return &ComparisonReport{
		From:               from.String(),
		To:                 to.String(),
		Summary:            analysis.Summarize(statuses),
		RootRegressions:    v.entries(analysis.SortByPopularity(roots, v.popularity)),
		NonRootRegressions: v.entries(analysis.SortByPopularity(nonRoots, v.popularity)),
		Fixed:              v.entries(analysis.SortByPopularity(fixed, v.popularity)),
	}
}

func (v *catalogView) entries(statuses []model.StatusEntry) []Entry {
	out := make([]Entry, len(statuses))
	for i, s := range statuses {
		out[i] = Entry{
			Name:       s.PackageName,
			Version:    s.PackageVersion,
			PURL:       PURL(s.PackageName, s.PackageVersion),
			Popularity: v.popularity[s.PackageName],
			Status:     s.Status,
		}
	}
	return out
}

func emptyComparison(from, to *model.Toolchain) *ComparisonReport {
	rep := &ComparisonReport{
		RootRegressions:    []Entry{},
		NonRootRegressions: []Entry{},
		Fixed:              []Entry{},
	}
	if from != nil {
		rep.From = from.String()
	}
	if to != nil {
		rep.To = to.String()
	}
	return rep
}

// PURL returns the package URL of a cargo package version.
func PURL(name, version string) string {
	return packageurl.NewPackageURL(packageurl.TypeCargo, "", name, version, nil, "").ToString()
}
