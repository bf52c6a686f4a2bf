// Package schedule turns a toolchain and a set of package versions into
// build tasks and publishes them onto the bus for workers to pick up.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/crater/internal/analysis"
	"github.com/alfredjeanlab/crater/internal/events"
	"github.com/alfredjeanlab/crater/internal/idgen"
	"github.com/alfredjeanlab/crater/internal/metrics"
	"github.com/alfredjeanlab/crater/internal/model"
	"github.com/alfredjeanlab/crater/internal/registry"
)

// Task limits handed to workers.
const (
	Deadline   = 60 * time.Minute
	MaxRunTime = 600 // seconds
)

// Installers resolves toolchains to installer download URLs.
type Installers interface {
	InstallerURL(ctx context.Context, tc model.Toolchain, triple string) (string, error)
}

// Registry provides the package versions to schedule and where their
// sources are downloaded from.
type Registry interface {
	LoadPackages(ctx context.Context) ([]model.PackageVersion, error)
	FilterOutOld(ctx context.Context, pvs []model.PackageVersion, cutoff time.Time) ([]model.PackageVersion, error)
	DownloadRoot(ctx context.Context) (string, error)
}

// CustomToolchains records requested custom toolchain builds.
type CustomToolchains interface {
	AddCustomToolchain(ctx context.Context, tc *model.CustomToolchain) error
}

// Scheduler creates and publishes build tasks.
type Scheduler struct {
	installers Installers
	registry   Registry
	customs    CustomToolchains
	publisher  events.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger

	triple string
	cutoff time.Time
	now    func() time.Time
}

// Config holds the Scheduler's collaborators. Metrics may be nil.
type Config struct {
	Installers Installers
	Registry   Registry
	Customs    CustomToolchains
	Publisher  events.Publisher
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Triple     string

	// Cutoff excludes versions published before it. Zero means
	// registry.DefaultCutoff.
	Cutoff time.Time
}

// New creates a Scheduler. A nil publisher drops every task.
func New(cfg Config) *Scheduler {
	pub := cfg.Publisher
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cutoff := cfg.Cutoff
	if cutoff.IsZero() {
		cutoff = registry.DefaultCutoff
	}
	return &Scheduler{
		installers: cfg.Installers,
		registry:   cfg.Registry,
		customs:    cfg.Customs,
		publisher:  pub,
		metrics:    cfg.Metrics,
		logger:     logger,
		triple:     cfg.Triple,
		cutoff:     cutoff,
		now:        time.Now,
	}
}

// Create builds one task per package version. Nothing is published.
func (s *Scheduler) Create(ctx context.Context, tc model.Toolchain, pvs []model.PackageVersion, dlRoot string) ([]*model.BuildTask, error) {
	installer, err := s.installers.InstallerURL(ctx, tc, s.triple)
	if err != nil {
		return nil, fmt.Errorf("installer for %s: %w", tc, err)
	}

	created := s.now().UTC()
	tasks := make([]*model.BuildTask, 0, len(pvs))
	for _, pv := range pvs {
		id, err := idgen.TaskID()
		if err != nil {
			return nil, err
		}
		crateURL := registry.CrateURL(dlRoot, pv.Name, pv.Version)
		tasks = append(tasks, &model.BuildTask{
			TaskID:       id,
			Name:         fmt.Sprintf("%s-vs-%s-%s", tc, pv.Name, pv.Version),
			Toolchain:    tc.String(),
			CrateName:    pv.Name,
			CrateVers:    pv.Version,
			InstallerURL: installer,
			CrateURL:     crateURL,
			Created:      created,
			Deadline:     created.Add(Deadline),
			MaxRunTime:   MaxRunTime,
			Env: map[string]string{
				model.EnvRustInstaller: installer,
				model.EnvCrateFile:     crateURL,
			},
		})
	}
	return tasks, nil
}

// Publish sends every task onto the bus. It stops at the first failure and
// reports how many tasks were published.
func (s *Scheduler) Publish(ctx context.Context, tasks []*model.BuildTask) (int, error) {
	published := 0
	defer func() {
		if published > 0 {
			s.metrics.TasksScheduled(channelOf(tasks[0].Toolchain), published)
		}
	}()
	for _, task := range tasks {
		if err := s.publisher.Publish(ctx, events.TopicTaskScheduled, events.TaskScheduled{Task: task}); err != nil {
			return published, fmt.Errorf("publish task %s: %w", task.TaskID, err)
		}
		published++
	}
	return published, nil
}

// CrateBuild schedules every package version in the registry against tc.
// With mostRecentOnly, only the newest version of each package is built.
// Versions published before cutoff (the scheduler's own when zero) and
// versions whose dependencies cannot be satisfied are never scheduled.
func (s *Scheduler) CrateBuild(ctx context.Context, tc model.Toolchain, mostRecentOnly bool, cutoff time.Time) ([]*model.BuildTask, error) {
	if cutoff.IsZero() {
		cutoff = s.cutoff
	}
	pvs, err := s.registry.LoadPackages(ctx)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}
	recent, err := s.registry.FilterOutOld(ctx, pvs, cutoff)
	if err != nil {
		return nil, fmt.Errorf("filter old versions: %w", err)
	}
	dlRoot, err := s.registry.DownloadRoot(ctx)
	if err != nil {
		return nil, err
	}

	catalog, broken := analysis.NewCatalog(recent).WithoutBrokenDeps()
	noDeps, hasDeps := catalog.Classify()
	s.logger.Info("schedule: catalog loaded",
		"versions", catalog.Len(), "old", len(pvs)-len(recent), "broken", len(broken),
		"no_deps", len(noDeps), "has_deps", len(hasDeps), "cutoff", cutoff.Format(time.DateOnly))

	selected := catalog.Versions()
	if mostRecentOnly {
		latest := catalog.MostRecentVersions()
		selected = make([]model.PackageVersion, 0, len(latest))
		for _, name := range catalog.Names() {
			selected = append(selected, latest[name])
		}
	}

	tasks, err := s.Create(ctx, tc, selected, dlRoot)
	if err != nil {
		return nil, err
	}
	s.logger.Info("schedule: crate build",
		"toolchain", tc.String(), "tasks", len(tasks), "most_recent_only", mostRecentOnly)

	req := events.CrateBuildsRequested{Toolchain: tc.String(), MostRecentOnly: mostRecentOnly, Tasks: len(tasks)}
	if err := s.publisher.Publish(ctx, events.TopicCrateBuildsRequested, req); err != nil {
		return nil, fmt.Errorf("publish crate build request: %w", err)
	}
	if _, err := s.Publish(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CustomBuild records a request to build the compiler from repoURL at
// commit and announces it on the bus.
func (s *Scheduler) CustomBuild(ctx context.Context, repoURL, commit string) (*model.CustomToolchain, error) {
	tc, err := model.ParseToolchain(string(model.ChannelCustom) + "-" + commit)
	if err != nil {
		return nil, err
	}
	if repoURL == "" {
		return nil, &model.ValidationError{Errors: []model.FieldError{{Field: "url", Message: "is required"}}}
	}
	id, err := idgen.CustomBuildID()
	if err != nil {
		return nil, err
	}

	custom := &model.CustomToolchain{Toolchain: tc.String(), URL: repoURL, TaskID: id}
	if err := s.customs.AddCustomToolchain(ctx, custom); err != nil {
		return nil, fmt.Errorf("record custom toolchain: %w", err)
	}
	ev := events.CustomBuildRequested{Toolchain: custom.Toolchain, URL: repoURL, Commit: commit, TaskID: id}
	if err := s.publisher.Publish(ctx, events.TopicCustomBuildRequested, ev); err != nil {
		return nil, fmt.Errorf("publish custom build: %w", err)
	}
	s.logger.Info("schedule: custom build requested", "toolchain", custom.Toolchain, "task_id", id)
	return custom, nil
}

func channelOf(toolchain string) string {
	tc, err := model.ParseToolchain(toolchain)
	if err != nil {
		return "unknown"
	}
	return string(tc.Channel)
}
