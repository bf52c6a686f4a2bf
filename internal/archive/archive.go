// Package archive periodically exports the weekly report and writes it to
// long-term destinations such as an S3 bucket or a git repository.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alfredjeanlab/crater/internal/metrics"
	"github.com/alfredjeanlab/crater/internal/model"
)

// DefaultSchedule runs the archive every Monday at 06:00 UTC.
const DefaultSchedule = "0 6 * * 1"

// Destination is an archive target.
type Destination interface {
	// Name identifies the destination in logs and metrics.
	Name() string
	// Write stores data under key, replacing any previous content.
	Write(ctx context.Context, key string, data []byte) error
}

// Scheduler runs the archive on a cron schedule.
type Scheduler struct {
	reports      WeeklySource
	destinations []Destination
	schedule     cron.Schedule
	metrics      *metrics.Metrics
	logger       *slog.Logger
	now          func() time.Time

	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler that archives the weekly report to the
// given destinations on spec, a standard five-field cron expression.
func NewScheduler(reports WeeklySource, destinations []Destination, spec string, m *metrics.Metrics, logger *slog.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("archive schedule %q: %w", spec, err)
	}
	return &Scheduler{
		reports:      reports,
		destinations: destinations,
		schedule:     schedule,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
	}, nil
}

// Start begins scheduled archiving.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.cron = cron.New(cron.WithLocation(time.UTC))
	s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("archive run failed", "err", err)
		}
	}))
	s.cron.Start()
	s.logger.Info("archive scheduler started", "next", s.schedule.Next(s.now().UTC()), "destinations", len(s.destinations))
}

// Stop cancels any running archive and waits for it to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RunOnce exports the weekly report for today and writes it to every
// destination. A failing destination does not stop the others; the first
// error is returned.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	date := s.now().UTC().Format(model.DateLayout)

	var buf bytes.Buffer
	if err := ExportWeekly(ctx, s.reports, date, &buf); err != nil {
		return fmt.Errorf("export weekly report: %w", err)
	}
	data := buf.Bytes()
	key := ObjectKey(date)

	var firstErr error
	for _, dest := range s.destinations {
		err := dest.Write(ctx, key, data)
		s.metrics.ArchiveRun(dest.Name(), err)
		if err != nil {
			s.logger.Error("archive destination write failed", "destination", dest.Name(), "err", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", dest.Name(), err)
			}
		}
	}

	s.logger.Info("archive completed", "key", key, "destinations", len(s.destinations), "bytes", len(data))
	return firstErr
}

// ObjectKey is where the weekly report for date is archived.
func ObjectKey(date string) string {
	return "weekly/" + date + ".jsonl"
}
