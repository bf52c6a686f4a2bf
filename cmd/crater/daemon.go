package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alfredjeanlab/crater/internal/config"
	"github.com/alfredjeanlab/crater/internal/dist"
	"github.com/alfredjeanlab/crater/internal/events"
	"github.com/alfredjeanlab/crater/internal/fetch"
	"github.com/alfredjeanlab/crater/internal/metrics"
	"github.com/alfredjeanlab/crater/internal/registry"
)

// indexSyncInterval is how often a running server refreshes the crate index.
const indexSyncInterval = time.Hour

// collaborators are the upstream sources shared by the daemons.
type collaborators struct {
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	index    *registry.Index
	dist     *dist.Client
}

func newCollaborators(cfg *config.Config, customs dist.CustomToolchains, logger *slog.Logger) *collaborators {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	getter := fetch.NewBreakerFetcher(fetch.NewFetcher())
	return &collaborators{
		registry: reg,
		metrics:  m,
		index:    registry.New(cfg.IndexAddr, cfg.CacheDir, getter, m, logger),
		dist:     dist.New(cfg.DistAddr, getter, customs),
	}
}

// newPublisher connects to NATS, or returns a no-op publisher when no URL is
// configured.
func newPublisher(url string, logger *slog.Logger) (events.Publisher, error) {
	if url == "" {
		logger.Info("events disabled (CRATER_NATS_URL not set)")
		return &events.NoopPublisher{}, nil
	}
	pub, err := events.NewNATSPublisher(url)
	if err != nil {
		return nil, err
	}
	logger.Info("events enabled", "nats_url", url)
	return pub, nil
}

// syncIndex keeps the local crate index current until ctx is cancelled.
func syncIndex(ctx context.Context, index *registry.Index, interval time.Duration, logger *slog.Logger) {
	sync := func() {
		start := time.Now()
		if err := index.Sync(ctx); err != nil {
			logger.Error("crate index sync failed", "err", err)
			return
		}
		logger.Info("crate index synced", "path", index.LocalPath(), "duration", time.Since(start))
	}

	sync()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sync()
		}
	}
}
