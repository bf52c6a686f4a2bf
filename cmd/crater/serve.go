package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/crater/internal/archive"
	"github.com/alfredjeanlab/crater/internal/config"
	"github.com/alfredjeanlab/crater/internal/events"
	"github.com/alfredjeanlab/crater/internal/inflight"
	"github.com/alfredjeanlab/crater/internal/metrics"
	"github.com/alfredjeanlab/crater/internal/monitor"
	"github.com/alfredjeanlab/crater/internal/report"
	"github.com/alfredjeanlab/crater/internal/schedule"
	"github.com/alfredjeanlab/crater/internal/server"
	"github.com/alfredjeanlab/crater/internal/store/postgres"
)

var serveCmd = &cobra.Command{
	Use:               "serve",
	Short:             "Start the crater HTTP and gRPC servers",
	GroupID:           "system",
	PersistentPreRunE: skipClient,
	Args:              cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		withMonitor, _ := cmd.Flags().GetBool("monitor")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		publisher, err := newPublisher(cfg.NATSURL, logger)
		if err != nil {
			store.Close()
			return err
		}

		collab := newCollaborators(cfg, store, logger)
		assembler := report.NewAssembler(collab.index, collab.dist, store,
			report.WithDropBrokenDeps(cfg.DropBrokenDeps),
			report.WithMetrics(collab.metrics),
			report.WithLogger(logger),
		)
		scheduler := schedule.New(schedule.Config{
			Installers: collab.dist,
			Registry:   collab.index,
			Customs:    store,
			Publisher:  publisher,
			Metrics:    collab.metrics,
			Logger:     logger,
			Triple:     cfg.TargetTriple,
			Cutoff:     cfg.ScheduleCutoff,
		})
		craterServer := server.NewCraterServer(store, assembler, scheduler, collab.dist, collab.metrics)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go syncIndex(ctx, collab.index, indexSyncInterval, logger)

		// gRPC health.
		grpcServer, healthServer := server.NewGRPCServer(cfg.AuthToken)
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			publisher.Close()
			store.Close()
			return err
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		// Bus consumers: the event stream relay, and the result monitor. Both
		// are wired before the HTTP API starts serving.
		var tracker *inflight.Tracker
		if cfg.NATSURL != "" {
			sub, err := events.NewNATSSubscriber(cfg.NATSURL)
			if err != nil {
				logger.Error("failed to create event subscriber", "err", err)
			} else {
				defer sub.Close()
				go func() {
					if err := craterServer.RelayEvents(ctx, sub); err != nil {
						logger.Error("event relay error", "err", err)
					}
				}()
				if withMonitor {
					tracker = inflight.New()
					tracker.StartReaper(&inflight.ReaperConfig{OnLost: reportLost(ctx, publisher, logger)})
					craterServer.ServeTasks(tracker)

					handler := monitor.NewHandler(store, publisher, collab.metrics, logger)
					handler.TrackTasks(tracker)
					go func() {
						if err := handler.StartSubscriber(ctx, sub); err != nil {
							logger.Error("monitor error", "err", err)
						}
					}()
				}
			}
		}

		// HTTP API.
		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           craterServer.NewHTTPHandler(cfg.AuthToken, metrics.Handler(collab.registry)),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		archiver, err := newArchiver(ctx, cfg, assembler, collab.metrics, logger)
		if err != nil {
			logger.Error("archive disabled", "err", err)
		} else if archiver != nil {
			archiver.Start()
			logger.Info("archive scheduler started", "schedule", cfg.ArchiveSchedule)
		}

		logger.Info("crater server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"monitor", withMonitor && cfg.NATSURL != "",
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		healthServer.Shutdown()
		cancel()

		if tracker != nil {
			tracker.Stop()
		}

		if archiver != nil {
			archiver.Stop()
			logger.Info("archive scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

// newArchiver builds the archive scheduler from the configured
// destinations. It returns nil when archiving is not configured.
func newArchiver(ctx context.Context, cfg *config.Config, reports archive.WeeklySource, m *metrics.Metrics, logger *slog.Logger) (*archive.Scheduler, error) {
	if !cfg.ArchiveEnabled() {
		return nil, nil
	}

	var dests []archive.Destination
	if cfg.ArchiveS3Bucket != "" {
		s3Dest, err := archive.NewS3Destination(ctx, cfg.ArchiveS3Bucket, cfg.ArchiveS3Prefix, cfg.ArchiveS3Region, cfg.ArchiveS3Endpoint)
		if err != nil {
			logger.Error("failed to create S3 archive destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("archive S3 destination enabled", "bucket", cfg.ArchiveS3Bucket, "prefix", cfg.ArchiveS3Prefix)
		}
	}
	if cfg.ArchiveGitRepo != "" {
		dests = append(dests, archive.NewGitDestination(cfg.ArchiveGitRepo, cfg.ArchiveGitBranch))
		logger.Info("archive git destination enabled", "repo", cfg.ArchiveGitRepo, "branch", cfg.ArchiveGitBranch)
	}
	if len(dests) == 0 {
		return nil, nil
	}
	return archive.NewScheduler(reports, dests, cfg.ArchiveSchedule, m, logger)
}

// reportLost announces tasks that passed their deadline as exceptions, so
// every consumer of the bus sees that no result is coming.
func reportLost(ctx context.Context, pub events.Publisher, logger *slog.Logger) func(inflight.Entry) {
	return func(e inflight.Entry) {
		ev := events.TaskFinished{
			TaskID:    e.TaskID,
			Toolchain: e.Toolchain,
			CrateName: e.CrateName,
			CrateVers: e.CrateVers,
			Reason:    inflight.ReasonDeadlineExceeded,
		}
		if err := pub.Publish(ctx, events.TopicTaskException, ev); err != nil {
			logger.Warn("failed to report lost task", "task_id", e.TaskID, "err", err)
		}
	}
}

func init() {
	serveCmd.Flags().Bool("monitor", true, "record task results from the bus in this process")
}
