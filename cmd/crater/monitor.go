package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/crater/internal/config"
	"github.com/alfredjeanlab/crater/internal/events"
	"github.com/alfredjeanlab/crater/internal/metrics"
	"github.com/alfredjeanlab/crater/internal/monitor"
	"github.com/alfredjeanlab/crater/internal/store/postgres"
)

var monitorCmd = &cobra.Command{
	Use:               "monitor",
	Short:             "Record build task results from the bus",
	GroupID:           "system",
	PersistentPreRunE: skipClient,
	Args:              cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.NATSURL == "" {
			return fmt.Errorf("CRATER_NATS_URL is required for monitor")
		}

		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()

		publisher, err := newPublisher(cfg.NATSURL, logger)
		if err != nil {
			return err
		}
		defer publisher.Close()

		sub, err := events.NewNATSSubscriber(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer sub.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		handler := monitor.NewHandler(store, publisher, metrics.New(prometheus.NewRegistry()), logger)
		return handler.StartSubscriber(ctx, sub)
	},
}
