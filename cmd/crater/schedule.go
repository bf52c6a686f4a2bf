package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/crater/internal/config"
	"github.com/alfredjeanlab/crater/internal/dist"
	"github.com/alfredjeanlab/crater/internal/model"
	"github.com/alfredjeanlab/crater/internal/registry"
	"github.com/alfredjeanlab/crater/internal/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule <toolchain>",
	Short: "Create the build schedule for a toolchain from the local crate index",
	Long: `Create one build task per crate version for a dated toolchain.

Without --nats the tasks are printed as JSON lines. With --nats they are
published to the bus for build workers, as the server does for crate-build.`,
	GroupID:           "builds",
	PersistentPreRunE: skipClient,
	Args:              cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		tc, err := model.ParseToolchain(args[0])
		if err != nil {
			return err
		}
		if tc.IsCustom() {
			return fmt.Errorf("%s: custom toolchains are scheduled through the server", tc)
		}

		flags := cmd.Flags()
		cfg := &config.Config{}
		cfg.IndexAddr, _ = flags.GetString("index")
		cfg.CacheDir, _ = flags.GetString("cache-dir")
		cfg.DistAddr, _ = flags.GetString("dist")
		cfg.TargetTriple, _ = flags.GetString("triple")
		cfg.NATSURL, _ = flags.GetString("nats")
		mostRecent, _ := flags.GetBool("most-recent-only")
		noSync, _ := flags.GetBool("no-sync")
		cutoff, err := cutoffFlag(cmd)
		if err != nil {
			return err
		}

		collab := newCollaborators(cfg, nil, logger)
		ctx := cmd.Context()
		if !noSync {
			if err := collab.index.Sync(ctx); err != nil {
				return err
			}
		}

		publisher, err := newPublisher(cfg.NATSURL, logger)
		if err != nil {
			return err
		}
		defer publisher.Close()

		scheduler := schedule.New(schedule.Config{
			Installers: collab.dist,
			Registry:   collab.index,
			Publisher:  publisher,
			Metrics:    collab.metrics,
			Logger:     logger,
			Triple:     cfg.TargetTriple,
		})
		tasks, err := scheduler.CrateBuild(ctx, tc, mostRecent, cutoff)
		if err != nil {
			return err
		}

		if cfg.NATSURL != "" {
			fmt.Fprintf(os.Stderr, "published %d tasks for %s\n", len(tasks), tc)
			return nil
		}
		for _, task := range tasks {
			if err := writeJSONLine(os.Stdout, task); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	scheduleCmd.Flags().String("index", envOr("CRATER_INDEX_ADDR", registry.DefaultAddr), "crate index git repository")
	scheduleCmd.Flags().String("cache-dir", envOr("CRATER_CACHE_DIR", registry.DefaultCacheDir), "local cache directory")
	scheduleCmd.Flags().String("dist", envOr("CRATER_DIST_ADDR", dist.DefaultAddr), "toolchain distribution server or directory")
	scheduleCmd.Flags().String("triple", envOr("CRATER_TARGET_TRIPLE", dist.DefaultTriple), "target triple of the installers")
	scheduleCmd.Flags().String("nats", os.Getenv("CRATER_NATS_URL"), "publish tasks to this NATS server")
	scheduleCmd.Flags().Bool("most-recent-only", false, "schedule only the newest version of each crate")
	scheduleCmd.Flags().Bool("no-sync", false, "use the cached index without pulling")
	scheduleCmd.Flags().String("cutoff", os.Getenv("CRATER_SCHEDULE_CUTOFF"),
		"skip crate versions published before this date (YYYY-MM-DD, default "+registry.DefaultCutoff.Format(time.DateOnly)+")")
}

// cutoffFlag parses --cutoff. An empty flag yields the zero time, which
// the scheduler replaces with its default.
func cutoffFlag(cmd *cobra.Command) (time.Time, error) {
	v, _ := cmd.Flags().GetString("cutoff")
	if v == "" {
		return time.Time{}, nil
	}
	cutoff, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--cutoff: %w", err)
	}
	return cutoff, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
