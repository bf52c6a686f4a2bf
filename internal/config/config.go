package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string // CRATER_DATABASE_URL (required)
	GRPCAddr    string // CRATER_GRPC_ADDR (default ":9090")
	HTTPAddr    string // CRATER_HTTP_ADDR (default ":8080")
	NATSURL     string // CRATER_NATS_URL (optional, empty = no events)
	AuthToken   string // CRATER_AUTH_TOKEN (optional, empty = auth disabled)

	// Collaborators
	IndexAddr      string // CRATER_INDEX_ADDR (default crates.io-index on GitHub)
	CacheDir       string // CRATER_CACHE_DIR (default "./cache")
	DistAddr       string // CRATER_DIST_ADDR (default static.rust-lang.org/dist)
	TargetTriple   string // CRATER_TARGET_TRIPLE (default "x86_64-unknown-linux-gnu")
	DropBrokenDeps bool   // CRATER_DROP_BROKEN_DEPS (default true)

	// ScheduleCutoff excludes crate versions published before it from
	// crate builds. CRATER_SCHEDULE_CUTOFF (YYYY-MM-DD; zero = the
	// scheduler's default, 2015-02-01)
	ScheduleCutoff time.Time

	// Archive settings
	ArchiveSchedule   string // CRATER_ARCHIVE_SCHEDULE (cron spec; empty = disabled)
	ArchiveS3Bucket   string // CRATER_ARCHIVE_S3_BUCKET (enables S3 when set)
	ArchiveS3Endpoint string // CRATER_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)
	ArchiveS3Region   string // CRATER_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Prefix   string // CRATER_ARCHIVE_S3_PREFIX (default "crater")
	ArchiveGitRepo    string // CRATER_ARCHIVE_GIT_REPO (enables git when set; path to clone)
	ArchiveGitBranch  string // CRATER_ARCHIVE_GIT_BRANCH (default "main")
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:       os.Getenv("CRATER_DATABASE_URL"),
		GRPCAddr:          envOrDefault("CRATER_GRPC_ADDR", ":9090"),
		HTTPAddr:          envOrDefault("CRATER_HTTP_ADDR", ":8080"),
		NATSURL:           os.Getenv("CRATER_NATS_URL"),
		AuthToken:         os.Getenv("CRATER_AUTH_TOKEN"),
		IndexAddr:         envOrDefault("CRATER_INDEX_ADDR", "https://github.com/rust-lang/crates.io-index"),
		CacheDir:          envOrDefault("CRATER_CACHE_DIR", "./cache"),
		DistAddr:          envOrDefault("CRATER_DIST_ADDR", "https://static.rust-lang.org/dist"),
		TargetTriple:      envOrDefault("CRATER_TARGET_TRIPLE", "x86_64-unknown-linux-gnu"),
		ArchiveSchedule:   os.Getenv("CRATER_ARCHIVE_SCHEDULE"),
		ArchiveS3Bucket:   os.Getenv("CRATER_ARCHIVE_S3_BUCKET"),
		ArchiveS3Endpoint: os.Getenv("CRATER_ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Region:   envOrDefault("CRATER_ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveS3Prefix:   envOrDefault("CRATER_ARCHIVE_S3_PREFIX", "crater"),
		ArchiveGitRepo:    os.Getenv("CRATER_ARCHIVE_GIT_REPO"),
		ArchiveGitBranch:  envOrDefault("CRATER_ARCHIVE_GIT_BRANCH", "main"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("CRATER_DATABASE_URL is required")
	}

	drop, err := strconv.ParseBool(envOrDefault("CRATER_DROP_BROKEN_DEPS", "true"))
	if err != nil {
		return nil, fmt.Errorf("CRATER_DROP_BROKEN_DEPS: %w", err)
	}
	c.DropBrokenDeps = drop

	if v := os.Getenv("CRATER_SCHEDULE_CUTOFF"); v != "" {
		cutoff, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return nil, fmt.Errorf("CRATER_SCHEDULE_CUTOFF: %w", err)
		}
		c.ScheduleCutoff = cutoff
	}

	return c, nil
}

// ArchiveEnabled reports whether a schedule and at least one destination
// are configured.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveSchedule != "" && (c.ArchiveS3Bucket != "" || c.ArchiveGitRepo != "")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
