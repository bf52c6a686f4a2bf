// Package registry maintains a local clone of the package index and reads
// package versions, download locations and version metadata from it.
package registry

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/alfredjeanlab/crater/internal/fetch"
	"github.com/alfredjeanlab/crater/internal/metrics"
	"github.com/alfredjeanlab/crater/internal/model"
)

const (
	DefaultAddr     = "https://github.com/rust-lang/crates.io-index"
	DefaultCacheDir = "./cache"

	indexDirName   = "crate-index"
	versionDirName = "version-cache"

	metadataCacheSize = 16384
)

// Index is a local clone of the package index plus the caches derived
// from it. All access to the cache directory is serialized.
type Index struct {
	addr     string
	cacheDir string
	getter   fetch.Getter
	metrics  *metrics.Metrics
	logger   *slog.Logger

	lock     cacheLock
	metadata *lru.Cache[string, *VersionMetadata]
	git      gitRunner
}

// New creates an index that clones addr into cacheDir. g is used for
// version metadata requests; m may be nil.
func New(addr, cacheDir string, g fetch.Getter, m *metrics.Metrics, logger *slog.Logger) *Index {
	if addr == "" {
		addr = DefaultAddr
	}
	if cacheDir == "" {
		cacheDir = DefaultCacheDir
	}
	cache, _ := lru.New[string, *VersionMetadata](metadataCacheSize)
	return &Index{
		addr:     addr,
		cacheDir: cacheDir,
		getter:   g,
		metrics:  m,
		logger:   logger,
		lock:     newCacheLock(),
		metadata: cache,
		git:      execGit,
	}
}

// LocalPath returns the directory holding the index clone.
func (ix *Index) LocalPath() string {
	return filepath.Join(ix.cacheDir, indexDirName)
}

// Sync clones the index on first use and pulls it afterwards.
func (ix *Index) Sync(ctx context.Context) error {
	if err := ix.lock.acquire(ctx); err != nil {
		return err
	}
	defer ix.lock.release()

	local := ix.LocalPath()
	if _, err := os.Stat(filepath.Join(local, ".git")); err == nil {
		if err := ix.git(ctx, local, "pull", "--ff-only", "origin"); err != nil {
			return fmt.Errorf("git pull: %w", err)
		}
		ix.logger.Info("registry: index updated", "path", local)
		return nil
	}

	if err := os.MkdirAll(ix.cacheDir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := ix.git(ctx, ix.cacheDir, "clone", ix.addr, indexDirName); err != nil {
		return fmt.Errorf("git clone: %w", err)
	}
	ix.logger.Info("registry: index cloned", "addr", ix.addr, "path", local)
	return nil
}

// descriptor is one line of an index file.
type descriptor struct {
	Name string `json:"name"`
	Vers string `json:"vers"`
	Deps []struct {
		Name     string `json:"name"`
		Req      string `json:"req"`
		Kind     string `json:"kind"`
		Optional bool   `json:"optional"`
	} `json:"deps"`
	Yanked bool `json:"yanked"`
}

func (d *descriptor) packageVersion() model.PackageVersion {
	pv := model.PackageVersion{
		Name:         d.Name,
		Version:      d.Vers,
		Dependencies: make([]model.Dependency, len(d.Deps)),
		Yanked:       d.Yanked,
	}
	for i, dep := range d.Deps {
		kind := model.DependencyKind(dep.Kind)
		if kind == "" {
			kind = model.KindNormal
		}
		pv.Dependencies[i] = model.Dependency{
			Name:        dep.Name,
			Requirement: dep.Req,
			Kind:        kind,
			Optional:    dep.Optional,
		}
	}
	return pv
}

// LoadPackages reads every package version in the local clone. Git
// metadata and top-level files such as config.json are skipped. Lines that
// do not decode or validate are logged and skipped.
func (ix *Index) LoadPackages(ctx context.Context) ([]model.PackageVersion, error) {
	if err := ix.lock.acquire(ctx); err != nil {
		return nil, err
	}
	defer ix.lock.release()

	root := ix.LocalPath()
	var (
		pvs         []model.PackageVersion
		quarantined int
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		if d.IsDir() {
			if rel == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.ContainsRune(rel, filepath.Separator) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		got, bad := parseDescriptors(data)
		for _, b := range bad {
			ix.logger.Warn("registry: quarantined descriptor", "file", rel, "line", b.line, "err", b.err)
		}
		quarantined += len(bad)
		pvs = append(pvs, got...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk index: %w", err)
	}

	ix.metrics.RegistryQuarantined(quarantined)
	ix.logger.Info("registry: packages loaded", "versions", len(pvs), "quarantined", quarantined)
	return pvs, nil
}

type badLine struct {
	line int
	err  error
}

// parseDescriptors decodes one JSON descriptor per non-empty line.
func parseDescriptors(data []byte) ([]model.PackageVersion, []badLine) {
	var (
		pvs []model.PackageVersion
		bad []badLine
	)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for n := 1; sc.Scan(); n++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var d descriptor
		if err := json.Unmarshal(line, &d); err != nil {
			bad = append(bad, badLine{line: n, err: err})
			continue
		}
		pv := d.packageVersion()
		if err := model.ValidatePackageVersion(&pv); err != nil {
			bad = append(bad, badLine{line: n, err: err})
			continue
		}
		pvs = append(pvs, pv)
	}
	if err := sc.Err(); err != nil {
		bad = append(bad, badLine{err: err})
	}
	return pvs, bad
}

// DownloadRoot returns the "dl" address from the index's config.json.
func (ix *Index) DownloadRoot(ctx context.Context) (string, error) {
	if err := ix.lock.acquire(ctx); err != nil {
		return "", err
	}
	defer ix.lock.release()

	data, err := os.ReadFile(filepath.Join(ix.LocalPath(), "config.json"))
	if err != nil {
		return "", fmt.Errorf("read config.json: %w", err)
	}
	var cfg struct {
		DL string `json:"dl"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("decode config.json: %w", err)
	}
	if cfg.DL == "" {
		return "", errors.New("config.json has no dl address")
	}
	return strings.TrimRight(cfg.DL, "/"), nil
}

// CrateURL returns the download address of a package version.
func CrateURL(dlRoot, name, vers string) string {
	return fmt.Sprintf("%s/%s/%s/download", strings.TrimRight(dlRoot, "/"), name, vers)
}

// VersionMetadata is the subset of the registry's version document we use.
type VersionMetadata struct {
	Version struct {
		Num       string    `json:"num"`
		CreatedAt time.Time `json:"created_at"`
		Yanked    bool      `json:"yanked"`
	} `json:"version"`
}
