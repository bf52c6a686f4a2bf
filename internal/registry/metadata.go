package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/crater/internal/fetch"
	"github.com/alfredjeanlab/crater/internal/model"
)

// DefaultCutoff is the publication date before which package versions are
// considered too old to build.
var DefaultCutoff = time.Date(2015, time.February, 1, 0, 0, 0, 0, time.UTC)

// maxMetadataRequests bounds concurrent metadata lookups in FilterOutOld.
const maxMetadataRequests = 100

// VersionMetadata returns the registry's document for one package version.
// Documents are cached in memory and under <cache>/version-cache.
func (ix *Index) VersionMetadata(ctx context.Context, name, vers string) (*VersionMetadata, error) {
	key := name + "@" + vers
	if md, ok := ix.metadata.Get(key); ok {
		return md, nil
	}

	path := filepath.Join(ix.cacheDir, versionDirName, name, vers)
	if data, err := os.ReadFile(path); err == nil {
		var md VersionMetadata
		if err := json.Unmarshal(data, &md); err == nil {
			ix.metadata.Add(key, &md)
			return &md, nil
		}
		ix.logger.Warn("registry: discarding corrupt metadata cache entry", "path", path)
	}

	dl, err := ix.DownloadRoot(ctx)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := fetch.GetJSON(ctx, ix.getter, dl+"/"+name+"/"+vers, &raw); err != nil {
		return nil, fmt.Errorf("version metadata %s: %w", key, err)
	}
	var md VersionMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, fmt.Errorf("decode version metadata %s: %w", key, err)
	}

	if err := ix.writeCache(ctx, path, raw); err != nil {
		ix.logger.Warn("registry: caching metadata failed", "path", path, "err", err)
	}
	ix.metadata.Add(key, &md)
	return &md, nil
}

func (ix *Index) writeCache(ctx context.Context, path string, data []byte) error {
	if err := ix.lock.acquire(ctx); err != nil {
		return err
	}
	defer ix.lock.release()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// FilterOutOld drops package versions published before cutoff. A version
// whose metadata cannot be retrieved is kept. Order is preserved.
func (ix *Index) FilterOutOld(ctx context.Context, pvs []model.PackageVersion, cutoff time.Time) ([]model.PackageVersion, error) {
	keep := make([]bool, len(pvs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxMetadataRequests)
	for i, pv := range pvs {
		g.Go(func() error {
			md, err := ix.VersionMetadata(gctx, pv.Name, pv.Version)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				ix.logger.Warn("registry: metadata unavailable, keeping version",
					"crate", pv.Name, "vers", pv.Version, "err", err)
				keep[i] = true
				return nil
			}
			keep[i] = !md.Version.CreatedAt.Before(cutoff)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]model.PackageVersion, 0, len(pvs))
	for i, pv := range pvs {
		if keep[i] {
			out = append(out, pv)
		}
	}
	return out, nil
}
