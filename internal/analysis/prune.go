package analysis

import (
	"sort"

	"github.com/alfredjeanlab/crater/internal/model"
)

// PartitionRegressions splits regressions into roots, whose dependencies
// contain no other regressed package, and nonRoots, which transitively
// depend on one. Every input entry lands in exactly one list and input
// order is kept within each. Packages without a graph entry are roots.
func PartitionRegressions(regressions []model.StatusEntry, g *Graph) (roots, nonRoots []model.StatusEntry) {
	regressed := make(map[string]bool, len(regressions))
	for _, r := range regressions {
		regressed[r.PackageName] = true
	}

	roots = []model.StatusEntry{}
	nonRoots = []model.StatusEntry{}
	for _, r := range regressions {
		dependent := false
		g.Walk(r.PackageName, func(dep string) bool {
			if regressed[dep] {
				dependent = true
				return false
			}
			return true
		})
		if dependent {
			nonRoots = append(nonRoots, r)
		} else {
			roots = append(roots, r)
		}
	}
	return roots, nonRoots
}

// SortByPopularity returns a copy of entries ordered by descending
// popularity of their package. Ties keep input order.
func SortByPopularity(entries []model.StatusEntry, pop Popularity) []model.StatusEntry {
	out := make([]model.StatusEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return pop[out[i].PackageName] > pop[out[j].PackageName]
	})
	return out
}
