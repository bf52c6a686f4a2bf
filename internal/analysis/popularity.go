package analysis

import "sort"

// Popularity maps a package name to the number of distinct packages that
// transitively depend on it.
type Popularity map[string]int

// PackageRank is one row of a popularity ranking.
type PackageRank struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ComputePopularity counts, for every name, the distinct packages that
// reach it through their dependencies. Each depending package counts once
// no matter how many paths lead to the dependency, and a package never
// counts toward itself. Every catalog name has an entry; dependency names
// outside the catalog get one when first reached.
func ComputePopularity(c *Catalog) Popularity {
	return PopularityOf(c.Names(), BuildDependencyGraph(c))
}

// PopularityOf computes popularity over an existing graph. Every name in
// names has an entry.
func PopularityOf(names []string, g *Graph) Popularity {
	pop := make(Popularity, len(names))
	for _, name := range names {
		pop[name] = 0
	}
	for _, node := range g.Nodes() {
		g.Walk(node, func(dep string) bool {
			pop[dep]++
			return true
		})
	}
	return pop
}

// Ranked returns every entry sorted by descending count. Ties keep the
// position of the name in order; names missing from order come last,
// alphabetically.
func (p Popularity) Ranked(order []string) []PackageRank {
	pos := make(map[string]int, len(order))
	for i, name := range order {
		if _, ok := pos[name]; !ok {
			pos[name] = i
		}
	}
	out := make([]PackageRank, 0, len(p))
	for name, count := range p {
		out = append(out, PackageRank{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		pa, oka := pos[a.Name]
		pb, okb := pos[b.Name]
		switch {
		case oka && okb:
			return pa < pb
		case oka != okb:
			return oka
		}
		return a.Name < b.Name
	})
	return out
}
