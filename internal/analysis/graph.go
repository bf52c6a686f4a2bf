package analysis

// Graph maps each package name to the names its most recent version
// depends on. It is not guaranteed to be acyclic and may reference
// names that have no entry of their own.
type Graph struct {
	adj   map[string][]string
	nodes []string
}

// BuildDependencyGraph derives the graph from the catalog's most recent
// version of each package. Adjacency lists keep declared dependency order;
// requirement ranges are discarded.
func BuildDependencyGraph(c *Catalog) *Graph {
	recent := c.MostRecentVersions()
	g := &Graph{adj: make(map[string][]string, len(recent))}
	for _, name := range c.names {
		pv, ok := recent[name]
		if !ok {
			continue
		}
		g.adj[name] = pv.DependencyNames()
		g.nodes = append(g.nodes, name)
	}
	return g
}

// NewGraph builds a graph directly from an adjacency mapping. Node order
// follows order; names in adj but missing from order are appended in no
// particular order.
func NewGraph(order []string, adj map[string][]string) *Graph {
	g := &Graph{adj: make(map[string][]string, len(adj))}
	for _, name := range order {
		if deps, ok := adj[name]; ok {
			if _, dup := g.adj[name]; !dup {
				g.nodes = append(g.nodes, name)
			}
			g.adj[name] = append([]string(nil), deps...)
		}
	}
	for name, deps := range adj {
		if _, ok := g.adj[name]; !ok {
			g.adj[name] = append([]string(nil), deps...)
			g.nodes = append(g.nodes, name)
		}
	}
	return g
}

// Dependencies returns the direct dependencies of name and whether name
// has an entry in the graph.
func (g *Graph) Dependencies(name string) ([]string, bool) {
	deps, ok := g.adj[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), deps...), true
}

// Nodes returns the names that have an entry, in catalog order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.nodes...)
}

// Walk visits every name transitively reachable from start, depth first,
// each at most once. start itself is never visited, even when a cycle
// leads back to it. Names without an entry are visited but not expanded.
// The walk stops as soon as visit returns false.
func (g *Graph) Walk(start string, visit func(name string) bool) {
	seen := map[string]bool{start: true}
	stack := reversed(g.adj[start])
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[name] {
			continue
		}
		seen[name] = true
		if !visit(name) {
			return
		}
		for i := len(g.adj[name]) - 1; i >= 0; i-- {
			if dep := g.adj[name][i]; !seen[dep] {
				stack = append(stack, dep)
			}
		}
	}
}

// reversed returns a reversed copy so that popping a stack yields
// declaration order.
func reversed(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[len(names)-1-i] = n
	}
	return out
}
