// Package analysis holds the regression analysis engine: the package
// catalog, its dependency graph, popularity ranking, build-status
// classification and root-regression pruning. Nothing in this package
// performs I/O; every function is deterministic given its inputs.
package analysis

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/alfredjeanlab/crater/internal/model"
)

// Catalog is an immutable set of package versions loaded from a registry snapshot.
type Catalog struct {
	versions []model.PackageVersion
	names    []string
}

// NewCatalog builds a catalog from pvs. Input order is retained and
// duplicate versions are allowed.
func NewCatalog(pvs []model.PackageVersion) *Catalog {
	c := &Catalog{versions: make([]model.PackageVersion, len(pvs))}
	copy(c.versions, pvs)

	seen := make(map[string]bool, len(pvs))
	for _, pv := range c.versions {
		if !seen[pv.Name] {
			seen[pv.Name] = true
			c.names = append(c.names, pv.Name)
		}
	}
	return c
}

// Versions returns every package version in input order.
func (c *Catalog) Versions() []model.PackageVersion {
	out := make([]model.PackageVersion, len(c.versions))
	copy(out, c.versions)
	return out
}

// Names returns the distinct package names in order of first appearance.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len returns the number of package versions in the catalog.
func (c *Catalog) Len() int {
	return len(c.versions)
}

// MostRecentVersions returns, for each name, the version with the greatest
// semantic-version precedence. Versions that fail to parse sort below every
// valid version. When two versions have equal precedence the later one wins.
func (c *Catalog) MostRecentVersions() map[string]model.PackageVersion {
	best := make(map[string]model.PackageVersion, len(c.names))
	parsed := make(map[string]*semver.Version, len(c.names))
	for _, pv := range c.versions {
		v := parseVersion(pv.Version)
		_, ok := best[pv.Name]
		if !ok || compareVersions(v, parsed[pv.Name]) >= 0 {
			best[pv.Name] = pv
			parsed[pv.Name] = v
		}
	}
	return best
}

// WithoutBrokenDeps returns a catalog holding only the package versions
// whose every dependency is satisfied by some version in c, plus the
// versions that were removed, both in input order.
func (c *Catalog) WithoutBrokenDeps() (*Catalog, []model.PackageVersion) {
	available := make(map[string][]*semver.Version, len(c.names))
	for _, pv := range c.versions {
		if v := parseVersion(pv.Version); v != nil {
			available[pv.Name] = append(available[pv.Name], v)
		}
	}

	constraints := make(map[string]*semver.Constraints)
	satisfied := func(d model.Dependency) bool {
		cs, ok := constraints[d.Requirement]
		if !ok {
			cs = parseRequirement(d.Requirement)
			constraints[d.Requirement] = cs
		}
		if cs == nil {
			return false
		}
		for _, v := range available[d.Name] {
			if cs.Check(v) {
				return true
			}
		}
		return false
	}

	var kept, broken []model.PackageVersion
	for _, pv := range c.versions {
		ok := true
		for _, d := range pv.Dependencies {
			if !satisfied(d) {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, pv)
		} else {
			broken = append(broken, pv)
		}
	}
	return NewCatalog(kept), broken
}

// Classify splits the catalog into versions without dependencies and
// versions with at least one.
func (c *Catalog) Classify() (noDeps, hasDeps []model.PackageVersion) {
	for _, pv := range c.versions {
		if len(pv.Dependencies) == 0 {
			noDeps = append(noDeps, pv)
		} else {
			hasDeps = append(hasDeps, pv)
		}
	}
	return noDeps, hasDeps
}

// parseVersion parses a strict semantic version, returning nil on failure.
func parseVersion(s string) *semver.Version {
	v, err := semver.StrictNewVersion(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return v
}

// compareVersions orders versions by precedence with nil (unparseable)
// below everything and equal to another nil.
func compareVersions(a, b *semver.Version) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(b)
}

// parseRequirement parses a registry requirement string. A bare version
// such as "0.1.2" means "^0.1.2" in the registry's dialect; each
// comma-separated clause is normalized on its own. Returns nil when the
// requirement cannot be parsed.
func parseRequirement(req string) *semver.Constraints {
	req = strings.TrimSpace(req)
	if req == "" {
		req = "*"
	}
	clauses := strings.Split(req, ",")
	for i, cl := range clauses {
		cl = strings.TrimSpace(cl)
		if cl != "" && cl[0] >= '0' && cl[0] <= '9' && !strings.ContainsAny(cl, "*xX") {
			cl = "^" + cl
		}
		clauses[i] = cl
	}
	cs, err := semver.NewConstraint(strings.Join(clauses, ", "))
	if err != nil {
		return nil
	}
	return cs
}
