package model

// DependencyKind mirrors the "kind" field of a registry descriptor dependency.
type DependencyKind string

const (
	KindNormal DependencyKind = "normal"
	KindDev    DependencyKind = "dev"
	KindBuild  DependencyKind = "build"
)

// Dependency is a declared requirement of one package version on another package.
// Requirement is a semantic-version range expression such as "^0.1.18".
type Dependency struct {
	Name        string         `json:"name"`
	Requirement string         `json:"req"`
	Kind        DependencyKind `json:"kind,omitempty"`
	Optional    bool           `json:"optional,omitempty"`
}

// PackageVersion is one published version of a package, as loaded from a
// registry snapshot. Values are treated as immutable once loaded.
type PackageVersion struct {
	Name         string       `json:"name"`
	Version      string       `json:"vers"`
	Dependencies []Dependency `json:"deps"`
	Yanked       bool         `json:"yanked,omitempty"`
}

// DependencyNames returns the declared dependency names in declaration order.
func (p PackageVersion) DependencyNames() []string {
	names := make([]string, len(p.Dependencies))
	for i, d := range p.Dependencies {
		names[i] = d.Name
	}
	return names
}
