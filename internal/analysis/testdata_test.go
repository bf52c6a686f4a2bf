package analysis

import "github.com/alfredjeanlab/crater/internal/model"

func pv(name, vers string, deps ...string) model.PackageVersion {
	p := model.PackageVersion{Name: name, Version: vers}
	for _, d := range deps {
		p.Dependencies = append(p.Dependencies, model.Dependency{Name: d, Requirement: "*"})
	}
	return p
}

func pvReq(name, vers string, reqs ...[2]string) model.PackageVersion {
	p := model.PackageVersion{Name: name, Version: vers}
	for _, r := range reqs {
		p.Dependencies = append(p.Dependencies, model.Dependency{Name: r[0], Requirement: r[1]})
	}
	return p
}

func regressed(names ...string) []model.StatusEntry {
	out := make([]model.StatusEntry, len(names))
	for i, n := range names {
		out[i] = model.StatusEntry{
			PackageName:    n,
			PackageVersion: "1.0.0",
			Status:         model.StatusRegressed,
			From:           model.OutcomeSuccess,
			To:             model.OutcomeFailure,
		}
	}
	return out
}

func entryNames(entries []model.StatusEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.PackageName
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
