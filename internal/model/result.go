package model

// Outcome is the result of building one package version with one toolchain.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeUnknown Outcome = "unknown"
)

// IsValid reports whether the outcome is one of the known values.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailure, OutcomeUnknown:
		return true
	}
	return false
}

// OutcomeFromSuccess maps a boolean build result to an Outcome.
func OutcomeFromSuccess(success bool) Outcome {
	if success {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// BuildResultKey identifies a single build result.
type BuildResultKey struct {
	Toolchain string `json:"toolchain"`
	CrateName string `json:"crate_name"`
	CrateVers string `json:"crate_vers"`
}

// BuildResult is a recorded build outcome.
type BuildResult struct {
	Toolchain string  `json:"toolchain"`
	CrateName string  `json:"crate_name"`
	CrateVers string  `json:"crate_vers"`
	Outcome   Outcome `json:"outcome"`
	TaskID    string  `json:"task_id"`
}

// Key returns the identifying key of the result.
func (r *BuildResult) Key() BuildResultKey {
	return BuildResultKey{Toolchain: r.Toolchain, CrateName: r.CrateName, CrateVers: r.CrateVers}
}

// ResultPair holds the outcomes of the same package version built with two toolchains.
// A side with no recorded result is OutcomeUnknown.
type ResultPair struct {
	PackageName    string  `json:"package_name"`
	PackageVersion string  `json:"package_version"`
	From           Outcome `json:"from"`
	To             Outcome `json:"to"`
}

// Status is the classification of a ResultPair.
type Status string

const (
	StatusWorking   Status = "working"
	StatusBroken    Status = "broken"
	StatusRegressed Status = "regressed"
	StatusFixed     Status = "fixed"
	StatusUnknown   Status = "unknown"
)

// StatusEntry is a classified comparison of one package version.
type StatusEntry struct {
	PackageName    string  `json:"package_name"`
	PackageVersion string  `json:"package_version"`
	Status         Status  `json:"status"`
	From           Outcome `json:"from"`
	To             Outcome `json:"to"`
}

// Summary holds per-status counts of a comparison.
type Summary struct {
	Working   int `json:"working"`
	Broken    int `json:"broken"`
	Regressed int `json:"regressed"`
	Fixed     int `json:"fixed"`
	Unknown   int `json:"unknown"`
}

// Total returns the number of classified entries.
func (s Summary) Total() int {
	return s.Working + s.Broken + s.Regressed + s.Fixed + s.Unknown
}
