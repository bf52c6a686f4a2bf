package report

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/alfredjeanlab/crater/internal/model"
	"github.com/alfredjeanlab/crater/internal/ui"
)

func TestMain(m *testing.M) {
	ui.ForceNoColor()
	os.Exit(m.Run())
}

type fakePackages struct {
	pvs []model.PackageVersion
	err error
}

func (f *fakePackages) LoadPackages(context.Context) ([]model.PackageVersion, error) {
	return f.pvs, f.err
}

type fakeToolchains struct {
	channels model.Channels
}

func (f *fakeToolchains) AvailableToolchains(context.Context) (model.Channels, error) {
	return f.channels, nil
}

type fakeResults struct {
	pairs   map[string][]model.ResultPair
	results map[string][]*model.BuildResult
	err     error
	calls   []string
}

func (f *fakeResults) GetResults(_ context.Context, toolchain string) ([]*model.BuildResult, error) {
	return f.results[toolchain], f.err
}

func (f *fakeResults) GetResultPairs(_ context.Context, from, to string) ([]model.ResultPair, error) {
	f.calls = append(f.calls, from+".."+to)
	return f.pairs[from+".."+to], f.err
}

func pkg(name, vers string, deps ...string) model.PackageVersion {
	pv := model.PackageVersion{Name: name, Version: vers, Dependencies: []model.Dependency{}}
	for _, d := range deps {
		pv.Dependencies = append(pv.Dependencies, model.Dependency{Name: d, Requirement: "*", Kind: model.KindNormal})
	}
	return pv
}

func pair(name string, from, to model.Outcome) model.ResultPair {
	return model.ResultPair{PackageName: name, PackageVersion: "0.1.0", From: from, To: to}
}

const (
	s = model.OutcomeSuccess
	f = model.OutcomeFailure
	u = model.OutcomeUnknown
)

func testCatalog() []model.PackageVersion {
	return []model.PackageVersion{
		pkg("pistoncore-input", "0.1.0"),
		pkg("piston", "0.1.0", "pistoncore-input"),
		pkg("url", "0.2.0"),
		pkg("a", "0.1.0", "url"),
		pkg("b", "0.1.0", "url"),
		pkg("c", "0.1.0", "url"),
	}
}

func testResults() *fakeResults {
	return &fakeResults{
		pairs: map[string][]model.ResultPair{
			"nightly-2015-03-01..nightly-2015-03-02": {
				pair("piston", s, f),
				pair("pistoncore-input", s, f),
				pair("url", s, f),
				pair("a", f, s),
				pair("b", s, s),
				pair("c", u, s),
			},
			"beta-2015-02-20..nightly-2015-03-02": {
				pair("url", s, f),
			},
		},
		results: map[string][]*model.BuildResult{
			"nightly-2015-03-02": {
				{Toolchain: "nightly-2015-03-02", CrateName: "piston", CrateVers: "0.1.0", Outcome: f},
				{Toolchain: "nightly-2015-03-02", CrateName: "b", CrateVers: "0.1.0", Outcome: s},
				{Toolchain: "nightly-2015-03-02", CrateName: "url", CrateVers: "0.2.0", Outcome: f},
				{Toolchain: "nightly-2015-03-02", CrateName: "c", CrateVers: "0.1.0", Outcome: u},
			},
		},
	}
}

func testAssembler(results *fakeResults, opts ...Option) *Assembler {
	return NewAssembler(
		&fakePackages{pvs: testCatalog()},
		&fakeToolchains{channels: model.Channels{
			Nightly: []string{"2015-03-01", "2015-03-02", "2015-03-05"},
			Beta:    []string{"2015-02-20"},
		}},
		results,
		opts...,
	)
}

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func equal(a, b []string) bool {
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

func toolchain(t *testing.T, s string) *model.Toolchain {
	t.Helper()
	tc, err := model.ParseToolchain(s)
	if err != nil {
		t.Fatal(err)
	}
	return &tc
}

func TestComparison(t *testing.T) {
	a := testAssembler(testResults())
	rep, err := a.Comparison(context.Background(),
		toolchain(t, "nightly-2015-03-01"), toolchain(t, "nightly-2015-03-02"))
	if err != nil {
		t.Fatal(err)
	}

	want := model.Summary{Working: 1, Regressed: 3, Fixed: 1, Unknown: 1}
	if rep.Summary != want {
		t.Errorf("summary = %+v, want %+v", rep.Summary, want)
	}
	if got := names(rep.RootRegressions); !equal(got, []string{"url", "pistoncore-input"}) {
		t.Errorf("roots = %v", got)
	}
	if got := names(rep.NonRootRegressions); !equal(got, []string{"piston"}) {
		t.Errorf("non-roots = %v", got)
	}
	if got := names(rep.Fixed); !equal(got, []string{"a"}) {
		t.Errorf("fixed = %v", got)
	}

	root := rep.RootRegressions[0]
	if root.PURL != "pkg:cargo/url@0.1.0" || root.Popularity != 3 || root.Status != model.StatusRegressed {
		t.Errorf("root entry = %+v", root)
	}
}

func TestComparison_MissingToolchain(t *testing.T) {
	results := testResults()
	a := testAssembler(results)
	rep, err := a.Comparison(context.Background(), nil, toolchain(t, "nightly-2015-03-02"))
	if err != nil {
		t.Fatal(err)
	}
	if rep.Summary.Total() != 0 || len(rep.RootRegressions) != 0 || rep.RootRegressions == nil {
		t.Errorf("expected empty non-nil report, got %+v", rep)
	}
	if rep.From != "" || rep.To != "nightly-2015-03-02" {
		t.Errorf("from/to = %q/%q", rep.From, rep.To)
	}
	if len(results.calls) != 0 {
		t.Errorf("result source queried for missing toolchain: %v", results.calls)
	}
}

func TestComparison_SourceError(t *testing.T) {
	results := testResults()
	results.err = errors.New("db down")
	a := testAssembler(results)
	_, err := a.Comparison(context.Background(),
		toolchain(t, "nightly-2015-03-01"), toolchain(t, "nightly-2015-03-02"))
	if !errors.Is(err, results.err) {
		t.Fatalf("err = %v, want wrapped db error", err)
	}
}

func TestCurrent(t *testing.T) {
	a := testAssembler(testResults())
	rep, err := a.Current(context.Background(), "2015-03-03")
	if err != nil {
		t.Fatal(err)
	}
	if toolchainName(rep.Nightly) != "nightly-2015-03-02" {
		t.Errorf("nightly = %s", toolchainName(rep.Nightly))
	}
	if toolchainName(rep.Beta) != "beta-2015-02-20" {
		t.Errorf("beta = %s", toolchainName(rep.Beta))
	}
	if rep.Stable != nil {
		t.Errorf("stable = %s, want none", rep.Stable)
	}
}

func TestCurrent_StrictlyBefore(t *testing.T) {
	a := testAssembler(testResults())
	rep, err := a.Current(context.Background(), "2015-03-02")
	if err != nil {
		t.Fatal(err)
	}
	if toolchainName(rep.Nightly) != "nightly-2015-03-01" {
		t.Errorf("nightly = %s, want nightly-2015-03-01", toolchainName(rep.Nightly))
	}
}

func TestCurrent_BadDate(t *testing.T) {
	a := testAssembler(testResults())
	if _, err := a.Current(context.Background(), "March"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("err = %v, want ErrInvalidDate", err)
	}
}

func TestWeekly(t *testing.T) {
	results := testResults()
	a := testAssembler(results)
	rep, err := a.Weekly(context.Background(), "2015-03-03")
	if err != nil {
		t.Fatal(err)
	}

	// No stable release exists yet, so the beta comparison is empty.
	if rep.Beta.Summary.Total() != 0 || rep.Beta.To != "beta-2015-02-20" {
		t.Errorf("beta comparison = %+v", rep.Beta)
	}
	if rep.Nightly.From != "beta-2015-02-20" || rep.Nightly.To != "nightly-2015-03-02" {
		t.Errorf("nightly comparison = %s..%s", rep.Nightly.From, rep.Nightly.To)
	}
	if got := names(rep.Nightly.RootRegressions); !equal(got, []string{"url"}) {
		t.Errorf("nightly roots = %v", got)
	}
	if len(results.calls) != 1 {
		t.Errorf("result pair queries = %v, want one", results.calls)
	}
}

func TestPopularity(t *testing.T) {
	for _, tc := range []struct {
		name  string
		limit int
		want  []string
	}{
		{name: "limited", limit: 2, want: []string{"url", "pistoncore-input"}},
		{name: "all", limit: 0, want: []string{"url", "pistoncore-input", "piston", "a", "b", "c"}},
		{name: "limit above size", limit: 50, want: []string{"url", "pistoncore-input", "piston", "a", "b", "c"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rep, err := testAssembler(testResults()).Popularity(context.Background(), tc.limit)
			if err != nil {
				t.Fatal(err)
			}
			got := make([]string, len(rep.Packages))
			for i, p := range rep.Packages {
				got[i] = p.Name
			}
			if !equal(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPopularity_DropBrokenDeps(t *testing.T) {
	pvs := append(testCatalog(), pkg("broken", "0.1.0", "url", "missing"))
	for _, tc := range []struct {
		drop bool
		want int
	}{
		{drop: false, want: 4},
		{drop: true, want: 3},
	} {
		a := NewAssembler(&fakePackages{pvs: pvs}, &fakeToolchains{}, testResults(), WithDropBrokenDeps(tc.drop))
		rep, err := a.Popularity(context.Background(), 1)
		if err != nil {
			t.Fatal(err)
		}
		if rep.Packages[0].Name != "url" || rep.Packages[0].Count != tc.want {
			t.Errorf("drop=%v: top = %+v, want url with %d", tc.drop, rep.Packages[0], tc.want)
		}
	}
}

func TestToolchain(t *testing.T) {
	rep, err := testAssembler(testResults()).Toolchain(context.Background(), "nightly-2015-03-02")
	if err != nil {
		t.Fatal(err)
	}
	if rep.Successes != 1 || rep.Unknown != 1 {
		t.Errorf("successes=%d unknown=%d", rep.Successes, rep.Unknown)
	}
	if got := names(rep.Failures); !equal(got, []string{"url", "piston"}) {
		t.Errorf("failures = %v", got)
	}
	if rep.Failures[0].PURL != "pkg:cargo/url@0.2.0" {
		t.Errorf("purl = %q", rep.Failures[0].PURL)
	}
}

func TestToolchain_Invalid(t *testing.T) {
	_, err := testAssembler(testResults()).Toolchain(context.Background(), "weekly-2015")
	if !errors.Is(err, model.ErrInvalidToolchain) {
		t.Fatalf("err = %v, want ErrInvalidToolchain", err)
	}
}

func TestPURL(t *testing.T) {
	if got := PURL("rustc-serialize", "0.3.0"); got != "pkg:cargo/rustc-serialize@0.3.0" {
		t.Errorf("got %q", got)
	}
}
