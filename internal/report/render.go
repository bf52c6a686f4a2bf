package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/alfredjeanlab/crater/internal/model"
	"github.com/alfredjeanlab/crater/internal/ui"
)

// printer remembers the first write error so renderers can write freely.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) heading(level int, title string) {
	p.printf("%s\n\n", ui.RenderAccent(strings.Repeat("#", level)+" "+title))
}

func toolchainName(tc *model.Toolchain) string {
	if tc == nil {
		return "none"
	}
	return tc.String()
}

// RenderCurrent writes the current report as markdown.
func RenderCurrent(w io.Writer, r *CurrentReport) error {
	p := &printer{w: w}
	p.heading(1, "Current Report")
	p.printf("* current nightly is %s\n", toolchainName(r.Nightly))
	p.printf("* current beta is %s\n", toolchainName(r.Beta))
	p.printf("* current stable is %s\n", toolchainName(r.Stable))
	return p.err
}

// RenderComparison writes a comparison report as markdown.
func RenderComparison(w io.Writer, r *ComparisonReport) error {
	p := &printer{w: w}
	p.heading(1, "Comparison Report")
	renderComparisonBody(p, r, 2)
	return p.err
}

func renderComparisonBody(p *printer, r *ComparisonReport, level int) {
	if r.From == "" || r.To == "" {
		p.printf("%s\n\n", ui.RenderMuted("No comparison: a toolchain is missing."))
		return
	}
	p.printf("* from %s\n", r.From)
	p.printf("* to %s\n\n", r.To)

	s := r.Summary
	p.printf("* %d working\n", s.Working)
	p.printf("* %d broken\n", s.Broken)
	p.printf("* %s\n", ui.RenderRegressed(fmt.Sprintf("%d regressed", s.Regressed)))
	p.printf("* %s\n", ui.RenderFixed(fmt.Sprintf("%d fixed", s.Fixed)))
	p.printf("* %d unknown\n\n", s.Unknown)

	renderEntries(p, level, "Root regressions", r.RootRegressions, ui.RenderRegressed)
	renderEntries(p, level, "Non-root regressions", r.NonRootRegressions, ui.RenderMuted)
	renderEntries(p, level, "Fixed", r.Fixed, ui.RenderFixed)
}

func renderEntries(p *printer, level int, title string, entries []Entry, style func(string) string) {
	p.heading(level, title)
	if len(entries) == 0 {
		p.printf("%s\n\n", ui.RenderMuted("none"))
		return
	}
	for _, e := range entries {
		p.printf("* %s %s\n", style(e.Name+"-"+e.Version), ui.RenderMuted(fmt.Sprintf("(%d dependents)", e.Popularity)))
	}
	p.printf("\n")
}

// RenderWeekly writes the weekly report as markdown.
func RenderWeekly(w io.Writer, r *WeeklyReport) error {
	p := &printer{w: w}
	p.heading(1, "Weekly Report "+r.Date)
	p.printf("* current nightly is %s\n", toolchainName(r.Current.Nightly))
	p.printf("* current beta is %s\n", toolchainName(r.Current.Beta))
	p.printf("* current stable is %s\n\n", toolchainName(r.Current.Stable))

	p.heading(2, "Beta regressions")
	renderComparisonBody(p, &r.Beta, 3)
	p.heading(2, "Nightly regressions")
	renderComparisonBody(p, &r.Nightly, 3)
	return p.err
}

// RenderPopularity writes the popularity report as markdown.
func RenderPopularity(w io.Writer, r *PopularityReport) error {
	p := &printer{w: w}
	p.heading(1, "Popularity Report")
	for i, pkg := range r.Packages {
		p.printf("%d. %s %s\n", i+1, pkg.Name, ui.RenderMuted(fmt.Sprintf("(%d dependents)", pkg.Count)))
	}
	return p.err
}

// RenderToolchain writes a toolchain report as markdown.
func RenderToolchain(w io.Writer, r *ToolchainReport) error {
	p := &printer{w: w}
	p.heading(1, "Toolchain Report "+r.Toolchain)
	p.printf("* %s\n", ui.RenderFixed(fmt.Sprintf("%d succeeded", r.Successes)))
	p.printf("* %s\n", ui.RenderRegressed(fmt.Sprintf("%d failed", len(r.Failures))))
	p.printf("* %d unknown\n\n", r.Unknown)
	renderEntries(p, 2, "Failures", r.Failures, ui.RenderRegressed)
	return p.err
}
