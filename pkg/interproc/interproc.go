package interproc

import (
	"github.com/oisee/ikos/pkg/results"
)

// Report is everything the driver needs after running all four passes
// of spec.md §4.I: the finding table, the diagnostics stream, and the
// intermediate summaries, kept around for a `-explain` style dump.
type Report struct {
	Findings    *results.Table
	Diagnostics *results.DiagnosticStream
	Numerical   *Summaries
	Value       *Summaries
	Pointer     *PointerSummaries
}

// Analyze runs the interprocedural pipeline of spec.md §4.I over
// opts.Program, gated by opts.Precision: PrecisionInteger runs only the
// numerical summary pass; PrecisionPointer adds the pointer pass;
// PrecisionMemory (the zero value) runs the full four-pass pipeline,
// matching the teacher's pkg/search.Run orchestration shape (a fixed
// sequence of passes populating one shared result table) generalized
// from ascending-target-length passes to the spec's fixed pass order.
func Analyze(opts Options) *Report {
	prog := opts.Program
	g := BuildCallGraph(prog)

	tab := results.NewTable()
	diags := results.NewDiagnosticStream()
	report := &Report{Findings: tab, Diagnostics: diags}

	report.Numerical = NumericalPass(prog, g, opts, 0)
	if opts.Precision == PrecisionInteger {
		return report
	}

	report.Pointer = PointerPass(prog, g, opts)
	if opts.Precision == PrecisionPointer {
		return report
	}

	report.Value = ValuePass(prog, g, opts, 0)
	// CheckerPass's errgroup never returns an error (every checkFunction
	// call swallows its own work into tab/diags and returns nil), so the
	// error here is always nil and is discarded.
	_ = CheckerPass(prog, report.Pointer, report.Value, opts, tab, diags)

	return report
}
