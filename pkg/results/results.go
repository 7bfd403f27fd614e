// Package results collects checker.Record values into the report the
// driver finally renders: a mutex-guarded table sorted by severity, a
// dedup set enforcing spec.md §7's "a proved error is reported exactly
// once per (statement, call context)" rule, and a human-readable
// diagnostics stream for symexec's unsoundness warnings. Grounded on
// the teacher's pkg/result/table.go: the same mutex-guarded
// append-then-sort shape, generalized from Rule{BytesSaved,
// CyclesSaved} to checker.Record{Outcome}, sorted by outcome severity
// instead of savings.
package results

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/oisee/ikos/pkg/checker"
	"github.com/oisee/ikos/pkg/symexec"
)

// CallContext identifies the calling context a finding was produced
// under, for spec.md §7's per-(statement, call-context) dedup rule. An
// empty CallContext stands for "analyzed with no calling context
// distinguished" (spec.md §6's merge_call_contexts=true mode).
type CallContext string

// Finding pairs a checker.Record with the function and calling context
// it was produced in.
type Finding struct {
	Func    string
	Context CallContext
	checker.Record
}

// key identifies a Finding for the dedup set: spec.md §7 reports a
// proved error at most once per distinct (statement, call context)
// pair, regardless of how many times the fixpoint iterator or the
// interprocedural passes revisit it.
type key struct {
	fn      string
	ctx     CallContext
	line    int
	col     int
	checker string
}

func keyOf(f Finding) key {
	return key{fn: f.Func, ctx: f.Context, line: f.Stmt.Line, col: f.Stmt.Col, checker: f.Checker}
}

// Table accumulates Findings across every function and checker,
// exactly the way the teacher's pkg/result.Table accumulates Rules
// discovered across the search: a mutex around an append, and a sorted
// read-back.
type Table struct {
	mu      sync.Mutex
	seen    map[key]bool
	entries []Finding
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{seen: map[key]bool{}}
}

// Add records f, unless an equivalent (statement, call context, checker)
// finding has already been recorded. Returns true if f was newly added.
func (t *Table) Add(f Finding) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := keyOf(f)
	if t.seen[k] {
		return false
	}
	t.seen[k] = true
	t.entries = append(t.entries, f)
	return true
}

// severityRank mirrors checker.Outcome.Worse's ordering, used here to
// sort the table worst-first the way the teacher's Rules() sorts
// best-savings-first.
func severityRank(o checker.Outcome) int {
	switch o {
	case checker.Unreachable:
		return 3
	case checker.Error:
		return 2
	case checker.Warning:
		return 1
	default:
		return 0
	}
}

// Findings returns every recorded finding, sorted by Outcome severity
// (Error before Warning before Ok, with Unreachable first since it is
// the strongest proof) and then by source position for a stable,
// reviewable order.
func (t *Table) Findings() []Finding {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Finding, len(t.entries))
	copy(out, t.entries)
	sort.Slice(out, func(i, j int) bool {
		ri, rj := severityRank(out[i].Outcome), severityRank(out[j].Outcome)
		if ri != rj {
			return ri > rj
		}
		if out[i].Func != out[j].Func {
			return out[i].Func < out[j].Func
		}
		if out[i].Stmt.Line != out[j].Stmt.Line {
			return out[i].Stmt.Line < out[j].Stmt.Line
		}
		return out[i].Stmt.Col < out[j].Stmt.Col
	})
	return out
}

// Len reports how many distinct findings have been recorded.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// CountBySeverity tallies recorded findings by their outcome, useful
// for a process exit code (spec.md §6: nonzero on any proved Error).
func (t *Table) CountBySeverity() map[checker.Outcome]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	counts := map[checker.Outcome]int{}
	for _, f := range t.entries {
		counts[f.Outcome]++
	}
	return counts
}

var (
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#B00020", Dark: "#FF6B6B"})
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#8A6D00", Dark: "#F5C518"})
	unreachStyle = lipgloss.NewStyle().Faint(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1B7F3A", Dark: "#73F59F"})
	locStyle     = lipgloss.NewStyle().Faint(true)
)

func styleFor(o checker.Outcome) lipgloss.Style {
	switch o {
	case checker.Error:
		return errorStyle
	case checker.Warning:
		return warningStyle
	case checker.Unreachable:
		return unreachStyle
	default:
		return okStyle
	}
}

// WriteReport renders every Finding in f's sorted order to w, one line
// per finding, coloring the severity label the way a terminal checker
// report conventionally does.
func WriteReport(w io.Writer, findings []Finding) {
	for _, f := range findings {
		label := styleFor(f.Outcome).Render(f.Outcome.String())
		loc := locStyle.Render(fmt.Sprintf("%s:%d:%d", f.Func, f.Stmt.Line, f.Stmt.Col))
		reason := f.Reason
		if reason == "" {
			reason = f.Checker
		}
		fmt.Fprintf(w, "%s %s [%s] %s\n", label, loc, f.Checker, reason)
	}
}

// DiagnosticEntry pairs one symexec.Diagnostic with the function and
// calling context it was raised under, mirroring Finding's shape.
type DiagnosticEntry struct {
	Func    string
	Context CallContext
	symexec.Diagnostic
}

// DiagnosticStream collects unsoundness warnings raised by the
// transfer function (symexec.Diagnostic) separately from proved
// checker findings: these are notes about assumptions the analysis
// made, not claims about program behavior, so they are never subject
// to the dedup rule and are reported every time they are produced.
type DiagnosticStream struct {
	mu      sync.Mutex
	entries []DiagnosticEntry
}

// NewDiagnosticStream returns an empty DiagnosticStream.
func NewDiagnosticStream() *DiagnosticStream {
	return &DiagnosticStream{}
}

// Add appends one diagnostic.
func (s *DiagnosticStream) Add(fn string, ctx CallContext, d symexec.Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, DiagnosticEntry{Func: fn, Context: ctx, Diagnostic: d})
}

// AddAll appends every diagnostic in ds, tagging each with fn and ctx.
func (s *DiagnosticStream) AddAll(fn string, ctx CallContext, ds []symexec.Diagnostic) {
	for _, d := range ds {
		s.Add(fn, ctx, d)
	}
}

// Entries returns every recorded diagnostic in recording order.
func (s *DiagnosticStream) Entries() []DiagnosticEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DiagnosticEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

var diagStyle = lipgloss.NewStyle().Faint(true).Italic(true)

// WriteDiagnostics renders every diagnostic to w, dimmed to visually
// separate "the analysis assumed X" notes from proved findings.
func WriteDiagnostics(w io.Writer, entries []DiagnosticEntry) {
	for _, e := range entries {
		loc := fmt.Sprintf("%s:%d:%d", e.Func, e.Stmt.Line, e.Stmt.Col)
		fmt.Fprintln(w, diagStyle.Render(fmt.Sprintf("note: %s: %s", loc, e.Message)))
	}
}

// RecordCheck is a convenience used by pkg/interproc's checker pass: it
// adds rec to t under (fn, ctx), returning whether it was newly added.
func RecordCheck(t *Table, fn string, ctx CallContext, rec checker.Record) bool {
	return t.Add(Finding{Func: fn, Context: ctx, Record: rec})
}

// FuncFilter restricts findings to a single function, used by
// per-function reporting modes.
func FuncFilter(findings []Finding, fn string) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Func == fn {
			out = append(out, f)
		}
	}
	return out
}
