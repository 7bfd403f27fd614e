// Package interproc implements the four interprocedural passes of
// spec.md §4.I: three summarization passes over the call graph's SCCs
// (numerical and value bottom-up, pointer top-down), then a top-down
// checker pass that consumes their results. Grounded on the teacher's
// pkg/search/search.go, whose Run drives a sequence of passes
// (per-length searches, each populating a shared result.Table) over an
// ordered work list; here the work list is callgraph.SCCs() in reverse
// topological order instead of ascending target lengths, and the
// shared table is a Summary per function instead of a Rule per
// sequence.
package interproc

import (
	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/callgraph"
	"github.com/oisee/ikos/pkg/checker"
	"github.com/oisee/ikos/pkg/fixpoint"
	"github.com/oisee/ikos/pkg/polydomain"
	"github.com/oisee/ikos/pkg/symexec"
)

// Summary is one function's bottom-up analysis result: its return
// abstract state (as observed at every StmtReturn, joined) and the
// per-block invariants its own fixpoint run computed, kept so the
// checker pass can run the same statements again against a seeded
// calling context without re-discovering block structure.
type Summary struct {
	Func     string
	Done     bool
	Return   *polydomain.Domain // join of all StmtReturn pre-states seen
	ReturnOf ar.VarID           // the function's declared return variable, 0 if void
	Blocks   map[string]*polydomain.Domain
}

// Summaries is the shared, append-only table every pass writes into
// and every later pass (and the checker pass) reads from, mirroring
// the teacher's result.Table: safe to read once a function is Done,
// since spec.md §5 guarantees summaries are immutable and freely
// aliased once marked done.
type Summaries struct {
	byFunc map[string]*Summary
}

func NewSummaries() *Summaries {
	return &Summaries{byFunc: map[string]*Summary{}}
}

// Get returns the recorded summary for fn, or nil if none exists yet.
func (s *Summaries) Get(fn string) (*Summary, bool) {
	sm, ok := s.byFunc[fn]
	return sm, ok
}

// Precision selects how much of the pass pipeline spec.md §6's
// `precision` option engages. PrecisionMemory is the zero value so a
// caller that never sets this field still gets the full pipeline.
type Precision uint8

const (
	PrecisionMemory  Precision = iota // numerical + pointer + value + checker
	PrecisionPointer                  // numerical + pointer, no memory checks
	PrecisionInteger                  // numerical only
)

func (p Precision) String() string {
	switch p {
	case PrecisionPointer:
		return "pointer"
	case PrecisionInteger:
		return "integer"
	default:
		return "memory"
	}
}

// Options configures every pass, mirroring the fixpoint.Options a
// single function's analysis needs plus the absolute-zero location
// every polydomain.Domain is built against.
type Options struct {
	Kind      polydomain.Kind
	AbsZero   ar.LocID
	Fixpoint  fixpoint.Options
	Program   *ar.Program
	EntryCtx  func() *polydomain.Domain // builds the ⊤ entry value for a fresh analysis
	Precision Precision

	// MergeCallContexts selects the checker pass's spec.md §6
	// merge_call_contexts option: true joins every calling context per
	// callee into one before checking (reusing PointerSummaries.Contexts
	// directly); false checks once per (function, entry point) pair, a
	// coarser approximation of true per-call-path sensitivity.
	MergeCallContexts bool
	Checker           checker.Options
}

func (o Options) top() *polydomain.Domain {
	if o.EntryCtx != nil {
		return o.EntryCtx()
	}
	return polydomain.New(o.Kind, o.AbsZero)
}

// BuildCallGraph walks every function in prog and records an edge for
// every resolved direct call, matching spec.md §4.G's "unresolved
// indirect calls contribute no call-graph edge" unsoundness note.
func BuildCallGraph(prog *ar.Program) *callgraph.Graph {
	g := callgraph.New()
	for name, fn := range prog.Funcs {
		g.AddFunction(name)
		for _, blk := range fn.Blocks {
			for _, stmt := range blk.Statements {
				if (stmt.Kind == ar.StmtCall || stmt.Kind == ar.StmtInvoke) && stmt.Callee != "" {
					if _, ok := prog.Funcs[stmt.Callee]; ok {
						g.AddCall(name, stmt.Callee)
					}
				}
			}
		}
	}
	return g
}

// returnVarOf finds the VarID a StmtReturn statement carries its value
// in (its Src1, when present and not a constant), used to identify
// which variable in the callee's summary corresponds to the call's Dst.
func returnVarOf(fn *ar.Function) ar.VarID {
	for _, blk := range fn.Blocks {
		for _, stmt := range blk.Statements {
			if stmt.Kind == ar.StmtReturn && !stmt.Src1.IsConst && stmt.Src1.Var != 0 {
				return stmt.Src1.Var
			}
		}
	}
	return fn.Return
}

// runFunction executes one fixpoint pass over fn seeded with entry,
// recording every StmtReturn's pre-state into the returned Summary.
// hooks lets the caller plug in a call-site semantics appropriate to
// the pass (numerical summary application, pointer context recording,
// or value summary composition).
func runFunction(fn *ar.Function, entry *polydomain.Domain, opts Options, hooks symexec.CallHooks) *Summary {
	cfg := ar.FuncCFG{F: fn}
	fopts := opts.Fixpoint
	fopts.Ctx = &symexec.Context{Layout: programLayout(opts.Program), Hooks: hooks}
	result := fixpoint.Run(cfg, entry, fopts)

	sm := &Summary{Func: fn.Name, Done: true, Return: polydomain.Bottom(opts.Kind, opts.AbsZero), ReturnOf: returnVarOf(fn), Blocks: result.Blocks}
	for name, blk := range fn.Blocks {
		pre := result.Blocks[name]
		if pre == nil {
			continue
		}
		state := pre
		for _, stmt := range blk.Statements {
			if stmt.Kind == ar.StmtReturn {
				sm.Return = sm.Return.Join(state)
				break
			}
			var diags []symexec.Diagnostic
			state, diags = symexec.Exec(state, stmt, fopts.Ctx)
			_ = diags
			if state.IsBottom() {
				break
			}
		}
	}
	return sm
}

func programLayout(p *ar.Program) ar.DataLayout {
	if p != nil && p.Layout != nil {
		return p.Layout
	}
	return ar.BasicDataLayout{PtrWidth: 64, LE: true}
}

// materializeCall applies a done callee summary at a call site: the
// return value (if any) is written into the caller's Dst, and the
// call arguments are forgotten in the caller's scalar state to model
// that the callee may have mutated anything reachable through them
// (spec.md §4.I's "forgetting callee-local variables" simplified to
// "forgetting what's reachable through the actuals", since this
// reference implementation has no formal/actual substitution map).
func materializeCall(state *polydomain.Domain, stmt ar.Statement, callee *Summary) *polydomain.Domain {
	nd := state.Clone()
	for _, arg := range stmt.CallArgs {
		nd.Scalar = nd.Scalar.Forget(arg)
	}
	nd.Mem = nd.Mem.Join(callee.Return.Mem)
	if stmt.Dst != 0 && callee.ReturnOf != 0 {
		nd.Scalar = nd.Scalar.Set(stmt.Dst, callee.Return.Scalar.Get(callee.ReturnOf))
	} else if stmt.Dst != 0 {
		nd.Scalar = nd.Scalar.Forget(stmt.Dst)
	}
	return nd
}

// forgetCall is the conservative fallback applied at a call site whose
// callee has no done summary yet (an in-progress SCC member): forget
// the return value and every argument, matching spec.md §4.I's
// "forgets the return value when the callee is still under analysis".
func forgetCall(state *polydomain.Domain, stmt ar.Statement) *polydomain.Domain {
	nd := state.Clone()
	for _, arg := range stmt.CallArgs {
		nd.Scalar = nd.Scalar.Forget(arg)
	}
	if stmt.Dst != 0 {
		nd.Scalar = nd.Scalar.Forget(stmt.Dst)
	}
	nd.Mem = nd.Mem.Join(nd.Mem)
	return nd
}
