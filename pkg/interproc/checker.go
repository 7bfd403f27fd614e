package interproc

import (
	"golang.org/x/sync/errgroup"

	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/checker"
	"github.com/oisee/ikos/pkg/fixpoint"
	"github.com/oisee/ikos/pkg/polydomain"
	"github.com/oisee/ikos/pkg/results"
	"github.com/oisee/ikos/pkg/symexec"
)

// CheckerPass runs spec.md §4.I's top-down checker pass: each function
// is re-run with its calling context (merged per callee when
// opts.MergeCallContexts is set, otherwise once per entry point that
// reaches it), invoking pkg/checker at every memory access and
// recording the outcome into tab. Entry points are always analyzed
// with a ⊤ context, per spec.md's "entry points are analyzed with ⊤
// context".
//
// Entry points (or, in merged mode, functions) are checked concurrently
// via errgroup: each goroutine only reads the summaries and writes its
// findings and diagnostics into tab and diags, which guard themselves
// with a mutex — the one parallel boundary DESIGN.md grounds on the
// teacher's pkg/search/worker.go pool, kept strictly outside any single
// function's sequential fixpoint.
func CheckerPass(prog *ar.Program, ps *PointerSummaries, callSums *Summaries, opts Options, tab *results.Table, diags *results.DiagnosticStream) error {
	cctx := &checker.Context{Locations: prog.Locations, Opts: opts.Checker}

	if opts.MergeCallContexts {
		isEntry := map[string]bool{}
		for _, e := range prog.EntryPoints {
			isEntry[e] = true
		}
		var g errgroup.Group
		for name := range prog.Funcs {
			name := name
			g.Go(func() error {
				seed := opts.top()
				if ctx, ok := ps.Contexts[name]; ok && !isEntry[name] {
					seed = ctx
				}
				checkFunction(prog, name, results.CallContext("merged"), seed, callSums, cctx, opts, tab, diags)
				return nil
			})
		}
		return g.Wait()
	}

	entries := prog.EntryPoints
	if len(entries) == 0 {
		for name := range prog.Funcs {
			entries = append(entries, name)
		}
	}
	var g errgroup.Group
	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			checkReachable(prog, entry, entry, map[string]bool{}, callSums, cctx, opts, tab, diags)
			return nil
		})
	}
	return g.Wait()
}

// checkReachable walks the call graph depth-first from fn, checking
// each reachable function once under the (entry, fn) call context; a
// visited set bounds this to the acyclic unrolling implied by a
// finite call graph (recursion is cut off, matching the cycle
// unsoundness note spec.md §4.G already documents for call edges).
func checkReachable(prog *ar.Program, entry, fn string, visited map[string]bool, callSums *Summaries, cctx *checker.Context, opts Options, tab *results.Table, diags *results.DiagnosticStream) {
	if visited[fn] {
		return
	}
	visited[fn] = true
	f, ok := prog.Funcs[fn]
	if !ok {
		return
	}
	// Every function reachable from entry is checked with a ⊤ seed: a
	// true per-call-path context would need the formal/actual
	// substitution infrastructure spec.md's matched-parameter
	// environment implies, which this reference IR does not carry: see
	// DESIGN.md.
	checkFunction(prog, fn, results.CallContext(entry), opts.top(), callSums, cctx, opts, tab, diags)

	for _, blk := range f.Blocks {
		for _, stmt := range blk.Statements {
			if (stmt.Kind == ar.StmtCall || stmt.Kind == ar.StmtInvoke) && stmt.Callee != "" {
				checkReachable(prog, entry, stmt.Callee, visited, callSums, cctx, opts, tab, diags)
			}
		}
	}
}

// checkFunction re-runs fn's fixpoint seeded by seed, invoking the
// buffer-overflow checker at every load/store and recording findings
// under callCtx.
func checkFunction(prog *ar.Program, fn string, callCtx results.CallContext, seed *polydomain.Domain, callSums *Summaries, cctx *checker.Context, opts Options, tab *results.Table, diags *results.DiagnosticStream) {
	f, ok := prog.Funcs[fn]
	if !ok {
		return
	}
	hooks := symexec.CallHooks{
		ExecCall: func(state *polydomain.Domain, stmt ar.Statement) *polydomain.Domain {
			if callSums != nil {
				if callee, ok := callSums.Get(stmt.Callee); ok && callee.Done {
					return materializeCall(state, stmt, callee)
				}
			}
			return forgetCall(state, stmt)
		},
		ExecRet: func(state *polydomain.Domain, stmt ar.Statement) *polydomain.Domain { return state },
	}

	cfg := ar.FuncCFG{F: f}
	fopts := opts.Fixpoint
	fopts.Ctx = &symexec.Context{Layout: programLayout(prog), Hooks: hooks}

	result := fixpoint.Run(cfg, seed, fopts)
	for name, blk := range f.Blocks {
		pre, ok := result.Blocks[name]
		if !ok {
			continue
		}
		state := pre
		for _, stmt := range blk.Statements {
			switch stmt.Kind {
			case ar.StmtLoad:
				rec := checker.BufferOverflow(state, stmt.Ptr.Var, sizeOf(state, stmt), stmt, cctx)
				results.RecordCheck(tab, fn, callCtx, rec)
			case ar.StmtStore:
				rec := checker.BufferOverflow(state, stmt.Ptr.Var, sizeOf(state, stmt), stmt, cctx)
				results.RecordCheck(tab, fn, callCtx, rec)
			case ar.StmtMemCpy, ar.StmtMemMove, ar.StmtMemSet:
				rec := checker.BufferOverflow(state, stmt.Ptr.Var, sizeOf(state, stmt), stmt, cctx)
				results.RecordCheck(tab, fn, callCtx, rec)
			}
			var stepDiags []symexec.Diagnostic
			state, stepDiags = symexec.Exec(state, stmt, fopts.Ctx)
			diags.AddAll(fn, callCtx, stepDiags)
			if state.IsBottom() {
				break
			}
		}
	}
}

func sizeOf(state *polydomain.Domain, stmt ar.Statement) int64 {
	if stmt.Size.IsConst {
		return stmt.Size.Const
	}
	if n, ok := state.ToInterval(stmt.Size.Var).Singleton(); ok {
		return n
	}
	return 1
}
