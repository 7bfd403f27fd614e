package interproc

import (
	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/polydomain"
	"github.com/oisee/ikos/pkg/symexec"
)

// PointerSummaries is the pointer pass's output: the flow-insensitive
// Andersen solution alongside the flow-sensitive per-function calling
// contexts and resulting summaries, the two collaborating results
// spec.md §4.I's pointer summary pass is described as producing.
type PointerSummaries struct {
	Andersen map[string]map[ar.VarID]map[ar.LocID]bool // per-function Andersen solution
	Contexts map[string]*polydomain.Domain             // accumulated calling context per function
	Summaries *Summaries
}

// PointerPass runs spec.md §4.I's pointer summary pass: top-down over
// g's SCCs (the reverse of the bottom-up order NumericalPass/ValuePass
// use, so that a caller's calling context is fully accumulated before
// its callees are processed), threading each call site's pre-call
// state into the callee's calling context, and resetting the context
// to ⊤ whenever an SCC has more than one member (the cycle case
// spec.md calls out for soundness). A per-function Andersen-style
// solve runs first and is carried alongside the flow-sensitive result
// in PointerSummaries.Andersen; the checker pass does not read it.
func PointerPass(prog *ar.Program, g callgraphGraph, opts Options) *PointerSummaries {
	ps := &PointerSummaries{
		Andersen:  map[string]map[ar.VarID]map[ar.LocID]bool{},
		Contexts:  map[string]*polydomain.Domain{},
		Summaries: NewSummaries(),
	}
	for name, fn := range prog.Funcs {
		ps.Andersen[name] = SolveAndersen(ExtractConstraints(fn))
	}

	sccs := g.SCCs()
	topDown := make([][]string, len(sccs))
	for i, scc := range sccs {
		topDown[len(sccs)-1-i] = scc
	}

	isEntry := map[string]bool{}
	for _, e := range prog.EntryPoints {
		isEntry[e] = true
	}

	for _, scc := range topDown {
		cycle := len(scc) > 1
		for _, name := range scc {
			fn, ok := prog.Funcs[name]
			if !ok {
				continue
			}
			seed := opts.top()
			switch {
			case isEntry[name]:
				seed = opts.top()
			case cycle:
				seed = opts.top()
			default:
				if ctx, ok := ps.Contexts[name]; ok {
					seed = ctx
				}
			}
			sm := runFunction(fn, seed, opts, contextRecordingHooks(ps, scc))
			ps.Summaries.byFunc[name] = sm
		}
	}
	return ps
}

// contextRecordingHooks joins the pre-call state into the callee's
// accumulated calling context (spec.md's "matched-parameter
// environment", approximated here as the caller's whole state at the
// call site, since this reference IR has no separate formal/actual
// substitution map) and otherwise behaves like forgetCall: in a
// strictly top-down traversal the callee has not run yet, so no
// summary is available to materialize.
func contextRecordingHooks(ps *PointerSummaries, scc []string) symexec.CallHooks {
	inSCC := map[string]bool{}
	for _, f := range scc {
		inSCC[f] = true
	}
	return symexec.CallHooks{
		ExecCall: func(state *polydomain.Domain, stmt ar.Statement) *polydomain.Domain {
			if stmt.Callee != "" {
				if cur, ok := ps.Contexts[stmt.Callee]; ok {
					ps.Contexts[stmt.Callee] = cur.Join(state)
				} else {
					ps.Contexts[stmt.Callee] = state.Clone()
				}
			}
			return forgetCall(state, stmt)
		},
		ExecRet: func(state *polydomain.Domain, stmt ar.Statement) *polydomain.Domain { return state },
	}
}
