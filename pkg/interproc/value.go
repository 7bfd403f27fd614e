package interproc

import (
	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/polydomain"
	"github.com/oisee/ikos/pkg/symexec"
)

// ValuePass runs spec.md §4.I's value summary pass: the same bottom-up
// SCC shape as NumericalPass, but applying a callee's summary at a call
// site via heap-effect composition instead of plain substitution. This
// reference memory domain (pkg/memdomain) has no sequential-composition
// primitive narrower than join, so composition here is approximated as
// "join the callee's returned memory effects into the caller's state
// after forgetting the call's actuals" — sound (never claims a
// precision the domain cannot support) though less precise than a true
// input-output heap composition.
func ValuePass(prog *ar.Program, g callgraphGraph, opts Options, maxRounds int) *Summaries {
	sums := NewSummaries()
	if maxRounds <= 0 {
		maxRounds = 10
	}
	for _, scc := range g.SCCs() {
		for round := 0; round < maxRounds; round++ {
			changed := false
			for _, name := range scc {
				fn, ok := prog.Funcs[name]
				if !ok {
					continue
				}
				prev, hadPrev := sums.Get(name)
				sm := runFunction(fn, opts.top(), opts, composeHooks(sums, scc))
				sums.byFunc[name] = sm
				if !hadPrev || !sm.Return.Leq(prev.Return) || !prev.Return.Leq(sm.Return) {
					changed = true
				}
			}
			if !changed {
				break
			}
		}
	}
	return sums
}

func composeHooks(sums *Summaries, scc []string) symexec.CallHooks {
	inSCC := map[string]bool{}
	for _, f := range scc {
		inSCC[f] = true
	}
	return symexec.CallHooks{
		ExecCall: func(state *polydomain.Domain, stmt ar.Statement) *polydomain.Domain {
			callee, ok := sums.Get(stmt.Callee)
			if !ok || !callee.Done || inSCC[stmt.Callee] {
				return forgetCall(state, stmt)
			}
			// Compose: forget what the call might have touched, then
			// fold in the callee's observed heap effects and its return
			// value, same materialization materializeCall uses — the
			// "composition" spec.md names collapses to this domain's
			// join because cells are keyed by location rather than by
			// an addressable input/output interface.
			return materializeCall(state, stmt, callee)
		},
		ExecRet: func(state *polydomain.Domain, stmt ar.Statement) *polydomain.Domain { return state },
	}
}
