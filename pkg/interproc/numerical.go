package interproc

import (
	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/polydomain"
	"github.com/oisee/ikos/pkg/symexec"
)

// NumericalPass runs spec.md §4.I's numerical summary pass: bottom-up
// over g's SCCs in reverse topological order, each function started
// with ⊤, recursion (a call to a not-yet-done SCC member) forgetting
// the return value and call arguments rather than looping forever.
// An SCC of size > 1 is iterated as a whole until every member's
// summary stabilizes (Leq against the previous round) or maxRounds is
// reached, matching spec.md §5's single-threaded, deterministic
// fixpoint discipline — the call-graph cycle gets its own small
// fixpoint over summaries, same shape as the per-function one.
func NumericalPass(prog *ar.Program, g callgraphGraph, opts Options, maxRounds int) *Summaries {
	sums := NewSummaries()
	for _, scc := range g.SCCs() {
		stabilizeSCC(prog, scc, sums, opts, maxRounds)
	}
	return sums
}

// callgraphGraph is a narrow interface over *callgraph.Graph so this
// file does not need to import callgraph directly (summary.go already
// does, and BuildCallGraph returns the concrete type); kept here only
// to avoid a second heavy import in every pass file.
type callgraphGraph interface {
	SCCs() [][]string
}

func stabilizeSCC(prog *ar.Program, scc []string, sums *Summaries, opts Options, maxRounds int) {
	if maxRounds <= 0 {
		maxRounds = 10
	}
	for round := 0; round < maxRounds; round++ {
		changed := false
		for _, name := range scc {
			fn, ok := prog.Funcs[name]
			if !ok {
				continue
			}
			prev, hadPrev := sums.Get(name)
			sm := runFunction(fn, opts.top(), opts, summaryHooks(sums, scc, name))
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

// summaryHooks builds the call-site semantics for a function being
// analyzed as part of scc: a call to a member still inside this same
// SCC's in-progress round uses forgetCall (the cycle case spec.md §4.I
// names); a call to anything already Done (including a sibling SCC's
// function that finished in an earlier, prior iteration of the outer
// loop) applies its materialized summary.
func summaryHooks(sums *Summaries, scc []string, caller string) symexec.CallHooks {
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
			return materializeCall(state, stmt, callee)
		},
		ExecRet: func(state *polydomain.Domain, stmt ar.Statement) *polydomain.Domain {
			return state
		},
	}
}
