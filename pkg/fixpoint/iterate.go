package fixpoint

import (
	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/polydomain"
	"github.com/oisee/ikos/pkg/symexec"
)

// Options configures one fixpoint run, mirroring spec.md §6's
// Configuration table entries widening_delay and threshold availability.
type Options struct {
	WideningDelay int     // pre-widening iterations before widening kicks in
	Thresholds    []int64 // widening-to-threshold candidates, e.g. loop bounds
	NarrowingCap  int     // bounded iteration cap for narrowing; 0 means unbounded until stable
	Ctx           *symexec.Context
}

// Result is the per-block abstract pre-state (the state on entry to each
// block) computed by a fixpoint run.
type Result struct {
	Blocks map[string]*polydomain.Domain
	Diags  []symexec.Diagnostic
}

// Run executes the WTO-based forward iteration of spec.md §4.H over cfg,
// starting the entry block at entry and every other block at bottom. It
// stabilizes each SCC with widening (after WideningDelay plain
// iterations), then narrows to a descending fixpoint or NarrowingCap,
// whichever comes first.
func Run(cfg ar.CFG, entry *polydomain.Domain, opts Options) *Result {
	wto := Build(cfg)
	r := &Result{Blocks: map[string]*polydomain.Domain{}}
	it := &iterator{cfg: cfg, opts: opts, r: r, kind: entry.Kind()}
	it.seed(cfg.EntryName(), entry)
	it.runSeq(wto)
	return r
}

type iterator struct {
	cfg  ar.CFG
	opts Options
	r    *Result
	kind polydomain.Kind
}

func (it *iterator) seed(name string, d *polydomain.Domain) {
	if cur, ok := it.r.Blocks[name]; ok {
		it.r.Blocks[name] = cur.Join(d)
		return
	}
	it.r.Blocks[name] = d
}

// get returns the current abstract state at name, or bottom if control
// has not yet reached it.
func (it *iterator) get(name string) *polydomain.Domain {
	if d, ok := it.r.Blocks[name]; ok {
		return d
	}
	return polydomain.Bottom(it.kind, 0)
}

// runSeq processes a flat WTO sequence once; a nested element (a loop
// component) is stabilized in place via stabilizeLoop before control
// passes to whatever follows it.
func (it *iterator) runSeq(elems []WTOElem) {
	for _, e := range elems {
		if e.IsVertex {
			it.processVertex(e.Head)
			continue
		}
		it.stabilizeLoop(e)
	}
}

// processVertex runs the transfer function over every statement of the
// named block and propagates the resulting state to each successor.
func (it *iterator) processVertex(name string) {
	in := it.get(name)
	out := in
	blk := it.cfg.Block(name)
	if blk != nil {
		for _, stmt := range blk.Statements {
			var diags []symexec.Diagnostic
			out, diags = symexec.Exec(out, stmt, it.opts.Ctx)
			it.r.Diags = append(it.r.Diags, diags...)
			if out.IsBottom() {
				break
			}
		}
	}
	if out.IsBottom() {
		return
	}
	for _, succ := range it.cfg.Successors(name) {
		it.seed(succ, out.Clone())
	}
}

// stabilizeLoop runs the head-plus-body of one WTO component repeatedly:
// plain iterations for opts.WideningDelay rounds, then widening (or
// widening-to-threshold, when thresholds are configured) at the head
// until the post-widening state is no bigger than the previous one, then
// a narrowing phase bounded by opts.NarrowingCap.
func (it *iterator) stabilizeLoop(comp WTOElem) {
	head := comp.Head
	for _, k := range it.loopCounters(comp) {
		it.r.Blocks[head] = it.get(head).PromoteLoopCounter(k)
	}
	round := 0
	for {
		before := it.get(head)
		it.processVertex(head)
		it.runSeq(comp.Nested)
		after := it.get(head)

		round++
		if round <= it.opts.WideningDelay {
			continue
		}

		var widened *polydomain.Domain
		if len(it.opts.Thresholds) > 0 {
			widened = widenWithThreshold(before, after, it.opts.Thresholds)
		} else {
			widened = before.Widen(after)
		}
		it.r.Blocks[head] = widened
		if widened.Leq(before) {
			break
		}
	}
	it.narrowLoop(comp)
}

// narrowLoop refines the widened invariant by re-running the body and
// narrowing at the head, stopping at a descending fixpoint or the
// configured iteration cap (spec.md §4.H step 3).
func (it *iterator) narrowLoop(comp WTOElem) {
	head := comp.Head
	cap := it.opts.NarrowingCap
	for i := 0; cap == 0 || i < cap; i++ {
		before := it.get(head)
		it.processVertex(head)
		it.runSeq(comp.Nested)
		after := it.get(head)
		narrowed := before.Narrow(after)
		it.r.Blocks[head] = narrowed
		if narrowed.Leq(before) && before.Leq(narrowed) {
			break
		}
	}
}

func widenWithThreshold(before, after *polydomain.Domain, thresholds []int64) *polydomain.Domain {
	return before.WidenThreshold(after, thresholds)
}

// loopCounters scans a WTO component's vertices for the syntactic pattern
// spec.md §4.H names: a variable incremented by a positive constant and
// assigned back to itself (x = x + c, c > 0). It is a syntactic heuristic,
// not a proof of nonnegativity or of constant stride on every path; a
// promoted counter stays promoted for the rest of the component's
// iteration.
func (it *iterator) loopCounters(comp WTOElem) []ar.VarID {
	var out []ar.VarID
	seen := map[ar.VarID]bool{}
	visit := func(name string) {
		blk := it.cfg.Block(name)
		if blk == nil {
			return
		}
		for _, stmt := range blk.Statements {
			if stmt.Kind != ar.StmtArith || stmt.ArithOp != ar.OpAdd {
				continue
			}
			if stmt.Src1.IsConst || stmt.Src1.Var != stmt.Dst {
				continue
			}
			if !stmt.Src2.IsConst || stmt.Src2.Const <= 0 {
				continue
			}
			if !seen[stmt.Dst] {
				seen[stmt.Dst] = true
				out = append(out, stmt.Dst)
			}
		}
	}
	visit(comp.Head)
	for _, e := range comp.Nested {
		if e.IsVertex {
			visit(e.Head)
		}
	}
	return out
}
