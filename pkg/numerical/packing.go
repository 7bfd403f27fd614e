package numerical

import (
	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/lattice"
)

// Packing partitions the variable universe into disjoint packs via
// union-find; each pack holds an independent instance of a wrapped
// relational domain (e.g. a DBM), so relational reasoning only pays its
// O(n^2) cost within small packs instead of across every variable in the
// program. Grounded on the implicit grouping in the teacher's
// pkg/stoke/mutator.go (which groups instruction-sequence positions before
// mutating them together), generalized into an explicit union-find.
type Packing struct {
	bot       bool
	parent    map[ar.VarID]ar.VarID
	packs     map[ar.VarID]Domain // keyed by pack root
	newDomain func() Domain
}

func NewPacking(newDomain func() Domain) *Packing {
	return &Packing{parent: map[ar.VarID]ar.VarID{}, packs: map[ar.VarID]Domain{}, newDomain: newDomain}
}

func (p *Packing) BottomLike() *Packing {
	return &Packing{bot: true, newDomain: p.newDomain}
}

func (p *Packing) find(x ar.VarID) ar.VarID {
	root, ok := p.parent[x]
	if !ok {
		p.parent[x] = x
		return x
	}
	if root == x {
		return x
	}
	r := p.find(root)
	p.parent[x] = r
	return r
}

// ensure returns the domain instance for x's pack, creating a singleton
// pack if x is new.
func (p *Packing) ensure(x ar.VarID) (ar.VarID, Domain) {
	root := p.find(x)
	d, ok := p.packs[root]
	if !ok {
		d = p.newDomain()
		p.packs[root] = d
	}
	return root, d
}

// unionStructure merges the union-find classes of a and b without
// touching either's domain; the caller is responsible for deciding what
// the merged pack's domain should be.
func (p *Packing) unionStructure(a, b ar.VarID) ar.VarID {
	ra, _ := p.ensure(a)
	rb, _ := p.ensure(b)
	if ra == rb {
		return ra
	}
	p.parent[rb] = ra
	return ra
}

// union merges the packs of a and b, combining their domains with Meet so
// that facts known under either grouping still hold after the merge (used
// by Assign/Apply/AddConstraint, which must not lose precision just
// because two variables are now mentioned in the same expression).
func (p *Packing) union(a, b ar.VarID) ar.VarID {
	ra, da := p.ensure(a)
	rb, db := p.ensure(b)
	if ra == rb {
		return ra
	}
	merged := da.Meet(db)
	p.parent[rb] = ra
	p.packs[ra] = merged
	delete(p.packs, rb)
	return ra
}

func (p *Packing) Clone() Domain {
	if p.bot {
		return p.BottomLike()
	}
	np := &Packing{parent: map[ar.VarID]ar.VarID{}, packs: map[ar.VarID]Domain{}, newDomain: p.newDomain}
	for k, v := range p.parent {
		np.parent[k] = v
	}
	for k, v := range p.packs {
		np.packs[k] = v.Clone()
	}
	return np
}

func (p *Packing) IsBottom() bool {
	if p.bot {
		return true
	}
	for _, d := range p.packs {
		if d.IsBottom() {
			return true
		}
	}
	return false
}

func (p *Packing) ToInterval(x ar.VarID) Interval {
	if p.bot {
		return lattice.Bottom()
	}
	_, d := p.ensure(x)
	return d.ToInterval(x)
}

// Forget removes x from its pack. Per spec.md §4.C, this splits off a
// remnant pack: the remaining variables stay together (rooted at the pack
// root, or re-rooted at a survivor if x itself was the root), while x
// becomes its own singleton pack in a fresh domain instance.
func (p *Packing) Forget(x ar.VarID) Domain {
	if p.bot {
		return p
	}
	np := p.Clone().(*Packing)
	root, d := np.ensure(x)
	remaining := d.Forget(x)
	if root == x {
		survivor := ar.VarID(0)
		found := false
		for v, r := range np.parent {
			if r == root && v != x {
				survivor = v
				found = true
				break
			}
		}
		delete(np.packs, root)
		if found {
			np.parent[survivor] = survivor
			np.packs[survivor] = remaining
			for v, r := range np.parent {
				if r == root {
					np.parent[v] = survivor
				}
			}
		}
	} else {
		np.packs[root] = remaining
	}
	np.parent[x] = x
	np.packs[x] = np.newDomain()
	return np
}

func exprVars(e Expr) []ar.VarID {
	vs := make([]ar.VarID, 0, len(e.Terms))
	for _, t := range e.Terms {
		vs = append(vs, t.Var)
	}
	return vs
}

// Assign unions the packs of every variable mentioned in e with x's pack,
// then delegates the assignment to the merged pack's domain.
func (p *Packing) Assign(x ar.VarID, e Expr) Domain {
	if p.bot {
		return p
	}
	np := p.Clone().(*Packing)
	root, _ := np.ensure(x)
	for _, v := range exprVars(e) {
		root = np.union(root, v)
	}
	np.packs[root] = np.packs[root].Assign(x, e)
	return np
}

func (p *Packing) Apply(op ar.ArithOp, dst, a, b ar.VarID, noWrap bool) Domain {
	if p.bot {
		return p
	}
	np := p.Clone().(*Packing)
	root := np.union(np.union(dst, a), b)
	np.packs[root] = np.packs[root].Apply(op, dst, a, b, noWrap)
	return np
}

func (p *Packing) AddConstraint(c Constraint) Domain {
	if p.bot {
		return p
	}
	np := p.Clone().(*Packing)
	vs := exprVars(c.Expr)
	if len(vs) == 0 {
		return np
	}
	root := vs[0]
	np.ensure(root)
	for _, v := range vs[1:] {
		root = np.union(root, v)
	}
	np.packs[root] = np.packs[root].AddConstraint(c)
	return np
}

func (p *Packing) Set(x ar.VarID, v Interval) Domain {
	if p.bot {
		return p
	}
	np := p.Clone().(*Packing)
	root, d := np.ensure(x)
	np.packs[root] = d.Set(x, v)
	return np
}

func (p *Packing) Refine(x ar.VarID, v Interval) Domain {
	if p.bot {
		return p
	}
	np := p.Clone().(*Packing)
	root, d := np.ensure(x)
	np.packs[root] = d.Refine(x, v)
	return np
}

// Join aligns packs by first forgetting every variable not common to both
// sides (per spec.md: "forgetting disjoint variables first then merging"),
// then joining the per-pack domains root-by-root.
func (p *Packing) Join(o Domain) Domain {
	op := o.(*Packing)
	if p.bot {
		return op.Clone()
	}
	if op.bot {
		return p.Clone()
	}
	pCommon := p.restrictToCommon(op)
	oCommon := op.restrictToCommon(p)
	return pCommon.mergeRootwise(oCommon, func(a, b Domain) Domain { return a.Join(b) })
}

func (p *Packing) Meet(o Domain) Domain {
	op := o.(*Packing)
	if p.bot || op.bot {
		return p.BottomLike()
	}
	return p.mergeRootwise(op, func(a, b Domain) Domain { return a.Meet(b) })
}

func (p *Packing) Widen(o Domain) Domain {
	op := o.(*Packing)
	if p.bot {
		return op.Clone()
	}
	if op.bot {
		return p.Clone()
	}
	return p.mergeRootwise(op, func(a, b Domain) Domain { return a.Widen(b) })
}

// WidenThreshold also applies per-pack; per spec.md §9's Open Question,
// a threshold is used by a pack as soon as any one of its member
// variables contributed it, which can widen a pack that a non-packed
// domain would not have widened yet. This over-approximation is
// deliberate and documented in DESIGN.md.
func (p *Packing) WidenThreshold(o Domain, thresholds []int64) Domain {
	op := o.(*Packing)
	if p.bot {
		return op.Clone()
	}
	if op.bot {
		return p.Clone()
	}
	return p.mergeRootwise(op, func(a, b Domain) Domain { return a.WidenThreshold(b, thresholds) })
}

func (p *Packing) Narrow(o Domain) Domain {
	op := o.(*Packing)
	if p.bot || op.bot {
		return p.BottomLike()
	}
	return p.mergeRootwise(op, func(a, b Domain) Domain { return a.Narrow(b) })
}

// restrictToCommon forgets every variable present in p but absent from o,
// used by Join to satisfy spec.md's "forget disjoint variables first".
func (p *Packing) restrictToCommon(o *Packing) *Packing {
	np := p.Clone().(*Packing)
	for v := range np.parent {
		if _, ok := o.parent[v]; !ok {
			np = np.Forget(v).(*Packing)
		}
	}
	return np
}

// mergeRootwise rebuilds packing structure as the union (in the union-find
// sense) of both operands' groupings, then computes each merged pack's
// domain once via combine, using one representative variable's domain
// from each side.
func (p *Packing) mergeRootwise(o *Packing, combine func(a, b Domain) Domain) *Packing {
	r := NewPacking(p.newDomain)
	allVars := map[ar.VarID]bool{}
	for v := range p.parent {
		allVars[v] = true
	}
	for v := range o.parent {
		allVars[v] = true
	}
	for v := range allVars {
		r.unionStructure(p.find(v), v)
	}
	for v := range allVars {
		r.unionStructure(o.find(v), v)
	}
	done := map[ar.VarID]bool{}
	for v := range allVars {
		rroot := r.find(v)
		if done[rroot] {
			continue
		}
		done[rroot] = true
		_, pd := p.ensure(v)
		_, od := o.ensure(v)
		r.packs[rroot] = combine(pd, od)
	}
	return r
}
