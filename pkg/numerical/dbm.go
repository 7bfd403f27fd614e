package numerical

import (
	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/lattice"
)

// zeroVar is the implicit reference node every DBM relates variables to,
// standing for the constant 0 (so a unary bound "x <= c" is stored as the
// binary constraint "x - zeroVar <= c").
const zeroVar ar.VarID = -1

// edge is an ordered pair (from, to); DBM[e] bounds `from - to`.
type edge struct{ from, to ar.VarID }

// DBM is a difference-bound matrix domain: a set of constraints "x - y <=
// c", closed under Floyd-Warshall. Grounded on pkg/search/pruner.go's
// regMask bit tricks (a small dense relation over a bounded key space),
// generalized from an 8-register bitmask to a sparse variable-pair map.
type DBM struct {
	bot     bool
	bounds  map[edge]int64 // absence means +inf (no constraint)
	varsSet map[ar.VarID]struct{}
}

func NewDBM() *DBM { return &DBM{bounds: map[edge]int64{}, varsSet: map[ar.VarID]struct{}{}} }
func BottomDBM() *DBM { return &DBM{bot: true} }

func (d *DBM) bound(from, to ar.VarID) int64 {
	if from == to {
		return 0
	}
	if v, ok := d.bounds[edge{from, to}]; ok {
		return v
	}
	return lattice.PosInf
}

func (d *DBM) setBound(from, to ar.VarID, c int64) {
	if from == to {
		return
	}
	if cur, ok := d.bounds[edge{from, to}]; ok && cur <= c {
		return
	}
	d.bounds[edge{from, to}] = c
	d.varsSet[from] = struct{}{}
	d.varsSet[to] = struct{}{}
}

// vars returns every variable (plus the implicit zero node) the matrix
// currently mentions.
func (d *DBM) vars() []ar.VarID {
	vs := make([]ar.VarID, 0, len(d.varsSet)+1)
	for v := range d.varsSet {
		vs = append(vs, v)
	}
	vs = append(vs, zeroVar)
	return vs
}

// close runs Floyd-Warshall to derive all implied bounds, recomputed from
// scratch each time it's needed; this is a reference implementation, not
// an incrementally-maintained one (a real analyzer would maintain closure
// incrementally per spec.md's performance goals, out of scope here).
func (d *DBM) close() *DBM {
	if d.bot {
		return d
	}
	vs := d.vars()
	nd := d.Clone().(*DBM)
	for _, k := range vs {
		for _, i := range vs {
			ik := nd.bound(i, k)
			if ik == lattice.PosInf {
				continue
			}
			for _, j := range vs {
				kj := nd.bound(k, j)
				if kj == lattice.PosInf {
					continue
				}
				if i == j && ik+kj < 0 {
					return BottomDBM()
				}
				if ik+kj < nd.bound(i, j) {
					nd.setBound(i, j, ik+kj)
				}
			}
		}
	}
	for _, v := range vs {
		if v != zeroVar && nd.bound(v, v) < 0 {
			return BottomDBM()
		}
	}
	return nd
}

func (d *DBM) Clone() Domain {
	if d.bot {
		return BottomDBM()
	}
	nb := make(map[edge]int64, len(d.bounds))
	for k, v := range d.bounds {
		nb[k] = v
	}
	nv := make(map[ar.VarID]struct{}, len(d.varsSet))
	for k := range d.varsSet {
		nv[k] = struct{}{}
	}
	return &DBM{bounds: nb, varsSet: nv}
}

func (d *DBM) IsBottom() bool { return d.bot }

// ToInterval projects x - zeroVar's bounds to [-bound(zero,x), bound(x,zero)].
func (d *DBM) ToInterval(x ar.VarID) lattice.Interval {
	if d.bot {
		return lattice.Bottom()
	}
	cd := d.close()
	hi := cd.bound(x, zeroVar)
	loNeg := cd.bound(zeroVar, x)
	lo := lattice.NegInf
	if loNeg != lattice.PosInf {
		lo = -loNeg
	}
	return lattice.Range(lo, hi)
}

func (d *DBM) Set(x ar.VarID, v lattice.Interval) Domain {
	if d.bot {
		return d
	}
	if v.IsBottom() {
		return BottomDBM()
	}
	nd := d.Clone().(*DBM)
	delete(nd.bounds, edge{x, zeroVar})
	delete(nd.bounds, edge{zeroVar, x})
	if v.Hi != lattice.PosInf {
		nd.setBound(x, zeroVar, v.Hi)
	}
	if v.Lo != lattice.NegInf {
		nd.setBound(zeroVar, x, -v.Lo)
	}
	return nd.close()
}

func (d *DBM) Refine(x ar.VarID, v lattice.Interval) Domain {
	if d.bot {
		return d
	}
	cur := d.ToInterval(x)
	return d.Set(x, cur.Meet(v))
}

func (d *DBM) Forget(x ar.VarID) Domain {
	if d.bot {
		return d
	}
	nd := d.Clone().(*DBM)
	for _, v := range nd.vars() {
		delete(nd.bounds, edge{x, v})
		delete(nd.bounds, edge{v, x})
	}
	delete(nd.varsSet, x)
	return nd
}

// AddConstraint adds "x - y <= c" directly when the expression is exactly
// that shape (two terms, +1/-1 coefficients); anything else degrades to a
// single-variable bound via the Interval fallback, matching the
// non-relational domains' documented "sound no-op on unrepresentable
// constraints" behavior.
func (d *DBM) AddConstraint(c Constraint) Domain {
	if d.bot {
		return d
	}
	e := c.Expr
	if len(e.Terms) == 2 &&
		((e.Terms[0].Coeff == 1 && e.Terms[1].Coeff == -1) ||
			(e.Terms[0].Coeff == -1 && e.Terms[1].Coeff == 1)) {
		x, y := e.Terms[0].Var, e.Terms[1].Var
		if e.Terms[0].Coeff == -1 {
			x, y = y, x
		}
		bound := -e.Const
		nd := d.Clone().(*DBM)
		switch c.Op {
		case Leq:
			nd.setBound(x, y, bound)
		case Lt:
			nd.setBound(x, y, bound-1)
		default:
			return d
		}
		return nd.close()
	}
	if len(e.Terms) == 1 {
		x := e.Terms[0].Var
		coeff := e.Terms[0].Coeff
		bound := -e.Const
		switch c.Op {
		case Leq:
			if coeff == 1 {
				return d.Refine(x, lattice.Range(lattice.NegInf, bound))
			}
		case Geq:
			if coeff == 1 {
				return d.Refine(x, lattice.Range(bound, lattice.PosInf))
			}
		}
	}
	return d
}

func (d *DBM) Assign(x ar.VarID, e Expr) Domain {
	if d.bot {
		return d
	}
	v := evalExprInterval(e, d.ToInterval)
	forgotten := d.Forget(x).(*DBM)
	// Preserve a direct relation when the assignment is exactly y + c or
	// y - c against a DIFFERENT variable y, the one case a DBM can
	// represent precisely; x - y <= c is meaningless when y == x (that's
	// a recurrence, not a relation), so a self-referential assignment
	// like x := x + c falls back to the plain interval bound computed
	// above, the only sound representation a DBM has for it.
	if len(e.Terms) == 1 && e.Terms[0].Coeff == 1 && e.Terms[0].Var != x {
		y := e.Terms[0].Var
		nd := forgotten.Clone().(*DBM)
		nd.setBound(x, y, e.Const)
		nd.setBound(y, x, -e.Const)
		return nd.close()
	}
	return forgotten.Set(x, v)
}

func (d *DBM) Apply(op ar.ArithOp, dst, a, b ar.VarID, noWrap bool) Domain {
	if d.bot {
		return d
	}
	if op == ar.OpAdd {
		return d.Assign(dst, Expr{Terms: []Term{{Var: a, Coeff: 1}}}.addVar(b))
	}
	av, bv := d.ToInterval(a), d.ToInterval(b)
	var r lattice.Interval
	switch op {
	case ar.OpAdd:
		r = av.Add(bv)
	case ar.OpSub:
		r = av.Sub(bv)
	case ar.OpMul:
		r = av.Mul(bv)
	default:
		r = lattice.Top()
	}
	return d.Forget(dst).(*DBM).Set(dst, r)
}

func (e Expr) addVar(v ar.VarID) Expr {
	e.Terms = append(append([]Term{}, e.Terms...), Term{Var: v, Coeff: 1})
	return e
}

func (d *DBM) Join(o Domain) Domain {
	od := o.(*DBM)
	if d.bot {
		return od.Clone()
	}
	if od.bot {
		return d.Clone()
	}
	dc, oc := d.close(), od.close()
	r := NewDBM()
	for _, v := range unionVars(dc, oc) {
		for _, w := range unionVars(dc, oc) {
			if v == w {
				continue
			}
			b := max64(dc.bound(v, w), oc.bound(v, w))
			if b != lattice.PosInf {
				r.setBound(v, w, b)
			}
		}
	}
	return r
}

func (d *DBM) Meet(o Domain) Domain {
	od := o.(*DBM)
	if d.bot || od.bot {
		return BottomDBM()
	}
	r := d.Clone().(*DBM)
	for _, v := range unionVars(d, od) {
		for _, w := range unionVars(d, od) {
			if v == w {
				continue
			}
			b := od.bound(v, w)
			if b != lattice.PosInf {
				r.setBound(v, w, b)
			}
		}
	}
	return r.close()
}

func (d *DBM) Widen(o Domain) Domain {
	od := o.(*DBM)
	if d.bot {
		return od.Clone()
	}
	if od.bot {
		return d.Clone()
	}
	dc, oc := d.close(), od.close()
	r := NewDBM()
	for _, v := range unionVars(dc, oc) {
		for _, w := range unionVars(dc, oc) {
			if v == w {
				continue
			}
			db, ob := dc.bound(v, w), oc.bound(v, w)
			if ob != lattice.PosInf && ob <= db {
				r.setBound(v, w, db)
			}
			// a bound absent or looser in the new iterate is dropped
			// (widened to +inf), the DBM analogue of interval widening.
		}
	}
	return r
}

func (d *DBM) WidenThreshold(o Domain, thresholds []int64) Domain {
	// Same extrapolation as Widen, but a dropped bound is re-tightened to
	// the nearest threshold that still covers the new iterate's bound.
	od := o.(*DBM)
	if d.bot {
		return od.Clone()
	}
	if od.bot {
		return d.Clone()
	}
	dc, oc := d.close(), od.close()
	r := NewDBM()
	for _, v := range unionVars(dc, oc) {
		for _, w := range unionVars(dc, oc) {
			if v == w {
				continue
			}
			db, ob := dc.bound(v, w), oc.bound(v, w)
			if ob != lattice.PosInf && ob <= db {
				r.setBound(v, w, db)
				continue
			}
			if ob == lattice.PosInf {
				continue
			}
			best := lattice.PosInf
			for _, t := range thresholds {
				if t >= ob && t < best {
					best = t
				}
			}
			if best != lattice.PosInf {
				r.setBound(v, w, best)
			}
		}
	}
	return r
}

func (d *DBM) Narrow(o Domain) Domain {
	od := o.(*DBM)
	if d.bot || od.bot {
		return BottomDBM()
	}
	r := d.Clone().(*DBM)
	for _, v := range unionVars(d, od) {
		for _, w := range unionVars(d, od) {
			if v == w {
				continue
			}
			if r.bound(v, w) == lattice.PosInf {
				if b := od.bound(v, w); b != lattice.PosInf {
					r.setBound(v, w, b)
				}
			}
		}
	}
	return r.close()
}

func unionVars(a, b *DBM) []ar.VarID {
	seen := map[ar.VarID]struct{}{zeroVar: {}}
	var out []ar.VarID
	for _, v := range a.vars() {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	for _, v := range b.vars() {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
