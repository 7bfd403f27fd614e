package numerical

import (
	"maps"

	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/lattice"
)

// IntervalDomain is the simplest Domain: a non-relational map from
// variable to Interval, pointwise joined/met/widened. Grounded on the
// teacher's cpu.State: a flat map of independently-updated fields, here
// generalized from eight fixed registers to an open map of variables.
type IntervalDomain struct {
	bot bool
	env map[ar.VarID]lattice.Interval
}

// NewIntervalDomain returns ⊤ (no variable constrained == every variable
// implicitly ⊤ on lookup).
func NewIntervalDomain() *IntervalDomain {
	return &IntervalDomain{env: map[ar.VarID]lattice.Interval{}}
}

func BottomIntervalDomain() *IntervalDomain {
	return &IntervalDomain{bot: true}
}

func (d *IntervalDomain) get(x ar.VarID) lattice.Interval {
	if d.bot {
		return lattice.Bottom()
	}
	if v, ok := d.env[x]; ok {
		return v
	}
	return lattice.Top()
}

func (d *IntervalDomain) Clone() Domain {
	if d.bot {
		return BottomIntervalDomain()
	}
	return &IntervalDomain{env: maps.Clone(d.env)}
}

func (d *IntervalDomain) ToInterval(x ar.VarID) lattice.Interval { return d.get(x) }

func (d *IntervalDomain) IsBottom() bool { return d.bot }

func (d *IntervalDomain) set(x ar.VarID, v lattice.Interval) *IntervalDomain {
	nd := d.Clone().(*IntervalDomain)
	if v.IsBottom() {
		return BottomIntervalDomain()
	}
	nd.env[x] = v
	return nd
}

func (d *IntervalDomain) Set(x ar.VarID, v lattice.Interval) Domain {
	if d.bot {
		return d
	}
	return d.set(x, v)
}

func (d *IntervalDomain) Refine(x ar.VarID, v lattice.Interval) Domain {
	if d.bot {
		return d
	}
	return d.set(x, d.get(x).Meet(v))
}

func (d *IntervalDomain) Forget(x ar.VarID) Domain {
	if d.bot {
		return d
	}
	nd := d.Clone().(*IntervalDomain)
	delete(nd.env, x)
	return nd
}

func (d *IntervalDomain) Assign(x ar.VarID, e Expr) Domain {
	if d.bot {
		return d
	}
	v := evalExprInterval(e, d.get)
	return d.set(x, v)
}

func (d *IntervalDomain) Apply(op ar.ArithOp, dst, a, b ar.VarID, noWrap bool) Domain {
	if d.bot {
		return d
	}
	av, bv := d.get(a), d.get(b)
	var r lattice.Interval
	switch op {
	case ar.OpAdd:
		r = av.Add(bv)
	case ar.OpSub:
		r = av.Sub(bv)
	case ar.OpMul:
		r = av.Mul(bv)
	default:
		// Non-linear/bitwise ops without a precise interval transfer
		// collapse to top, matching spec.md's "forget" fallback for
		// operations the domain cannot represent precisely.
		r = lattice.Top()
	}
	return d.set(dst, r)
}

func (d *IntervalDomain) AddConstraint(c Constraint) Domain {
	if d.bot {
		return d
	}
	// Only single-variable constraints (x OP const) are representable in
	// a non-relational domain; anything else is a sound no-op.
	if len(c.Expr.Terms) != 1 || c.Expr.Terms[0].Coeff != 1 {
		return d
	}
	x := c.Expr.Terms[0].Var
	bound := -c.Expr.Const
	cur := d.get(x)
	var refined lattice.Interval
	switch c.Op {
	case Leq:
		refined = cur.Meet(lattice.Range(lattice.NegInf, bound))
	case Lt:
		refined = cur.Meet(lattice.Range(lattice.NegInf, bound-1))
	case Geq:
		refined = cur.Meet(lattice.Range(bound, lattice.PosInf))
	case Gt:
		refined = cur.Meet(lattice.Range(bound+1, lattice.PosInf))
	case Eq:
		refined = cur.Meet(lattice.Cst(bound))
	default:
		refined = cur
	}
	return d.set(x, refined)
}

func (d *IntervalDomain) Join(o Domain) Domain {
	od := o.(*IntervalDomain)
	if d.bot {
		return od.Clone()
	}
	if od.bot {
		return d.Clone()
	}
	r := NewIntervalDomain()
	for x := range allKeys(d.env, od.env) {
		r.env[x] = d.get(x).Join(od.get(x))
	}
	return r
}

func (d *IntervalDomain) Meet(o Domain) Domain {
	od := o.(*IntervalDomain)
	if d.bot || od.bot {
		return BottomIntervalDomain()
	}
	r := NewIntervalDomain()
	for x := range allKeys(d.env, od.env) {
		v := d.get(x).Meet(od.get(x))
		if v.IsBottom() {
			return BottomIntervalDomain()
		}
		r.env[x] = v
	}
	return r
}

func (d *IntervalDomain) Widen(o Domain) Domain {
	od := o.(*IntervalDomain)
	if d.bot {
		return od.Clone()
	}
	if od.bot {
		return d.Clone()
	}
	r := NewIntervalDomain()
	for x := range allKeys(d.env, od.env) {
		r.env[x] = d.get(x).Widen(od.get(x))
	}
	return r
}

func (d *IntervalDomain) WidenThreshold(o Domain, thresholds []int64) Domain {
	od := o.(*IntervalDomain)
	if d.bot {
		return od.Clone()
	}
	if od.bot {
		return d.Clone()
	}
	r := NewIntervalDomain()
	for x := range allKeys(d.env, od.env) {
		r.env[x] = d.get(x).WidenThreshold(od.get(x), thresholds)
	}
	return r
}

func (d *IntervalDomain) Narrow(o Domain) Domain {
	od := o.(*IntervalDomain)
	if d.bot || od.bot {
		return BottomIntervalDomain()
	}
	r := NewIntervalDomain()
	for x := range allKeys(d.env, od.env) {
		r.env[x] = d.get(x).Narrow(od.get(x))
	}
	return r
}

func allKeys(a, b map[ar.VarID]lattice.Interval) map[ar.VarID]struct{} {
	r := make(map[ar.VarID]struct{}, len(a)+len(b))
	for k := range a {
		r[k] = struct{}{}
	}
	for k := range b {
		r[k] = struct{}{}
	}
	return r
}
