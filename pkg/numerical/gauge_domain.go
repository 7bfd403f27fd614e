package numerical

import (
	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/lattice"
)

// GaugeDomain is the triple spec.md §4.C describes: a map from loop
// counters to their current "section constant" (the value the counter had
// the last time its section was entered), a semilattice of Gauge bounds
// per variable, the set of variables promoted to loop counters, and a
// backing IntervalDomain used for every variable that isn't (yet) a gauge.
type GaugeDomain struct {
	bot      bool
	section  map[lattice.CounterID]int64
	gauges   map[ar.VarID]lattice.Gauge
	counters map[ar.VarID]lattice.CounterID
	fallback *IntervalDomain
}

func NewGaugeDomain() *GaugeDomain {
	return &GaugeDomain{
		section:  map[lattice.CounterID]int64{},
		gauges:   map[ar.VarID]lattice.Gauge{},
		counters: map[ar.VarID]lattice.CounterID{},
		fallback: NewIntervalDomain(),
	}
}

func BottomGaugeDomain() *GaugeDomain { return &GaugeDomain{bot: true} }

func (d *GaugeDomain) Clone() Domain {
	if d.bot {
		return BottomGaugeDomain()
	}
	nd := &GaugeDomain{
		section:  map[lattice.CounterID]int64{},
		gauges:   map[ar.VarID]lattice.Gauge{},
		counters: map[ar.VarID]lattice.CounterID{},
		fallback: d.fallback.Clone().(*IntervalDomain),
	}
	for k, v := range d.section {
		nd.section[k] = v
	}
	for k, v := range d.gauges {
		nd.gauges[k] = v
	}
	for k, v := range d.counters {
		nd.counters[k] = v
	}
	return nd
}

func (d *GaugeDomain) IsBottom() bool { return d.bot || d.fallback.IsBottom() }

// MarkCounter promotes x to a nonnegative loop counter, the distinguished
// operation spec.md §4.C calls out by name.
func (d *GaugeDomain) MarkCounter(x ar.VarID) *GaugeDomain {
	if d.bot {
		return d
	}
	nd := d.Clone().(*GaugeDomain)
	if _, ok := nd.counters[x]; !ok {
		nd.counters[x] = lattice.CounterID(x)
	}
	nd.fallback = nd.fallback.Refine(x, lattice.Range(0, lattice.PosInf)).(*IntervalDomain)
	return nd
}

// InitCounter resets a counter to a known nonnegative start value c.
func (d *GaugeDomain) InitCounter(x ar.VarID, c int64) *GaugeDomain {
	if d.bot || c < 0 {
		return d
	}
	nd := d.MarkCounter(x)
	k := nd.counters[x]
	nd.section[k] = c
	nd.gauges[x] = lattice.GaugeExact(c)
	nd.fallback = nd.fallback.Set(x, lattice.Cst(c)).(*IntervalDomain)
	return nd
}

// IncrCounter bumps a counter by a nonnegative constant k.
func (d *GaugeDomain) IncrCounter(x ar.VarID, k int64) *GaugeDomain {
	if d.bot || k < 0 {
		return d
	}
	nd := d.Clone().(*GaugeDomain)
	cur := nd.fallback.ToInterval(x)
	nd.fallback = nd.fallback.Set(x, cur.Add(lattice.Cst(k))).(*IntervalDomain)
	if g, ok := nd.gauges[x]; ok {
		nd.gauges[x] = lattice.Gauge{Lo: g.Lo.Add(lattice.GBConst(k)), Hi: g.Hi.Add(lattice.GBConst(k))}
	}
	return nd
}

func (d *GaugeDomain) ToInterval(x ar.VarID) lattice.Interval {
	if d.bot {
		return lattice.Bottom()
	}
	if g, ok := d.gauges[x]; ok {
		return g.ToInterval().Meet(d.fallback.ToInterval(x))
	}
	return d.fallback.ToInterval(x)
}

func (d *GaugeDomain) Set(x ar.VarID, v lattice.Interval) Domain {
	if d.bot {
		return d
	}
	nd := d.Clone().(*GaugeDomain)
	delete(nd.gauges, x)
	nd.fallback = nd.fallback.Set(x, v).(*IntervalDomain)
	return nd
}

func (d *GaugeDomain) Refine(x ar.VarID, v lattice.Interval) Domain {
	if d.bot {
		return d
	}
	return d.Set(x, d.ToInterval(x).Meet(v))
}

func (d *GaugeDomain) Forget(x ar.VarID) Domain {
	if d.bot {
		return d
	}
	nd := d.Clone().(*GaugeDomain)
	delete(nd.gauges, x)
	delete(nd.counters, x)
	nd.fallback = nd.fallback.Forget(x).(*IntervalDomain)
	return nd
}

func (d *GaugeDomain) Assign(x ar.VarID, e Expr) Domain {
	if d.bot {
		return d
	}
	nd := d.Clone().(*GaugeDomain)
	delete(nd.gauges, x)
	nd.fallback = nd.fallback.Assign(x, e).(*IntervalDomain)
	return nd
}

func (d *GaugeDomain) Apply(op ar.ArithOp, dst, a, b ar.VarID, noWrap bool) Domain {
	if d.bot {
		return d
	}
	nd := d.Clone().(*GaugeDomain)
	delete(nd.gauges, dst)
	nd.fallback = nd.fallback.Apply(op, dst, a, b, noWrap).(*IntervalDomain)
	return nd
}

func (d *GaugeDomain) AddConstraint(c Constraint) Domain {
	if d.bot {
		return d
	}
	nd := d.Clone().(*GaugeDomain)
	nd.fallback = nd.fallback.AddConstraint(c).(*IntervalDomain)
	return nd
}

func (d *GaugeDomain) Join(o Domain) Domain {
	od := o.(*GaugeDomain)
	if d.bot {
		return od.Clone()
	}
	if od.bot {
		return d.Clone()
	}
	nd := d.Clone().(*GaugeDomain)
	nd.fallback = nd.fallback.Join(od.fallback).(*IntervalDomain)
	for x, g := range od.gauges {
		if mine, ok := nd.gauges[x]; ok {
			nd.gauges[x] = mine.Join(g)
		}
	}
	for x := range nd.gauges {
		if _, ok := od.gauges[x]; !ok {
			delete(nd.gauges, x)
		}
	}
	return nd
}

func (d *GaugeDomain) Meet(o Domain) Domain {
	od := o.(*GaugeDomain)
	if d.bot || od.bot {
		return BottomGaugeDomain()
	}
	nd := d.Clone().(*GaugeDomain)
	nd.fallback = nd.fallback.Meet(od.fallback).(*IntervalDomain)
	for x, g := range od.gauges {
		if mine, ok := nd.gauges[x]; ok {
			nd.gauges[x] = mine.Meet(g)
		} else {
			nd.gauges[x] = g
		}
	}
	return nd
}

// Widen chooses interval widening when the section-constant map is
// unchanged between iterates, else widens by linear interpolation at the
// counter whose section value moved (spec.md §4.C).
func (d *GaugeDomain) Widen(o Domain) Domain {
	od := o.(*GaugeDomain)
	if d.bot {
		return od.Clone()
	}
	if od.bot {
		return d.Clone()
	}
	nd := d.Clone().(*GaugeDomain)
	nd.fallback = nd.fallback.Widen(od.fallback).(*IntervalDomain)

	movedCounter, u, v, moved := nd.firstMovedSection(od)
	for x, g := range od.gauges {
		mine, ok := nd.gauges[x]
		if !ok {
			continue
		}
		if !moved {
			nd.gauges[x] = mine.WidenExtrapolate(g)
		} else {
			nd.gauges[x] = mine.WidenAtSection(g, movedCounter, u, v)
		}
	}
	for k, v := range od.section {
		nd.section[k] = v
	}
	return nd
}

func (d *GaugeDomain) firstMovedSection(o *GaugeDomain) (k lattice.CounterID, u, v int64, moved bool) {
	for ck, uVal := range d.section {
		if vVal, ok := o.section[ck]; ok && vVal != uVal {
			return ck, uVal, vVal, true
		}
	}
	return 0, 0, 0, false
}

func (d *GaugeDomain) WidenThreshold(o Domain, thresholds []int64) Domain {
	od := o.(*GaugeDomain)
	if d.bot {
		return od.Clone()
	}
	if od.bot {
		return d.Clone()
	}
	nd := d.Widen(od).(*GaugeDomain)
	nd.fallback = nd.fallback.WidenThreshold(od.fallback, thresholds).(*IntervalDomain)
	return nd
}

func (d *GaugeDomain) Narrow(o Domain) Domain {
	od := o.(*GaugeDomain)
	if d.bot || od.bot {
		return BottomGaugeDomain()
	}
	nd := d.Clone().(*GaugeDomain)
	nd.fallback = nd.fallback.Narrow(od.fallback).(*IntervalDomain)
	return nd
}
