package lattice

// CounterID names a nonnegative loop counter variable usable inside a
// gauge bound's linear expression. Ownership of the numeric identity
// belongs to the variable factory (pkg/ar); this package only needs a
// comparable key.
type CounterID int

// GaugeBound is c + Σ kᵢ·xᵢ over nonnegative loop counters xᵢ, or one of
// the two infinities.
type GaugeBound struct {
	PlusInf  bool
	MinusInf bool
	Const    int64
	Coeffs   map[CounterID]int64 // zero-valued entries are pruned eagerly
}

func GBConst(c int64) GaugeBound { return GaugeBound{Const: c} }
func GBPlusInf() GaugeBound      { return GaugeBound{PlusInf: true} }
func GBMinusInf() GaugeBound     { return GaugeBound{MinusInf: true} }

func (g GaugeBound) clone() GaugeBound {
	if g.PlusInf || g.MinusInf {
		return g
	}
	cp := GaugeBound{Const: g.Const}
	if len(g.Coeffs) > 0 {
		cp.Coeffs = make(map[CounterID]int64, len(g.Coeffs))
		for k, v := range g.Coeffs {
			cp.Coeffs[k] = v
		}
	}
	return cp
}

// Magnitude is the syntactic heuristic spec.md §4.B calls for: the sum of
// the constant and every coefficient, used to pick a conservative bound
// when two gauge bounds are not structurally comparable.
func (g GaugeBound) Magnitude() int64 {
	if g.PlusInf {
		return PosInf
	}
	if g.MinusInf {
		return NegInf
	}
	m := g.Const
	for _, c := range g.Coeffs {
		m += c
	}
	return m
}

// sameShape reports whether two bounds mention exactly the same counters
// with the same coefficients, the precondition for an exact (non-heuristic)
// structural comparison.
func (g GaugeBound) sameShape(h GaugeBound) bool {
	if len(g.Coeffs) != len(h.Coeffs) {
		return false
	}
	for k, v := range g.Coeffs {
		if h.Coeffs[k] != v {
			return false
		}
	}
	return true
}

// Add combines two bounds; coefficients of shared counters sum.
func (g GaugeBound) Add(h GaugeBound) GaugeBound {
	if g.PlusInf || h.PlusInf {
		return GBPlusInf()
	}
	if g.MinusInf || h.MinusInf {
		return GBMinusInf()
	}
	r := g.clone()
	r.Const += h.Const
	if len(h.Coeffs) > 0 {
		if r.Coeffs == nil {
			r.Coeffs = make(map[CounterID]int64, len(h.Coeffs))
		}
		for k, v := range h.Coeffs {
			r.Coeffs[k] += v
			if r.Coeffs[k] == 0 {
				delete(r.Coeffs, k)
			}
		}
	}
	return r
}

// Sub subtracts h from g.
func (g GaugeBound) Sub(h GaugeBound) GaugeBound {
	return g.Add(h.MulScalar(-1))
}

// MulScalar scales every term by k. A negative k flips which infinity the
// bound denotes.
func (g GaugeBound) MulScalar(k int64) GaugeBound {
	if g.PlusInf {
		if k < 0 {
			return GBMinusInf()
		}
		if k == 0 {
			return GBConst(0)
		}
		return GBPlusInf()
	}
	if g.MinusInf {
		if k < 0 {
			return GBPlusInf()
		}
		if k == 0 {
			return GBConst(0)
		}
		return GBMinusInf()
	}
	r := GaugeBound{Const: g.Const * k}
	if len(g.Coeffs) > 0 {
		r.Coeffs = make(map[CounterID]int64, len(g.Coeffs))
		for c, v := range g.Coeffs {
			if nv := v * k; nv != 0 {
				r.Coeffs[c] = nv
			}
		}
	}
	return r
}

// leqExact reports (ok, leq): ok is true only when the two bounds share
// the same counters, in which case leq says whether g <= h pointwise.
func (g GaugeBound) leqExact(h GaugeBound) (ok, leq bool) {
	if g.MinusInf || h.PlusInf {
		return true, true
	}
	if g.PlusInf || h.MinusInf {
		return true, g.PlusInf && h.PlusInf
	}
	if !g.sameShape(h) {
		return false, false
	}
	return true, g.Const <= h.Const
}

// Min is the pointwise-or-heuristic lesser bound, used when computing the
// lower bound of a Join (a Gauge join keeps the loosest interval, i.e. the
// smaller Lo and the larger Hi).
func (g GaugeBound) Min(h GaugeBound) GaugeBound {
	if ok, leq := g.leqExact(h); ok {
		if leq {
			return g
		}
		return h
	}
	if g.Magnitude() <= h.Magnitude() {
		return g
	}
	return h
}

// Max is the pointwise-or-heuristic greater bound.
func (g GaugeBound) Max(h GaugeBound) GaugeBound {
	if ok, leq := g.leqExact(h); ok {
		if leq {
			return h
		}
		return g
	}
	if g.Magnitude() >= h.Magnitude() {
		return g
	}
	return h
}

// WidenExtrapolate is plain interval-style widening applied to the
// constant term: if the bound grew since the previous iterate, snap to
// infinity. Used by the gauge domain when the section-constant map is
// stable (pkg/numerical's GaugeBound widening mode).
func (g GaugeBound) WidenExtrapolate(h GaugeBound, wideningIsUpper bool) GaugeBound {
	if !g.sameShape(h) {
		// Structure changed entirely; fall back to copying the coefficient
		// set of the newer operand, per spec.md's "falls back to copying
		// the coefficient from the newer operand" rule.
		return h
	}
	if wideningIsUpper {
		if h.Const > g.Const {
			return GBPlusInf()
		}
		return g
	}
	if h.Const < g.Const {
		return GBMinusInf()
	}
	return g
}

// WidenInterpolate implements widening by linear interpolation at a
// section variable k whose value moves from u to v across the widened
// iteration: the new per-counter slope is (h(v) - g(u)) / (v - u),
// rounded outward (away from the existing bound) to stay sound.
func (g GaugeBound) WidenInterpolate(h GaugeBound, k CounterID, u, v int64, roundUp bool) GaugeBound {
	if v == u {
		return h
	}
	gu := g.Const
	hv := h.Const
	num := hv - gu
	den := v - u
	slope := num / den
	if roundUp && num%den != 0 && (num < 0) == (den < 0) {
		slope++
	} else if !roundUp && num%den != 0 && (num < 0) != (den < 0) {
		slope--
	}
	r := GaugeBound{Const: gu - slope*u}
	if slope != 0 {
		r.Coeffs = map[CounterID]int64{k: slope}
	}
	return r
}

// Gauge is a pair of gauge bounds: a lower bound and an upper bound over
// the same variable, the symbolic analogue of an Interval.
type Gauge struct {
	Bot bool
	Lo  GaugeBound
	Hi  GaugeBound
}

func GaugeTop() Gauge    { return Gauge{Lo: GBMinusInf(), Hi: GBPlusInf()} }
func GaugeBottom() Gauge { return Gauge{Bot: true} }
func GaugeExact(c int64) Gauge {
	return Gauge{Lo: GBConst(c), Hi: GBConst(c)}
}

func (g Gauge) IsBottom() bool { return g.Bot }

func (g Gauge) Join(h Gauge) Gauge {
	if g.Bot {
		return h
	}
	if h.Bot {
		return g
	}
	return Gauge{Lo: g.Lo.Min(h.Lo), Hi: g.Hi.Max(h.Hi)}
}

func (g Gauge) Meet(h Gauge) Gauge {
	if g.Bot || h.Bot {
		return GaugeBottom()
	}
	return Gauge{Lo: g.Lo.Max(h.Lo), Hi: g.Hi.Min(h.Hi)}
}

// WidenExtrapolate widens both bounds the interval way.
func (g Gauge) WidenExtrapolate(h Gauge) Gauge {
	if g.Bot {
		return h
	}
	if h.Bot {
		return g
	}
	return Gauge{Lo: g.Lo.WidenExtrapolate(h.Lo, false), Hi: g.Hi.WidenExtrapolate(h.Hi, true)}
}

// WidenAtSection widens by linear interpolation at the given section
// variable and values, the mode the gauge domain selects when the
// section-constant map changed between iterations.
func (g Gauge) WidenAtSection(h Gauge, k CounterID, u, v int64) Gauge {
	if g.Bot {
		return h
	}
	if h.Bot {
		return g
	}
	return Gauge{
		Lo: g.Lo.WidenInterpolate(h.Lo, k, u, v, false),
		Hi: g.Hi.WidenInterpolate(h.Hi, k, u, v, true),
	}
}

// ToInterval drops all symbolic counters: a bound with no counter
// coefficients keeps its constant, and a bound that depends on any loop
// counter becomes -inf (lower) or +inf (upper) instead of being evaluated
// at an unknown counter value.
func (g Gauge) ToInterval() Interval {
	if g.Bot {
		return Bottom()
	}
	lo := NegInf
	if g.Lo.MinusInf {
		lo = NegInf
	} else if len(g.Lo.Coeffs) == 0 {
		lo = g.Lo.Const
	}
	hi := PosInf
	if g.Hi.PlusInf {
		hi = PosInf
	} else if len(g.Hi.Coeffs) == 0 {
		hi = g.Hi.Const
	}
	return Range(lo, hi)
}
