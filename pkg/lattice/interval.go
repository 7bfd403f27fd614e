// Package lattice implements the small, independently-testable abstract
// values used throughout the analyzer: intervals, congruences, gauges,
// constants, points-to sets, and pointer abstract values. Every type here
// is a complete lattice (Bot, Top, Join, Meet, Leq) and the relational
// numerical domains in pkg/numerical are built out of maps keyed by
// variable holding these values.
package lattice

import "fmt"

// Bound sentinels standing in for -infinity / +infinity. Using sentinel
// int64 values (rather than a boxed "is-infinite" flag per bound) keeps
// Interval a small, trivially-copyable value type, the way the teacher's
// cpu.State stays a flat struct of machine words instead of pointers.
const (
	NegInf = int64(-1) << 62
	PosInf = int64(1) << 62
)

// Interval is [Lo, Hi] over the extended integers, or the empty set (Bot).
type Interval struct {
	Bot bool
	Lo  int64
	Hi  int64
}

// Top is the unconstrained interval.
func Top() Interval { return Interval{Lo: NegInf, Hi: PosInf} }

// Bottom is the empty interval.
func Bottom() Interval { return Interval{Bot: true} }

// Cst builds the singleton interval {v}.
func Cst(v int64) Interval { return Interval{Lo: v, Hi: v} }

// Range builds [lo, hi], normalizing lo > hi to Bottom.
func Range(lo, hi int64) Interval {
	if lo > hi {
		return Bottom()
	}
	return Interval{Lo: lo, Hi: hi}
}

func (i Interval) IsBottom() bool { return i.Bot }
func (i Interval) IsTop() bool    { return !i.Bot && i.Lo == NegInf && i.Hi == PosInf }

// Singleton returns (v, true) when the interval denotes exactly one value.
func (i Interval) Singleton() (int64, bool) {
	if i.Bot || i.Lo != i.Hi {
		return 0, false
	}
	return i.Lo, true
}

func min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
func max(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// Leq is the partial order: i ⊑ j.
func (i Interval) Leq(j Interval) bool {
	if i.Bot {
		return true
	}
	if j.Bot {
		return false
	}
	return j.Lo <= i.Lo && i.Hi <= j.Hi
}

// Join is ⊔ (convex hull, since Interval cannot represent holes).
func (i Interval) Join(j Interval) Interval {
	if i.Bot {
		return j
	}
	if j.Bot {
		return i
	}
	return Interval{Lo: min(i.Lo, j.Lo), Hi: max(i.Hi, j.Hi)}
}

// Meet is ⊓ (intersection).
func (i Interval) Meet(j Interval) Interval {
	if i.Bot || j.Bot {
		return Bottom()
	}
	return Range(max(i.Lo, j.Lo), min(i.Hi, j.Hi))
}

// Widen is the classical interval widening: any bound that moved during
// this iteration snaps to infinity.
func (i Interval) Widen(j Interval) Interval {
	if i.Bot {
		return j
	}
	if j.Bot {
		return i
	}
	lo, hi := i.Lo, i.Hi
	if j.Lo < i.Lo {
		lo = NegInf
	}
	if j.Hi > i.Hi {
		hi = PosInf
	}
	return Interval{Lo: lo, Hi: hi}
}

// WidenThreshold widens each moved bound to the tightest threshold that
// still bounds it, or to infinity if no threshold does.
func (i Interval) WidenThreshold(j Interval, thresholds []int64) Interval {
	if i.Bot {
		return j
	}
	if j.Bot {
		return i
	}
	lo, hi := i.Lo, i.Hi
	if j.Lo < i.Lo {
		lo = NegInf
		for _, t := range thresholds {
			if t <= j.Lo && t > lo {
				lo = t
			}
		}
	}
	if j.Hi > i.Hi {
		hi = PosInf
		for _, t := range thresholds {
			if t >= j.Hi && t < hi {
				hi = t
			}
		}
	}
	return Interval{Lo: lo, Hi: hi}
}

// Narrow is reductive: it only tightens bounds that were previously
// infinite, never moving a finite bound (narrowing must not un-widen a
// legitimately-reached finite bound).
func (i Interval) Narrow(j Interval) Interval {
	if i.Bot || j.Bot {
		return Bottom()
	}
	lo, hi := i.Lo, i.Hi
	if i.Lo == NegInf {
		lo = j.Lo
	}
	if i.Hi == PosInf {
		hi = j.Hi
	}
	return Range(lo, hi)
}

func addSat(a, b int64) int64 {
	if a == NegInf || b == NegInf {
		return NegInf
	}
	if a == PosInf || b == PosInf {
		return PosInf
	}
	return a + b
}

// Add is interval addition [l1+l2, h1+h2], saturating at infinity.
func (i Interval) Add(j Interval) Interval {
	if i.Bot || j.Bot {
		return Bottom()
	}
	return Interval{Lo: addSat(i.Lo, j.Lo), Hi: addSat(i.Hi, j.Hi)}
}

// Sub is interval subtraction.
func (i Interval) Sub(j Interval) Interval {
	return i.Add(Interval{Lo: negSat(j.Hi), Hi: negSat(j.Lo)})
}

func negSat(a int64) int64 {
	switch a {
	case PosInf:
		return NegInf
	case NegInf:
		return PosInf
	default:
		return -a
	}
}

// Mul is interval multiplication by the four-corners rule.
func (i Interval) Mul(j Interval) Interval {
	if i.Bot || j.Bot {
		return Bottom()
	}
	corners := []int64{
		mulSat(i.Lo, j.Lo), mulSat(i.Lo, j.Hi),
		mulSat(i.Hi, j.Lo), mulSat(i.Hi, j.Hi),
	}
	lo, hi := corners[0], corners[0]
	for _, c := range corners[1:] {
		lo = min(lo, c)
		hi = max(hi, c)
	}
	return Interval{Lo: lo, Hi: hi}
}

func mulSat(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a == NegInf || b == NegInf || a == PosInf || b == PosInf {
		negative := (a < 0) != (b < 0)
		if negative {
			return NegInf
		}
		return PosInf
	}
	return a * b
}

func (i Interval) String() string {
	if i.Bot {
		return "⊥"
	}
	lo, hi := "", ""
	if i.Lo == NegInf {
		lo = "-oo"
	} else {
		lo = fmt.Sprintf("%d", i.Lo)
	}
	if i.Hi == PosInf {
		hi = "+oo"
	} else {
		hi = fmt.Sprintf("%d", i.Hi)
	}
	return fmt.Sprintf("[%s, %s]", lo, hi)
}
