package lattice

// IntervalCongruence pairs an Interval with a Congruence and keeps them
// reduced: tightening the interval to the congruence's nearest in-range
// representatives, and vice versa, until a fixed point.
type IntervalCongruence struct {
	I Interval
	C Congruence
}

func ICTop() IntervalCongruence    { return IntervalCongruence{I: Top(), C: CongTop()} }
func ICBottom() IntervalCongruence { return IntervalCongruence{I: Bottom(), C: CongBottom()} }
func ICCst(v int64) IntervalCongruence {
	return IntervalCongruence{I: Cst(v), C: CongCst(v)}
}

func (ic IntervalCongruence) IsBottom() bool {
	return ic.I.IsBottom() || ic.C.IsBottom()
}

// Reduce tightens the interval bounds to the nearest values congruent to
// C, and iterates until neither component can shrink further.
func (ic IntervalCongruence) Reduce() IntervalCongruence {
	for {
		if ic.I.IsBottom() || ic.C.IsBottom() {
			return ICBottom()
		}
		newI := ic.I
		if ic.C.A > 0 && newI.Lo != NegInf {
			newI.Lo = nearestCongruentAtOrAbove(newI.Lo, ic.C)
		}
		if ic.C.A > 0 && newI.Hi != PosInf {
			newI.Hi = nearestCongruentAtOrBelow(newI.Hi, ic.C)
		}
		if ic.C.A == 0 {
			if v, ok := ic.C.B, true; ok {
				newI = Range(max(newI.Lo, v), min(newI.Hi, v))
				if newI.Bot && !(newI.Lo <= v && v <= newI.Hi) {
					newI = Bottom()
				}
			}
		}
		if newI.Bot || newI.Lo > newI.Hi {
			return ICBottom()
		}
		if newI == ic.I {
			ic.I = newI
			return ic
		}
		ic.I = newI
	}
}

func nearestCongruentAtOrAbove(lo int64, c Congruence) int64 {
	r := normalizeB(c.A, lo)
	if r == c.B {
		return lo
	}
	delta := c.B - r
	if delta < 0 {
		delta += int64(c.A)
	}
	return lo + delta
}

func nearestCongruentAtOrBelow(hi int64, c Congruence) int64 {
	r := normalizeB(c.A, hi)
	if r == c.B {
		return hi
	}
	delta := r - c.B
	if delta < 0 {
		delta += int64(c.A)
	}
	return hi - delta
}

func (ic IntervalCongruence) Leq(jc IntervalCongruence) bool {
	return ic.I.Leq(jc.I) && ic.C.Leq(jc.C)
}

func (ic IntervalCongruence) Join(jc IntervalCongruence) IntervalCongruence {
	return IntervalCongruence{I: ic.I.Join(jc.I), C: ic.C.Join(jc.C)}.Reduce()
}

func (ic IntervalCongruence) Meet(jc IntervalCongruence) IntervalCongruence {
	return IntervalCongruence{I: ic.I.Meet(jc.I), C: ic.C.Meet(jc.C)}.Reduce()
}

func (ic IntervalCongruence) Widen(jc IntervalCongruence) IntervalCongruence {
	return IntervalCongruence{I: ic.I.Widen(jc.I), C: ic.C.Widen(jc.C)}
}

func (ic IntervalCongruence) Narrow(jc IntervalCongruence) IntervalCongruence {
	return IntervalCongruence{I: ic.I.Narrow(jc.I), C: ic.C.Narrow(jc.C)}.Reduce()
}
