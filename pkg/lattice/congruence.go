package lattice

import "github.com/oisee/ikos/pkg/mint"

// Congruence is aZ+b: the set of integers congruent to b modulo a, with
// the spec's normalization a >= 0, 0 <= b < a unless a == 0 (in which case
// the congruence denotes the single value b, i.e. an exact constant).
type Congruence struct {
	Bot bool
	A   uint64
	B   int64
}

func CongTop() Congruence { return Congruence{A: 1, B: 0} }
func CongBottom() Congruence { return Congruence{Bot: true} }
func CongCst(v int64) Congruence { return Congruence{A: 0, B: v} }

func normalizeB(a uint64, b int64) int64 {
	if a == 0 {
		return b
	}
	m := b % int64(a)
	if m < 0 {
		m += int64(a)
	}
	return m
}

// Cong builds a normalized aZ+b.
func Cong(a uint64, b int64) Congruence {
	return Congruence{A: a, B: normalizeB(a, b)}
}

func (c Congruence) IsBottom() bool { return c.Bot }
func (c Congruence) IsTop() bool    { return !c.Bot && c.A == 1 }

// Contains reports whether v belongs to the congruence class.
func (c Congruence) Contains(v int64) bool {
	if c.Bot {
		return false
	}
	if c.A == 0 {
		return v == c.B
	}
	return normalizeB(c.A, v) == c.B
}

// Leq is the partial order: c ⊑ d when c's modulus is a multiple of d's
// and c's residue lies in d's class (the larger modulus is the more
// precise one); a constant is below every class that contains it.
func (c Congruence) Leq(d Congruence) bool {
	if c.Bot {
		return true
	}
	if d.Bot {
		return false
	}
	if d.A == 0 {
		return c.A == 0 && c.B == d.B
	}
	if c.A == 0 {
		return d.Contains(c.B)
	}
	return c.A%d.A == 0 && normalizeB(d.A, c.B) == d.B
}

// Join computes the congruence generated by both operands: the modulus
// becomes gcd(a1, a2, |b1-b2|), the standard construction for aZ+b join.
func (c Congruence) Join(d Congruence) Congruence {
	if c.Bot {
		return d
	}
	if d.Bot {
		return c
	}
	diff := c.B - d.B
	if diff < 0 {
		diff = -diff
	}
	a := mint.Gcd(mint.Gcd(c.A, d.A), uint64(diff))
	if a == 0 {
		// Both operands are the same exact constant.
		return CongCst(c.B)
	}
	return Cong(a, c.B)
}

// Meet intersects two congruence classes via Chinese Remainder-style
// reduction; returns Bottom when the classes are provably disjoint.
func (c Congruence) Meet(d Congruence) Congruence {
	if c.Bot || d.Bot {
		return CongBottom()
	}
	if c.A == 0 {
		if d.Contains(c.B) {
			return c
		}
		return CongBottom()
	}
	if d.A == 0 {
		if c.Contains(d.B) {
			return d
		}
		return CongBottom()
	}
	g := mint.Gcd(c.A, d.A)
	if (c.B-d.B)%int64(g) != 0 {
		return CongBottom()
	}
	lcm := c.A / g * d.A
	// Search the combined residue in [0, lcm) by CRT-by-search; lcm is
	// small in practice (widths bounded by machine word sizes).
	for r := int64(0); r < int64(lcm); r++ {
		if normalizeB(c.A, r) == c.B && normalizeB(d.A, r) == d.B {
			return Cong(lcm, r)
		}
	}
	return CongBottom()
}

// Widen for congruences is simply Join: a strictly ascending chain of
// moduli has at most O(log(a)) steps, so no separate widening operator is
// required for termination (this mirrors IKOS's treatment of congruences).
func (c Congruence) Widen(d Congruence) Congruence { return c.Join(d) }

// Narrow is the identity on the second operand when it refines the first.
func (c Congruence) Narrow(d Congruence) Congruence {
	if d.Leq(c) {
		return d
	}
	return c
}
