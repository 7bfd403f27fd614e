package lattice

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// intervalFixtures plays the role of the teacher's verifier.go TestVectors:
// a small fixed set of values exhaustively cross-checked against every
// lattice law in spec.md §8, instead of sampling at random.
var intervalFixtures = []Interval{
	Bottom(), Top(), Cst(0), Cst(5), Range(-3, 3), Range(0, 10), Range(-10, -1),
}

func TestIntervalReflexiveAndTransitive(t *testing.T) {
	for _, a := range intervalFixtures {
		require.True(t, a.Leq(a))
		for _, b := range intervalFixtures {
			for _, c := range intervalFixtures {
				if a.Leq(b) && b.Leq(c) {
					require.True(t, a.Leq(c), "Leq must be transitive: %v <= %v <= %v", a, b, c)
				}
			}
		}
	}
}

func TestIntervalJoinMeetLaws(t *testing.T) {
	for _, a := range intervalFixtures {
		for _, b := range intervalFixtures {
			require.Equal(t, a.Join(b), b.Join(a), "join must commute")
			require.Equal(t, a.Meet(b), b.Meet(a), "meet must commute")
			require.Equal(t, a, Bottom().Join(a), "bottom is join identity")
			require.True(t, a.Leq(a.Join(b)))
			require.True(t, b.Leq(a.Join(b)))
			require.True(t, a.Meet(b).Leq(a))
		}
	}
}

func TestIntervalWideningInflationary(t *testing.T) {
	for _, a := range intervalFixtures {
		for _, b := range intervalFixtures {
			w := a.Widen(b)
			require.True(t, a.Leq(w), "widening must be inflationary on the left operand")
			require.True(t, b.Leq(w), "widening must be inflationary on the right operand")
		}
	}
}

func TestIntervalWideningStabilizes(t *testing.T) {
	// An ascending chain produced by repeatedly joining a growing interval
	// must stabilize within a bounded number of widening steps.
	cur := Cst(0)
	for i := 0; i < 100; i++ {
		grown := Range(-int64(i)-1, int64(i)+1)
		next := cur.Widen(cur.Join(grown))
		if next == cur {
			return
		}
		cur = next
	}
	t.Fatal("widening sequence did not stabilize in 100 steps")
}

func TestIntervalNarrowingReductive(t *testing.T) {
	for _, a := range intervalFixtures {
		for _, b := range intervalFixtures {
			n := a.Narrow(b)
			require.True(t, a.Meet(b).Leq(n))
			require.True(t, n.Leq(a))
		}
	}
}

func TestIntervalArithmeticCommutes(t *testing.T) {
	for _, a := range intervalFixtures {
		for _, b := range intervalFixtures {
			require.Equal(t, a.Add(b), b.Add(a))
			require.Equal(t, a.Mul(b), b.Mul(a))
		}
	}
}

var congFixtures = []Congruence{
	CongBottom(), CongTop(), CongCst(4), Cong(2, 0), Cong(3, 1), Cong(6, 2),
}

func TestCongruenceLattice(t *testing.T) {
	for _, a := range congFixtures {
		require.True(t, a.Leq(a))
		for _, b := range congFixtures {
			require.Equal(t, a.Join(b), b.Join(a))
			require.True(t, a.Leq(a.Join(b)))
			require.True(t, a.Meet(b).Leq(a))
		}
	}
}

func TestIntervalCongruenceReduction(t *testing.T) {
	// [0,10] reduced against 2Z+1 (odd numbers) tightens to [1,9].
	ic := IntervalCongruence{I: Range(0, 10), C: Cong(2, 1)}.Reduce()
	require.Equal(t, int64(1), ic.I.Lo)
	require.Equal(t, int64(9), ic.I.Hi)
}

func TestIntervalCongruenceBottomWhenDisjoint(t *testing.T) {
	// [0,0] meet 2Z+1 (odds) is empty: 0 is even.
	ic := IntervalCongruence{I: Cst(0), C: Cong(2, 1)}.Reduce()
	require.True(t, ic.IsBottom())
}

func TestGaugeJoinKeepsBothLegal(t *testing.T) {
	k := CounterID(1)
	g := Gauge{Lo: GBConst(0), Hi: GaugeBound{Const: 0, Coeffs: map[CounterID]int64{k: 1}}}
	h := Gauge{Lo: GBConst(0), Hi: GaugeBound{Const: 5, Coeffs: map[CounterID]int64{k: 1}}}
	j := g.Join(h)
	require.False(t, j.IsBottom())
	require.Empty(t, cmp.Diff(int64(0), j.Lo.Const))
}

func TestPointsToSetLattice(t *testing.T) {
	a := PTSSingle(1)
	b := PTSSingle(2)
	require.True(t, a.Leq(a.Join(b)))
	require.True(t, PTSBottom().Leq(a))
	require.True(t, a.Leq(PTSTop()))
	require.True(t, a.Meet(b).IsBottom())
}

func TestNullityLattice(t *testing.T) {
	require.Equal(t, NullTop, Null.Join(NonNull))
	require.Equal(t, NullBottom, Null.Meet(NonNull))
	require.True(t, Null.Leq(NullTop))
}
