package mint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Round-trip properties from spec.md §8 "Machine-int round-trips", checked
// exhaustively over every representable 8-bit value the way the teacher's
// verifier.go sweeps TestVectors instead of sampling.
func TestCastRoundTrip(t *testing.T) {
	for _, sign := range []Sign{Signed, Unsigned} {
		for v := 0; v < 256; v++ {
			x := New(int64(v), 8, sign)
			require.Equal(t, x, Cast(x, 8, sign), "cast(w,s) must be identity for matching w,s")
		}
	}
}

func TestSignCastInvolution(t *testing.T) {
	for v := 0; v < 256; v++ {
		x := New(int64(v), 8, Signed)
		require.Equal(t, x, SignCast(SignCast(x, Unsigned), Signed))
	}
}

func TestTruncExtRoundTrip(t *testing.T) {
	for v := 0; v < 16; v++ {
		x := New(int64(v), 4, Unsigned)
		wide := Ext(x, 8)
		require.Equal(t, x, Trunc(wide, 4), "trunc(ext(x)) must recover x when representable")
	}
}

func TestAddCommutes(t *testing.T) {
	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b += 17 {
			x := New(int64(a), 8, Unsigned)
			y := New(int64(b), 8, Unsigned)
			r1, err1 := Add(x, y)
			r2, err2 := Add(y, x)
			require.NoError(t, err1)
			require.NoError(t, err2)
			require.Equal(t, r1, r2)
		}
	}
}

func TestAddNoWrapRepresentable(t *testing.T) {
	a := New(100, 8, Signed)
	b := New(20, 8, Signed)
	r, ok := AddNoWrap(a, b)
	require.True(t, ok)
	require.Equal(t, int64(120), r.Signed())

	overflow := New(120, 8, Signed)
	_, ok = AddNoWrap(overflow, b)
	require.False(t, ok, "120+20 doesn't fit in i8")
}

func TestDivByZeroAndIntMinOverflow(t *testing.T) {
	a := New(10, 8, Signed)
	zero := New(0, 8, Signed)
	_, ok := Div(a, zero)
	require.False(t, ok)

	intMin := New(-128, 8, Signed)
	negOne := New(-1, 8, Signed)
	_, ok = Div(intMin, negOne)
	require.False(t, ok, "INT_MIN/-1 is the single signed-overflow division case")
}

func TestMismatchedShapeErrors(t *testing.T) {
	a := New(1, 8, Signed)
	b := New(1, 16, Signed)
	_, err := Add(a, b)
	require.Error(t, err)
}

func TestSubNoWrapRepresentable(t *testing.T) {
	a := New(20, 8, Signed)
	b := New(100, 8, Signed)
	r, ok := SubNoWrap(a, b)
	require.True(t, ok)
	require.Equal(t, int64(-80), r.Signed())

	_, ok = SubNoWrap(New(-120, 8, Signed), New(100, 8, Signed))
	require.False(t, ok, "-120-100 doesn't fit in i8")

	_, ok = SubNoWrap(New(5, 8, Unsigned), New(10, 8, Unsigned))
	require.False(t, ok, "unsigned subtraction must not borrow below zero")
}

func TestMulNoWrapRepresentable(t *testing.T) {
	r, ok := MulNoWrap(New(10, 8, Signed), New(12, 8, Signed))
	require.True(t, ok)
	require.Equal(t, int64(120), r.Signed())

	_, ok = MulNoWrap(New(20, 8, Signed), New(20, 8, Signed))
	require.False(t, ok, "20*20 doesn't fit in i8")

	_, ok = MulNoWrap(New(200, 8, Unsigned), New(2, 8, Unsigned))
	require.False(t, ok, "200*2 doesn't fit in u8")
}

func TestDivExactRequiresNoRemainder(t *testing.T) {
	r, ok := DivExact(New(20, 8, Signed), New(5, 8, Signed))
	require.True(t, ok)
	require.Equal(t, int64(4), r.Signed())

	_, ok = DivExact(New(20, 8, Signed), New(6, 8, Signed))
	require.False(t, ok, "20/6 has a nonzero remainder")

	_, ok = DivExact(New(10, 8, Signed), New(0, 8, Signed))
	require.False(t, ok, "division by zero is never exact")
}

func TestLshrExactRejectsLostBits(t *testing.T) {
	r, ok := LshrExact(New(0b1100, 8, Unsigned), 2)
	require.True(t, ok)
	require.Equal(t, int64(0b11), r.Signed())

	_, ok = LshrExact(New(0b1101, 8, Unsigned), 2)
	require.False(t, ok, "shifting out a set bit loses information")
}

func TestAshrNoWrapRejectsLostBits(t *testing.T) {
	r, ok := AshrNoWrap(New(-8, 8, Signed), 2)
	require.True(t, ok)
	require.Equal(t, int64(-2), r.Signed())

	_, ok = AshrNoWrap(New(-7, 8, Signed), 2)
	require.False(t, ok, "-7 is not exactly divisible by 4")
}

func TestShlNoWrapRejectsOverflow(t *testing.T) {
	r, ok := ShlNoWrap(New(3, 8, Signed), 2)
	require.True(t, ok)
	require.Equal(t, int64(12), r.Signed())

	_, ok = ShlNoWrap(New(100, 8, Signed), 2)
	require.False(t, ok, "100<<2 overflows i8")
}
