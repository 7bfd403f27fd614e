package scalar

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/lattice"
	"github.com/oisee/ikos/pkg/numerical"
)

const (
	vp ar.VarID  = 1
	vn ar.VarID  = 2
	vq ar.VarID  = 3
	az ar.LocID  = 0
)

func freshComposite() *Composite {
	return NewComposite(numerical.NewIntervalDomain(), az)
}

func TestAssertInitializedOnUnknownIsNoop(t *testing.T) {
	c := freshComposite()
	c = c.AssertInitialized(vp)
	require.False(t, c.IsBottom())
}

func TestAssertInitializedAfterUninitIsBottom(t *testing.T) {
	c := freshComposite()
	c.meta[vp] = metaValue{init: lattice.Uninit, null: lattice.NullTop, points: lattice.PTSTop()}
	c = c.AssertInitialized(vp)
	require.True(t, c.IsBottom())
}

func TestAssertNonNullPrunesNull(t *testing.T) {
	c := freshComposite()
	c = c.Set(vp, ExactNull(az))
	c = c.AssertNonNull(vp)
	require.True(t, c.IsBottom())
}

func TestPointerToIntOfNullIsZero(t *testing.T) {
	c := freshComposite()
	c = c.Set(vp, ExactNull(az))
	got := c.PointerToInt(vp)
	z, ok := got.Singleton()
	require.True(t, ok)
	require.Equal(t, int64(0), z)
}

func TestIntToPointerOfZeroIsNull(t *testing.T) {
	c := freshComposite()
	c = c.DynamicWriteInt(vn, lattice.Cst(0))
	v := c.IntToPointer(vn)
	require.Equal(t, lattice.Null, v.Null)
}

func TestIntToPointerOfNonzeroIsUnknown(t *testing.T) {
	c := freshComposite()
	c = c.DynamicWriteInt(vn, lattice.Cst(5))
	v := c.IntToPointer(vn)
	require.Equal(t, lattice.NullTop, v.Null)
}

func TestJoinOfInitAndUninitIsTop(t *testing.T) {
	a := freshComposite()
	a.meta[vp] = metaValue{init: lattice.Init, null: lattice.NullTop, points: lattice.PTSTop()}
	b := freshComposite()
	b.meta[vp] = metaValue{init: lattice.Uninit, null: lattice.NullTop, points: lattice.PTSTop()}
	j := a.Join(b)
	require.Equal(t, lattice.UninitTop, j.metaOf(vp).init)
}

func TestDynamicWriteIntThenReadRoundtrips(t *testing.T) {
	c := freshComposite()
	c = c.DynamicWriteInt(vp, lattice.Cst(42))
	v := c.Get(vp)
	n, ok := v.Num.Singleton()
	require.True(t, ok)
	require.Equal(t, int64(42), n)
	require.Equal(t, lattice.Init, v.Init)
}

func TestForgetDropsAllComponents(t *testing.T) {
	c := freshComposite()
	c = c.DynamicWriteInt(vp, lattice.Cst(42))
	c = c.Forget(vp)
	v := c.Get(vp)
	require.Equal(t, lattice.Top(), v.Num)
	require.Equal(t, lattice.UninitTop, v.Init)
}

func TestApplyArithComputesThroughDBM(t *testing.T) {
	c := NewComposite(numerical.NewDBM(), az)
	c = c.Set(vp, ExactInt(3))
	c = c.Set(vn, ExactInt(4))
	c = c.ApplyArith(ar.OpAdd, vq, vp, vn, false)
	n, ok := c.Get(vq).Num.Singleton()
	require.True(t, ok)
	require.Equal(t, int64(7), n)
}

func TestAssignLinearFormsDBMRelation(t *testing.T) {
	c := NewComposite(numerical.NewDBM(), az)
	e := numerical.Expr{Const: 5, Terms: []numerical.Term{{Var: vp, Coeff: 1}}}
	c = c.AssignLinear(vn, e)
	con := numerical.Constraint{
		Expr: numerical.Expr{Const: -10, Terms: []numerical.Term{{Var: vp, Coeff: 1}}},
		Op:   numerical.Leq,
	}
	c = c.RefineConstraint(con)
	require.False(t, c.IsBottom())
	got := c.Get(vn)
	require.Equal(t, int64(15), got.Num.Hi)
}

func TestIncrCounterDrivesGaugeDomain(t *testing.T) {
	c := NewComposite(numerical.NewGaugeDomain(), az)
	c = c.PromoteLoopCounter(vp)
	c = c.Set(vp, ExactInt(0))
	for i := 0; i < 3; i++ {
		c = c.IncrCounter(vp, 1)
	}
	n, ok := c.Get(vp).Num.Singleton()
	require.True(t, ok)
	require.Equal(t, int64(3), n)
}

func TestIncrCounterFallsBackForNonGaugeDomain(t *testing.T) {
	c := NewComposite(numerical.NewIntervalDomain(), az)
	c = c.Set(vp, ExactInt(0))
	c = c.IncrCounter(vp, 4)
	n, ok := c.Get(vp).Num.Singleton()
	require.True(t, ok)
	require.Equal(t, int64(4), n)
}
