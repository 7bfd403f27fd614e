package symexec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/lattice"
	"github.com/oisee/ikos/pkg/numerical"
	"github.com/oisee/ikos/pkg/polydomain"
	"github.com/oisee/ikos/pkg/scalar"
)

const (
	vx ar.VarID = 1
	vy ar.VarID = 2
	vz ar.VarID = 3
)

func freshState() *polydomain.Domain {
	return polydomain.New(polydomain.KindInterval, 0)
}

func TestExecArithAdd(t *testing.T) {
	st := freshState()
	st.Scalar = st.Scalar.DynamicWriteInt(vx, lattice.Cst(3))
	st.Scalar = st.Scalar.DynamicWriteInt(vy, lattice.Cst(4))
	stmt := ar.Statement{Kind: ar.StmtArith, ArithOp: ar.OpAdd, Dst: vz, Src1: ar.VarOperand(vx), Src2: ar.VarOperand(vy)}
	got, diags := Exec(st, stmt, &Context{})
	require.Empty(t, diags)
	n, ok := got.Scalar.Get(vz).Num.Singleton()
	require.True(t, ok)
	require.Equal(t, int64(7), n)
}

func TestExecUnreachableYieldsBottom(t *testing.T) {
	st := freshState()
	got, _ := Exec(st, ar.Statement{Kind: ar.StmtUnreachable}, &Context{})
	require.True(t, got.IsBottom())
}

func TestExecStoreThroughNullIsBottom(t *testing.T) {
	st := freshState()
	st.Scalar = st.Scalar.Set(vx, scalar.ExactNull(0))
	stmt := ar.Statement{Kind: ar.StmtStore, Ptr: ar.VarOperand(vx), Src1: ar.ConstOperand(1), Size: ar.ConstOperand(4)}
	got, _ := Exec(st, stmt, &Context{})
	require.True(t, got.IsBottom())
}

func TestExecAllocaThenLoadAfterStore(t *testing.T) {
	st := freshState()
	stmt := ar.Statement{Kind: ar.StmtAllocaStack, Dst: vx}
	st, diags := Exec(st, stmt, &Context{})
	require.Empty(t, diags)

	store := ar.Statement{Kind: ar.StmtStore, Ptr: ar.VarOperand(vx), Src1: ar.ConstOperand(9), Size: ar.ConstOperand(4)}
	st, diags = Exec(st, store, &Context{})
	require.Empty(t, diags)

	load := ar.Statement{Kind: ar.StmtLoad, Dst: vy, Ptr: ar.VarOperand(vx), Size: ar.ConstOperand(4)}
	st, diags = Exec(st, load, &Context{})
	require.Empty(t, diags)
	n, ok := st.Scalar.Get(vy).Num.Singleton()
	require.True(t, ok)
	require.Equal(t, int64(9), n)
}

func TestExecUnresolvedIndirectCallWarns(t *testing.T) {
	st := freshState()
	stmt := ar.Statement{Kind: ar.StmtCall, Dst: vz, Callee: "", CallArgs: []ar.VarID{vx}}
	_, diags := Exec(st, stmt, &Context{})
	require.NotEmpty(t, diags)
}

// TestExecArithFormsDBMRelationalEdge drives y := x + 5 through a DBM
// backing, then narrows x to <=10 directly on the numerical domain; the
// tightened bound on y must come back through the x-y edge execArith's
// var-op-const dispatch formed, not merely from a fresh interval recompute.
func TestExecArithFormsDBMRelationalEdge(t *testing.T) {
	st := polydomain.New(polydomain.KindDBM, 0)
	stmt := ar.Statement{Kind: ar.StmtArith, ArithOp: ar.OpAdd, Dst: vy, Src1: ar.VarOperand(vx), Src2: ar.ConstOperand(5)}
	st, diags := Exec(st, stmt, &Context{})
	require.Empty(t, diags)

	con := numerical.Constraint{
		Expr: numerical.Expr{Const: -10, Terms: []numerical.Term{{Var: vx, Coeff: 1}}},
		Op:   numerical.Leq,
	}
	st.Scalar = st.Scalar.RefineConstraint(con)
	require.False(t, st.IsBottom())

	yr := st.Scalar.Get(vy).Num
	require.Equal(t, int64(15), yr.Hi)
}

// TestExecArithDrivesGaugeIncrCounter checks the canonical loop-increment
// shape x := x + 1 is routed to the gauge domain's IncrCounter (via
// scalar.Composite.IncrCounter's type assertion) rather than falling
// through to a plain interval recompute: after five increments from a
// known start of 0, x is still known exactly, and never collapses to
// bottom or top the way a broken dispatch would.
func TestExecArithDrivesGaugeIncrCounter(t *testing.T) {
	st := polydomain.New(polydomain.KindGauge, 0)
	st.Scalar = st.Scalar.PromoteLoopCounter(vx)
	st.Scalar = st.Scalar.Set(vx, scalar.ExactInt(0))

	stmt := ar.Statement{Kind: ar.StmtArith, ArithOp: ar.OpAdd, Dst: vx, Src1: ar.VarOperand(vx), Src2: ar.ConstOperand(1)}
	for i := 0; i < 5; i++ {
		var diags []Diagnostic
		st, diags = Exec(st, stmt, &Context{})
		require.Empty(t, diags)
		require.False(t, st.IsBottom())
	}
	n, ok := st.Scalar.Get(vx).Num.Singleton()
	require.True(t, ok)
	require.Equal(t, int64(5), n)
}

func TestExecMallocThenFree(t *testing.T) {
	st := freshState()
	stmt := ar.Statement{Kind: ar.StmtCall, Dst: vx, Callee: "malloc", Size: ar.ConstOperand(8)}
	st, diags := Exec(st, stmt, &Context{})
	require.Empty(t, diags)
	p := st.Scalar.Get(vx)
	require.False(t, p.Points.IsBottom())

	free := ar.Statement{Kind: ar.StmtCall, Callee: "free", CallArgs: []ar.VarID{vx}}
	st, diags = Exec(st, free, &Context{})
	require.Empty(t, diags)
}
