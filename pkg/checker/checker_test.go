package checker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/lattice"
	"github.com/oisee/ikos/pkg/polydomain"
	"github.com/oisee/ikos/pkg/scalar"
)

const (
	vp ar.VarID = 1
	lA ar.LocID = 10
)

func freshState() *polydomain.Domain {
	return polydomain.New(polydomain.KindInterval, 0)
}

func TestBufferOverflowUnreachableOnBottomPreState(t *testing.T) {
	st := polydomain.Bottom(polydomain.KindInterval, 0)
	rec := BufferOverflow(st, vp, 4, ar.Statement{}, nil)
	require.Equal(t, Unreachable, rec.Outcome)
}

func TestBufferOverflowUninitializedVariable(t *testing.T) {
	st := freshState()
	st.Scalar = st.Scalar.Set(vp, scalar.Value{Init: lattice.Uninit, Null: lattice.NullTop, Points: lattice.PTSTop(), Num: lattice.Top()})
	rec := BufferOverflow(st, vp, 4, ar.Statement{}, nil)
	require.Equal(t, Error, rec.Outcome)
	require.Equal(t, "UninitializedVariable", rec.Reason)
}

func TestBufferOverflowNullPointerIsError(t *testing.T) {
	st := freshState()
	st.Scalar = st.Scalar.DynamicWritePointer(vp, lattice.PTSBottom(), lattice.Null, lattice.Cst(0))
	rec := BufferOverflow(st, vp, 4, ar.Statement{Callee: "memcpy"}, nil)
	require.Equal(t, Error, rec.Outcome)
	require.Equal(t, "NullPointerDereference", rec.Reason)
}

func TestBufferOverflowNullAllowedForNullableCallee(t *testing.T) {
	st := freshState()
	st.Scalar = st.Scalar.DynamicWritePointer(vp, lattice.PTSBottom(), lattice.Null, lattice.Cst(0))
	ctx := &Context{Opts: Options{NullableCallees: map[string]bool{"realloc": true}}}
	rec := BufferOverflow(st, vp, 4, ar.Statement{Callee: "realloc"}, ctx)
	require.Equal(t, Ok, rec.Outcome)
}

func TestBufferOverflowEmptyPointsToIsInvalidPointer(t *testing.T) {
	st := freshState()
	st.Scalar = st.Scalar.DynamicWritePointer(vp, lattice.PTSBottom(), lattice.NonNull, lattice.Cst(0))
	rec := BufferOverflow(st, vp, 4, ar.Statement{}, nil)
	require.Equal(t, Error, rec.Outcome)
	require.Equal(t, "InvalidPointer", rec.Reason)
}

func TestBufferOverflowTopPointsToIsWarning(t *testing.T) {
	st := freshState()
	st.Scalar = st.Scalar.DynamicWritePointer(vp, lattice.PTSTop(), lattice.NonNull, lattice.Cst(0))
	rec := BufferOverflow(st, vp, 4, ar.Statement{}, nil)
	require.Equal(t, Warning, rec.Outcome)
}

func TestBufferOverflowInBoundsAccessIsOk(t *testing.T) {
	st := freshState()
	st.Mem = st.Mem.Allocate(lA, lattice.Cst(16))
	st.Scalar = st.Scalar.DynamicWritePointer(vp, lattice.PTSSingle(lattice.LocID(lA)), lattice.NonNull, lattice.Cst(4))
	rec := BufferOverflow(st, vp, 4, ar.Statement{}, nil)
	require.Equal(t, Ok, rec.Outcome)
}

func TestBufferOverflowOutOfBoundsAccessIsError(t *testing.T) {
	st := freshState()
	st.Mem = st.Mem.Allocate(lA, lattice.Cst(16))
	st.Scalar = st.Scalar.DynamicWritePointer(vp, lattice.PTSSingle(lattice.LocID(lA)), lattice.NonNull, lattice.Cst(20))
	rec := BufferOverflow(st, vp, 4, ar.Statement{}, nil)
	require.Equal(t, Error, rec.Outcome)
	require.Equal(t, "OutOfBounds", rec.Reason)
}

func TestBufferOverflowDeallocatedIsUseAfterFree(t *testing.T) {
	st := freshState()
	st.Mem = st.Mem.Allocate(lA, lattice.Cst(16))
	st.Mem = st.Mem.Deallocate(lA)
	st.Scalar = st.Scalar.DynamicWritePointer(vp, lattice.PTSSingle(lattice.LocID(lA)), lattice.NonNull, lattice.Cst(0))
	rec := BufferOverflow(st, vp, 4, ar.Statement{}, nil)
	require.Equal(t, Error, rec.Outcome)
	require.Equal(t, "UseAfterFree", rec.Reason)
}

func TestBufferOverflowFunctionPointerIsError(t *testing.T) {
	st := freshState()
	st.Scalar = st.Scalar.DynamicWritePointer(vp, lattice.PTSSingle(lattice.LocID(lA)), lattice.NonNull, lattice.Cst(0))
	ctx := &Context{Locations: map[ar.LocID]ar.MemoryLocation{lA: {ID: lA, Kind: ar.LocFunction}}}
	rec := BufferOverflow(st, vp, 4, ar.Statement{}, ctx)
	require.Equal(t, Error, rec.Outcome)
	require.Equal(t, "FunctionPointerDereference", rec.Reason)
}

func TestBufferOverflowAbsoluteZeroAllowlisted(t *testing.T) {
	st := freshState()
	st.Scalar = st.Scalar.DynamicWritePointer(vp, lattice.PTSSingle(lattice.LocID(lA)), lattice.NonNull, lattice.Cst(0x4000))
	ctx := &Context{
		Locations: map[ar.LocID]ar.MemoryLocation{lA: {ID: lA, Kind: ar.LocAbsoluteZero}},
		Opts:      Options{HardwareAddresses: []AddrRange{{Lo: 0x4000, Hi: 0x4fff}}},
	}
	rec := BufferOverflow(st, vp, 4, ar.Statement{}, ctx)
	require.Equal(t, Ok, rec.Outcome)
}

func TestBufferOverflowAbsoluteZeroOutsideAllowlistIsWarning(t *testing.T) {
	st := freshState()
	st.Scalar = st.Scalar.DynamicWritePointer(vp, lattice.PTSSingle(lattice.LocID(lA)), lattice.NonNull, lattice.Cst(0x9000))
	ctx := &Context{
		Locations: map[ar.LocID]ar.MemoryLocation{lA: {ID: lA, Kind: ar.LocAbsoluteZero}},
		Opts:      Options{HardwareAddresses: []AddrRange{{Lo: 0x4000, Hi: 0x4fff}}},
	}
	rec := BufferOverflow(st, vp, 4, ar.Statement{}, ctx)
	require.Equal(t, Warning, rec.Outcome)
}

func TestNullDerefOnProvenNull(t *testing.T) {
	st := freshState()
	st.Scalar = st.Scalar.DynamicWritePointer(vp, lattice.PTSBottom(), lattice.Null, lattice.Cst(0))
	rec := NullDeref(st, vp, ar.Statement{})
	require.Equal(t, Error, rec.Outcome)
}

func TestUseAfterFreeOnLiveMemoryIsOk(t *testing.T) {
	st := freshState()
	st.Mem = st.Mem.Allocate(lA, lattice.Cst(16))
	st.Scalar = st.Scalar.DynamicWritePointer(vp, lattice.PTSSingle(lattice.LocID(lA)), lattice.NonNull, lattice.Cst(0))
	rec := UseAfterFree(st, vp, ar.Statement{})
	require.Equal(t, Ok, rec.Outcome)
}

func TestArrayAccessOnElementBoundaryIsOk(t *testing.T) {
	st := freshState()
	st.Scalar = st.Scalar.DynamicWritePointer(vp, lattice.PTSSingle(lattice.LocID(lA)), lattice.NonNull, lattice.Cst(8))
	rec := ArrayAccess(st, vp, map[ar.LocID]ArrayElemKind{lA: {ElemSize: 4}}, ar.Statement{})
	require.Equal(t, Ok, rec.Outcome)
}

func TestArrayAccessOffElementBoundaryIsWarning(t *testing.T) {
	st := freshState()
	st.Scalar = st.Scalar.DynamicWritePointer(vp, lattice.PTSSingle(lattice.LocID(lA)), lattice.NonNull, lattice.Cst(6))
	rec := ArrayAccess(st, vp, map[ar.LocID]ArrayElemKind{lA: {ElemSize: 4}}, ar.Statement{})
	require.Equal(t, Warning, rec.Outcome)
}

func TestOutcomeWorseOrdering(t *testing.T) {
	require.Equal(t, Error, Ok.Worse(Error))
	require.Equal(t, Unreachable, Error.Worse(Unreachable))
	require.Equal(t, Warning, Ok.Worse(Warning))
}
