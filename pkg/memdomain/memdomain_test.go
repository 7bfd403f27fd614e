package memdomain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/lattice"
	"github.com/oisee/ikos/pkg/scalar"
)

const (
	locA ar.LocID     = 1
	locB ar.LocID     = 2
	lla  lattice.LocID = 1
	llb  lattice.LocID = 2
)

func TestStrongUpdateOnSingletonWriteThenRead(t *testing.T) {
	d := New()
	d = d.MemWrite(lattice.PTSSingle(lla), lattice.Cst(0), 1, scalar.ExactInt(7))
	got := d.MemRead(lattice.PTSSingle(lla), lattice.Cst(0), 1)
	n, ok := got.Num.Singleton()
	require.True(t, ok)
	require.Equal(t, int64(7), n)
}

func TestDisjointWritesAreIndependent(t *testing.T) {
	d := New()
	d = d.MemWrite(lattice.PTSSingle(lla), lattice.Cst(0), 1, scalar.ExactInt(1))
	d = d.MemWrite(lattice.PTSSingle(lla), lattice.Cst(4), 1, scalar.ExactInt(2))
	a := d.MemRead(lattice.PTSSingle(lla), lattice.Cst(0), 1)
	b := d.MemRead(lattice.PTSSingle(lla), lattice.Cst(4), 1)
	na, _ := a.Num.Singleton()
	nb, _ := b.Num.Singleton()
	require.Equal(t, int64(1), na)
	require.Equal(t, int64(2), nb)
}

func TestOverlappingWriteDropsOldCell(t *testing.T) {
	d := New()
	d = d.MemWrite(lattice.PTSSingle(lla), lattice.Cst(0), 4, scalar.ExactInt(1))
	d = d.MemWrite(lattice.PTSSingle(lla), lattice.Cst(2), 4, scalar.ExactInt(2))
	got := d.MemRead(lattice.PTSSingle(lla), lattice.Cst(0), 4)
	require.Equal(t, lattice.Top(), got.Num)
}

func TestWeakUpdateOnMultiLocationWriteJoins(t *testing.T) {
	d := New()
	d = d.MemWrite(lattice.PTSSingle(lla), lattice.Cst(0), 1, scalar.ExactInt(3))
	both := lattice.PTSOf(lla, llb)
	d = d.MemWrite(both, lattice.Cst(0), 1, scalar.ExactInt(9))
	got := d.MemRead(lattice.PTSSingle(lla), lattice.Cst(0), 1)
	lo, hi := got.Num.Lo, got.Num.Hi
	require.LessOrEqual(t, lo, int64(3))
	require.GreaterOrEqual(t, hi, int64(9))
}

func TestTopPointsToForgetsAll(t *testing.T) {
	d := New()
	d = d.MemWrite(lattice.PTSSingle(lla), lattice.Cst(0), 1, scalar.ExactInt(1))
	d = d.MemWrite(lattice.PTSTop(), lattice.Cst(0), 1, scalar.ExactInt(9))
	got := d.MemRead(lattice.PTSSingle(lla), lattice.Cst(0), 1)
	require.Equal(t, lattice.Top(), got.Num)
}

func TestMemcpyCopiesSourceCellsByOffset(t *testing.T) {
	d := New()
	d = d.MemWrite(lattice.PTSSingle(lla), lattice.Cst(0), 1, scalar.ExactInt(5))
	d = d.Memcpy(lattice.PTSSingle(llb), lattice.PTSSingle(lla), lattice.Cst(10), lattice.Cst(0), lattice.Range(1, 1))
	got := d.MemRead(lattice.PTSSingle(llb), lattice.Cst(10), 1)
	n, ok := got.Num.Singleton()
	require.True(t, ok)
	require.Equal(t, int64(5), n)
}

func TestMemsetZeroClearsCertainRange(t *testing.T) {
	d := New()
	d = d.MemWrite(lattice.PTSSingle(lla), lattice.Cst(0), 1, scalar.ExactInt(42))
	d = d.Memset(lattice.PTSSingle(lla), true, 0, 0, 0, 0)
	got := d.MemRead(lattice.PTSSingle(lla), lattice.Cst(0), 1)
	n, ok := got.Num.Singleton()
	require.True(t, ok)
	require.Equal(t, int64(0), n)
}

func TestLifetimeDeallocateThenAllocateResets(t *testing.T) {
	d := New()
	d = d.Allocate(locA, lattice.Cst(16))
	require.Equal(t, LifeAllocated, d.LifetimeOf(locA))
	require.Equal(t, lattice.Cst(16), d.AllocatedSize(locA))
	d = d.Deallocate(locA)
	require.Equal(t, LifeDeallocated, d.LifetimeOf(locA))
}

func TestJoinOnBottomReturnsOther(t *testing.T) {
	d := New().MemWrite(lattice.PTSSingle(lla), lattice.Cst(0), 1, scalar.ExactInt(1))
	j := Bottom().Join(d)
	got := j.MemRead(lattice.PTSSingle(lla), lattice.Cst(0), 1)
	n, ok := got.Num.Singleton()
	require.True(t, ok)
	require.Equal(t, int64(1), n)
}
