package polydomain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oisee/ikos/pkg/ar"
)

func TestMismatchedKindJoinPanics(t *testing.T) {
	a := New(KindInterval, 0)
	b := New(KindDBM, 0)
	require.Panics(t, func() { a.Join(b) })
}

func TestSameKindJoinSucceeds(t *testing.T) {
	a := New(KindInterval, 0)
	b := New(KindInterval, 0)
	j := a.Join(b)
	require.False(t, j.IsBottom())
}

func TestClonePreservesKind(t *testing.T) {
	a := New(KindInterval, 0)
	a.Scalar = a.Scalar.DynamicWriteInt(ar.VarID(1), a.Scalar.Get(ar.VarID(1)).Num)
	b := a.Clone()
	require.Equal(t, a.Kind(), b.Kind())
}
