package callgraph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLeafFunctionIsItsOwnSCC(t *testing.T) {
	g := New()
	g.AddFunction("leaf")
	sccs := g.SCCs()
	require.Len(t, sccs, 1)
	require.Equal(t, []string{"leaf"}, sccs[0])
}

func TestCalleesComeBeforeCallersInReverseTopoOrder(t *testing.T) {
	g := New()
	g.AddCall("main", "helper")
	g.AddCall("helper", "leaf")
	sccs := g.SCCs()
	pos := map[string]int{}
	for i, comp := range sccs {
		for _, f := range comp {
			pos[f] = i
		}
	}
	require.Less(t, pos["leaf"], pos["helper"])
	require.Less(t, pos["helper"], pos["main"])
}

func TestMutualRecursionIsOneSCC(t *testing.T) {
	g := New()
	g.AddCall("even", "odd")
	g.AddCall("odd", "even")
	sccs := g.SCCs()
	require.Len(t, sccs, 1)
	require.ElementsMatch(t, []string{"even", "odd"}, sccs[0])
}

func TestSelfRecursionIsSingletonSCC(t *testing.T) {
	g := New()
	g.AddCall("f", "f")
	sccs := g.SCCs()
	require.Len(t, sccs, 1)
	require.Equal(t, []string{"f"}, sccs[0])
}

func TestComponentReturnsMembers(t *testing.T) {
	g := New()
	g.AddCall("even", "odd")
	g.AddCall("odd", "even")
	comp := g.Component("even")
	require.ElementsMatch(t, []string{"even", "odd"}, comp)
}
