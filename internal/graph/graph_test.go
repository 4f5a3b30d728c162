package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(edges ...[2]string) *Graph[string] {
	g := New[string]()
	for _, e := range edges {
		g.AddEdge(e[0], e[1])
	}
	return g
}

func TestAddEdgeCollapsesParallel(t *testing.T) {
	t.Parallel()

	g := build([2]string{"a", "b"}, [2]string{"a", "b"}, [2]string{"a", "c"})
	assert.Equal(t, []string{"b", "c"}, g.Successors("a"))
	assert.Equal(t, 3, g.Len())
	assert.True(t, g.Has("c"))
	assert.False(t, g.Has("z"))
}

func TestCyclesThreeNode(t *testing.T) {
	t.Parallel()

	g := build([2]string{"mod.a", "mod.b"}, [2]string{"mod.b", "mod.c"}, [2]string{"mod.c", "mod.a"})
	for _, mode := range []CycleMode{AllBackEdges, FirstPerRoot} {
		cycles := g.Cycles(mode)
		require.Len(t, cycles, 1, "mode %d", mode)
		assert.Equal(t, "mod.a -> mod.b -> mod.c -> mod.a", Render(cycles[0]), "mode %d", mode)
	}
}

func TestCyclesAcyclic(t *testing.T) {
	t.Parallel()

	g := build([2]string{"a", "b"}, [2]string{"a", "c"}, [2]string{"b", "c"})
	assert.Empty(t, g.Cycles(AllBackEdges))
}

func TestCyclesModes(t *testing.T) {
	t.Parallel()

	// Two cycles sharing node a: a->b->a and a->c->a.
	g := build([2]string{"a", "b"}, [2]string{"b", "a"}, [2]string{"a", "c"}, [2]string{"c", "a"})

	assert.Equal(t, [][]string{{"a", "b"}, {"a", "c"}}, g.Cycles(AllBackEdges))
	assert.Equal(t, [][]string{{"a", "b"}}, g.Cycles(FirstPerRoot))
}

func TestCyclesSelfLoop(t *testing.T) {
	t.Parallel()

	cycles := build([2]string{"x", "x"}).Cycles(AllBackEdges)
	require.Len(t, cycles, 1)
	assert.Equal(t, "x -> x", Render(cycles[0]))
}

func TestReachable(t *testing.T) {
	t.Parallel()

	g := build([2]string{"build", "test"}, [2]string{"test", "deploy"}, [2]string{"orphan", "deploy"})
	seen := g.Reachable([]string{"build"})
	for _, n := range []string{"build", "test", "deploy"} {
		assert.True(t, seen[n], "%s should be reachable", n)
	}
	assert.False(t, seen["orphan"])
}

func TestReverse(t *testing.T) {
	t.Parallel()

	r := build([2]string{"a", "b"}, [2]string{"c", "b"}).Reverse()
	assert.Equal(t, []string{"a", "c"}, r.Successors("b"))
	assert.Empty(t, r.Successors("a"))
}

func TestTopoOrder(t *testing.T) {
	t.Parallel()

	// deploy needs test and lint, both need build.
	g := build([2]string{"deploy", "test"}, [2]string{"deploy", "lint"}, [2]string{"test", "build"}, [2]string{"lint", "build"})
	order, err := g.TopoOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"build", "lint", "test", "deploy"}, order)

	_, err = build([2]string{"a", "b"}, [2]string{"b", "a"}).TopoOrder()
	assert.Error(t, err)
}

func TestRankUniform(t *testing.T) {
	t.Parallel()

	g := New[string]()
	g.AddNode("a")
	g.AddNode("b")
	ranks := Rank(g)
	assert.InDelta(t, 0.5, ranks["a"], 1e-9)
	assert.InDelta(t, 0.5, ranks["b"], 1e-9)
}

func TestRankWithEdges(t *testing.T) {
	t.Parallel()

	// a and b both require c; c should rank highest.
	ranks := Rank(build([2]string{"a", "c"}, [2]string{"b", "c"}))
	assert.Greater(t, ranks["c"], ranks["a"])
	assert.Greater(t, ranks["c"], ranks["b"])

	var sum float64
	for _, r := range ranks {
		sum += r
	}
	assert.InDelta(t, 1.0, sum, 1e-3)
}

func TestRankEmpty(t *testing.T) {
	t.Parallel()
	assert.Nil(t, Rank(New[string]()))
}
