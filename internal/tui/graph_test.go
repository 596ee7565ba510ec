package tui

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderGraphStructuralHashStable(t *testing.T) {
	g := NewRenderGraph()
	id := g.Insert(Node{Width: 10, Height: 2, Value: "42"})

	n1 := g.Node(id)
	h1 := StructuralHash(n1)
	h2 := StructuralHash(g.Node(id))
	require.Equal(t, h1, h2, "structural hash must be stable across repeated reads")
}

func TestRenderGraphStructuralHashChangesOnSize(t *testing.T) {
	g := NewRenderGraph()
	idA := g.Insert(Node{Width: 10, Height: 2})
	idB := g.Insert(Node{Width: 11, Height: 2})

	require.NotEqual(t, StructuralHash(g.Node(idA)), StructuralHash(g.Node(idB)))
}

func TestRenderGraphValueHashIndependentOfStructure(t *testing.T) {
	g := NewRenderGraph()
	id := g.Insert(Node{Width: 10, Height: 2, Value: "1.23"})
	n := g.Node(id)
	before := StructuralHash(n)

	n.Value = "9.99"
	after := StructuralHash(n)
	require.Equal(t, before, after, "value changes must not affect structural hash")
	require.NotEqual(t, ValueHash(Node{Value: "1.23"}), ValueHash(Node{Value: "9.99"}))
}

func TestRenderGraphDirtySet(t *testing.T) {
	g := NewRenderGraph()
	id := g.Insert(Node{})
	require.False(t, g.Dirty(id))

	g.MarkDirty(id)
	require.True(t, g.Dirty(id))

	g.ClearDirty()
	require.False(t, g.Dirty(id))
}

func TestViewportCulling(t *testing.T) {
	vp := Viewport{X0: 0, Y0: 0, X1: 80, Y1: 24}
	require.True(t, vp.Intersects(0, 0, 10, 10))
	require.False(t, vp.Intersects(100, 100, 10, 10))
}
