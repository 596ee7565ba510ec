package tui

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// NodeID identifies a renderable node within a RenderGraph's arena.
type NodeID uint32

// Node is one renderable: its structural identity (id, size, children,
// focus) and its value content.
type Node struct {
	ID       NodeID
	Width    int
	Height   int
	Children []NodeID
	Focused  bool
	Value    string // display-rounded scalar content, hashed separately
}

// RenderGraph is an arena of Nodes addressed by NodeID, a slab/NodeID
// layout that keeps node identity stable across a traversal.
type RenderGraph struct {
	arena []Node
	dirty mapset.Set[NodeID]
	root  NodeID
}

// NewRenderGraph allocates an empty graph.
func NewRenderGraph() *RenderGraph {
	return &RenderGraph{dirty: mapset.NewThreadUnsafeSet[NodeID]()}
}

// Insert adds n to the arena, returning its id for child references.
func (g *RenderGraph) Insert(n Node) NodeID {
	id := NodeID(len(g.arena))
	n.ID = id
	g.arena = append(g.arena, n)
	return id
}

// SetRoot designates id as the traversal root.
func (g *RenderGraph) SetRoot(id NodeID) { g.root = id }

// Root returns the current traversal root.
func (g *RenderGraph) Root() NodeID { return g.root }

// Node returns the node at id, or the zero Node if out of range.
func (g *RenderGraph) Node(id NodeID) Node {
	if int(id) >= len(g.arena) {
		return Node{}
	}
	return g.arena[id]
}

// MarkDirty inserts n into the dirty set for the next traversal.
func (g *RenderGraph) MarkDirty(n NodeID) { g.dirty.Add(n) }

// Dirty reports whether n is currently marked dirty.
func (g *RenderGraph) Dirty(n NodeID) bool { return g.dirty.Contains(n) }

// ClearDirty empties the dirty set after a traversal consumes it.
func (g *RenderGraph) ClearDirty() { g.dirty.Clear() }

// DirtyNodes returns a snapshot slice of the dirty set.
func (g *RenderGraph) DirtyNodes() []NodeID { return g.dirty.ToSlice() }

// StructuralHash combines id, size, child ids, and focus — the "shape"
// hash, independent of Value content.
func StructuralHash(n Node) uint64 {
	h := fnvOffset
	h = fnvMix(h, uint64(n.ID))
	h = fnvMix(h, uint64(n.Width))
	h = fnvMix(h, uint64(n.Height))
	if n.Focused {
		h = fnvMix(h, 1)
	}
	for _, c := range n.Children {
		h = fnvMix(h, uint64(c))
	}
	return h
}

// ValueHash hashes n's display-rounded scalar content.
func ValueHash(n Node) uint64 {
	h := fnvOffset
	for i := 0; i < len(n.Value); i++ {
		h = fnvMix(h, uint64(n.Value[i]))
	}
	return h
}

const fnvOffset = 14695981039346656037

func fnvMix(h, v uint64) uint64 {
	h ^= v
	h *= 1099511628211
	return h
}

// Viewport is the visible region for culling; only nodes whose bounds
// intersect it are painted during traversal.
type Viewport struct {
	X0, Y0, X1, Y1 int
}

// Intersects reports whether a node occupying [x,y,x+w,y+h) is visible.
func (vp Viewport) Intersects(x, y, w, h int) bool {
	return x < vp.X1 && vp.X0 < x+w && y < vp.Y1 && vp.Y0 < y+h
}
