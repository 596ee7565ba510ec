package tui

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// Surface is a pre-rendered block of cells plus the bounds it paints into.
type Surface struct {
	Lines  []string
	Bounds Rect
}

// cacheEntry pairs a Surface with the moment it was rendered, for the
// reconciler's "≤10s stale" structural-hash reuse rule.
type cacheEntry struct {
	surface   Surface
	renderedAt time.Time
}

const renderCacheMaxCells = 100_000

// RenderCache is keyed by (node_id, struct_hash, env) and evicts via LRU
// once total painted cells exceed 100,000.
type RenderCache struct {
	cache       *lru.Cache
	totalCells  int
}

type cacheKey struct {
	node  NodeID
	shash uint64
	env   TerminalEnv
}

// NewRenderCache allocates a cache with no fixed entry-count cap; eviction
// is driven by totalCells via evictUntilFits, matching the cell-budget
// rule rather than an entry-count rule.
func NewRenderCache() *RenderCache {
	// capacity large enough to never trigger count-based eviction before
	// the cell-budget eviction does; golang-lru requires a positive size.
	c, _ := lru.New(1 << 20)
	return &RenderCache{cache: c}
}

// Get returns the cached Surface for key if present and the entry is no
// more than maxAge stale.
func (rc *RenderCache) Get(node NodeID, structHash uint64, env TerminalEnv, maxAge time.Duration) (Surface, bool) {
	key := cacheKey{node: node, shash: structHash, env: env}
	v, ok := rc.cache.Get(key)
	if !ok {
		return Surface{}, false
	}
	entry := v.(cacheEntry)
	if time.Since(entry.renderedAt) > maxAge {
		return Surface{}, false
	}
	return entry.surface, true
}

// Put stores surface under key, evicting oldest entries if the cell
// budget is exceeded.
func (rc *RenderCache) Put(node NodeID, structHash uint64, env TerminalEnv, surface Surface) {
	key := cacheKey{node: node, shash: structHash, env: env}
	cells := surfaceCells(surface)
	if old, ok := rc.cache.Peek(key); ok {
		rc.totalCells -= surfaceCells(old.(cacheEntry).surface)
	}
	rc.cache.Add(key, cacheEntry{surface: surface, renderedAt: time.Now()})
	rc.totalCells += cells
	for rc.totalCells > renderCacheMaxCells && rc.cache.Len() > 0 {
		_, evicted, ok := rc.cache.RemoveOldest()
		if !ok {
			break
		}
		rc.totalCells -= surfaceCells(evicted.(cacheEntry).surface)
	}
}

func surfaceCells(s Surface) int {
	total := 0
	for _, line := range s.Lines {
		total += len([]rune(line))
	}
	return total
}

// Reconciler decides, per node, whether the prior tree can be reused
// (structural hash unchanged and cache fresh) or must be repainted.
type Reconciler struct {
	graph    *RenderGraph
	cache    *RenderCache
	maxStale time.Duration

	lastStructHash map[NodeID]uint64
	lastValueHash  map[NodeID]uint64
}

// NewReconciler binds a graph and cache with the 10s staleness window.
func NewReconciler(graph *RenderGraph, cache *RenderCache) *Reconciler {
	return &Reconciler{
		graph:          graph,
		cache:          cache,
		maxStale:       10 * time.Second,
		lastStructHash: make(map[NodeID]uint64),
		lastValueHash:  make(map[NodeID]uint64),
	}
}

// Decision is the reconciler's verdict for one node in a traversal.
type Decision int

const (
	DecisionReuseCache Decision = iota
	DecisionRepaintValue
	DecisionRepaintStructure
)

// Reconcile walks id's subtree within vp, returning the per-node decision
// map. Nodes outside vp are culled entirely (absent from the result).
func (r *Reconciler) Reconcile(id NodeID, vp Viewport, env TerminalEnv) map[NodeID]Decision {
	decisions := make(map[NodeID]Decision)
	r.walk(id, vp, env, decisions)
	return decisions
}

func (r *Reconciler) walk(id NodeID, vp Viewport, env TerminalEnv, out map[NodeID]Decision) {
	node := r.graph.Node(id)
	if !vp.Intersects(0, 0, node.Width, node.Height) {
		return
	}

	sh := StructuralHash(node)
	vh := ValueHash(node)
	prevSH, hadSH := r.lastStructHash[id]
	prevVH := r.lastValueHash[id]

	switch {
	case !hadSH || sh != prevSH:
		out[id] = DecisionRepaintStructure
	case vh != prevVH || r.graph.Dirty(id):
		out[id] = DecisionRepaintValue
	default:
		if _, ok := r.cache.Get(id, sh, env, r.maxStale); ok {
			out[id] = DecisionReuseCache
		} else {
			out[id] = DecisionRepaintValue
		}
	}

	r.lastStructHash[id] = sh
	r.lastValueHash[id] = vh

	for _, child := range node.Children {
		r.walk(child, vp, env, out)
	}
}
