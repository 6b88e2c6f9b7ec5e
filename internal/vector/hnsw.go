package vector

import (
	"container/heap"
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default HNSW parameters. M bounds per-level adjacency, the ef values bound
// the best-first candidate list during construction and query.
const (
	DefaultM              = 16
	DefaultEfConstruction = 200
	DefaultEfSearch       = 50
	DefaultMaxLevel       = 8
)

// Graph is a hierarchical navigable small world (HNSW) index. Nodes live in a
// contiguous arena addressed by int32 indices; string ids are resolved at the
// boundary only. Sparse upper layers make large jumps, layer 0 refines locally.
//
// Insert and Remove take the exclusive lock; Search takes the shared lock.
// The insertion algorithm reads and writes adjacency across multiple steps and
// is not safe under interleaved mutation.
type Graph struct {
	mu sync.RWMutex

	dimensions     int
	m              int
	efConstruction int
	efSearch       int
	maxLevel       int

	rng    *rand.Rand
	logger *zap.Logger

	nodes []graphNode
	byID  map[string]int32
	free  []int32
	entry int32 // arena index of the entry point, -1 when empty
	size  int
}

type graphNode struct {
	id        string
	vec       []float32
	level     int
	neighbors [][]int32 // per-level adjacency, len level+1, each capped at M
	deleted   bool
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithM sets the maximum neighbors per node per level.
func WithM(m int) GraphOption {
	return func(g *Graph) { g.m = m }
}

// WithEfConstruction sets the candidate-list width during insertion.
func WithEfConstruction(ef int) GraphOption {
	return func(g *Graph) { g.efConstruction = ef }
}

// WithEfSearch sets the candidate-list width during query.
func WithEfSearch(ef int) GraphOption {
	return func(g *Graph) { g.efSearch = ef }
}

// WithMaxLevel sets the hard cap on layers.
func WithMaxLevel(l int) GraphOption {
	return func(g *Graph) { g.maxLevel = l }
}

// WithSeed seeds the level-draw random source, making insertion levels
// reproducible across runs.
func WithSeed(seed int64) GraphOption {
	return func(g *Graph) { g.rng = rand.New(rand.NewSource(seed)) }
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) GraphOption {
	return func(g *Graph) { g.logger = l }
}

// NewGraph creates an empty HNSW index for vectors of the given dimension.
func NewGraph(dimensions int, opts ...GraphOption) (*Graph, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	g := &Graph{
		dimensions:     dimensions,
		m:              DefaultM,
		efConstruction: DefaultEfConstruction,
		efSearch:       DefaultEfSearch,
		maxLevel:       DefaultMaxLevel,
		byID:           make(map[string]int32),
		entry:          -1,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.m <= 0 || g.efConstruction <= 0 || g.efSearch <= 0 || g.maxLevel < 0 {
		return nil, fmt.Errorf("invalid graph parameters: M=%d efConstruction=%d efSearch=%d maxLevel=%d",
			g.m, g.efConstruction, g.efSearch, g.maxLevel)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return g, nil
}

// Insert adds the vector for id. Inserting an existing id replaces it
// (last write wins).
func (g *Graph) Insert(_ context.Context, id string, vec []float32) error {
	if len(vec) != g.dimensions {
		return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), g.dimensions)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.byID[id]; ok {
		g.removeLocked(old)
		delete(g.byID, id)
	}

	level := g.drawLevel()
	idx := g.alloc(id, vec, level)
	g.byID[id] = idx
	g.size++

	if g.entry < 0 {
		g.entry = idx
		return nil
	}

	// Greedy descent through the sparse upper layers to a good local entry
	// for the new node's level.
	ep := g.entry
	epLevel := g.nodes[ep].level
	for l := epLevel; l > level; l-- {
		ep = g.greedyClosest(vec, ep, l)
	}

	top := level
	if epLevel < top {
		top = epLevel
	}
	for l := top; l >= 0; l-- {
		found := g.searchLayer(vec, ep, g.efConstruction, l)

		// Neighbor selection is plain truncation to the M nearest. No
		// diversity heuristic; this bounds recall versus reference HNSW
		// but keeps construction simple.
		sel := found
		if len(sel) > g.m {
			sel = sel[:g.m]
		}
		nbrs := make([]int32, 0, len(sel))
		for _, it := range sel {
			if it.idx != idx {
				nbrs = append(nbrs, it.idx)
			}
		}
		g.nodes[idx].neighbors[l] = nbrs

		for _, nb := range nbrs {
			g.nodes[nb].neighbors[l] = append(g.nodes[nb].neighbors[l], idx)
			if len(g.nodes[nb].neighbors[l]) > g.m {
				g.pruneNeighbors(nb, l)
			}
		}

		if len(found) > 0 {
			ep = found[0].idx
		}
	}

	if level > g.nodes[g.entry].level {
		g.entry = idx
	}
	return nil
}

// Search returns up to k approximate nearest neighbors of query by cosine
// distance, ordered by descending similarity. An empty index or k <= 0
// returns nil.
func (g *Graph) Search(_ context.Context, query []float32, k int) ([]*Result, error) {
	if len(query) != g.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), g.dimensions)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.entry < 0 || k <= 0 {
		return nil, nil
	}

	ep := g.entry
	for l := g.nodes[ep].level; l >= 1; l-- {
		ep = g.greedyClosest(query, ep, l)
	}

	ef := g.efSearch
	if ef < k {
		ef = k
	}
	found := g.searchLayer(query, ep, ef, 0)
	if len(found) > k {
		found = found[:k]
	}

	results := make([]*Result, len(found))
	for i, it := range found {
		results[i] = &Result{ID: g.nodes[it.idx].id, Similarity: 1 - it.dist}
	}
	return results, nil
}

// Remove deletes id from the index and strips it from every neighbor list.
// If the removed node was the entry point, an arbitrary survivor takes over;
// the next insertion or search re-stabilizes connectivity. This is a known
// approximation-quality trade-off under heavy deletion churn.
func (g *Graph) Remove(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx, ok := g.byID[id]
	if !ok {
		return nil
	}
	g.removeLocked(idx)
	delete(g.byID, id)
	return nil
}

// Size returns the number of vectors currently indexed.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.size
}

// Contains reports whether id is indexed.
func (g *Graph) Contains(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.byID[id]
	return ok
}

// drawLevel draws a level from a geometric distribution (p=0.5 per step),
// capped at maxLevel. Expected level is about 1; heavier layers are
// exponentially rarer.
func (g *Graph) drawLevel() int {
	level := 0
	for level < g.maxLevel && g.rng.Float64() < 0.5 {
		level++
	}
	return level
}

// alloc places a node in the arena, reusing a freed slot when available.
func (g *Graph) alloc(id string, vec []float32, level int) int32 {
	v := make([]float32, len(vec))
	copy(v, vec)
	n := graphNode{
		id:        id,
		vec:       v,
		level:     level,
		neighbors: make([][]int32, level+1),
	}
	if len(g.free) > 0 {
		idx := g.free[len(g.free)-1]
		g.free = g.free[:len(g.free)-1]
		g.nodes[idx] = n
		return idx
	}
	g.nodes = append(g.nodes, n)
	return int32(len(g.nodes) - 1)
}

// removeLocked unlinks the node at idx from the whole graph. Pruning can
// leave one-directional edges into a node, so every survivor's adjacency at
// the affected levels is scanned, not just the node's own neighbor lists.
func (g *Graph) removeLocked(idx int32) {
	doomedLevel := g.nodes[idx].level
	for i := range g.nodes {
		n := &g.nodes[i]
		if n.deleted || int32(i) == idx {
			continue
		}
		top := n.level
		if doomedLevel < top {
			top = doomedLevel
		}
		for l := 0; l <= top; l++ {
			nbrs := n.neighbors[l]
			for j := 0; j < len(nbrs); j++ {
				if nbrs[j] == idx {
					nbrs = append(nbrs[:j], nbrs[j+1:]...)
					j--
				}
			}
			n.neighbors[l] = nbrs
		}
	}

	g.nodes[idx].deleted = true
	g.nodes[idx].vec = nil
	g.nodes[idx].neighbors = nil
	g.free = append(g.free, idx)
	g.size--

	if g.entry == idx {
		g.entry = -1
		for i := range g.nodes {
			if !g.nodes[i].deleted {
				g.entry = int32(i)
				break
			}
		}
	}
}

// greedyClosest follows the single best neighbor at the given level until no
// neighbor improves on the current distance.
func (g *Graph) greedyClosest(query []float32, ep int32, level int) int32 {
	cur := ep
	curDist := CosineDistance(query, g.nodes[cur].vec)
	for {
		improved := false
		if level <= g.nodes[cur].level {
			for _, nb := range g.nodes[cur].neighbors[level] {
				d := CosineDistance(query, g.nodes[nb].vec)
				if d < curDist {
					cur, curDist = nb, d
					improved = true
				}
			}
		}
		if !improved {
			return cur
		}
	}
}

// searchLayer runs a bounded best-first search from ep at the given level and
// returns up to ef candidates sorted by ascending distance.
func (g *Graph) searchLayer(query []float32, ep int32, ef, level int) []layerCandidate {
	epDist := CosineDistance(query, g.nodes[ep].vec)
	visited := map[int32]bool{ep: true}
	candidates := &minDistHeap{{idx: ep, dist: epDist}}
	results := &maxDistHeap{{idx: ep, dist: epDist}}

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(layerCandidate)
		if results.Len() >= ef && c.dist > (*results)[0].dist {
			break
		}
		if level > g.nodes[c.idx].level {
			continue
		}
		for _, nb := range g.nodes[c.idx].neighbors[level] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			d := CosineDistance(query, g.nodes[nb].vec)
			if results.Len() < ef || d < (*results)[0].dist {
				heap.Push(candidates, layerCandidate{idx: nb, dist: d})
				heap.Push(results, layerCandidate{idx: nb, dist: d})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]layerCandidate, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(layerCandidate)
	}
	return out
}

// pruneNeighbors truncates the adjacency of the node at idx back to the M
// nearest by recomputed distance.
func (g *Graph) pruneNeighbors(idx int32, level int) {
	n := &g.nodes[idx]
	nbrs := n.neighbors[level]
	sort.SliceStable(nbrs, func(i, j int) bool {
		return CosineDistance(n.vec, g.nodes[nbrs[i]].vec) < CosineDistance(n.vec, g.nodes[nbrs[j]].vec)
	})
	n.neighbors[level] = nbrs[:g.m]
}

type layerCandidate struct {
	idx  int32
	dist float64
}

// minDistHeap pops the closest candidate first.
type minDistHeap []layerCandidate

func (h minDistHeap) Len() int            { return len(h) }
func (h minDistHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h minDistHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minDistHeap) Push(x interface{}) { *h = append(*h, x.(layerCandidate)) }
func (h *minDistHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// maxDistHeap pops the farthest candidate first (bounds the result set).
type maxDistHeap []layerCandidate

func (h maxDistHeap) Len() int            { return len(h) }
func (h maxDistHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h maxDistHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxDistHeap) Push(x interface{}) { *h = append(*h, x.(layerCandidate)) }
func (h *maxDistHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

var _ VectorIndex = (*Graph)(nil)
