package vectorstore

import (
	"container/heap"
	"math"
	"math/rand"
)

// hnswConfig holds the graph tuning parameters: m controls node
// degree, efConstruction the build-time search breadth, efSearch the
// query-time search breadth.
type hnswConfig struct {
	m              int
	efConstruction int
	efSearch       int
}

type hnswNode struct {
	id      string
	vec     []float32
	mag     float32
	level   int
	links   [][]int32 // per-layer neighbor indices into nodes
	deleted bool
}

// hnswIndex is a layered navigable-small-world graph over cosine
// distance. Deletes are tombstones: removed nodes stay navigable but
// are excluded from results and dropped on the next rebuild.
type hnswIndex struct {
	cfg       hnswConfig
	nodes     []*hnswNode
	pos       map[string]int32 // live ids only
	entry     int32
	maxLevel  int
	live      int
	levelMult float64
	rng       *rand.Rand
}

func newHNSWIndex(cfg hnswConfig) *hnswIndex {
	if cfg.m <= 0 {
		cfg.m = 16
	}
	if cfg.efConstruction < cfg.m {
		cfg.efConstruction = cfg.m * 4
	}
	if cfg.efSearch <= 0 {
		cfg.efSearch = 50
	}
	return &hnswIndex{
		cfg:       cfg,
		pos:       make(map[string]int32),
		entry:     -1,
		levelMult: 1 / math.Log(float64(cfg.m)),
		// Fixed seed keeps graph construction, and therefore result
		// ordering, deterministic for a given insertion sequence.
		rng: rand.New(rand.NewSource(1)),
	}
}

// cosine distance between a query (with precomputed magnitude) and a node.
func (h *hnswIndex) dist(q []float32, qm float32, n *hnswNode) float32 {
	return 1 - similarity(q, qm, n.vec, n.mag)
}

func (h *hnswIndex) randomLevel() int {
	return int(math.Floor(-math.Log(h.rng.Float64()) * h.levelMult))
}

// maxNeighbors is the degree cap per layer (2*m on the base layer).
func (h *hnswIndex) maxNeighbors(layer int) int {
	if layer == 0 {
		return h.cfg.m * 2
	}
	return h.cfg.m
}

// Add inserts or replaces a vector. Replacing tombstones the old node
// and inserts a fresh one.
func (h *hnswIndex) Add(id string, vec []float32) {
	if old, ok := h.pos[id]; ok {
		h.nodes[old].deleted = true
		delete(h.pos, id)
		h.live--
	}

	level := h.randomLevel()
	node := &hnswNode{
		id:    id,
		vec:   vec,
		mag:   magnitude(vec),
		level: level,
		links: make([][]int32, level+1),
	}
	idx := int32(len(h.nodes))
	h.nodes = append(h.nodes, node)
	h.pos[id] = idx
	h.live++

	if h.entry < 0 {
		h.entry = idx
		h.maxLevel = level
		return
	}

	ep := h.entry
	for l := h.maxLevel; l > level; l-- {
		ep = h.greedyClosest(vec, node.mag, ep, l)
	}

	top := level
	if top > h.maxLevel {
		top = h.maxLevel
	}
	for l := top; l >= 0; l-- {
		cands := h.searchLayer(vec, node.mag, ep, h.cfg.efConstruction, l)
		limit := h.maxNeighbors(l)
		if limit > len(cands) {
			limit = len(cands)
		}
		neighbors := make([]int32, 0, limit)
		for _, c := range cands[:limit] {
			neighbors = append(neighbors, c.idx)
		}
		node.links[l] = neighbors
		for _, nb := range neighbors {
			h.connect(nb, idx, l)
		}
		if len(cands) > 0 {
			ep = cands[0].idx
		}
	}

	if level > h.maxLevel {
		h.maxLevel = level
		h.entry = idx
	}
}

// connect adds a back-link and prunes the neighbor list when it
// exceeds the layer's degree cap, keeping the closest nodes.
func (h *hnswIndex) connect(from, to int32, layer int) {
	n := h.nodes[from]
	n.links[layer] = append(n.links[layer], to)

	limit := h.maxNeighbors(layer)
	if len(n.links[layer]) <= limit {
		return
	}

	type scored struct {
		idx int32
		d   float32
	}
	cands := make([]scored, 0, len(n.links[layer]))
	for _, nb := range n.links[layer] {
		cands = append(cands, scored{nb, h.dist(n.vec, n.mag, h.nodes[nb])})
	}
	// Partial selection of the closest `limit` links.
	for i := 0; i < limit; i++ {
		best := i
		for j := i + 1; j < len(cands); j++ {
			if cands[j].d < cands[best].d {
				best = j
			}
		}
		cands[i], cands[best] = cands[best], cands[i]
	}
	pruned := make([]int32, limit)
	for i := 0; i < limit; i++ {
		pruned[i] = cands[i].idx
	}
	n.links[layer] = pruned
}

// greedyClosest walks layer l toward the query until no neighbor
// improves the distance.
func (h *hnswIndex) greedyClosest(q []float32, qm float32, ep int32, layer int) int32 {
	cur := ep
	curDist := h.dist(q, qm, h.nodes[cur])
	for {
		improved := false
		node := h.nodes[cur]
		if layer < len(node.links) {
			for _, nb := range node.links[layer] {
				d := h.dist(q, qm, h.nodes[nb])
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

type cand struct {
	idx int32
	d   float32
}

// candMinHeap pops the closest candidate first.
type candMinHeap []cand

func (h candMinHeap) Len() int            { return len(h) }
func (h candMinHeap) Less(i, j int) bool  { return h[i].d < h[j].d }
func (h candMinHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candMinHeap) Push(x interface{}) { *h = append(*h, x.(cand)) }
func (h *candMinHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// candMaxHeap pops the farthest result first (bounded result set).
type candMaxHeap []cand

func (h candMaxHeap) Len() int            { return len(h) }
func (h candMaxHeap) Less(i, j int) bool  { return h[i].d > h[j].d }
func (h candMaxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candMaxHeap) Push(x interface{}) { *h = append(*h, x.(cand)) }
func (h *candMaxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// searchLayer runs the ef-bounded best-first search on one layer and
// returns up to ef candidates sorted by ascending distance. Tombstoned
// nodes are traversed (they keep the graph connected) and returned;
// callers filter them.
func (h *hnswIndex) searchLayer(q []float32, qm float32, ep int32, ef int, layer int) []cand {
	visited := map[int32]bool{ep: true}
	epDist := h.dist(q, qm, h.nodes[ep])

	candidates := candMinHeap{{ep, epDist}}
	results := candMaxHeap{{ep, epDist}}
	heap.Init(&candidates)
	heap.Init(&results)

	for candidates.Len() > 0 {
		c := heap.Pop(&candidates).(cand)
		if results.Len() >= ef && c.d > results[0].d {
			break
		}
		node := h.nodes[c.idx]
		if layer >= len(node.links) {
			continue
		}
		for _, nb := range node.links[layer] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			d := h.dist(q, qm, h.nodes[nb])
			if results.Len() < ef || d < results[0].d {
				heap.Push(&candidates, cand{nb, d})
				heap.Push(&results, cand{nb, d})
				if results.Len() > ef {
					heap.Pop(&results)
				}
			}
		}
	}

	out := make([]cand, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&results).(cand)
	}
	return out
}

// Remove tombstones a node. Returns false if the id was absent.
func (h *hnswIndex) Remove(id string) bool {
	idx, ok := h.pos[id]
	if !ok {
		return false
	}
	h.nodes[idx].deleted = true
	delete(h.pos, id)
	h.live--
	return true
}

// Search returns the approximate top-k by descending cosine similarity.
func (h *hnswIndex) Search(query []float32, k int) []Hit {
	if h.entry < 0 || h.live == 0 {
		return nil
	}
	qm := magnitude(query)
	if qm == 0 {
		return nil
	}

	ef := h.cfg.efSearch
	if ef < k {
		ef = k
	}

	ep := h.entry
	for l := h.maxLevel; l > 0; l-- {
		ep = h.greedyClosest(query, qm, ep, l)
	}
	cands := h.searchLayer(query, qm, ep, ef, 0)

	hits := make([]Hit, 0, len(cands))
	for _, c := range cands {
		node := h.nodes[c.idx]
		if node.deleted {
			continue
		}
		hits = append(hits, Hit{SkillID: node.id, Score: float64(1 - c.d)})
	}
	sortHits(hits)
	if k > 0 && k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

func (h *hnswIndex) Len() int { return h.live }
