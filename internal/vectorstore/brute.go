package vectorstore

// bruteIndex is the exact fallback: linear scan over all stored
// vectors with precomputed magnitudes. Functionally equivalent to the
// graph index, just slower; used when HNSW is disabled.
type bruteIndex struct {
	ids  []string
	vecs [][]float32
	mags []float32
	pos  map[string]int
}

func newBruteIndex() *bruteIndex {
	return &bruteIndex{pos: make(map[string]int)}
}

func (b *bruteIndex) Add(id string, vec []float32) {
	if i, ok := b.pos[id]; ok {
		b.vecs[i] = vec
		b.mags[i] = magnitude(vec)
		return
	}
	b.pos[id] = len(b.ids)
	b.ids = append(b.ids, id)
	b.vecs = append(b.vecs, vec)
	b.mags = append(b.mags, magnitude(vec))
}

func (b *bruteIndex) Remove(id string) bool {
	i, ok := b.pos[id]
	if !ok {
		return false
	}
	last := len(b.ids) - 1
	if i != last {
		b.ids[i] = b.ids[last]
		b.vecs[i] = b.vecs[last]
		b.mags[i] = b.mags[last]
		b.pos[b.ids[i]] = i
	}
	b.ids = b.ids[:last]
	b.vecs = b.vecs[:last]
	b.mags = b.mags[:last]
	delete(b.pos, id)
	return true
}

func (b *bruteIndex) Search(query []float32, k int) []Hit {
	if len(b.ids) == 0 {
		return nil
	}
	qm := magnitude(query)
	if qm == 0 {
		return nil
	}
	hits := make([]Hit, 0, len(b.ids))
	for i := range b.vecs {
		s := similarity(query, qm, b.vecs[i], b.mags[i])
		hits = append(hits, Hit{SkillID: b.ids[i], Score: float64(s)})
	}
	sortHits(hits)
	if k > 0 && k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

func (b *bruteIndex) Len() int { return len(b.ids) }
