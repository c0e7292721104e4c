package vectorstore

import (
	"fmt"
	"sort"

	"github.com/viant/vec/search"
)

// magnitude returns the Euclidean norm of v.
func magnitude(v []float32) float32 {
	return search.Float32s(v).Magnitude()
}

// Hit is one similarity search result.
type Hit struct {
	SkillID string  `json:"skill_id"`
	Score   float64 `json:"score"`
}

// vectorIndex is the in-memory similarity index contract. The index is
// a derived, rebuildable projection of the persisted rows and is never
// the source of truth. Implementations are not safe for concurrent
// mutation; the Store serializes access.
type vectorIndex interface {
	Add(id string, vec []float32)
	Remove(id string) bool
	Search(query []float32, k int) []Hit
	Len() int
}

// similarity returns the cosine similarity of a and b given their
// precomputed magnitudes. Zero-magnitude vectors score 0.
func similarity(a []float32, ma float32, b []float32, mb float32) float32 {
	if ma == 0 || mb == 0 {
		return 0
	}
	return 1 - cosineDistance(a, b, ma, mb)
}

// CosineSimilarity computes dot(a,b)/(|a||b|). Vectors need not be
// pre-normalized. Returns ErrDimensionMismatch when lengths differ.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("%w: empty vectors", ErrDimensionMismatch)
	}
	return float64(similarity(a, magnitude(a), b, magnitude(b))), nil
}

// sortHits orders by descending score, ties by ascending id so a given
// data set always ranks the same way within a run.
func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].SkillID < hits[j].SkillID
	})
}
