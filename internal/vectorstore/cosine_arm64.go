//go:build arm64

package vectorstore

import "github.com/viant/vec/search"

// cosineDistance returns the cosine distance (1 - cosine similarity)
// using precomputed magnitudes. The SIMD library exports this method
// under a different name per architecture, hence the per-GOARCH shim.
func cosineDistance(a, b []float32, ma, mb float32) float32 {
	return search.Float32s(a).CosineDistanceWithMagnitude(b, ma, mb)
}
