// Package vectormath holds the small pieces of linear algebra shared by
// retrieval and scoring.
package vectormath

import "math"

// Cosine calculates cosine similarity between two vectors. Mismatched or
// zero-length inputs score 0 rather than erroring, so degenerate vectors
// never break a ranking pass.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Mean computes the elementwise average of the given vectors. The dimension
// is taken from the first vector; returns nil on empty input.
func Mean(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}

	n := len(vectors[0])
	if n == 0 {
		return nil
	}

	result := make([]float32, n)
	for _, v := range vectors {
		for i := 0; i < n && i < len(v); i++ {
			result[i] += v[i]
		}
	}

	count := float32(len(vectors))
	for i := 0; i < n; i++ {
		result[i] /= count
	}

	return result
}
