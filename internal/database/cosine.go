package database

import "math"

// CosineDistance returns 1 - cosine similarity, in [0, 2].
// Mismatched or zero vectors are treated as maximally distant.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 2.0
	}

	// Clamp floating point drift
	similarity := max(-1, min(1, dot/(math.Sqrt(normA)*math.Sqrt(normB))))
	return 1 - similarity
}
