package classify

import "math"

// CosineSimilarity returns the cosine similarity between two vectors:
// the dot product divided by the product of magnitudes. Accumulation
// happens in float64 to avoid drift on long vectors.
//
// If either vector has zero magnitude, or the lengths differ, the
// result is 0.0 rather than an error or NaN so that downstream
// arithmetic stays total. No clamping is applied; callers convert to
// confidence with their own bounds.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
