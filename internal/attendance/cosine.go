package attendance

import "math"

// CosineDistance computes the cosine distance between two embeddings.
// Returns a value between 0 (identical direction) and 2 (opposite).
// Invalid input (empty or mismatched dimensions, zero vectors) returns the
// maximum distance so it can never produce a match.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	if magA == 0 || magB == 0 {
		return 2.0
	}

	similarity := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	// Rounding can push the quotient a hair outside [-1, 1].
	similarity = math.Max(-1, math.Min(1, similarity))

	return 1 - similarity
}
