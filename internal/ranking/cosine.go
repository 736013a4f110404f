package ranking

import (
	"fmt"
	"math"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// CosineSimilarity computes the cosine similarity between two vectors.
// It returns exactly 0 when either vector has zero magnitude and
// domain.ErrDimensionMismatch when the lengths differ.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("cosine similarity %d vs %d: %w", len(a), len(b), domain.ErrDimensionMismatch)
	}
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0, nil
	}
	score := dot / (math.Sqrt(na2) * math.Sqrt(nb2))
	if math.IsNaN(score) {
		return 0, nil
	}
	return score, nil
}
