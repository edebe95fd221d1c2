package embedding

import (
	"math"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrDimensionMismatch = goerr.New("vector dimension mismatch")
	ErrZeroVector        = goerr.New("zero magnitude vector")
)

// CosineSimilarity returns the cosine of the angle between a and b, in [-1, 1].
// Vectors of different length or with zero magnitude have no defined similarity.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, goerr.Wrap(ErrDimensionMismatch, "cannot compare vectors",
			goerr.V("a", len(a)),
			goerr.V("b", len(b)))
	}
	if len(a) == 0 {
		return 0, goerr.Wrap(ErrZeroVector, "cannot compare empty vectors")
	}

	var dot, normA, normB float64
	for i := range a {
		va, vb := float64(a[i]), float64(b[i])
		dot += va * vb
		normA += va * va
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0, goerr.Wrap(ErrZeroVector, "cannot compare vectors")
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// rounding can push identical vectors slightly past 1
	return math.Max(-1, math.Min(1, sim)), nil
}
