// Package metric implements the similarity engine: a bounded, symmetric
// score between two feature vectors.
//
// Scores live in [MinScore, MaxScore] = [0, 1]. The score is the cosine
// similarity of the two vectors remapped linearly from [-1, 1] to [0, 1], so
// Similarity(v, v) == MaxScore for every vector with non-zero norm.
// Zero-norm vectors have no direction and score MinScore against everything;
// callers are expected to reject them before they reach the store.
package metric

import (
	"fmt"
	"math"
)

const (
	// MaxScore is the score of two identical (non-zero) vectors.
	MaxScore = 1.0
	// MinScore is the score of two diametrically opposed vectors.
	MinScore = 0.0
)

// ErrDimensionMismatch indicates two vectors of differing length were scored.
//
// Vector length is fixed per biometric type by construction, so this is a
// data-integrity fault, never a user input error.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Similarity returns the similarity score between a and b in [0,1].
// Higher is more alike. The function is symmetric and deterministic.
// Cost is O(d) in the vector dimensionality.
func Similarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &ErrDimensionMismatch{Expected: len(a), Actual: len(b)}
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}

	if na == 0 || nb == 0 {
		return MinScore, nil
	}

	// Identical directions must score exactly MaxScore; sqrt introduces up
	// to 1 ulp of drift, which would break inclusive-boundary checks
	// against a threshold of 1.
	if na == nb && dot == na {
		return MaxScore, nil
	}

	cos := dot / math.Sqrt(na*nb)

	// Guard against float drift pushing the cosine out of [-1, 1].
	cos = math.Max(-1, math.Min(1, cos))

	return (1 + cos) / 2, nil
}

// Magnitude returns the L2 norm of v.
func Magnitude(v []float32) float64 {
	var n float64
	for _, x := range v {
		n += float64(x) * float64(x)
	}
	return math.Sqrt(n)
}
