package facematch

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyVector is returned when either vector has no components.
	ErrEmptyVector = errors.New("empty vector")
	// ErrDimensionMismatch is returned when vectors have different lengths.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrZeroVector is returned when a vector has zero or non-finite norm.
	ErrZeroVector = errors.New("vector has zero or non-finite norm")
)

// CosineDistance computes 1 - cosine similarity after L2-normalizing both
// vectors independently. The result is in [0, 2]; 0 means same direction.
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, ErrEmptyVector
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	normA, err := l2Norm(a)
	if err != nil {
		return 0, err
	}
	normB, err := l2Norm(b)
	if err != nil {
		return 0, err
	}

	var dot float64
	for i := range a {
		dot += (float64(a[i]) / normA) * (float64(b[i]) / normB)
	}

	distance := 1 - dot
	// Clamp floating point drift.
	if distance < 0 {
		distance = 0
	}
	if distance > 2 {
		distance = 2
	}
	return distance, nil
}

func l2Norm(v []float32) (float64, error) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	n := math.Sqrt(sum)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, ErrZeroVector
	}
	return n, nil
}
