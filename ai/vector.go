package ai

import (
	"fmt"
	"math"
)

// Normalize scales v to unit length in place and returns it. A zero-norm
// vector is a degenerate embedding and fails with ErrZeroVector rather
// than silently passing a non-unit vector downstream.
func Normalize(v []float32) ([]float32, error) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return nil, ErrZeroVector
	}
	mag := math.Sqrt(sum)
	for i, x := range v {
		v[i] = float32(float64(x) / mag)
	}
	return v, nil
}

// NormalizeBatch validates a batch against the input count and expected
// dimension (dim 0 skips the dimension check) and normalizes every vector.
// Validation failures are fatal and nothing useful is returned.
func NormalizeBatch(vectors [][]float32, inputCount, dim int) ([][]float32, error) {
	if len(vectors) != inputCount {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrCountMismatch, len(vectors), inputCount)
	}
	for i, v := range vectors {
		if dim > 0 && len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
		if _, err := Normalize(v); err != nil {
			return nil, fmt.Errorf("vector %d: %w", i, err)
		}
	}
	return vectors, nil
}
