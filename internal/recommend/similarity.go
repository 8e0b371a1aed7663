package recommend

import (
	"fmt"
	"math"

	"github.com/mycontent/recommender/backend/internal/embeddings"
)

// Similarities computes the cosine similarity between query and every row of
// the matrix, returned in matrix row order. A zero-norm vector on either side
// scores 0 for that pair instead of producing NaN; malformed rows degrade,
// they do not fail the request. The whole batch is one pass over the matrix
// and is numerically identical to scoring each pair on its own.
func Similarities(query []float32, m *embeddings.Matrix) ([]float64, error) {
	if len(query) != m.Dim() {
		return nil, fmt.Errorf("query has %d dimensions, matrix has %d: %w",
			len(query), m.Dim(), embeddings.ErrDimensionMismatch)
	}

	out := make([]float64, m.Len())

	qnorm := norm(query)
	if qnorm == 0 {
		return out, nil
	}

	for i := range out {
		rnorm := m.NormAt(i)
		if rnorm == 0 {
			continue
		}
		out[i] = dot(query, m.RowAt(i)) / (qnorm * rnorm)
	}

	return out, nil
}

// Accumulation happens in float64 even though vectors are stored as float32;
// 250-component sums lose noticeable precision in single precision.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
