package recommend_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mycontent/recommender/backend/internal/embeddings"
	"github.com/mycontent/recommender/backend/internal/recommend"
)

func testMatrix(t *testing.T) *embeddings.Matrix {
	t.Helper()
	m, err := embeddings.NewMatrix(
		[]int64{1, 2, 3},
		[][]float32{
			{1, 0},
			{0, 1},
			{1, 1},
		},
	)
	require.NoError(t, err)
	return m
}

func TestSimilaritiesKnownValues(t *testing.T) {
	m := testMatrix(t)

	sims, err := recommend.Similarities([]float32{1, 0}, m)
	require.NoError(t, err)
	require.Len(t, sims, 3)

	require.InDelta(t, 1.0, sims[0], 1e-9)
	require.InDelta(t, 0.0, sims[1], 1e-9)
	require.InDelta(t, 1/math.Sqrt2, sims[2], 1e-9)
}

func TestSimilaritiesReflexivity(t *testing.T) {
	m := testMatrix(t)

	for i := 0; i < m.Len(); i++ {
		sims, err := recommend.Similarities(m.RowAt(i), m)
		require.NoError(t, err)
		require.InDelta(t, 1.0, sims[i], 1e-9, "row %d against itself", i)
	}
}

func TestSimilaritiesZeroNorm(t *testing.T) {
	m, err := embeddings.NewMatrix(
		[]int64{1, 2},
		[][]float32{
			{0, 0},
			{1, 1},
		},
	)
	require.NoError(t, err)

	// Zero row in the matrix scores 0 against any query, itself included.
	sims, err := recommend.Similarities([]float32{1, 0}, m)
	require.NoError(t, err)
	require.Equal(t, 0.0, sims[0])

	sims, err = recommend.Similarities(m.RowAt(0), m)
	require.NoError(t, err)
	require.Equal(t, []float64{0, 0}, sims)
}

func TestSimilaritiesDimensionMismatch(t *testing.T) {
	m := testMatrix(t)

	_, err := recommend.Similarities([]float32{1, 0, 0}, m)
	require.Error(t, err)
	require.ErrorIs(t, err, embeddings.ErrDimensionMismatch)
}
