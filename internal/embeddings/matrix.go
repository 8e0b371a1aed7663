package embeddings

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch signals that a vector does not match the matrix's
// column count. Non-uniform rows make similarity undefined, so this is fatal.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Matrix is the immutable embedding store: one fixed-length vector per
// article, plus an id -> row index. It is built once at startup and may be
// shared across concurrent requests without locking.
type Matrix struct {
	ids   []int64
	rows  [][]float32
	norms []float64
	index map[int64]int
	dim   int
}

// NewMatrix builds a Matrix from parallel id and row slices. Every row must
// have the same length and every article id must be unique.
func NewMatrix(ids []int64, rows [][]float32) (*Matrix, error) {
	if len(ids) != len(rows) {
		return nil, fmt.Errorf("got %d ids for %d rows", len(ids), len(rows))
	}
	if len(rows) == 0 {
		return nil, errors.New("embedding matrix is empty")
	}

	dim := len(rows[0])
	if dim == 0 {
		return nil, fmt.Errorf("row 0 has zero length: %w", ErrDimensionMismatch)
	}

	index := make(map[int64]int, len(ids))
	norms := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != dim {
			return nil, fmt.Errorf("row %d has %d values, want %d: %w", i, len(row), dim, ErrDimensionMismatch)
		}
		if _, dup := index[ids[i]]; dup {
			return nil, fmt.Errorf("duplicate article id %d at row %d", ids[i], i)
		}
		index[ids[i]] = i

		var sum float64
		for _, v := range row {
			sum += float64(v) * float64(v)
		}
		norms[i] = math.Sqrt(sum)
	}

	return &Matrix{ids: ids, rows: rows, norms: norms, index: index, dim: dim}, nil
}

// Len returns the number of articles in the matrix.
func (m *Matrix) Len() int { return len(m.rows) }

// Dim returns the embedding dimensionality.
func (m *Matrix) Dim() int { return m.dim }

// Row returns the embedding for an article id.
func (m *Matrix) Row(articleID int64) ([]float32, bool) {
	i, ok := m.index[articleID]
	if !ok {
		return nil, false
	}
	return m.rows[i], true
}

// Contains reports whether the matrix has an embedding for the article.
func (m *Matrix) Contains(articleID int64) bool {
	_, ok := m.index[articleID]
	return ok
}

// IDAt returns the article id stored at a row index.
func (m *Matrix) IDAt(row int) int64 { return m.ids[row] }

// RowAt returns the embedding stored at a row index.
func (m *Matrix) RowAt(row int) []float32 { return m.rows[row] }

// NormAt returns the precomputed Euclidean norm of a row.
func (m *Matrix) NormAt(row int) float64 { return m.norms[row] }
