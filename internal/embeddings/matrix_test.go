package embeddings_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mycontent/recommender/backend/internal/embeddings"
)

func TestNewMatrixRejectsRaggedRows(t *testing.T) {
	_, err := embeddings.NewMatrix(
		[]int64{1, 2},
		[][]float32{
			{1, 0, 0},
			{0, 1},
		},
	)
	require.ErrorIs(t, err, embeddings.ErrDimensionMismatch)
}

func TestNewMatrixRejectsDuplicateIDs(t *testing.T) {
	_, err := embeddings.NewMatrix(
		[]int64{1, 1},
		[][]float32{
			{1, 0},
			{0, 1},
		},
	)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate article id")
}

func TestNewMatrixRejectsEmptyInput(t *testing.T) {
	_, err := embeddings.NewMatrix(nil, nil)
	require.Error(t, err)
}

func TestMatrixLookup(t *testing.T) {
	m, err := embeddings.NewMatrix(
		[]int64{10, 20},
		[][]float32{
			{1, 2},
			{3, 4},
		},
	)
	require.NoError(t, err)

	require.Equal(t, 2, m.Len())
	require.Equal(t, 2, m.Dim())
	require.True(t, m.Contains(20))
	require.False(t, m.Contains(30))

	row, ok := m.Row(20)
	require.True(t, ok)
	require.Equal(t, []float32{3, 4}, row)

	_, ok = m.Row(30)
	require.False(t, ok)

	require.Equal(t, int64(10), m.IDAt(0))
	require.Equal(t, []float32{1, 2}, m.RowAt(0))
}

func TestLoadCSV(t *testing.T) {
	path := writeFile(t, "embeddings.csv",
		"article_id,e0,e1,e2\n"+
			"1,0.5,0.25,-0.125\n"+
			"2,0,1,0\n")

	m, err := embeddings.LoadCSV(path)
	require.NoError(t, err)
	require.Equal(t, 2, m.Len())
	require.Equal(t, 3, m.Dim())

	row, ok := m.Row(1)
	require.True(t, ok)
	require.Equal(t, []float32{0.5, 0.25, -0.125}, row)
}

func TestLoadCSVRejectsRaggedRows(t *testing.T) {
	path := writeFile(t, "ragged.csv",
		"article_id,e0,e1\n"+
			"1,0.5,0.25\n"+
			"2,1\n")

	_, err := embeddings.LoadCSV(path)
	require.Error(t, err)
}

func TestLoadCSVRejectsBadValues(t *testing.T) {
	path := writeFile(t, "bad.csv",
		"article_id,e0,e1\n"+
			"one,0.5,0.25\n")

	_, err := embeddings.LoadCSV(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad article id")
}

func TestLoadCSVMissingFile(t *testing.T) {
	_, err := embeddings.LoadCSV(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
