package embeddings

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// LoadCSV reads an embedding matrix from a CSV export. The expected layout is
// a header row followed by one line per article: the article id in the first
// column and the embedding components in the remaining columns. The
// dimensionality is taken from the first data row and enforced on the rest.
func LoadCSV(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open embeddings file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true

	// Header is mandatory; its width fixes the expected record length.
	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("read embeddings header: %w", err)
	}

	var (
		ids  []int64
		rows [][]float32
	)

	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read embeddings line %d: %w", line, err)
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("embeddings line %d has %d columns, want at least 2", line, len(record))
		}

		id, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("embeddings line %d: bad article id %q: %w", line, record[0], err)
		}

		row := make([]float32, len(record)-1)
		for i, raw := range record[1:] {
			v, err := strconv.ParseFloat(raw, 32)
			if err != nil {
				return nil, fmt.Errorf("embeddings line %d column %d: %w", line, i+2, err)
			}
			row[i] = float32(v)
		}

		ids = append(ids, id)
		rows = append(rows, row)
	}

	m, err := NewMatrix(ids, rows)
	if err != nil {
		return nil, fmt.Errorf("build embedding matrix from %s: %w", path, err)
	}
	return m, nil
}
