package articles

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/mycontent/recommender/backend/internal/models"
)

// Catalog is the read-only article metadata index loaded once at startup.
type Catalog struct {
	byID map[int64]models.ArticleMeta
}

// LoadCSV reads articles_metadata.csv. Columns are matched by header name so
// column order and extra columns do not matter; only article_id is required.
func LoadCSV(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read metadata header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	idCol, ok := cols["article_id"]
	if !ok {
		return nil, fmt.Errorf("metadata header %v is missing article_id", header)
	}

	byID := make(map[int64]models.ArticleMeta)
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read metadata line %d: %w", line, err)
		}

		id, err := strconv.ParseInt(record[idCol], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("metadata line %d: bad article id %q: %w", line, record[idCol], err)
		}

		meta := models.ArticleMeta{ArticleID: id}
		meta.CategoryID = intField(record, cols, "category_id")
		meta.PublisherID = intField(record, cols, "publisher_id")
		meta.WordsCount = int(intField(record, cols, "words_count"))
		if ts := intField(record, cols, "created_at_ts"); ts > 0 {
			meta.CreatedAt = time.UnixMilli(ts).UTC()
		}

		byID[id] = meta
	}

	return &Catalog{byID: byID}, nil
}

// Lookup returns metadata for an article. Unknown ids get a zero-valued entry
// rather than an error so that a stale catalog never blocks a recommendation.
func (c *Catalog) Lookup(articleID int64) models.ArticleMeta {
	if meta, ok := c.byID[articleID]; ok {
		return meta
	}
	return models.ArticleMeta{ArticleID: articleID}
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int { return len(c.byID) }

func intField(record []string, cols map[string]int, name string) int64 {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return 0
	}
	v, err := strconv.ParseInt(record[i], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
