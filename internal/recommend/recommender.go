package recommend

import (
	"errors"
	"sort"

	"github.com/mycontent/recommender/backend/internal/embeddings"
)

// DefaultK is the number of recommendations returned when the caller does not
// ask for a specific count.
const DefaultK = 5

// ErrMissingEmbedding signals that an article id has no row in the matrix.
var ErrMissingEmbedding = errors.New("no embedding for article")

// Scored is one ranked recommendation candidate.
type Scored struct {
	ArticleID int64   `json:"article_id"`
	Score     float64 `json:"score"`
}

// Recommend ranks unread articles for a user by mean cosine similarity
// between the user's read history and every article in the matrix.
//
// History ids without an embedding row are skipped; already-read articles are
// never returned. An empty (or fully skipped) history yields an empty result,
// not an error — that is the cold-start boundary and the caller decides what
// to substitute. Equal scores order by ascending article id so output is
// reproducible. The function is pure: same inputs, same output.
func Recommend(history []int64, m *embeddings.Matrix, k int) ([]Scored, error) {
	if k <= 0 {
		k = DefaultK
	}
	if len(history) == 0 {
		return nil, nil
	}

	read := make(map[int64]struct{}, len(history))
	for _, id := range history {
		read[id] = struct{}{}
	}

	// Iterate the history slice, not the set: float accumulation order must be
	// stable for identical inputs to produce bit-identical output.
	sums := make([]float64, m.Len())
	used := 0
	done := make(map[int64]struct{}, len(history))
	for _, id := range history {
		if _, dup := done[id]; dup {
			continue
		}
		done[id] = struct{}{}

		row, ok := m.Row(id)
		if !ok {
			continue
		}
		sims, err := Similarities(row, m)
		if err != nil {
			return nil, err
		}
		for i, s := range sims {
			sums[i] += s
		}
		used++
	}

	if used == 0 {
		return nil, nil
	}

	candidates := make([]Scored, 0, m.Len())
	for i := range sums {
		id := m.IDAt(i)
		if _, seen := read[id]; seen {
			continue
		}
		candidates = append(candidates, Scored{ArticleID: id, Score: sums[i] / float64(used)})
	}

	sortScored(candidates)

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// SimilarTo ranks the k nearest neighbours of a single article, excluding the
// article itself. Returns ErrMissingEmbedding when the id is not in the
// matrix.
func SimilarTo(articleID int64, m *embeddings.Matrix, k int) ([]Scored, error) {
	if k <= 0 {
		k = DefaultK
	}

	row, ok := m.Row(articleID)
	if !ok {
		return nil, ErrMissingEmbedding
	}

	sims, err := Similarities(row, m)
	if err != nil {
		return nil, err
	}

	candidates := make([]Scored, 0, m.Len())
	for i, s := range sims {
		id := m.IDAt(i)
		if id == articleID {
			continue
		}
		candidates = append(candidates, Scored{ArticleID: id, Score: s})
	}

	sortScored(candidates)

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

func sortScored(s []Scored) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Score == s[j].Score {
			return s[i].ArticleID < s[j].ArticleID
		}
		return s[i].Score > s[j].Score
	})
}
