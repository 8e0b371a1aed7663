package clicks

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/mycontent/recommender/backend/internal/models"
)

// CSVStore serves click history from hourly CSV dumps loaded once at startup.
// Files are read in name order, which for hourly dumps is chronological, so
// "first-click order" falls out of the read order.
type CSVStore struct {
	histories map[int64][]int64
	counts    map[int64]int64
	users     []int64
}

// LoadCSVDir reads up to fileLimit CSV files from dir. Files that cannot be
// read or parsed are skipped with a warning; the store is only unusable when
// no file loads at all. Required columns (matched by header name, extra
// columns ignored): user_id, click_article_id, click_timestamp.
func LoadCSVDir(dir string, fileLimit int, log *slog.Logger) (*CSVStore, error) {
	pattern := filepath.Join(dir, "*.csv")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no click files found in %s", dir)
	}

	sort.Strings(files)
	if fileLimit > 0 && len(files) > fileLimit {
		files = files[:fileLimit]
	}

	s := &CSVStore{
		histories: make(map[int64][]int64),
		counts:    make(map[int64]int64),
	}
	seen := make(map[int64]map[int64]struct{})

	// Each file is buffered and merged only after it reads cleanly, so a file
	// that errors mid-parse contributes nothing instead of half its rows.
	loaded := 0
	for _, file := range files {
		rows, err := readClickFile(file)
		if err != nil {
			log.Warn("skipping click file", slog.String("file", file), slog.Any("err", err))
			continue
		}
		for _, row := range rows {
			s.add(row, seen)
		}
		loaded++
	}

	if loaded == 0 {
		return nil, fmt.Errorf("none of %d click files in %s could be loaded", len(files), dir)
	}

	s.users = make([]int64, 0, len(s.histories))
	for id := range s.histories {
		s.users = append(s.users, id)
	}
	sort.Slice(s.users, func(i, j int) bool { return s.users[i] < s.users[j] })

	log.Info("click history loaded",
		slog.Int("files", loaded),
		slog.Int("users", len(s.users)),
	)

	return s, nil
}

type clickRow struct {
	userID    int64
	articleID int64
}

func readClickFile(path string) ([]clickRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	userCol, articleCol := -1, -1
	for i, name := range header {
		switch name {
		case "user_id":
			userCol = i
		case "click_article_id":
			articleCol = i
		}
	}
	if userCol < 0 || articleCol < 0 {
		return nil, fmt.Errorf("header %v is missing user_id or click_article_id", header)
	}

	var rows []clickRow
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		userID, err := strconv.ParseInt(record[userCol], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad user id %q: %w", line, record[userCol], err)
		}
		articleID, err := strconv.ParseInt(record[articleCol], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad article id %q: %w", line, record[articleCol], err)
		}

		rows = append(rows, clickRow{userID: userID, articleID: articleID})
	}
}

func (s *CSVStore) add(row clickRow, seen map[int64]map[int64]struct{}) {
	s.counts[row.articleID]++

	read, ok := seen[row.userID]
	if !ok {
		read = make(map[int64]struct{})
		seen[row.userID] = read
	}
	if _, dup := read[row.articleID]; dup {
		return
	}
	read[row.articleID] = struct{}{}
	s.histories[row.userID] = append(s.histories[row.userID], row.articleID)
}

// UserHistory implements Store.
func (s *CSVStore) UserHistory(_ context.Context, userID int64) ([]int64, error) {
	history, ok := s.histories[userID]
	if !ok {
		return nil, ErrUnknownUser
	}
	out := make([]int64, len(history))
	copy(out, history)
	return out, nil
}

// TopArticles implements Store. Ties order by ascending article id.
func (s *CSVStore) TopArticles(_ context.Context, n int) ([]models.ArticleCount, error) {
	ranked := make([]models.ArticleCount, 0, len(s.counts))
	for id, count := range s.counts {
		ranked = append(ranked, models.ArticleCount{ArticleID: id, Clicks: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Clicks == ranked[j].Clicks {
			return ranked[i].ArticleID < ranked[j].ArticleID
		}
		return ranked[i].Clicks > ranked[j].Clicks
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked, nil
}

// ActiveUsers implements Store. Users are returned in ascending id order.
func (s *CSVStore) ActiveUsers(_ context.Context, limit int) ([]int64, error) {
	users := s.users
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	out := make([]int64, len(users))
	copy(out, users)
	return out, nil
}
