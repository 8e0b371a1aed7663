package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mycontent/recommender/backend/internal/articles"
	"github.com/mycontent/recommender/backend/internal/clicks"
	"github.com/mycontent/recommender/backend/internal/config"
	"github.com/mycontent/recommender/backend/internal/embeddings"
	"github.com/mycontent/recommender/backend/internal/models"
)

type stubStore struct {
	histories map[int64][]int64
	top       []models.ArticleCount
	users     []int64
}

func (s *stubStore) UserHistory(_ context.Context, userID int64) ([]int64, error) {
	history, ok := s.histories[userID]
	if !ok {
		return nil, clicks.ErrUnknownUser
	}
	return history, nil
}

func (s *stubStore) TopArticles(_ context.Context, n int) ([]models.ArticleCount, error) {
	if n > 0 && len(s.top) > n {
		return s.top[:n], nil
	}
	return s.top, nil
}

func (s *stubStore) ActiveUsers(_ context.Context, limit int) ([]int64, error) {
	if limit > 0 && len(s.users) > limit {
		return s.users[:limit], nil
	}
	return s.users, nil
}

func newTestServer(t *testing.T) *server {
	t.Helper()

	matrix, err := embeddings.NewMatrix(
		[]int64{1, 2, 3},
		[][]float32{
			{1, 0},
			{0, 1},
			{1, 1},
		},
	)
	require.NoError(t, err)

	metaPath := filepath.Join(t.TempDir(), "articles_metadata.csv")
	meta := "article_id,category_id,created_at_ts,publisher_id,words_count\n" +
		"1,281,1704067200000,0,100\n" +
		"2,281,1704067200000,0,200\n" +
		"3,375,1704067200000,0,300\n"
	require.NoError(t, os.WriteFile(metaPath, []byte(meta), 0o644))
	catalog, err := articles.LoadCSV(metaPath)
	require.NoError(t, err)

	store := &stubStore{
		histories: map[int64][]int64{
			1: {1},
		},
		top: []models.ArticleCount{
			{ArticleID: 3, Clicks: 9},
			{ArticleID: 1, Clicks: 4},
		},
		users: []int64{1, 2, 3},
	}

	return &server{
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		cfg:     &config.API{DefaultTopN: 5, MaxTopN: 50},
		matrix:  matrix,
		catalog: catalog,
		store:   store,
	}
}

func doRequest(t *testing.T, srv *server, url string) (*http.Response, []byte) {
	t.Helper()

	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)

	res, err := http.Get(ts.URL + url)
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.NoError(t, res.Body.Close())
	return res, body
}

func TestHandleRecommend(t *testing.T) {
	srv := newTestServer(t)

	res, body := doRequest(t, srv, "/recommend?user_id=1")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var resp recommendResponse
	require.NoError(t, json.Unmarshal(body, &resp))

	require.Equal(t, int64(1), resp.UserID)
	require.False(t, resp.Fallback)
	require.Equal(t, 2, resp.Count)

	require.Equal(t, int64(3), resp.Recommendations[0].ArticleID)
	require.Equal(t, "Article 3", resp.Recommendations[0].Title)
	require.Equal(t, int64(375), resp.Recommendations[0].CategoryID)

	for _, rec := range resp.Recommendations {
		require.NotEqual(t, int64(1), rec.ArticleID, "read article must never be recommended")
	}
}

func TestHandleRecommendFallbackForUnknownUser(t *testing.T) {
	srv := newTestServer(t)

	res, body := doRequest(t, srv, "/recommend?user_id=999")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var resp recommendResponse
	require.NoError(t, json.Unmarshal(body, &resp))

	require.True(t, resp.Fallback)
	require.Equal(t, 2, resp.Count)
	require.Equal(t, int64(3), resp.Recommendations[0].ArticleID)
	require.Equal(t, float64(9), resp.Recommendations[0].Score)
}

func TestHandleRecommendRejectsBadUserID(t *testing.T) {
	srv := newTestServer(t)

	res, _ := doRequest(t, srv, "/recommend")
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, _ = doRequest(t, srv, "/recommend?user_id=abc")
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestHandleRecommendRespectsTopN(t *testing.T) {
	srv := newTestServer(t)

	res, body := doRequest(t, srv, "/recommend?user_id=1&top_n=1")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var resp recommendResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Equal(t, 1, resp.Count)
}

func TestHandleSimilar(t *testing.T) {
	srv := newTestServer(t)

	res, body := doRequest(t, srv, "/articles/1/similar")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var resp similarResponse
	require.NoError(t, json.Unmarshal(body, &resp))

	require.Equal(t, int64(1), resp.ArticleID)
	require.Equal(t, 2, resp.Count)
	require.Equal(t, int64(3), resp.Similar[0].ArticleID)
	for _, rec := range resp.Similar {
		require.NotEqual(t, int64(1), rec.ArticleID)
	}
}

func TestHandleSimilarUnknownArticle(t *testing.T) {
	srv := newTestServer(t)

	res, _ := doRequest(t, srv, "/articles/999/similar")
	require.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestHandleUsers(t *testing.T) {
	srv := newTestServer(t)

	res, body := doRequest(t, srv, "/users?limit=2")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var resp usersResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Equal(t, 2, resp.Count)
	require.Equal(t, []int64{1, 2}, resp.Users)
}

func TestHandleHealthWithoutChecker(t *testing.T) {
	srv := newTestServer(t)

	res, _ := doRequest(t, srv, "/health")
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestClampInt(t *testing.T) {
	require.Equal(t, 5, clampInt("", 5, 50))
	require.Equal(t, 5, clampInt("abc", 5, 50))
	require.Equal(t, 5, clampInt("-3", 5, 50))
	require.Equal(t, 7, clampInt("7", 5, 50))
	require.Equal(t, 50, clampInt("500", 5, 50))
}
