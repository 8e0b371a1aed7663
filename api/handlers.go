package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mycontent/recommender/backend/internal/articles"
	"github.com/mycontent/recommender/backend/internal/clicks"
	"github.com/mycontent/recommender/backend/internal/config"
	"github.com/mycontent/recommender/backend/internal/embeddings"
	"github.com/mycontent/recommender/backend/internal/recommend"
)

type server struct {
	log     *slog.Logger
	cfg     *config.API
	matrix  *embeddings.Matrix
	catalog *articles.Catalog
	store   clicks.Store

	// health is nil when the click source needs no connectivity check.
	health func(ctx context.Context) error
}

func (s *server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/recommend", s.handleRecommend)
	r.Get("/articles/{id}/similar", s.handleSimilar)
	r.Get("/users", s.handleUsers)

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

type recommendation struct {
	ArticleID  int64   `json:"article_id"`
	Title      string  `json:"title"`
	CategoryID int64   `json:"category_id"`
	WordsCount int     `json:"words_count"`
	Score      float64 `json:"recommendation_score"`
}

type recommendResponse struct {
	UserID          int64            `json:"user_id"`
	Recommendations []recommendation `json:"recommendations"`
	Count           int              `json:"count"`
	Fallback        bool             `json:"fallback,omitempty"`
}

type similarResponse struct {
	ArticleID int64            `json:"article_id"`
	Similar   []recommendation `json:"similar"`
	Count     int              `json:"count"`
}

type usersResponse struct {
	Users []int64 `json:"users"`
	Count int     `json:"count"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.health != nil {
		if err := s.health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id must be an integer"})
		return
	}
	topN := clampInt(r.URL.Query().Get("top_n"), s.cfg.DefaultTopN, s.cfg.MaxTopN)

	history, err := s.store.UserHistory(ctx, userID)
	if err != nil && !errors.Is(err, clicks.ErrUnknownUser) {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	if skipped := s.countMissing(history); skipped > 0 {
		s.log.Debug("history items without embeddings skipped",
			slog.Int64("user_id", userID),
			slog.Int("skipped", skipped),
			slog.Int("history", len(history)),
		)
	}

	ranked, err := recommend.Recommend(history, s.matrix, topN)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	resp := recommendResponse{UserID: userID, Recommendations: []recommendation{}}
	if len(ranked) == 0 {
		// Cold start: no history, or none of it has embeddings. Fall back to
		// the most clicked articles.
		popular, err := s.store.TopArticles(ctx, topN)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		resp.Fallback = true
		for _, p := range popular {
			resp.Recommendations = append(resp.Recommendations, s.enrich(p.ArticleID, float64(p.Clicks)))
		}
	} else {
		for _, rec := range ranked {
			resp.Recommendations = append(resp.Recommendations, s.enrich(rec.ArticleID, rec.Score))
		}
	}
	resp.Count = len(resp.Recommendations)

	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	articleID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "article id must be an integer"})
		return
	}
	topN := clampInt(r.URL.Query().Get("top_n"), s.cfg.DefaultTopN, s.cfg.MaxTopN)

	ranked, err := recommend.SimilarTo(articleID, s.matrix, topN)
	if err != nil {
		if errors.Is(err, recommend.ErrMissingEmbedding) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("article %d has no embedding", articleID)})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	resp := similarResponse{ArticleID: articleID, Similar: []recommendation{}}
	for _, rec := range ranked {
		resp.Similar = append(resp.Similar, s.enrich(rec.ArticleID, rec.Score))
	}
	resp.Count = len(resp.Similar)

	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	limit := clampInt(r.URL.Query().Get("limit"), 100, 1000)

	users, err := s.store.ActiveUsers(ctx, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, usersResponse{Users: users, Count: len(users)})
}

// enrich attaches catalog metadata to a scored article id. The dataset ships
// no titles, so one is synthesized from the id.
func (s *server) enrich(articleID int64, score float64) recommendation {
	meta := s.catalog.Lookup(articleID)
	return recommendation{
		ArticleID:  articleID,
		Title:      fmt.Sprintf("Article %d", articleID),
		CategoryID: meta.CategoryID,
		WordsCount: meta.WordsCount,
		Score:      score,
	}
}

func (s *server) countMissing(history []int64) int {
	missing := 0
	for _, id := range history {
		if !s.matrix.Contains(id) {
			missing++
		}
	}
	return missing
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// nothing better to do
	}
}
