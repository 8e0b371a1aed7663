package clicks

import (
	"context"
	"fmt"

	"github.com/mycontent/recommender/backend/internal/elasticsearch"
	"github.com/mycontent/recommender/backend/internal/models"
)

// ESStore resolves history from the live click index fed by the worker.
type ESStore struct {
	es *elasticsearch.Client
}

// NewESStore wraps an Elasticsearch client as a click Store.
func NewESStore(client *elasticsearch.Client) *ESStore {
	return &ESStore{es: client}
}

// UserHistory implements Store.
func (s *ESStore) UserHistory(ctx context.Context, userID int64) ([]int64, error) {
	history, err := s.es.UserHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("query user history: %w", err)
	}
	if len(history) == 0 {
		return nil, ErrUnknownUser
	}
	return history, nil
}

// TopArticles implements Store.
func (s *ESStore) TopArticles(ctx context.Context, n int) ([]models.ArticleCount, error) {
	return s.es.TopArticles(ctx, n)
}

// ActiveUsers implements Store.
func (s *ESStore) ActiveUsers(ctx context.Context, limit int) ([]int64, error) {
	return s.es.ActiveUsers(ctx, limit)
}
