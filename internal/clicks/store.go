package clicks

import (
	"context"
	"errors"

	"github.com/mycontent/recommender/backend/internal/models"
)

// ErrUnknownUser signals that a user id has zero click records. Callers treat
// it as "new user" and fall back to popularity, not as a failure.
var ErrUnknownUser = errors.New("user has no click history")

// Store resolves read history from the click log. Two implementations exist:
// CSVStore over batch dumps and ESStore over the live index fed by the worker.
type Store interface {
	// UserHistory returns the deduplicated article ids a user has read, in
	// first-click order. Returns ErrUnknownUser for ids with no clicks.
	UserHistory(ctx context.Context, userID int64) ([]int64, error)

	// TopArticles returns the n most clicked articles, most clicked first.
	TopArticles(ctx context.Context, n int) ([]models.ArticleCount, error)

	// ActiveUsers returns up to limit user ids that have click history.
	ActiveUsers(ctx context.Context, limit int) ([]int64, error)
}
