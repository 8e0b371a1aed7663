package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/mycontent/recommender/backend/internal/models"
)

// Client wraps go-elasticsearch with helpers for the click index.
type Client struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
}

// historyPageSize bounds how many click documents a single history query
// pulls back. Histories larger than this are truncated to the earliest clicks.
const historyPageSize = 10000

// New instantiates the Elasticsearch client.
func New(addr, index string, logger *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{es: es, index: index, log: logger}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// IndexClick writes a click document into Elasticsearch.
func (c *Client) IndexClick(ctx context.Context, doc models.ClickDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal click: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index click: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index click failed: %s", strings.TrimSpace(string(body)))
	}

	return nil
}

// UserHistory returns the deduplicated article ids a user clicked, ordered by
// first click. An empty slice means the user has no click documents.
func (c *Client) UserHistory(ctx context.Context, userID int64) ([]int64, error) {
	body := map[string]any{
		"size":    historyPageSize,
		"_source": []string{"article_id"},
		"query": map[string]any{
			"term": map[string]any{
				"user_id": userID,
			},
		},
		"sort": []map[string]any{
			{"timestamp": map[string]any{"order": "asc"}},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal history query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search clicks: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search clicks failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source struct {
					ArticleID int64 `json:"article_id"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode history response: %w", err)
	}

	seen := make(map[int64]struct{}, len(parsed.Hits.Hits))
	history := make([]int64, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		id := hit.Source.ArticleID
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		history = append(history, id)
	}

	return history, nil
}

// TopArticles returns the n most clicked articles via a terms aggregation.
func (c *Client) TopArticles(ctx context.Context, n int) ([]models.ArticleCount, error) {
	if n <= 0 {
		n = 5
	}

	buckets, err := c.termsAgg(ctx, "article_id", n)
	if err != nil {
		return nil, err
	}

	out := make([]models.ArticleCount, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, models.ArticleCount{ArticleID: b.Key, Clicks: b.DocCount})
	}
	return out, nil
}

// ActiveUsers returns up to limit user ids, most active first.
func (c *Client) ActiveUsers(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 100
	}

	buckets, err := c.termsAgg(ctx, "user_id", limit)
	if err != nil {
		return nil, err
	}

	out := make([]int64, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, b.Key)
	}
	return out, nil
}

type termsBucket struct {
	Key      int64 `json:"key"`
	DocCount int64 `json:"doc_count"`
}

func (c *Client) termsAgg(ctx context.Context, field string, size int) ([]termsBucket, error) {
	body := map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"top": map[string]any{
				"terms": map[string]any{
					"field": field,
					"size":  size,
				},
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s aggregation: %w", field, err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", field, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("aggregate %s failed: %s", field, strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Aggregations struct {
			Top struct {
				Buckets []termsBucket `json:"buckets"`
			} `json:"top"`
		} `json:"aggregations"`
	}

	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode %s aggregation: %w", field, err)
	}

	return parsed.Aggregations.Top.Buckets, nil
}

// DeleteOlderThan removes click documents older than maxAge using batched
// delete-by-query. It loops until a batch deletes fewer documents than the
// requested batchSize.
func (c *Client) DeleteOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	cutoff := time.Now().Add(-maxAge).UTC().Format(time.RFC3339)
	totalDeleted := int64(0)

	for {
		body := map[string]any{
			"query": map[string]any{
				"range": map[string]any{
					"timestamp": map[string]any{
						"lte": cutoff,
					},
				},
			},
		}

		payload, err := json.Marshal(body)
		if err != nil {
			return totalDeleted, fmt.Errorf("marshal delete body: %w", err)
		}

		res, err := c.es.DeleteByQuery(
			[]string{c.index},
			bytes.NewReader(payload),
			c.es.DeleteByQuery.WithContext(ctx),
			c.es.DeleteByQuery.WithWaitForCompletion(true),
			c.es.DeleteByQuery.WithConflicts("proceed"),
			c.es.DeleteByQuery.WithScrollSize(batchSize),
		)
		if err != nil {
			return totalDeleted, fmt.Errorf("delete by query: %w", err)
		}

		if res.IsError() {
			data, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return totalDeleted, fmt.Errorf("delete by query failed: %s", strings.TrimSpace(string(data)))
		}

		var parsed struct {
			Deleted int64 `json:"deleted"`
		}
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			res.Body.Close()
			return totalDeleted, fmt.Errorf("decode delete response: %w", err)
		}
		res.Body.Close()

		totalDeleted += parsed.Deleted

		if parsed.Deleted < int64(batchSize) {
			break
		}
	}

	return totalDeleted, nil
}

// Health pings Elasticsearch to ensure connectivity.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}
