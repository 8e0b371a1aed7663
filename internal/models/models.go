package models

import "time"

// ClickDocument is the canonical click record stored in Elasticsearch.
// One document per user/article interaction.
type ClickDocument struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	ArticleID int64     `json:"article_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ArticleMeta describes the catalog metadata attached to a recommended article.
type ArticleMeta struct {
	ArticleID   int64
	CategoryID  int64
	PublisherID int64
	CreatedAt   time.Time
	WordsCount  int
}

// ArticleCount pairs an article id with the number of clicks it received.
// Used by the popularity fallback for users without history.
type ArticleCount struct {
	ArticleID int64
	Clicks    int64
}
