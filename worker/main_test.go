package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/mycontent/recommender/backend/internal/config"
	"github.com/mycontent/recommender/backend/internal/dedupe"
	"github.com/mycontent/recommender/backend/internal/models"
)

type stubIndexer struct {
	docs []models.ClickDocument
}

func (s *stubIndexer) IndexClick(_ context.Context, doc models.ClickDocument) error {
	s.docs = append(s.docs, doc)
	return nil
}

func TestProcessMessageIndexesClick(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := dedupe.NewCache(100, time.Hour)
	idx := &stubIndexer{}

	payload := rawClick{
		UserID:    7,
		ArticleID: 42,
		Timestamp: "2024-01-02T15:04:05Z",
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	msg := kafka.Message{Value: data}

	require.NoError(t, processMessage(context.Background(), log, idx, cache, msg))

	require.Equal(t, 1, len(idx.docs))

	doc := idx.docs[0]
	require.Equal(t, int64(7), doc.UserID)
	require.Equal(t, int64(42), doc.ArticleID)
	require.Equal(t, 2024, doc.Timestamp.Year())
	require.NotEmpty(t, doc.ID)

	// Redelivery of the same event must not index twice.
	require.NoError(t, processMessage(context.Background(), log, idx, cache, msg))
	require.Equal(t, 1, len(idx.docs))
}

func TestProcessMessageWithoutTimestamp(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := dedupe.NewCache(100, time.Hour)
	idx := &stubIndexer{}

	payload := rawClick{UserID: 7, ArticleID: 42}
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	msg := kafka.Message{Value: data}

	require.NoError(t, processMessage(context.Background(), log, idx, cache, msg))
	require.NoError(t, processMessage(context.Background(), log, idx, cache, msg))

	// Without an event time the id is random, so deliveries are distinct
	// documents stamped on arrival.
	require.Equal(t, 2, len(idx.docs))
	require.NotEmpty(t, idx.docs[0].ID)
	require.NotEqual(t, idx.docs[0].ID, idx.docs[1].ID)
	require.False(t, idx.docs[0].Timestamp.IsZero())
}

func TestProcessMessageRejectsInvalidIDs(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := dedupe.NewCache(100, time.Hour)
	idx := &stubIndexer{}

	for _, payload := range []rawClick{
		{UserID: 0, ArticleID: 42},
		{UserID: 7, ArticleID: -1},
	} {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		require.Error(t, processMessage(context.Background(), log, idx, cache, kafka.Message{Value: data}))
	}

	require.Error(t, processMessage(context.Background(), log, idx, cache, kafka.Message{Value: []byte("not json")}))
	require.Empty(t, idx.docs)
}

func TestNewReaderConfig(t *testing.T) {
	cfg := &config.Worker{
		KafkaBrokers:   []string{"broker-a:29092"},
		KafkaTopic:     "clicks_raw",
		KafkaConsumer:  "clicks-worker",
		BatchSize:      25,
		CommitInterval: 5 * time.Second,
	}

	rc := newReaderConfig(cfg)
	require.Equal(t, cfg.KafkaBrokers, rc.Brokers)
	require.Equal(t, "clicks_raw", rc.Topic)
	require.Equal(t, "clicks-worker", rc.GroupID)
	require.Equal(t, 25, rc.QueueCapacity)
	require.Equal(t, 5*time.Second, rc.CommitInterval)
}

func TestBuildClickIDIsDeterministic(t *testing.T) {
	ts := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)

	require.Equal(t, buildClickID(7, 42, ts), buildClickID(7, 42, ts))
	require.NotEqual(t, buildClickID(7, 42, ts), buildClickID(7, 43, ts))
	require.NotEqual(t, buildClickID(7, 42, ts), buildClickID(7, 42, ts.Add(time.Second)))
}

func TestParseTimestamp(t *testing.T) {
	ts := parseTimestamp("2024-02-03T04:05:06Z")
	require.False(t, ts.IsZero())
	require.Equal(t, 2024, ts.Year())
	require.Equal(t, time.UTC, ts.Location())
	require.Equal(t, 2, int(ts.Month()))
	require.Equal(t, 3, ts.Day())
	require.Equal(t, 4, ts.Hour())

	legacy := parseTimestamp("2024-02-03 04:05:06")
	require.False(t, legacy.IsZero())
	require.Equal(t, 2024, legacy.Year())

	// Millisecond epoch from the batch exporter.
	epoch := parseTimestamp("1704067200000")
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), epoch)

	require.True(t, parseTimestamp("invalid").IsZero())
	require.True(t, parseTimestamp("").IsZero())
}
