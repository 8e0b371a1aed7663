package main

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/mycontent/recommender/backend/internal/config"
	"github.com/mycontent/recommender/backend/internal/dedupe"
	"github.com/mycontent/recommender/backend/internal/elasticsearch"
	"github.com/mycontent/recommender/backend/internal/logger"
	"github.com/mycontent/recommender/backend/internal/models"
)

type rawClick struct {
	UserID    int64  `json:"user_id"`
	ArticleID int64  `json:"article_id"`
	Timestamp string `json:"timestamp"`
}

type clickIndexer interface {
	IndexClick(ctx context.Context, doc models.ClickDocument) error
}

func main() {
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	cache := dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	reader := kafka.NewReader(newReaderConfig(cfg))
	defer reader.Close()

	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaTopic + "_dlq",
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", cfg.KafkaTopic+"_dlq"),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processMessage(ctx, log, esClient, cache, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			// Send to DLQ with error context, retry with backoff
			dlqMsg := kafka.Message{
				Value: msg.Value,
				Headers: append(msg.Headers,
					kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
					kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
					kafka.Header{Key: "error", Value: []byte(err.Error())},
					kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
				),
			}

			// Retry DLQ write with exponential backoff
			dlqSuccess := false
			for attempt := 0; attempt < 5; attempt++ {
				if dlqErr := dlqWriter.WriteMessages(ctx, dlqMsg); dlqErr == nil {
					dlqSuccess = true
					log.Info("message sent to DLQ",
						slog.Int("partition", msg.Partition),
						slog.Int64("offset", msg.Offset),
						slog.Int("attempt", attempt+1),
					)
					break
				} else {
					backoff := time.Duration(1<<uint(attempt)) * time.Second
					log.Warn("DLQ write failed, retrying",
						slog.Any("err", dlqErr),
						slog.Int("attempt", attempt+1),
						slog.Duration("backoff", backoff),
					)
					select {
					case <-time.After(backoff):
						// Continue to next attempt
					case <-ctx.Done():
						log.Info("context canceled during DLQ retry")
						return
					}
				}
			}

			// Only commit if DLQ write succeeded; otherwise skip commit and reprocess on restart
			if dlqSuccess {
				if err := reader.CommitMessages(ctx, msg); err != nil {
					log.Error("commit failed message to dlq", slog.Any("err", err))
				}
			} else {
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
			}
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// newReaderConfig maps worker settings onto the Kafka reader. Offsets move
// only through CommitMessages; CommitInterval batches those commits, with 0
// flushing each one synchronously.
func newReaderConfig(cfg *config.Worker) kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: cfg.CommitInterval,
	}
}

func processMessage(ctx context.Context, log *slog.Logger, esClient clickIndexer, cache *dedupe.Cache, msg kafka.Message) error {
	var payload rawClick
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return err
	}

	if payload.UserID <= 0 {
		return fmt.Errorf("invalid user id %d", payload.UserID)
	}
	if payload.ArticleID <= 0 {
		return fmt.Errorf("invalid article id %d", payload.ArticleID)
	}

	doc := models.ClickDocument{
		UserID:    payload.UserID,
		ArticleID: payload.ArticleID,
	}

	if ts := parseTimestamp(payload.Timestamp); !ts.IsZero() {
		doc.Timestamp = ts
		doc.ID = buildClickID(payload.UserID, payload.ArticleID, ts)
	} else {
		// No usable event time: the id cannot be derived from the fields, and
		// a stamped-on-arrival time would differ per delivery anyway.
		doc.Timestamp = time.Now().UTC()
		doc.ID = uuid.NewString()
	}

	if cache.IsSeen(doc.ID) {
		log.Debug("duplicate click", slog.String("id", doc.ID))
		return nil
	}

	if err := esClient.IndexClick(ctx, doc); err != nil {
		return err
	}

	cache.MarkSeen(doc.ID)
	log.Info("indexed click",
		slog.String("id", doc.ID),
		slog.Int64("user_id", doc.UserID),
		slog.Int64("article_id", doc.ArticleID),
	)
	return nil
}

// buildClickID hashes the event fields so redelivered messages map to the
// same document id.
func buildClickID(userID, articleID int64, ts time.Time) string {
	s := sha1.Sum([]byte(fmt.Sprintf("%d|%d|%s", userID, articleID, ts.UTC().Format(time.RFC3339Nano))))
	return hex.EncodeToString(s[:])
}

// parseTimestamp accepts RFC3339 variants, a legacy space-separated layout,
// and millisecond epoch integers as emitted by the batch click exporter.
func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}

	for _, f := range formats {
		if ts, err := time.Parse(f, raw); err == nil {
			return ts
		}
	}

	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC()
	}

	return time.Time{}
}
