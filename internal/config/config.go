package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Common contains Elasticsearch parameters shared by every service.
// The index holds the click documents produced by the worker.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// Worker holds configuration for the Kafka -> Elasticsearch click ingester.
type Worker struct {
	Common
	KafkaBrokers   []string
	KafkaTopic     string
	KafkaConsumer  string
	DedupeCapacity int
	DedupeTTL      time.Duration
	BatchSize      int
	CommitInterval time.Duration
}

// API describes HTTP-layer configuration for the recommendation service.
type API struct {
	Common
	BindAddr        string
	EmbeddingsPath  string
	MetadataPath    string
	ClickSource     string
	ClicksDir       string
	ClicksFileLimit int
	DefaultTopN     int
	MaxTopN         int
}

// Retention configures the click-log cleanup loop.
type Retention struct {
	Common
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

// Click source selectors for the API.
const (
	ClickSourceCSV           = "csv"
	ClickSourceElasticsearch = "elasticsearch"
)

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	c := &Worker{
		Common: Common{
			ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
			ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "clicks"),
		},
		KafkaBrokers:   splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "clicks_raw"),
		KafkaConsumer:  getEnv("KAFKA_CONSUMER_GROUP", "clicks-worker"),
		DedupeCapacity: getInt("WORKER_DEDUPE_CAPACITY", 50000),
		DedupeTTL:      getDuration("WORKER_DEDUPE_TTL", "24h"),
		BatchSize:      getInt("WORKER_BATCH_SIZE", 10),
		CommitInterval: getDuration("WORKER_COMMIT_INTERVAL", "2s"),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}

	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common: Common{
			ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
			ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "clicks"),
		},
		BindAddr:        getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		EmbeddingsPath:  getEnv("EMBEDDINGS_PATH", "data/articles_embeddings.csv"),
		MetadataPath:    getEnv("METADATA_PATH", "data/articles_metadata.csv"),
		ClickSource:     strings.ToLower(getEnv("CLICKS_SOURCE", ClickSourceCSV)),
		ClicksDir:       getEnv("CLICKS_DIR", "data/clicks"),
		ClicksFileLimit: getInt("CLICKS_FILE_LIMIT", 10),
		DefaultTopN:     getInt("API_DEFAULT_TOP_N", 5),
		MaxTopN:         getInt("API_MAX_TOP_N", 50),
	}

	if c.ClickSource != ClickSourceCSV && c.ClickSource != ClickSourceElasticsearch {
		return nil, fmt.Errorf("CLICKS_SOURCE must be %q or %q", ClickSourceCSV, ClickSourceElasticsearch)
	}
	if c.EmbeddingsPath == "" {
		return nil, fmt.Errorf("EMBEDDINGS_PATH must not be empty")
	}
	if c.DefaultTopN <= 0 {
		return nil, fmt.Errorf("API_DEFAULT_TOP_N must be positive")
	}
	if c.MaxTopN <= 0 {
		return nil, fmt.Errorf("API_MAX_TOP_N must be positive")
	}
	if c.DefaultTopN > c.MaxTopN {
		return nil, fmt.Errorf("API_DEFAULT_TOP_N cannot exceed API_MAX_TOP_N")
	}
	if c.ClickSource == ClickSourceCSV && c.ClicksFileLimit <= 0 {
		return nil, fmt.Errorf("CLICKS_FILE_LIMIT must be positive")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common: Common{
			ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
			ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "clicks"),
		},
		Interval:  getDuration("RETENTION_CRON", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "720h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_CRON must be positive")
	}

	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
