package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mycontent/recommender/backend/internal/articles"
	"github.com/mycontent/recommender/backend/internal/clicks"
	"github.com/mycontent/recommender/backend/internal/config"
	"github.com/mycontent/recommender/backend/internal/elasticsearch"
	"github.com/mycontent/recommender/backend/internal/embeddings"
	"github.com/mycontent/recommender/backend/internal/logger"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	start := time.Now()
	matrix, err := embeddings.LoadCSV(cfg.EmbeddingsPath)
	if err != nil {
		log.Error("load embeddings", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("embeddings loaded",
		slog.Int("articles", matrix.Len()),
		slog.Int("dim", matrix.Dim()),
		slog.Duration("took", time.Since(start)),
	)

	catalog, err := articles.LoadCSV(cfg.MetadataPath)
	if err != nil {
		log.Error("load article metadata", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("article metadata loaded", slog.Int("articles", catalog.Len()))

	var (
		store  clicks.Store
		health func(ctx context.Context) error
	)
	switch cfg.ClickSource {
	case config.ClickSourceElasticsearch:
		esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
		if err != nil {
			log.Error("init elasticsearch", slog.Any("err", err))
			os.Exit(1)
		}
		store = clicks.NewESStore(esClient)
		health = esClient.Health
	default:
		csvStore, err := clicks.LoadCSVDir(cfg.ClicksDir, cfg.ClicksFileLimit, log)
		if err != nil {
			log.Error("load click history", slog.Any("err", err))
			os.Exit(1)
		}
		store = csvStore
	}

	srv := &server{
		log:     log,
		cfg:     cfg,
		matrix:  matrix,
		catalog: catalog,
		store:   store,
		health:  health,
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}
