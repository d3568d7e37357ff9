package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"partimatch/internal/config"
	"partimatch/internal/database"
	"partimatch/internal/embedding"
	"partimatch/internal/models"
	"partimatch/internal/retrieval"
	"partimatch/internal/scoring"
	"partimatch/internal/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to yaml config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewDB(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		logger.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}

	fallback, err := retrieval.LoadLocalCorpus(cfg.Retrieval.FallbackCorpus)
	if err != nil {
		logger.Error("failed to load fallback corpus", "error", err)
		os.Exit(1)
	}
	logger.Info("fallback corpus loaded", "documents", fallback.Len())

	retriever := retrieval.NewRetriever(db, embedder, fallback, logger)
	if cfg.Retrieval.Lambda > 0 {
		retriever.Lambda = cfg.Retrieval.Lambda
	}

	centroids := scoring.NewCentroidScorer(db, logger)
	if cfg.Scoring.CentroidK > 0 {
		centroids.K = cfg.Scoring.CentroidK
	}

	weights := cfg.Scoring.TopicWeights
	if len(weights) == 0 {
		weights = models.DefaultTopicWeights
	}

	aggregator := scoring.NewAggregator(embedder, centroids, retriever, logger)
	srv := server.New(retriever, aggregator, weights, cfg.Retrieval.K, logger)

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func newEmbedder(cfg *config.Config) (embedding.Provider, error) {
	if cfg.Embedding.Provider == "ollama" {
		return embedding.NewOllamaEmbedder(cfg.Embedding.OllamaHost, cfg.Embedding.OllamaModel)
	}
	return embedding.NewOpenAIEmbedder(cfg.Embedding.APIKey, cfg.Embedding.BaseURL, cfg.Embedding.Model), nil
}
