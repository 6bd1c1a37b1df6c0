package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/topicsloop/topicsloop/internal/api"
	"github.com/topicsloop/topicsloop/internal/config"
	"github.com/topicsloop/topicsloop/internal/logger"
	"github.com/topicsloop/topicsloop/internal/repository"
	"github.com/topicsloop/topicsloop/internal/service"
)

func main() {
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Repositories
	postRepo := repository.NewPostRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	userRepo := repository.NewUserRepository(db)
	embeddingRepo := repository.NewEmbeddingRepository(db)
	similarityRepo := repository.NewSimilarityRepository(db)
	jobRepo := repository.NewJobRepository(db)

	// Optional ANN index over post embeddings
	var postIndex service.PostIndex
	var candidateIndex service.CandidateIndex
	if cfg.Qdrant.Enabled {
		index, err := repository.NewVectorIndex(&repository.VectorIndexConfig{
			Host:            cfg.Qdrant.Host,
			Port:            cfg.Qdrant.Port,
			Collection:      cfg.Qdrant.Collection,
			APIKey:          cfg.Qdrant.APIKey,
			UseTLS:          cfg.Qdrant.UseTLS,
			VectorDimension: cfg.Embedding.Dimensions,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize vector index")
		}
		defer index.Close()

		if err := index.EnsureCollection(context.Background()); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure vector collection")
		}
		postIndex = index
		candidateIndex = index
	}

	// Embedding stack: remote encoder when configured, local fallback always
	var primary service.Encoder
	if cfg.Embedding.Provider == "remote" && cfg.Embedding.APIKey != "" {
		primary = service.NewRemoteEncoder(&service.RemoteEncoderConfig{
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			APIKey:     cfg.Embedding.APIKey,
			Dimensions: cfg.Embedding.Dimensions,
		})
	}
	fallback := service.NewFallbackEncoder(cfg.Embedding.Dimensions)
	store := service.NewEmbeddingStore(primary, fallback, service.EmbeddingStoreConfig{
		CacheSize: cfg.Embedding.CacheSize,
		CacheTTL:  cfg.Embedding.CacheTTL,
		BatchSize: cfg.Embedding.BatchSize,
	})

	// Engines
	embedder := service.NewEntityEmbedder(store, postRepo, categoryRepo, userRepo, embeddingRepo, postIndex)
	aggregator := service.NewCategoryAggregator(categoryRepo, postRepo, embeddingRepo, store)
	similarity := service.NewPostSimilarityService(postRepo, embedder, embeddingRepo, similarityRepo, candidateIndex, service.PostSimilarityConfig{
		MaxCandidates: cfg.Similarity.MaxCandidates,
	})
	categorization := service.NewAutoCategorizationEngine(embedder, aggregator, categoryRepo, postRepo, service.AutoCategorizeConfig{
		SuggestThreshold: cfg.Categorize.SuggestThreshold,
		AssignThreshold:  cfg.Categorize.AssignThreshold,
		TopK:             cfg.Categorize.TopK,
	})
	network := service.NewHybridNetworkBuilder(categoryRepo, postRepo, userRepo, aggregator, similarity, store)
	recommend := service.NewRecommendationEngine(embedder, postRepo, embeddingRepo)
	batch := service.NewBatchEmbeddingService(embedder, aggregator, categoryRepo, userRepo, embeddingRepo, jobRepo)

	router := api.SetupRouter(cfg, appLogger, api.Services{
		Store:          store,
		Similarity:     similarity,
		Categorization: categorization,
		Network:        network,
		Recommend:      recommend,
		Batch:          batch,
	}, api.Repositories{
		Posts:        postRepo,
		Categories:   categoryRepo,
		Users:        userRepo,
		Embeddings:   embeddingRepo,
		Similarities: similarityRepo,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port":     cfg.Server.Port,
			"mode":     cfg.Server.Mode,
			"model":    store.ModelName(),
			"degraded": store.Degraded(),
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
