package main

import (
	"context"
	"flag"

	"github.com/topicsloop/topicsloop/internal/config"
	"github.com/topicsloop/topicsloop/internal/logger"
	"github.com/topicsloop/topicsloop/internal/repository"
	"github.com/topicsloop/topicsloop/internal/service"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "topicsloop-batch",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	jobType := flag.String("job", "posts", "Job to run: posts, categories, users, categorize")
	limit := flag.Int("limit", 0, "Maximum number of items to process (0 = default cap)")
	dryRun := flag.Bool("dry-run", false, "For categorize: report suggestions without assigning")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	appLogger.WithFields(logger.Fields{
		"job":     *jobType,
		"limit":   *limit,
		"dry_run": *dryRun,
	}).Info("Starting batch run")

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	postRepo := repository.NewPostRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	userRepo := repository.NewUserRepository(db)
	embeddingRepo := repository.NewEmbeddingRepository(db)
	jobRepo := repository.NewJobRepository(db)

	var postIndex service.PostIndex
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
	}

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

	embedder := service.NewEntityEmbedder(store, postRepo, categoryRepo, userRepo, embeddingRepo, postIndex)
	aggregator := service.NewCategoryAggregator(categoryRepo, postRepo, embeddingRepo, store)
	batch := service.NewBatchEmbeddingService(embedder, aggregator, categoryRepo, userRepo, embeddingRepo, jobRepo)

	ctx := context.Background()
	runLimit := *limit
	if runLimit <= 0 {
		runLimit = cfg.Batch.PostLimit
	}

	switch *jobType {
	case "posts":
		job, err := batch.EmbedMissingPosts(ctx, runLimit)
		if err != nil {
			appLogger.WithError(err).Fatal("Post embedding job failed")
		}
		reportJob(appLogger, job.ID, job.ProcessedItems, job.FailedItems)

	case "categories":
		job, err := batch.RebuildCategoryCenters(ctx)
		if err != nil {
			appLogger.WithError(err).Fatal("Category center job failed")
		}
		reportJob(appLogger, job.ID, job.ProcessedItems, job.FailedItems)

	case "users":
		job, err := batch.RebuildUserEmbeddings(ctx)
		if err != nil {
			appLogger.WithError(err).Fatal("User embedding job failed")
		}
		reportJob(appLogger, job.ID, job.ProcessedItems, job.FailedItems)

	case "categorize":
		engine := service.NewAutoCategorizationEngine(embedder, aggregator, categoryRepo, postRepo, service.AutoCategorizeConfig{
			SuggestThreshold: cfg.Categorize.SuggestThreshold,
			AssignThreshold:  cfg.Categorize.AssignThreshold,
			TopK:             cfg.Categorize.TopK,
		})
		results, err := engine.BatchAutoCategorize(ctx, runLimit, *dryRun)
		if err != nil {
			appLogger.WithError(err).Fatal("Batch categorization failed")
		}
		assigned := 0
		failed := 0
		for _, r := range results {
			assigned += len(r.Assigned)
			if r.Error != "" {
				failed++
			}
		}
		appLogger.WithFields(logger.Fields{
			"posts":    len(results),
			"assigned": assigned,
			"failed":   failed,
			"dry_run":  *dryRun,
		}).Info("Batch categorization finished")

	default:
		appLogger.Fatalf("Unknown job type: %s", *jobType)
	}
}

func reportJob(log *logger.Logger, jobID string, processed, failed int) {
	log.WithFields(logger.Fields{
		"job_id":    jobID,
		"processed": processed,
		"failed":    failed,
	}).Info("Batch run finished")
}
