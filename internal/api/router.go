package api

import (
	"github.com/gin-gonic/gin"
	"github.com/topicsloop/topicsloop/internal/api/handler"
	"github.com/topicsloop/topicsloop/internal/api/middleware"
	"github.com/topicsloop/topicsloop/internal/config"
	"github.com/topicsloop/topicsloop/internal/logger"
	"github.com/topicsloop/topicsloop/internal/repository"
	"github.com/topicsloop/topicsloop/internal/service"
)

// Services bundles the engines the API layer exposes.
type Services struct {
	Store          *service.EmbeddingStore
	Similarity     *service.PostSimilarityService
	Categorization *service.AutoCategorizationEngine
	Network        *service.HybridNetworkBuilder
	Recommend      *service.RecommendationEngine
	Batch          *service.BatchEmbeddingService
}

// Repositories bundles the stores handlers read directly.
type Repositories struct {
	Posts        *repository.PostRepository
	Categories   *repository.CategoryRepository
	Users        *repository.UserRepository
	Embeddings   *repository.EmbeddingRepository
	Similarities *repository.SimilarityRepository
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(cfg *config.Config, log *logger.Logger, svcs Services, repos Repositories) *gin.Engine {
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler(svcs.Store, svcs.Categorization, repos.Embeddings, repos.Similarities)
	postHandler := handler.NewPostHandler(svcs.Similarity, svcs.Categorization, cfg.Similarity.Threshold)
	networkHandler := handler.NewNetworkHandler(svcs.Network, cfg.Network)
	recommendHandler := handler.NewRecommendHandler(svcs.Recommend, repos.Posts)
	userHandler := handler.NewUserHandler(repos.Users, repos.Categories)
	adminHandler := handler.NewAdminHandler(svcs.Batch, svcs.Categorization)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Engine status
		v1.GET("/status", healthHandler.Status)

		// Post similarity and categorization
		v1.GET("/posts/:id/similar", postHandler.SimilarPosts)
		v1.DELETE("/posts/:id/similar", postHandler.InvalidateSimilarities)
		v1.GET("/posts/:id/suggestions", postHandler.Suggestions)
		v1.POST("/posts/:id/auto-categorize", postHandler.AutoAssign)

		// Hybrid network graph
		v1.GET("/network", networkHandler.Build)

		// Personalized feed and profile preferences
		v1.GET("/users/:id/recommendations", recommendHandler.Recommendations)
		v1.PUT("/users/:id/favorites", userHandler.UpdateFavorites)

		// Batch operations
		admin := v1.Group("/admin")
		{
			admin.POST("/jobs/posts", adminHandler.EmbedPosts)
			admin.POST("/jobs/categories", adminHandler.RebuildCategoryCenters)
			admin.POST("/jobs/users", adminHandler.RebuildUserEmbeddings)
			admin.GET("/jobs", adminHandler.ListJobs)
			admin.POST("/batch-categorize", adminHandler.BatchCategorize)
		}
	}

	return r
}
