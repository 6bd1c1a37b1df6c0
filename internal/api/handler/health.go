package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/topicsloop/topicsloop/internal/repository"
	"github.com/topicsloop/topicsloop/internal/service"
)

// HealthHandler handles health and engine-status endpoints
type HealthHandler struct {
	store        *service.EmbeddingStore
	engine       *service.AutoCategorizationEngine
	embeddings   *repository.EmbeddingRepository
	similarities *repository.SimilarityRepository
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store *service.EmbeddingStore, engine *service.AutoCategorizationEngine, embeddings *repository.EmbeddingRepository, similarities *repository.SimilarityRepository) *HealthHandler {
	return &HealthHandler{
		store:        store,
		engine:       engine,
		embeddings:   embeddings,
		similarities: similarities,
	}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Status handles GET /api/v1/status.
// Reports the active model, its dimension, whether the engine is running on
// the fallback encoder, and embedding coverage counts.
func (h *HealthHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()

	posts, categories, users, err := h.embeddings.CountByModel(ctx, h.store.ModelName())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to count embeddings: " + err.Error(),
		})
		return
	}

	similarities, err := h.similarities.Count(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to count similarities: " + err.Error(),
		})
		return
	}

	stats, err := h.engine.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get categorization stats: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"model_name": h.store.ModelName(),
		"dimension":  h.store.Dimensions(),
		"degraded":   h.store.Degraded(),
		"embeddings": gin.H{
			"posts":      posts,
			"categories": categories,
			"users":      users,
		},
		"similarities":   similarities,
		"categorization": stats,
	})
}
