package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/topicsloop/topicsloop/internal/service"
)

// AdminHandler handles batch job and bulk categorization endpoints.
// These operations run synchronously and are meant for operators, not the
// request path.
type AdminHandler struct {
	batch  *service.BatchEmbeddingService
	engine *service.AutoCategorizationEngine
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(batch *service.BatchEmbeddingService, engine *service.AutoCategorizationEngine) *AdminHandler {
	return &AdminHandler{
		batch:  batch,
		engine: engine,
	}
}

// EmbedPosts handles POST /api/v1/admin/jobs/posts.
func (h *AdminHandler) EmbedPosts(c *gin.Context) {
	limit := 0
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit: " + l})
			return
		}
		limit = parsed
	}

	job, err := h.batch.EmbedMissingPosts(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Post embedding job failed: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, job)
}

// RebuildCategoryCenters handles POST /api/v1/admin/jobs/categories.
func (h *AdminHandler) RebuildCategoryCenters(c *gin.Context) {
	job, err := h.batch.RebuildCategoryCenters(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Category center job failed: " + err.Error(),
		})
		return
	}
	h.engine.InvalidateCenters()
	c.JSON(http.StatusOK, job)
}

// RebuildUserEmbeddings handles POST /api/v1/admin/jobs/users.
func (h *AdminHandler) RebuildUserEmbeddings(c *gin.Context) {
	job, err := h.batch.RebuildUserEmbeddings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "User embedding job failed: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobs handles GET /api/v1/admin/jobs.
func (h *AdminHandler) ListJobs(c *gin.Context) {
	limit := 20
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit: " + l})
			return
		}
		limit = parsed
	}

	jobs, err := h.batch.RecentJobs(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// BatchCategorize handles POST /api/v1/admin/batch-categorize.
// With dry_run=true the scoring is identical but nothing is assigned.
func (h *AdminHandler) BatchCategorize(c *gin.Context) {
	limit := 0
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit: " + l})
			return
		}
		limit = parsed
	}
	dryRun := c.Query("dry_run") == "true"

	results, err := h.engine.BatchAutoCategorize(c.Request.Context(), limit, dryRun)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Batch categorization failed: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"dry_run": dryRun,
		"results": results,
		"total":   len(results),
	})
}
