package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/topicsloop/topicsloop/internal/domain"
	"github.com/topicsloop/topicsloop/internal/service"
)

// PostHandler handles similarity and categorization endpoints for posts.
type PostHandler struct {
	similarity *service.PostSimilarityService
	engine     *service.AutoCategorizationEngine
	threshold  float64
}

// NewPostHandler creates a new post handler.
// Parameters:
//   - similarity: post similarity service.
//   - engine: auto-categorization engine.
//   - defaultThreshold: similarity threshold used when the request omits one.
// Returns:
//   - *PostHandler: initialized handler.
func NewPostHandler(similarity *service.PostSimilarityService, engine *service.AutoCategorizationEngine, defaultThreshold float64) *PostHandler {
	return &PostHandler{
		similarity: similarity,
		engine:     engine,
		threshold:  defaultThreshold,
	}
}

// SimilarPosts handles GET /api/v1/posts/:id/similar.
func (h *PostHandler) SimilarPosts(c *gin.Context) {
	postID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	threshold := h.threshold
	if t := c.Query("threshold"); t != "" {
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid threshold: " + t,
			})
			return
		}
		threshold = parsed
	}

	limit := 10
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid limit: " + l,
			})
			return
		}
		limit = parsed
	}

	results, err := h.similarity.SimilarPosts(c.Request.Context(), postID, threshold, limit)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Similarity search failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"post_id":   postID,
		"threshold": threshold,
		"results":   results,
		"total":     len(results),
	})
}

// InvalidateSimilarities handles DELETE /api/v1/posts/:id/similar. Called
// after a post's content changes so stale pair scores and the stale index
// point are dropped before the next similarity query.
func (h *PostHandler) InvalidateSimilarities(c *gin.Context) {
	postID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.similarity.InvalidateFor(c.Request.Context(), postID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Invalidation failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"post_id": postID, "invalidated": true})
}

// Suggestions handles GET /api/v1/posts/:id/suggestions.
func (h *PostHandler) Suggestions(c *gin.Context) {
	postID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	suggestions, err := h.engine.Suggest(c.Request.Context(), postID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Suggestion failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"post_id":     postID,
		"suggestions": suggestions,
		"total":       len(suggestions),
	})
}

// AutoAssign handles POST /api/v1/posts/:id/auto-categorize.
func (h *PostHandler) AutoAssign(c *gin.Context) {
	postID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	assigned, err := h.engine.AutoAssign(c.Request.Context(), postID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Auto-categorization failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"post_id":  postID,
		"assigned": assigned,
		"total":    len(assigned),
	})
}

// parseUintParam reads a numeric path parameter, writing a 400 on failure.
func parseUintParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + name + ": " + raw,
		})
		return 0, false
	}
	return uint(id), true
}
