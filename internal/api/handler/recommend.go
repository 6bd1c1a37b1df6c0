package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/topicsloop/topicsloop/internal/domain"
	"github.com/topicsloop/topicsloop/internal/service"
)

// RecommendHandler handles personalized feed endpoints.
type RecommendHandler struct {
	engine *service.RecommendationEngine
	posts  service.RecentPostSource
}

// NewRecommendHandler creates a new recommendation handler.
func NewRecommendHandler(engine *service.RecommendationEngine, posts service.RecentPostSource) *RecommendHandler {
	return &RecommendHandler{
		engine: engine,
		posts:  posts,
	}
}

// Recommendations handles GET /api/v1/users/:id/recommendations.
// Users without an interest profile get the most recent posts instead,
// flagged with reason "popular content".
func (h *RecommendHandler) Recommendations(c *gin.Context) {
	userID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	limit := 10
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit: " + l})
			return
		}
		limit = parsed
	}

	results, err := h.engine.Recommend(c.Request.Context(), userID, limit)
	if err != nil {
		if errors.Is(err, domain.ErrNoProfile) {
			h.popularFallback(c, userID, limit)
			return
		}
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Recommendation failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":         userID,
		"recommendations": results,
		"total":           len(results),
		"reason":          "interest profile",
	})
}

func (h *RecommendHandler) popularFallback(c *gin.Context, userID uint, limit int) {
	recent, err := h.posts.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Fallback recommendation failed: " + err.Error(),
		})
		return
	}

	results := make([]service.RecommendedPost, 0, len(recent))
	for _, p := range recent {
		if p.AuthorID == userID {
			continue
		}
		results = append(results, service.RecommendedPost{
			PostID: p.ID,
			Title:  p.Title,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":         userID,
		"recommendations": results,
		"total":           len(results),
		"reason":          "popular content",
	})
}
