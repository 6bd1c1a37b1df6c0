package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/topicsloop/topicsloop/internal/config"
	"github.com/topicsloop/topicsloop/internal/service"
)

// NetworkHandler handles hybrid network graph endpoints.
type NetworkHandler struct {
	builder *service.HybridNetworkBuilder
	cfg     config.NetworkConfig
}

// NewNetworkHandler creates a new network handler.
func NewNetworkHandler(builder *service.HybridNetworkBuilder, cfg config.NetworkConfig) *NetworkHandler {
	return &NetworkHandler{
		builder: builder,
		cfg:     cfg,
	}
}

// Build handles GET /api/v1/network.
// Query parameters: level, parent_id, user_id, shared_weight, ai_weight,
// min_posts, similarity_threshold, include_posts, focus_post_id, max_posts.
// Omitted weights fall back to the configured defaults.
func (h *NetworkHandler) Build(c *gin.Context) {
	req := service.NetworkRequest{
		SharedWeight:        h.cfg.SharedWeight,
		AIWeight:            h.cfg.AIWeight,
		SimilarityThreshold: h.cfg.SimilarityThreshold,
		MinPosts:            h.cfg.MinPosts,
		MaxPosts:            h.cfg.MaxPosts,
		MaxPostConnections:  h.cfg.MaxPostConnections,
	}

	if level := c.Query("level"); level != "" {
		parsed, err := strconv.Atoi(level)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid level: " + level})
			return
		}
		req.Level = parsed
	}

	if parent := c.Query("parent_id"); parent != "" {
		parsed, err := strconv.ParseUint(parent, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid parent_id: " + parent})
			return
		}
		id := uint(parsed)
		req.ParentID = &id
	}

	if user := c.Query("user_id"); user != "" {
		parsed, err := strconv.ParseUint(user, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id: " + user})
			return
		}
		id := uint(parsed)
		req.UserID = &id
	}

	if w := c.Query("shared_weight"); w != "" {
		parsed, err := strconv.ParseFloat(w, 64)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid shared_weight: " + w})
			return
		}
		req.SharedWeight = parsed
	}

	if w := c.Query("ai_weight"); w != "" {
		parsed, err := strconv.ParseFloat(w, 64)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ai_weight: " + w})
			return
		}
		req.AIWeight = parsed
	}

	if m := c.Query("min_posts"); m != "" {
		parsed, err := strconv.Atoi(m)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid min_posts: " + m})
			return
		}
		req.MinPosts = parsed
	}

	if t := c.Query("similarity_threshold"); t != "" {
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid similarity_threshold: " + t})
			return
		}
		req.SimilarityThreshold = parsed
	}

	req.IncludePosts = c.Query("include_posts") == "true"

	if focus := c.Query("focus_post_id"); focus != "" {
		parsed, err := strconv.ParseUint(focus, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid focus_post_id: " + focus})
			return
		}
		id := uint(parsed)
		req.FocusPostID = &id
		req.IncludePosts = true
	}

	if m := c.Query("max_posts"); m != "" {
		parsed, err := strconv.Atoi(m)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid max_posts: " + m})
			return
		}
		req.MaxPosts = parsed
	}

	graph, err := h.builder.Build(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Network build failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, graph)
}
