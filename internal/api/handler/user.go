package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/topicsloop/topicsloop/internal/domain"
)

// FavoriteStore reads user profiles and replaces their favorite categories.
type FavoriteStore interface {
	GetByID(ctx context.Context, id uint) (*domain.UserProfile, error)
	SetFavorites(ctx context.Context, userID uint, categories []domain.Category) error
}

// CategoryGetter resolves category ids to records.
type CategoryGetter interface {
	GetByID(ctx context.Context, id uint) (*domain.Category, error)
}

// UserHandler handles user profile endpoints.
type UserHandler struct {
	users      FavoriteStore
	categories CategoryGetter
}

// NewUserHandler creates a new user handler.
func NewUserHandler(users FavoriteStore, categories CategoryGetter) *UserHandler {
	return &UserHandler{
		users:      users,
		categories: categories,
	}
}

type updateFavoritesRequest struct {
	CategoryIDs []uint `json:"category_ids" binding:"required"`
}

// UpdateFavorites handles PUT /api/v1/users/:id/favorites. The submitted set
// replaces the previous one; an empty list clears all favorites.
func (h *UserHandler) UpdateFavorites(c *gin.Context) {
	userID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var req updateFavoritesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user: " + err.Error()})
		return
	}

	categories := make([]domain.Category, 0, len(req.CategoryIDs))
	for _, id := range req.CategoryIDs {
		cat, err := h.categories.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Category %d not found", id)})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load category: " + err.Error()})
			return
		}
		categories = append(categories, *cat)
	}

	if err := h.users.SetFavorites(ctx, userID, categories); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update favorites: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":   userID,
		"favorites": len(categories),
	})
}
