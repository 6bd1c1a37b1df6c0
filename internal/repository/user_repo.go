package repository

import (
	"context"
	"errors"

	"github.com/topicsloop/topicsloop/internal/domain"
	"gorm.io/gorm"
)

// UserRepository handles user profile operations.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user profile with its favorite categories preloaded.
// Returns domain.ErrNotFound if absent.
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	if err := r.db.WithContext(ctx).
		Preload("FavoriteCategories").
		First(&profile, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// ListAll retrieves all user profiles with favorites preloaded.
func (r *UserRepository) ListAll(ctx context.Context) ([]domain.UserProfile, error) {
	var profiles []domain.UserProfile
	if err := r.db.WithContext(ctx).
		Preload("FavoriteCategories").
		Order("id").
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// FavoriteCategoryIDs returns the ids of the user's favorite categories at
// the given hierarchy level.
func (r *UserRepository) FavoriteCategoryIDs(ctx context.Context, userID uint, level int) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Table("categories").
		Select("categories.id").
		Joins("JOIN user_favorite_categories ufc ON ufc.category_id = categories.id").
		Where("ufc.user_profile_id = ? AND categories.level = ?", userID, level).
		Scan(&ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// SetFavorites replaces the user's favorite categories.
func (r *UserRepository) SetFavorites(ctx context.Context, userID uint, categories []domain.Category) error {
	profile := domain.UserProfile{ID: userID}
	return r.db.WithContext(ctx).
		Model(&profile).
		Association("FavoriteCategories").
		Replace(categories)
}

// Count returns the total number of user profiles.
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.UserProfile{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
