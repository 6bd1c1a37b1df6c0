package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/topicsloop/topicsloop/internal/domain"
	"gorm.io/gorm"
)

// PostRepository handles post data operations.
type PostRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new PostRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *PostRepository: repository instance bound to db.
func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db}
}

// GetByID retrieves a post with its categories and tags preloaded.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: post ID.
// Returns:
//   - *domain.Post: post record if found.
//   - error: domain.ErrNotFound if absent, otherwise the query error.
func (r *PostRepository) GetByID(ctx context.Context, id uint) (*domain.Post, error) {
	var post domain.Post
	err := r.db.WithContext(ctx).
		Preload("PrimaryCategory").
		Preload("AdditionalCategories").
		Preload("Tags").
		First(&post, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

// GetByIDs retrieves posts by a list of IDs. Missing ids are skipped silently.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ids: list of post IDs.
// Returns:
//   - []domain.Post: matching post records.
//   - error: non-nil if the query fails.
func (r *PostRepository) GetByIDs(ctx context.Context, ids []uint) ([]domain.Post, error) {
	if len(ids) == 0 {
		return []domain.Post{}, nil
	}
	var posts []domain.Post
	if err := r.db.WithContext(ctx).
		Preload("PrimaryCategory").
		Preload("AdditionalCategories").
		Preload("Tags").
		Where("id IN ?", ids).
		Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to get posts by IDs: %w", err)
	}
	return posts, nil
}

// ListRecent retrieves the most recently created posts.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of records to return.
// Returns:
//   - []domain.Post: matching post records, newest first.
//   - error: non-nil if the query fails.
func (r *PostRepository) ListRecent(ctx context.Context, limit int) ([]domain.Post, error) {
	var posts []domain.Post
	if err := r.db.WithContext(ctx).
		Preload("PrimaryCategory").
		Preload("AdditionalCategories").
		Preload("Tags").
		Order("created_at DESC").
		Limit(limit).
		Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// ListByAuthor retrieves posts authored by the given user, newest first.
func (r *PostRepository) ListByAuthor(ctx context.Context, authorID uint, limit int) ([]domain.Post, error) {
	var posts []domain.Post
	if err := r.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("created_at DESC").
		Limit(limit).
		Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// ListByCategorySet retrieves posts whose primary OR additional category
// membership intersects the given id set, with memberships preloaded.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - categoryIDs: category id set to intersect against.
//   - limit: maximum number of records to return; 0 means no limit.
// Returns:
//   - []domain.Post: matching post records.
//   - error: non-nil if the query fails.
func (r *PostRepository) ListByCategorySet(ctx context.Context, categoryIDs []uint, limit int) ([]domain.Post, error) {
	if len(categoryIDs) == 0 {
		return []domain.Post{}, nil
	}
	query := r.db.WithContext(ctx).
		Preload("AdditionalCategories").
		Where("primary_category_id IN ? OR id IN (?)",
			categoryIDs,
			r.db.Table("post_additional_categories").
				Select("post_id").
				Where("category_id IN ?", categoryIDs),
		)
	if limit > 0 {
		query = query.Limit(limit)
	}
	var posts []domain.Post
	if err := query.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// CountDistinctByCategorySet counts distinct posts whose primary OR additional
// membership intersects the given category id set. A post matching through
// several categories is counted once.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - categoryIDs: category id set to intersect against.
// Returns:
//   - int64: number of distinct matching posts.
//   - error: non-nil if the query fails.
func (r *PostRepository) CountDistinctByCategorySet(ctx context.Context, categoryIDs []uint) (int64, error) {
	if len(categoryIDs) == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Post{}).
		Distinct("posts.id").
		Joins("LEFT JOIN post_additional_categories pac ON pac.post_id = posts.id").
		Where("posts.primary_category_id IN ? OR pac.category_id IN ?", categoryIDs, categoryIDs).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ListWithoutAdditionalCategories retrieves posts that have a primary category
// but no additional categories yet. Used as the default batch-categorization set.
func (r *PostRepository) ListWithoutAdditionalCategories(ctx context.Context, limit int) ([]domain.Post, error) {
	var posts []domain.Post
	err := r.db.WithContext(ctx).
		Where("primary_category_id IS NOT NULL").
		Where("id NOT IN (?)",
			r.db.Table("post_additional_categories").Select("post_id"),
		).
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// HasAdditionalCategory reports whether the post already carries the category
// as an additional (non-primary) assignment.
func (r *PostRepository) HasAdditionalCategory(ctx context.Context, postID, categoryID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("post_additional_categories").
		Where("post_id = ? AND category_id = ?", postID, categoryID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddAdditionalCategory assigns a category as an additional category of a post.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - postID: post to assign to.
//   - categoryID: category being assigned.
// Returns:
//   - error: non-nil if either entity is missing or the write fails.
func (r *PostRepository) AddAdditionalCategory(ctx context.Context, postID, categoryID uint) error {
	var post domain.Post
	if err := r.db.WithContext(ctx).First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		return err
	}
	var category domain.Category
	if err := r.db.WithContext(ctx).First(&category, "id = ?", categoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		return err
	}
	return r.db.WithContext(ctx).Model(&post).Association("AdditionalCategories").Append(&category)
}

// Count returns the total number of posts.
func (r *PostRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Post{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
