package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/topicsloop/topicsloop/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EmbeddingRepository persists embedding records for posts, categories, and
// users. Each record is unique per (entity, model); upserts replace the
// vector in place so an entity never accumulates stale rows for one model.
type EmbeddingRepository struct {
	db *gorm.DB
}

// NewEmbeddingRepository creates a new EmbeddingRepository.
func NewEmbeddingRepository(db *gorm.DB) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

// GetPostEmbedding retrieves a post's embedding for a model.
// Returns domain.ErrNotFound if absent.
func (r *EmbeddingRepository) GetPostEmbedding(ctx context.Context, postID uint, modelName string) (*domain.PostEmbedding, error) {
	var emb domain.PostEmbedding
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND model_name = ?", postID, modelName).
		First(&emb).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &emb, nil
}

// UpsertPostEmbedding inserts or replaces the embedding for (post, model).
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - emb: embedding record; ID is assigned if empty.
// Returns:
//   - error: non-nil if the write fails.
func (r *EmbeddingRepository) UpsertPostEmbedding(ctx context.Context, emb *domain.PostEmbedding) error {
	if emb.ID == "" {
		emb.ID = uuid.New().String()
	}
	emb.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "post_id"}, {Name: "model_name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"embedding", "dimension", "content_hash", "updated_at",
		}),
	}).Create(emb).Error
}

// ListPostEmbeddingsByPostIDs retrieves embeddings for a set of posts under
// one model. Posts without an embedding are simply absent from the result.
func (r *EmbeddingRepository) ListPostEmbeddingsByPostIDs(ctx context.Context, postIDs []uint, modelName string) ([]domain.PostEmbedding, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}
	var embs []domain.PostEmbedding
	err := r.db.WithContext(ctx).
		Where("post_id IN ? AND model_name = ?", postIDs, modelName).
		Find(&embs).Error
	if err != nil {
		return nil, err
	}
	return embs, nil
}

// ListPostEmbeddingsByPrimaryCategory retrieves embeddings for posts whose
// primary category matches, under one model.
func (r *EmbeddingRepository) ListPostEmbeddingsByPrimaryCategory(ctx context.Context, categoryID uint, modelName string) ([]domain.PostEmbedding, error) {
	var embs []domain.PostEmbedding
	err := r.db.WithContext(ctx).
		Joins("JOIN posts ON posts.id = post_embeddings.post_id").
		Where("posts.primary_category_id = ? AND post_embeddings.model_name = ?", categoryID, modelName).
		Find(&embs).Error
	if err != nil {
		return nil, err
	}
	return embs, nil
}

// ListPostIDsWithoutEmbedding returns ids of posts that have no embedding
// for the model, capped at limit.
func (r *EmbeddingRepository) ListPostIDsWithoutEmbedding(ctx context.Context, modelName string, limit int) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Table("posts").
		Select("posts.id").
		Joins("LEFT JOIN post_embeddings pe ON pe.post_id = posts.id AND pe.model_name = ?", modelName).
		Where("pe.id IS NULL").
		Order("posts.id").
		Limit(limit).
		Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// GetCategoryEmbedding retrieves a category's embedding for a model.
// Returns domain.ErrNotFound if absent.
func (r *EmbeddingRepository) GetCategoryEmbedding(ctx context.Context, categoryID uint, modelName string) (*domain.CategoryEmbedding, error) {
	var emb domain.CategoryEmbedding
	err := r.db.WithContext(ctx).
		Where("category_id = ? AND model_name = ?", categoryID, modelName).
		First(&emb).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &emb, nil
}

// UpsertCategoryEmbedding inserts or replaces the embedding for
// (category, model).
func (r *EmbeddingRepository) UpsertCategoryEmbedding(ctx context.Context, emb *domain.CategoryEmbedding) error {
	if emb.ID == "" {
		emb.ID = uuid.New().String()
	}
	emb.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "category_id"}, {Name: "model_name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"embedding", "dimension", "post_count", "updated_at",
		}),
	}).Create(emb).Error
}

// ListCategoryEmbeddings retrieves all category embeddings for a model.
func (r *EmbeddingRepository) ListCategoryEmbeddings(ctx context.Context, modelName string) ([]domain.CategoryEmbedding, error) {
	var embs []domain.CategoryEmbedding
	err := r.db.WithContext(ctx).
		Where("model_name = ?", modelName).
		Find(&embs).Error
	if err != nil {
		return nil, err
	}
	return embs, nil
}

// GetUserEmbedding retrieves a user's embedding for a model.
// Returns domain.ErrNotFound if absent.
func (r *EmbeddingRepository) GetUserEmbedding(ctx context.Context, userID uint, modelName string) (*domain.UserEmbedding, error) {
	var emb domain.UserEmbedding
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND model_name = ?", userID, modelName).
		First(&emb).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &emb, nil
}

// UpsertUserEmbedding inserts or replaces the embedding for (user, model).
func (r *EmbeddingRepository) UpsertUserEmbedding(ctx context.Context, emb *domain.UserEmbedding) error {
	if emb.ID == "" {
		emb.ID = uuid.New().String()
	}
	emb.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "model_name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"embedding", "dimension", "activity_count", "last_activity_at", "updated_at",
		}),
	}).Create(emb).Error
}

// CountByModel reports how many post, category, and user embeddings exist
// for a model. Used by the status surface.
func (r *EmbeddingRepository) CountByModel(ctx context.Context, modelName string) (posts, categories, users int64, err error) {
	if err = r.db.WithContext(ctx).Model(&domain.PostEmbedding{}).
		Where("model_name = ?", modelName).Count(&posts).Error; err != nil {
		return
	}
	if err = r.db.WithContext(ctx).Model(&domain.CategoryEmbedding{}).
		Where("model_name = ?", modelName).Count(&categories).Error; err != nil {
		return
	}
	err = r.db.WithContext(ctx).Model(&domain.UserEmbedding{}).
		Where("model_name = ?", modelName).Count(&users).Error
	return
}
