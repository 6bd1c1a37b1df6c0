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

// SimilarityRepository persists pairwise post similarity scores.
// Pairs are stored in canonical order (lower post id first) so each unordered
// pair has exactly one row per (algorithm, model).
type SimilarityRepository struct {
	db *gorm.DB
}

// NewSimilarityRepository creates a new SimilarityRepository.
func NewSimilarityRepository(db *gorm.DB) *SimilarityRepository {
	return &SimilarityRepository{db: db}
}

// Upsert validates, canonicalizes, and stores a similarity score, replacing
// any existing row for the same (pair, algorithm, model).
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - sim: similarity record; normalized in place, ID assigned if empty.
// Returns:
//   - error: domain validation error or the write error.
func (r *SimilarityRepository) Upsert(ctx context.Context, sim *domain.PostSimilarity) error {
	if err := sim.Validate(); err != nil {
		return err
	}
	sim.Normalize()
	if sim.ID == "" {
		sim.ID = uuid.New().String()
	}
	if sim.CreatedAt.IsZero() {
		sim.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "post1_id"}, {Name: "post2_id"},
			{Name: "algorithm"}, {Name: "model_name"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"score", "created_at"}),
	}).Create(sim).Error
}

// GetPair retrieves the stored score for an unordered post pair. The lookup
// canonicalizes ids itself, so argument order does not matter.
// Returns domain.ErrNotFound if no score is stored.
func (r *SimilarityRepository) GetPair(ctx context.Context, postAID, postBID uint, algorithm domain.SimilarityAlgorithm, modelName string) (*domain.PostSimilarity, error) {
	if postAID > postBID {
		postAID, postBID = postBID, postAID
	}
	var sim domain.PostSimilarity
	err := r.db.WithContext(ctx).
		Where("post1_id = ? AND post2_id = ? AND algorithm = ? AND model_name = ?",
			postAID, postBID, algorithm, modelName).
		First(&sim).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &sim, nil
}

// ListForPost retrieves stored similarities involving a post, at or above a
// score threshold, ordered by score descending.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - postID: the post on either side of the pair.
//   - algorithm: similarity algorithm to filter by.
//   - modelName: embedding model to filter by.
//   - threshold: minimum score (inclusive).
//   - limit: maximum number of rows; 0 means no limit.
// Returns:
//   - []domain.PostSimilarity: matching rows, best first.
//   - error: non-nil if the query fails.
func (r *SimilarityRepository) ListForPost(ctx context.Context, postID uint, algorithm domain.SimilarityAlgorithm, modelName string, threshold float64, limit int) ([]domain.PostSimilarity, error) {
	query := r.db.WithContext(ctx).
		Where("(post1_id = ? OR post2_id = ?)", postID, postID).
		Where("algorithm = ? AND model_name = ?", algorithm, modelName).
		Where("score >= ?", threshold).
		Order("score DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var sims []domain.PostSimilarity
	if err := query.Find(&sims).Error; err != nil {
		return nil, err
	}
	return sims, nil
}

// DeleteForPost removes all stored similarities involving a post. Called
// when a post's embedding is regenerated and old scores become stale.
func (r *SimilarityRepository) DeleteForPost(ctx context.Context, postID uint) error {
	return r.db.WithContext(ctx).
		Where("post1_id = ? OR post2_id = ?", postID, postID).
		Delete(&domain.PostSimilarity{}).Error
}

// Count returns the total number of stored similarity rows.
func (r *SimilarityRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.PostSimilarity{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
