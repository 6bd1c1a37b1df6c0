package domain

import "time"

// SimilarityAlgorithm identifies how a similarity score was computed.
type SimilarityAlgorithm string

const (
	AlgorithmCosine        SimilarityAlgorithm = "cosine"
	AlgorithmEuclidean     SimilarityAlgorithm = "euclidean"
	AlgorithmSemantic      SimilarityAlgorithm = "semantic"
	AlgorithmFallbackBasic SimilarityAlgorithm = "fallback_basic"
)

// PostSimilarity stores a precomputed similarity score between two posts.
// Pairs are symmetric: Post1ID always carries the lower id so each unordered
// pair is stored once per (algorithm, model).
type PostSimilarity struct {
	ID        string              `gorm:"type:text;primaryKey" json:"id"`
	Post1ID   uint                `gorm:"not null;uniqueIndex:idx_post_similarities_pair;index:idx_post_similarities_post1" json:"post1_id"`
	Post2ID   uint                `gorm:"not null;uniqueIndex:idx_post_similarities_pair;index:idx_post_similarities_post2" json:"post2_id"`
	Score     float64             `gorm:"not null;index:idx_post_similarities_score" json:"score"`
	Algorithm SimilarityAlgorithm `gorm:"type:text;not null;uniqueIndex:idx_post_similarities_pair" json:"algorithm"`
	ModelName string              `gorm:"type:text;not null;uniqueIndex:idx_post_similarities_pair" json:"model_name"`
	CreatedAt time.Time           `json:"created_at"`
}

// TableName returns the database table name for PostSimilarity.
func (PostSimilarity) TableName() string {
	return "post_similarities"
}

// Normalize enforces the canonical pair ordering (lower post id first).
func (s *PostSimilarity) Normalize() {
	if s.Post1ID > s.Post2ID {
		s.Post1ID, s.Post2ID = s.Post2ID, s.Post1ID
	}
}

// Validate checks the structural invariants of the record.
func (s *PostSimilarity) Validate() error {
	if s.Post1ID == s.Post2ID {
		return ErrSelfSimilarity
	}
	if s.Score < 0.0 || s.Score > 1.0 {
		return ErrScoreOutOfRange
	}
	return nil
}
