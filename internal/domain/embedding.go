package domain

import "time"

// PostEmbedding stores the semantic embedding of a post for one model.
// At most one record exists per (post, model); the content hash detects
// staleness after edits.
type PostEmbedding struct {
	ID          string    `gorm:"type:text;primaryKey" json:"id"`
	PostID      uint      `gorm:"not null;uniqueIndex:idx_post_embeddings_post_model" json:"post_id"`
	ModelName   string    `gorm:"type:text;not null;uniqueIndex:idx_post_embeddings_post_model" json:"model_name"`
	Embedding   Vector    `gorm:"type:text;not null" json:"embedding"`
	Dimension   int       `gorm:"not null" json:"dimension"`
	ContentHash string    `gorm:"type:text;not null" json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for PostEmbedding.
func (PostEmbedding) TableName() string {
	return "post_embeddings"
}

// Stale reports whether the embedding was produced from different content.
func (e *PostEmbedding) Stale(contentHash string) bool {
	return e.ContentHash != contentHash
}

// CategoryEmbedding stores a category's semantic-center vector, aggregated
// from the embeddings of its posts.
type CategoryEmbedding struct {
	ID         string    `gorm:"type:text;primaryKey" json:"id"`
	CategoryID uint      `gorm:"not null;uniqueIndex:idx_category_embeddings_category_model" json:"category_id"`
	ModelName  string    `gorm:"type:text;not null;uniqueIndex:idx_category_embeddings_category_model" json:"model_name"`
	Embedding  Vector    `gorm:"type:text;not null" json:"embedding"`
	Dimension  int       `gorm:"not null" json:"dimension"`
	PostCount  int       `gorm:"default:0" json:"post_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for CategoryEmbedding.
func (CategoryEmbedding) TableName() string {
	return "category_embeddings"
}

// UserEmbedding stores a user's aggregated interest vector, rebuilt
// periodically from favorites and recent activity.
type UserEmbedding struct {
	ID             string     `gorm:"type:text;primaryKey" json:"id"`
	UserID         uint       `gorm:"not null;uniqueIndex:idx_user_embeddings_user_model" json:"user_id"`
	ModelName      string     `gorm:"type:text;not null;uniqueIndex:idx_user_embeddings_user_model" json:"model_name"`
	Embedding      Vector     `gorm:"type:text;not null" json:"embedding"`
	Dimension      int        `gorm:"not null" json:"dimension"`
	ActivityCount  int        `gorm:"default:0" json:"activity_count"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the database table name for UserEmbedding.
func (UserEmbedding) TableName() string {
	return "user_embeddings"
}
