package domain

import "time"

// JobStatus represents the status of an embedding job.
// Values include JobStatusPending, JobStatusProcessing, JobStatusCompleted,
// and JobStatusFailed.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobType identifies what an embedding job generates.
type JobType string

const (
	JobTypePostEmbedding     JobType = "post_embedding"
	JobTypeUserEmbedding     JobType = "user_embedding"
	JobTypeCategoryEmbedding JobType = "category_embedding"
	JobTypeSimilarity        JobType = "similarity_calculation"
)

// EmbeddingJob tracks one offline embedding-generation run and its progress.
type EmbeddingJob struct {
	ID             string     `gorm:"type:text;primaryKey" json:"id"`
	JobType        JobType    `gorm:"type:text;not null;index:idx_embedding_jobs_status_type" json:"job_type"`
	Status         JobStatus  `gorm:"type:text;default:pending;index:idx_embedding_jobs_status_type" json:"status"`
	ModelName      string     `gorm:"type:text;not null" json:"model_name"`
	TotalItems     int        `gorm:"default:0" json:"total_items"`
	ProcessedItems int        `gorm:"default:0" json:"processed_items"`
	FailedItems    int        `gorm:"default:0" json:"failed_items"`
	ErrorLog       string     `gorm:"type:text" json:"error_log,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the database table name for EmbeddingJob.
func (EmbeddingJob) TableName() string {
	return "embedding_jobs"
}
