package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/topicsloop/topicsloop/internal/domain"
	"gorm.io/gorm"
)

// JobRepository tracks batch embedding job records.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create persists a new job in pending state.
func (r *JobRepository) Create(ctx context.Context, job *domain.EmbeddingJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = domain.JobStatusPending
	}
	job.CreatedAt = time.Now()
	return r.db.WithContext(ctx).Create(job).Error
}

// Update saves the job's current state.
func (r *JobRepository) Update(ctx context.Context, job *domain.EmbeddingJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

// GetByID retrieves a job by id.
// Returns domain.ErrNotFound if absent.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.EmbeddingJob, error) {
	var job domain.EmbeddingJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ListRecent retrieves the most recently created jobs, newest first.
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]domain.EmbeddingJob, error) {
	var jobs []domain.EmbeddingJob
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
