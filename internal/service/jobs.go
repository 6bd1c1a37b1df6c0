package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/topicsloop/topicsloop/internal/domain"
	"github.com/topicsloop/topicsloop/internal/logger"
)

// JobStore persists embedding job records.
type JobStore interface {
	Create(ctx context.Context, job *domain.EmbeddingJob) error
	Update(ctx context.Context, job *domain.EmbeddingJob) error
	GetByID(ctx context.Context, id string) (*domain.EmbeddingJob, error)
	ListRecent(ctx context.Context, limit int) ([]domain.EmbeddingJob, error)
}

// MissingEmbeddingSource lists entities that still need embedding.
type MissingEmbeddingSource interface {
	ListPostIDsWithoutEmbedding(ctx context.Context, modelName string, limit int) ([]uint, error)
}

// UserListSource lists user profiles for batch embedding.
type UserListSource interface {
	ListAll(ctx context.Context) ([]domain.UserProfile, error)
}

// BatchEmbeddingService drives offline embedding generation. Each run is
// tracked as an EmbeddingJob row; item failures are captured per entity so a
// single bad record never aborts the batch.
type BatchEmbeddingService struct {
	embedder   *EntityEmbedder
	aggregator *CategoryAggregator
	categories CategoryTree
	users      UserListSource
	missing    MissingEmbeddingSource
	jobs       JobStore
}

// NewBatchEmbeddingService creates a BatchEmbeddingService.
func NewBatchEmbeddingService(embedder *EntityEmbedder, aggregator *CategoryAggregator, categories CategoryTree, users UserListSource, missing MissingEmbeddingSource, jobs JobStore) *BatchEmbeddingService {
	return &BatchEmbeddingService{
		embedder:   embedder,
		aggregator: aggregator,
		categories: categories,
		users:      users,
		missing:    missing,
		jobs:       jobs,
	}
}

// EmbedMissingPosts embeds posts that have no embedding under the active
// model, up to limit (default 50).
func (s *BatchEmbeddingService) EmbedMissingPosts(ctx context.Context, limit int) (*domain.EmbeddingJob, error) {
	if limit <= 0 {
		limit = defaultBatchPostLimit
	}

	ids, err := s.missing.ListPostIDsWithoutEmbedding(ctx, s.embedder.Store().ModelName(), limit)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, domain.JobTypePostEmbedding, len(ids), func(job *domain.EmbeddingJob) {
		for _, id := range ids {
			if _, err := s.embedder.PostEmbedding(ctx, id); err != nil {
				recordItemFailure(job, fmt.Sprintf("post %d: %v", id, err))
				continue
			}
			job.ProcessedItems++
		}
	})
}

// RebuildCategoryCenters recomputes every category's semantic center.
// Categories with too few embedded posts are counted as processed, not
// failed; having no center is a valid state.
func (s *BatchEmbeddingService) RebuildCategoryCenters(ctx context.Context) (*domain.EmbeddingJob, error) {
	categories, err := s.categories.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, domain.JobTypeCategoryEmbedding, len(categories), func(job *domain.EmbeddingJob) {
		for _, cat := range categories {
			if _, _, err := s.aggregator.SemanticCenter(ctx, cat.ID); err != nil {
				recordItemFailure(job, fmt.Sprintf("category %d: %v", cat.ID, err))
				continue
			}
			job.ProcessedItems++
		}
	})
}

// RebuildUserEmbeddings regenerates every user's interest vector.
func (s *BatchEmbeddingService) RebuildUserEmbeddings(ctx context.Context) (*domain.EmbeddingJob, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, domain.JobTypeUserEmbedding, len(users), func(job *domain.EmbeddingJob) {
		for _, u := range users {
			if _, err := s.embedder.UserEmbedding(ctx, u.ID); err != nil {
				recordItemFailure(job, fmt.Sprintf("user %d: %v", u.ID, err))
				continue
			}
			job.ProcessedItems++
		}
	})
}

// GetJob returns one job record by id.
func (s *BatchEmbeddingService) GetJob(ctx context.Context, id string) (*domain.EmbeddingJob, error) {
	return s.jobs.GetByID(ctx, id)
}

// RecentJobs lists the latest job records.
func (s *BatchEmbeddingService) RecentJobs(ctx context.Context, limit int) ([]domain.EmbeddingJob, error) {
	return s.jobs.ListRecent(ctx, limit)
}

// run wraps the job lifecycle: create pending, mark processing, execute,
// finalize as completed or failed.
func (s *BatchEmbeddingService) run(ctx context.Context, jobType domain.JobType, total int, work func(job *domain.EmbeddingJob)) (*domain.EmbeddingJob, error) {
	job := &domain.EmbeddingJob{
		JobType:    jobType,
		ModelName:  s.embedder.Store().ModelName(),
		TotalItems: total,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	ctx = logger.SetJobID(ctx, job.ID)
	now := time.Now()
	job.Status = domain.JobStatusProcessing
	job.StartedAt = &now
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, err
	}

	logger.With(logger.Fields{
		logger.FieldComponent: "batch_embedding",
		logger.FieldJobID:     job.ID,
	}).WithCount(total).Info(ctx, "starting %s job", jobType)

	work(job)

	done := time.Now()
	job.CompletedAt = &done
	if job.ProcessedItems == 0 && job.FailedItems > 0 {
		job.Status = domain.JobStatusFailed
	} else {
		job.Status = domain.JobStatusCompleted
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, err
	}

	logger.With(logger.Fields{
		logger.FieldComponent: "batch_embedding",
		logger.FieldJobID:     job.ID,
		logger.FieldStatus:    string(job.Status),
	}).WithDuration(done.Sub(now).Milliseconds()).Info(ctx,
		"%s job finished: %d processed, %d failed", jobType, job.ProcessedItems, job.FailedItems)
	return job, nil
}

func recordItemFailure(job *domain.EmbeddingJob, msg string) {
	job.FailedItems++
	if job.ErrorLog != "" {
		job.ErrorLog += "\n"
	}
	job.ErrorLog += msg
	// Keep the log bounded; early failures are the interesting ones.
	if lines := strings.Count(job.ErrorLog, "\n"); lines > 100 {
		idx := strings.LastIndex(job.ErrorLog, "\n")
		job.ErrorLog = job.ErrorLog[:idx]
	}
}
