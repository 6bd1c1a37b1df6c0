package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/topicsloop/topicsloop/internal/domain"
)

type memJobs struct {
	jobs    map[string]*domain.EmbeddingJob
	nextID  int
	updates int
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: make(map[string]*domain.EmbeddingJob)}
}

func (m *memJobs) Create(_ context.Context, job *domain.EmbeddingJob) error {
	m.nextID++
	job.ID = fmt.Sprintf("job-%d", m.nextID)
	job.Status = domain.JobStatusPending
	m.jobs[job.ID] = job
	return nil
}

func (m *memJobs) Update(_ context.Context, job *domain.EmbeddingJob) error {
	m.updates++
	m.jobs[job.ID] = job
	return nil
}

func (m *memJobs) GetByID(_ context.Context, id string) (*domain.EmbeddingJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (m *memJobs) ListRecent(_ context.Context, limit int) ([]domain.EmbeddingJob, error) {
	var out []domain.EmbeddingJob
	for _, job := range m.jobs {
		out = append(out, *job)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type memMissing struct {
	ids []uint
}

func (m *memMissing) ListPostIDsWithoutEmbedding(_ context.Context, _ string, limit int) ([]uint, error) {
	if limit > 0 && len(m.ids) > limit {
		return m.ids[:limit], nil
	}
	return m.ids, nil
}

func batchFixture(posts *memPosts, users *memUsers, records *memRecords, missing *memMissing, jobs *memJobs) *BatchEmbeddingService {
	categories := newMemCategories(
		&domain.Category{ID: 1, Name: "Science"},
		&domain.Category{ID: 2, Name: "Empty"},
	)
	store := newTestStore()
	embedder := NewEntityEmbedder(store, posts, categories, users, records, nil)
	aggregator := NewCategoryAggregator(categories, &aggFakeCounter{counts: map[uint]int64{}}, records, store)
	return NewBatchEmbeddingService(embedder, aggregator, categories, users, missing, jobs)
}

func TestEmbedMissingPosts(t *testing.T) {
	posts := newMemPosts(
		&domain.Post{ID: 1, Title: "first", Content: "alpha"},
		&domain.Post{ID: 2, Title: "second", Content: "beta"},
	)
	records := newMemRecords()
	jobs := newMemJobs()
	svc := batchFixture(posts, newMemUsers(), records, &memMissing{ids: []uint{1, 2}}, jobs)

	job, err := svc.EmbedMissingPosts(context.Background(), 10)
	if err != nil {
		t.Fatalf("EmbedMissingPosts returned error: %v", err)
	}

	if job.Status != domain.JobStatusCompleted {
		t.Errorf("got status %q, want %q", job.Status, domain.JobStatusCompleted)
	}
	if job.ProcessedItems != 2 || job.FailedItems != 0 {
		t.Errorf("got %d processed / %d failed, want 2 / 0", job.ProcessedItems, job.FailedItems)
	}
	if job.JobType != domain.JobTypePostEmbedding {
		t.Errorf("got job type %q, want %q", job.JobType, domain.JobTypePostEmbedding)
	}
	if job.StartedAt == nil || job.CompletedAt == nil {
		t.Error("job timestamps not set")
	}

	for _, id := range []uint{1, 2} {
		if records.postEmbeddings[id] == nil {
			t.Errorf("post %d not embedded", id)
		}
	}
}

func TestEmbedMissingPostsPartialFailure(t *testing.T) {
	posts := newMemPosts(&domain.Post{ID: 1, Title: "exists"})
	jobs := newMemJobs()
	// Post 99 is listed as missing an embedding but does not exist.
	svc := batchFixture(posts, newMemUsers(), newMemRecords(), &memMissing{ids: []uint{1, 99}}, jobs)

	job, err := svc.EmbedMissingPosts(context.Background(), 10)
	if err != nil {
		t.Fatalf("EmbedMissingPosts returned error: %v", err)
	}

	if job.Status != domain.JobStatusCompleted {
		t.Errorf("got status %q, want %q (partial success still completes)", job.Status, domain.JobStatusCompleted)
	}
	if job.ProcessedItems != 1 || job.FailedItems != 1 {
		t.Errorf("got %d processed / %d failed, want 1 / 1", job.ProcessedItems, job.FailedItems)
	}
	if !strings.Contains(job.ErrorLog, "post 99") {
		t.Errorf("error log %q does not mention the failed post", job.ErrorLog)
	}
}

func TestEmbedMissingPostsAllFail(t *testing.T) {
	jobs := newMemJobs()
	svc := batchFixture(newMemPosts(), newMemUsers(), newMemRecords(), &memMissing{ids: []uint{98, 99}}, jobs)

	job, err := svc.EmbedMissingPosts(context.Background(), 10)
	if err != nil {
		t.Fatalf("EmbedMissingPosts returned error: %v", err)
	}
	if job.Status != domain.JobStatusFailed {
		t.Errorf("got status %q, want %q", job.Status, domain.JobStatusFailed)
	}
}

func TestRebuildCategoryCenters(t *testing.T) {
	records := newMemRecords()
	records.addPostEmbedding(10, 1, domain.Vector{1, 0}, fallbackModelName)
	records.addPostEmbedding(11, 1, domain.Vector{0, 1}, fallbackModelName)
	jobs := newMemJobs()
	svc := batchFixture(newMemPosts(), newMemUsers(), records, &memMissing{}, jobs)

	job, err := svc.RebuildCategoryCenters(context.Background())
	if err != nil {
		t.Fatalf("RebuildCategoryCenters returned error: %v", err)
	}

	// Both categories count as processed even though only one has enough
	// posts for a center.
	if job.ProcessedItems != 2 || job.FailedItems != 0 {
		t.Errorf("got %d processed / %d failed, want 2 / 0", job.ProcessedItems, job.FailedItems)
	}
	if records.categoryEmbeddings[1] == nil {
		t.Error("category 1 center not persisted")
	}
	if records.categoryEmbeddings[2] != nil {
		t.Error("empty category 2 should have no center")
	}
}

func TestRebuildUserEmbeddings(t *testing.T) {
	users := newMemUsers(
		&domain.UserProfile{ID: 1, Username: "a", FavoriteCategories: []domain.Category{{ID: 1, Name: "Science"}}},
		&domain.UserProfile{ID: 2, Username: "b"},
	)
	records := newMemRecords()
	jobs := newMemJobs()
	svc := batchFixture(newMemPosts(), users, records, &memMissing{}, jobs)

	job, err := svc.RebuildUserEmbeddings(context.Background())
	if err != nil {
		t.Fatalf("RebuildUserEmbeddings returned error: %v", err)
	}
	if job.ProcessedItems != 2 {
		t.Errorf("got %d processed, want 2", job.ProcessedItems)
	}
	for _, id := range []uint{1, 2} {
		if records.userEmbeddings[id] == nil {
			t.Errorf("user %d embedding not persisted", id)
		}
	}
}

func TestGetJob(t *testing.T) {
	jobs := newMemJobs()
	svc := batchFixture(newMemPosts(), newMemUsers(), newMemRecords(), &memMissing{}, jobs)

	created, err := svc.EmbedMissingPosts(context.Background(), 10)
	if err != nil {
		t.Fatalf("EmbedMissingPosts returned error: %v", err)
	}

	got, err := svc.GetJob(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetJob returned error: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("got job %q, want %q", got.ID, created.ID)
	}

	if _, err := svc.GetJob(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown job id")
	}
}
