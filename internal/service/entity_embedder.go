package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/topicsloop/topicsloop/internal/domain"
	"github.com/topicsloop/topicsloop/internal/logger"
	"github.com/topicsloop/topicsloop/internal/repository"
)

// PostSource provides read access to posts.
type PostSource interface {
	GetByID(ctx context.Context, id uint) (*domain.Post, error)
	ListByAuthor(ctx context.Context, authorID uint, limit int) ([]domain.Post, error)
}

// CategorySource provides read access to the category tree.
type CategorySource interface {
	GetByID(ctx context.Context, id uint) (*domain.Category, error)
	Path(ctx context.Context, id uint) (string, error)
}

// UserSource provides read access to user profiles.
type UserSource interface {
	GetByID(ctx context.Context, id uint) (*domain.UserProfile, error)
}

// EmbeddingRecords persists per-entity embedding rows.
type EmbeddingRecords interface {
	GetPostEmbedding(ctx context.Context, postID uint, modelName string) (*domain.PostEmbedding, error)
	UpsertPostEmbedding(ctx context.Context, emb *domain.PostEmbedding) error
	GetUserEmbedding(ctx context.Context, userID uint, modelName string) (*domain.UserEmbedding, error)
	UpsertUserEmbedding(ctx context.Context, emb *domain.UserEmbedding) error
}

// PostIndex mirrors post vectors into an ANN index. Optional.
type PostIndex interface {
	UpsertPost(ctx context.Context, vector []float32, payload *repository.PostPayload) error
}

// EntityEmbedder assembles the canonical text for posts and users, runs it
// through the EmbeddingStore, and keeps the persisted embedding records
// fresh. Post embeddings are fingerprinted against (title, content) and only
// re-encoded when the content actually changed.
type EntityEmbedder struct {
	store      *EmbeddingStore
	posts      PostSource
	categories CategorySource
	users      UserSource
	records    EmbeddingRecords
	index      PostIndex // nil when no ANN index is configured
}

// NewEntityEmbedder creates an EntityEmbedder. index may be nil.
func NewEntityEmbedder(store *EmbeddingStore, posts PostSource, categories CategorySource, users UserSource, records EmbeddingRecords, index PostIndex) *EntityEmbedder {
	return &EntityEmbedder{
		store:      store,
		posts:      posts,
		categories: categories,
		users:      users,
		records:    records,
		index:      index,
	}
}

// Store exposes the underlying embedding store.
func (e *EntityEmbedder) Store() *EmbeddingStore {
	return e.store
}

// PostFingerprint hashes the parts of a post that feed its embedding.
func PostFingerprint(post *domain.Post) string {
	return Fingerprint(post.Title + "\n" + post.Content)
}

// PostEmbedding returns the post's embedding, serving the stored record when
// its fingerprint still matches and re-encoding otherwise.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - postID: the post to embed.
// Returns:
//   - domain.Vector: the post's embedding under the active model.
//   - error: domain.ErrNotFound if the post is missing, or a storage error.
func (e *EntityEmbedder) PostEmbedding(ctx context.Context, postID uint) (domain.Vector, error) {
	post, err := e.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	return e.EmbedPost(ctx, post)
}

// EmbedPost is PostEmbedding for an already-loaded post.
func (e *EntityEmbedder) EmbedPost(ctx context.Context, post *domain.Post) (domain.Vector, error) {
	model := e.store.ModelName()
	hash := PostFingerprint(post)

	existing, err := e.records.GetPostEmbedding(ctx, post.ID, model)
	if err == nil && !existing.Stale(hash) {
		return existing.Embedding, nil
	}

	vec := e.store.EncodeOne(ctx, e.postText(ctx, post))
	record := &domain.PostEmbedding{
		PostID:      post.ID,
		ModelName:   model,
		Embedding:   vec,
		Dimension:   len(vec),
		ContentHash: hash,
	}
	if err := e.records.UpsertPostEmbedding(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store post embedding: %w", err)
	}

	if e.index != nil {
		payload := &repository.PostPayload{
			PostID:    post.ID,
			AuthorID:  post.AuthorID,
			ModelName: model,
			Tags:      post.TagNames(),
		}
		if post.PrimaryCategoryID != nil {
			payload.PrimaryCategoryID = *post.PrimaryCategoryID
		}
		if err := e.index.UpsertPost(ctx, vec, payload); err != nil {
			// The relational record is the source of truth; a failed index
			// write only degrades candidate retrieval.
			logger.With(logger.Fields{
				logger.FieldComponent: "entity_embedder",
				logger.FieldPostID:    post.ID,
			}).Warn(ctx, "failed to index post vector: %v", err)
		}
	}

	return vec, nil
}

func (e *EntityEmbedder) postText(ctx context.Context, post *domain.Post) string {
	var categoryPath string
	if post.PrimaryCategoryID != nil {
		path, err := e.categories.Path(ctx, *post.PrimaryCategoryID)
		if err == nil {
			categoryPath = path
		} else if post.PrimaryCategory != nil {
			categoryPath = post.PrimaryCategory.Name
		}
	}
	return PostText(post.Title, post.Content, categoryPath, post.TagNames())
}

// UserEmbedding rebuilds and stores the user's interest vector from favorite
// categories and recent authored posts.
func (e *EntityEmbedder) UserEmbedding(ctx context.Context, userID uint) (domain.Vector, error) {
	profile, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	recent, err := e.posts.ListByAuthor(ctx, userID, userSnippetLimit)
	if err != nil {
		return nil, err
	}

	snippets := make([]string, len(recent))
	for i, p := range recent {
		snippets[i] = p.Title
	}

	vec := e.store.EncodeOne(ctx, UserText(profile.FavoriteCategoryNames(), snippets))

	record := &domain.UserEmbedding{
		UserID:        userID,
		ModelName:     e.store.ModelName(),
		Embedding:     vec,
		Dimension:     len(vec),
		ActivityCount: len(recent),
	}
	if len(recent) > 0 {
		last := mostRecentCreation(recent)
		record.LastActivityAt = &last
	}
	if err := e.records.UpsertUserEmbedding(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store user embedding: %w", err)
	}
	return vec, nil
}

// InterestVector returns the user's stored interest vector for the active
// model, building it on demand when absent.
// Returns domain.ErrNoProfile when the user has no profile at all.
func (e *EntityEmbedder) InterestVector(ctx context.Context, userID uint) (domain.Vector, error) {
	existing, err := e.records.GetUserEmbedding(ctx, userID, e.store.ModelName())
	if err == nil {
		return existing.Embedding, nil
	}

	vec, err := e.UserEmbedding(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoProfile
		}
		return nil, err
	}
	return vec, nil
}

func mostRecentCreation(posts []domain.Post) time.Time {
	latest := posts[0].CreatedAt
	for _, p := range posts[1:] {
		if p.CreatedAt.After(latest) {
			latest = p.CreatedAt
		}
	}
	return latest
}
