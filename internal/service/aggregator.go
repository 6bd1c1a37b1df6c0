package service

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/topicsloop/topicsloop/internal/domain"
	"github.com/topicsloop/topicsloop/internal/logger"
)

const (
	// A single post does not define a semantic center.
	minPostsForCenter = 2

	countCacheTTL  = 30 * time.Minute
	countCacheSize = 2048
)

// CategoryTree provides read access to the category hierarchy.
type CategoryTree interface {
	GetByID(ctx context.Context, id uint) (*domain.Category, error)
	ListAll(ctx context.Context) ([]domain.Category, error)
	Ancestors(ctx context.Context, id uint) ([]domain.Category, error)
	DescendantIDs(ctx context.Context, id uint) ([]uint, error)
}

// PostCounter counts posts by category membership.
type PostCounter interface {
	CountDistinctByCategorySet(ctx context.Context, categoryIDs []uint) (int64, error)
}

// CenterStorage persists category semantic-center records.
type CenterStorage interface {
	GetCategoryEmbedding(ctx context.Context, categoryID uint, modelName string) (*domain.CategoryEmbedding, error)
	UpsertCategoryEmbedding(ctx context.Context, emb *domain.CategoryEmbedding) error
	ListCategoryEmbeddings(ctx context.Context, modelName string) ([]domain.CategoryEmbedding, error)
	ListPostEmbeddingsByPrimaryCategory(ctx context.Context, categoryID uint, modelName string) ([]domain.PostEmbedding, error)
}

// CategoryAggregator derives category-level signals from post data: the
// semantic-center vector (mean of the category's post embeddings) and the
// recursive post count over the category subtree.
//
// Counts are memoized for 30 minutes per category and explicitly invalidated
// by walking from a mutated post's category up to the root; both paths are
// idempotent and safe under concurrent post saves.
type CategoryAggregator struct {
	categories CategoryTree
	posts      PostCounter
	storage    CenterStorage
	store      *EmbeddingStore

	countCache *expirable.LRU[uint, int64]
}

// NewCategoryAggregator creates a CategoryAggregator.
func NewCategoryAggregator(categories CategoryTree, posts PostCounter, storage CenterStorage, store *EmbeddingStore) *CategoryAggregator {
	return &CategoryAggregator{
		categories: categories,
		posts:      posts,
		storage:    storage,
		store:      store,
		countCache: expirable.NewLRU[uint, int64](countCacheSize, nil, countCacheTTL),
	}
}

// SemanticCenter computes the mean embedding of the posts whose primary
// category is the given one, persists it, and returns it together with the
// supporting post count. Categories with fewer than 2 embedded posts have no
// center and yield a nil vector.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - categoryID: the category to aggregate.
// Returns:
//   - domain.Vector: the semantic center, or nil with no error when
//     insufficient posts exist.
//   - int: the number of post embeddings supporting the center.
//   - error: non-nil only on storage failure.
func (a *CategoryAggregator) SemanticCenter(ctx context.Context, categoryID uint) (domain.Vector, int, error) {
	model := a.store.ModelName()
	embs, err := a.storage.ListPostEmbeddingsByPrimaryCategory(ctx, categoryID, model)
	if err != nil {
		return nil, 0, err
	}
	if len(embs) < minPostsForCenter {
		return nil, len(embs), nil
	}

	vectors := make([]domain.Vector, len(embs))
	for i, e := range embs {
		vectors[i] = e.Embedding
	}
	center := MeanVector(vectors)
	if center == nil {
		return nil, len(embs), nil
	}

	record := &domain.CategoryEmbedding{
		CategoryID: categoryID,
		ModelName:  model,
		Embedding:  center,
		Dimension:  len(center),
		PostCount:  len(embs),
	}
	if err := a.storage.UpsertCategoryEmbedding(ctx, record); err != nil {
		return nil, 0, err
	}
	return center, len(embs), nil
}

// StoredCenter returns the persisted semantic center for a category, or
// nil when none exists for the active model.
func (a *CategoryAggregator) StoredCenter(ctx context.Context, categoryID uint) (domain.Vector, int, error) {
	emb, err := a.storage.GetCategoryEmbedding(ctx, categoryID, a.store.ModelName())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	return emb.Embedding, emb.PostCount, nil
}

// StoredCenters returns every persisted semantic center for the active
// model, keyed by category id. One query instead of a per-category lookup.
func (a *CategoryAggregator) StoredCenters(ctx context.Context) (map[uint]domain.Vector, error) {
	embs, err := a.storage.ListCategoryEmbeddings(ctx, a.store.ModelName())
	if err != nil {
		return nil, err
	}
	centers := make(map[uint]domain.Vector, len(embs))
	for _, emb := range embs {
		centers[emb.CategoryID] = emb.Embedding
	}
	return centers, nil
}

// RecursivePostCount counts distinct posts attached to the category or any
// of its descendants through primary or additional membership. A post that
// matches several subtree categories is still counted once.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - categoryID: root of the subtree to count.
//   - useCache: serve a cached value when fresh.
// Returns:
//   - int64: the distinct post count.
//   - error: non-nil if the tree walk or count query fails.
func (a *CategoryAggregator) RecursivePostCount(ctx context.Context, categoryID uint, useCache bool) (int64, error) {
	if useCache {
		if count, ok := a.countCache.Get(categoryID); ok {
			return count, nil
		}
	}

	ids, err := a.categories.DescendantIDs(ctx, categoryID)
	if err != nil {
		return 0, err
	}
	count, err := a.posts.CountDistinctByCategorySet(ctx, ids)
	if err != nil {
		return 0, err
	}

	a.countCache.Add(categoryID, count)
	return count, nil
}

// InvalidateCounts clears cached counts for the category and every ancestor.
// Called after a post's category membership changes, since the post now
// counts toward a different set of subtrees.
func (a *CategoryAggregator) InvalidateCounts(ctx context.Context, categoryID uint) {
	a.countCache.Remove(categoryID)

	ancestors, err := a.categories.Ancestors(ctx, categoryID)
	if err != nil {
		logger.With(logger.Fields{
			logger.FieldComponent:  "aggregator",
			logger.FieldCategoryID: categoryID,
		}).Warn(ctx, "failed to walk ancestors for count invalidation: %v", err)
		return
	}
	for _, ancestor := range ancestors {
		a.countCache.Remove(ancestor.ID)
	}
}
