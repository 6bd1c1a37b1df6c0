package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/topicsloop/topicsloop/internal/domain"
	"github.com/topicsloop/topicsloop/internal/logger"
)

const (
	defaultSuggestThreshold = 0.7
	defaultAssignThreshold  = 0.8
	defaultSuggestTopK      = 3
	defaultBatchPostLimit   = 50

	centerCacheTTL = 30 * time.Minute
)

// CategorizablePosts is the post access the engine needs.
type CategorizablePosts interface {
	GetByID(ctx context.Context, id uint) (*domain.Post, error)
	ListWithoutAdditionalCategories(ctx context.Context, limit int) ([]domain.Post, error)
	HasAdditionalCategory(ctx context.Context, postID, categoryID uint) (bool, error)
	AddAdditionalCategory(ctx context.Context, postID, categoryID uint) error
}

// AutoCategorizeConfig tunes suggestion and assignment thresholds.
type AutoCategorizeConfig struct {
	SuggestThreshold float64
	AssignThreshold  float64
	TopK             int
}

// CategorySuggestion is one scored category candidate for a post.
type CategorySuggestion struct {
	CategoryID      uint    `json:"category_id"`
	Name            string  `json:"name"`
	Score           float64 `json:"score"`
	SupportingPosts int     `json:"supporting_posts"`
	Confidence      string  `json:"confidence"`
}

// BatchCategorizeItem is the per-post outcome of a batch run.
type BatchCategorizeItem struct {
	PostID      uint                 `json:"post_id"`
	Suggestions []CategorySuggestion `json:"suggestions"`
	Assigned    []uint               `json:"assigned,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// CategorizeStats summarizes center coverage for the status surface.
type CategorizeStats struct {
	TotalCategories       int    `json:"total_categories"`
	CategoriesWithCenters int    `json:"categories_with_centers"`
	ModelName             string `json:"model_name"`
	Degraded              bool   `json:"degraded"`
}

type categoryCenter struct {
	categoryID uint
	name       string
	center     domain.Vector
	postCount  int
}

// AutoCategorizationEngine suggests and assigns additional categories by
// comparing a post's embedding against every category's semantic center.
// Centers are rebuilt at most every 30 minutes; categories with fewer than 2
// embedded posts never participate.
type AutoCategorizationEngine struct {
	embedder   *EntityEmbedder
	aggregator *CategoryAggregator
	categories CategoryTree
	posts      CategorizablePosts
	cfg        AutoCategorizeConfig

	mu             sync.Mutex
	centers        []categoryCenter
	centersBuiltAt time.Time
}

// NewAutoCategorizationEngine creates the engine. Zero config values fall
// back to the standard thresholds (suggest 0.7, assign 0.8, top-3).
func NewAutoCategorizationEngine(embedder *EntityEmbedder, aggregator *CategoryAggregator, categories CategoryTree, posts CategorizablePosts, cfg AutoCategorizeConfig) *AutoCategorizationEngine {
	if cfg.SuggestThreshold <= 0 {
		cfg.SuggestThreshold = defaultSuggestThreshold
	}
	if cfg.AssignThreshold <= 0 {
		cfg.AssignThreshold = defaultAssignThreshold
	}
	if cfg.TopK <= 0 {
		cfg.TopK = defaultSuggestTopK
	}
	return &AutoCategorizationEngine{
		embedder:   embedder,
		aggregator: aggregator,
		categories: categories,
		posts:      posts,
		cfg:        cfg,
	}
}

// refreshCenters rebuilds the in-memory center list when stale. Categories
// without enough embedded posts are skipped, not zero-filled.
func (e *AutoCategorizationEngine) refreshCenters(ctx context.Context) ([]categoryCenter, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.centers != nil && time.Since(e.centersBuiltAt) < centerCacheTTL {
		return e.centers, nil
	}

	all, err := e.categories.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	centers := make([]categoryCenter, 0, len(all))
	for _, cat := range all {
		center, count, err := e.aggregator.SemanticCenter(ctx, cat.ID)
		if err != nil {
			logger.With(logger.Fields{
				logger.FieldComponent:  "autocategorize",
				logger.FieldCategoryID: cat.ID,
			}).Warn(ctx, "failed to compute semantic center: %v", err)
			continue
		}
		if center == nil {
			continue
		}
		centers = append(centers, categoryCenter{
			categoryID: cat.ID,
			name:       cat.Name,
			center:     center,
			postCount:  count,
		})
	}

	e.centers = centers
	e.centersBuiltAt = time.Now()
	logger.With(logger.Fields{
		logger.FieldComponent: "autocategorize",
	}).WithCount(len(centers)).Debug(ctx, "rebuilt category centers")
	return centers, nil
}

// InvalidateCenters forces the next call to rebuild the center cache.
func (e *AutoCategorizationEngine) InvalidateCenters() {
	e.mu.Lock()
	e.centers = nil
	e.mu.Unlock()
}

// Suggest scores the post against every category center and returns the
// categories above the suggestion threshold, strongest first, excluding the
// post's primary category.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - postID: the post to categorize.
// Returns:
//   - []CategorySuggestion: up to TopK suggestions.
//   - error: domain.ErrNotFound if the post is missing.
func (e *AutoCategorizationEngine) Suggest(ctx context.Context, postID uint) ([]CategorySuggestion, error) {
	post, err := e.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	return e.suggestForPost(ctx, post, e.cfg.SuggestThreshold)
}

func (e *AutoCategorizationEngine) suggestForPost(ctx context.Context, post *domain.Post, threshold float64) ([]CategorySuggestion, error) {
	centers, err := e.refreshCenters(ctx)
	if err != nil {
		return nil, err
	}

	vec, err := e.embedder.EmbedPost(ctx, post)
	if err != nil {
		return nil, err
	}

	suggestions := make([]CategorySuggestion, 0, e.cfg.TopK)
	for _, c := range centers {
		if post.PrimaryCategoryID != nil && c.categoryID == *post.PrimaryCategoryID {
			continue
		}
		score := Cosine(vec, c.center)
		if score < threshold {
			continue
		}
		suggestions = append(suggestions, CategorySuggestion{
			CategoryID:      c.categoryID,
			Name:            c.name,
			Score:           score,
			SupportingPosts: c.postCount,
			Confidence:      confidenceLabel(score, c.postCount),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})
	if len(suggestions) > e.cfg.TopK {
		suggestions = suggestions[:e.cfg.TopK]
	}
	return suggestions, nil
}

// confidenceLabel joins the similarity band with the supporting-post-count
// band. Informational only; never used for filtering.
func confidenceLabel(score float64, supportingPosts int) string {
	var band string
	switch {
	case score >= 0.9:
		band = "very_high"
	case score >= 0.8:
		band = "high"
	case score >= 0.7:
		band = "medium"
	default:
		band = "low"
	}

	var quality string
	switch {
	case supportingPosts >= 10:
		quality = "robust"
	case supportingPosts >= 5:
		quality = "moderate"
	default:
		quality = "limited"
	}

	return band + "_" + quality
}

// AutoAssign runs suggestion at the stricter assignment threshold and
// persists accepted categories as additional categories, skipping any the
// post already carries.
// Returns the ids of the newly assigned categories.
func (e *AutoCategorizationEngine) AutoAssign(ctx context.Context, postID uint) ([]uint, error) {
	post, err := e.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	suggestions, err := e.suggestForPost(ctx, post, e.cfg.AssignThreshold)
	if err != nil {
		return nil, err
	}

	var assigned []uint
	for _, s := range suggestions {
		already, err := e.posts.HasAdditionalCategory(ctx, postID, s.CategoryID)
		if err != nil {
			return assigned, err
		}
		if already {
			continue
		}
		if err := e.posts.AddAdditionalCategory(ctx, postID, s.CategoryID); err != nil {
			return assigned, err
		}
		assigned = append(assigned, s.CategoryID)
		e.aggregator.InvalidateCounts(ctx, s.CategoryID)
	}

	if len(assigned) > 0 {
		logger.With(logger.Fields{
			logger.FieldComponent: "autocategorize",
			logger.FieldPostID:    postID,
		}).WithCount(len(assigned)).Info(ctx, "auto-assigned additional categories")
	}
	return assigned, nil
}

// BatchAutoCategorize processes posts that have no additional categories
// yet. In dry-run mode the scoring and filtering are identical but no
// assignment is written. Failures are captured per post so one bad entity
// does not abort the batch.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum posts to process; 0 uses the default cap of 50.
//   - dryRun: when true, report suggestions without assigning.
// Returns:
//   - []BatchCategorizeItem: one entry per processed post.
//   - error: non-nil only if the candidate listing itself fails.
func (e *AutoCategorizationEngine) BatchAutoCategorize(ctx context.Context, limit int, dryRun bool) ([]BatchCategorizeItem, error) {
	if limit <= 0 {
		limit = defaultBatchPostLimit
	}

	posts, err := e.posts.ListWithoutAdditionalCategories(ctx, limit)
	if err != nil {
		return nil, err
	}

	results := make([]BatchCategorizeItem, 0, len(posts))
	for i := range posts {
		post := &posts[i]
		item := BatchCategorizeItem{PostID: post.ID}

		suggestions, err := e.suggestForPost(ctx, post, e.cfg.AssignThreshold)
		if err != nil {
			item.Error = err.Error()
			results = append(results, item)
			continue
		}
		item.Suggestions = suggestions

		if !dryRun {
			assigned, err := e.AutoAssign(ctx, post.ID)
			if err != nil {
				item.Error = err.Error()
			}
			item.Assigned = assigned
		}
		results = append(results, item)
	}
	return results, nil
}

// Stats reports center coverage for status endpoints.
func (e *AutoCategorizationEngine) Stats(ctx context.Context) (*CategorizeStats, error) {
	all, err := e.categories.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	centers, err := e.refreshCenters(ctx)
	if err != nil {
		return nil, err
	}
	return &CategorizeStats{
		TotalCategories:       len(all),
		CategoriesWithCenters: len(centers),
		ModelName:             e.embedder.Store().ModelName(),
		Degraded:              e.embedder.Store().Degraded(),
	}, nil
}
