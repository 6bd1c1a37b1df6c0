package service

import (
	"context"
	"errors"
	"sort"

	"github.com/topicsloop/topicsloop/internal/domain"
	"github.com/topicsloop/topicsloop/internal/logger"
	"github.com/topicsloop/topicsloop/internal/repository"
)

const maxSimilarityCandidates = 100

// Basic fallback similarity weights. Used when a pair has no embeddings.
const (
	weightCategoryMatch = 0.4
	weightTagOverlap    = 0.3
	weightSameAuthor    = 0.1
	weightLengthRatio   = 0.2
)

// RecentPostSource lists candidate posts for similarity search.
type RecentPostSource interface {
	GetByID(ctx context.Context, id uint) (*domain.Post, error)
	GetByIDs(ctx context.Context, ids []uint) ([]domain.Post, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Post, error)
}

// SimilarityStorage persists pairwise similarity scores.
type SimilarityStorage interface {
	Upsert(ctx context.Context, sim *domain.PostSimilarity) error
	ListForPost(ctx context.Context, postID uint, algorithm domain.SimilarityAlgorithm, modelName string, threshold float64, limit int) ([]domain.PostSimilarity, error)
	DeleteForPost(ctx context.Context, postID uint) error
}

// CandidateIndex retrieves nearest-neighbor candidates from the ANN index
// and removes points for deleted or re-embedded posts. Optional.
type CandidateIndex interface {
	Search(ctx context.Context, vector []float32, topK int, filters *repository.SearchFilters) ([]repository.PostSearchResult, error)
	DeletePost(ctx context.Context, postID uint) error
}

// PostEmbeddingReader reads stored post embeddings in bulk.
type PostEmbeddingReader interface {
	ListPostEmbeddingsByPostIDs(ctx context.Context, postIDs []uint, modelName string) ([]domain.PostEmbedding, error)
}

// SimilarPost is one ranked result of a similar-posts query.
type SimilarPost struct {
	PostID    uint                       `json:"post_id"`
	Title     string                     `json:"title"`
	Score     float64                    `json:"score"`
	Algorithm domain.SimilarityAlgorithm `json:"algorithm"`
}

// PostSimilarityService ranks posts against each other. Scores are computed
// opportunistically and cached in the similarity store; a pair is only ever
// scored once per (algorithm, model). Pairs lacking embeddings fall back to
// a metadata heuristic instead of failing.
type PostSimilarityService struct {
	posts         RecentPostSource
	embedder      *EntityEmbedder
	embeddings    PostEmbeddingReader
	storage       SimilarityStorage
	index         CandidateIndex // nil when no ANN index is configured
	maxCandidates int
}

// PostSimilarityConfig holds tuning knobs for the service.
type PostSimilarityConfig struct {
	MaxCandidates int
}

// NewPostSimilarityService creates a PostSimilarityService. index may be nil;
// candidates then come from the most recent posts.
func NewPostSimilarityService(posts RecentPostSource, embedder *EntityEmbedder, embeddings PostEmbeddingReader, storage SimilarityStorage, index CandidateIndex, cfg PostSimilarityConfig) *PostSimilarityService {
	maxCandidates := cfg.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = maxSimilarityCandidates
	}
	return &PostSimilarityService{
		posts:         posts,
		embedder:      embedder,
		embeddings:    embeddings,
		storage:       storage,
		index:         index,
		maxCandidates: maxCandidates,
	}
}

// SimilarPosts ranks up to limit posts similar to the target, at or above
// the threshold. Candidates come from the ANN index when one is configured
// and the target has an embedding, and from the most recent posts otherwise;
// the pool is capped to bound per-request latency. Candidates that cannot be
// scored are skipped silently.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - postID: the target post.
//   - threshold: minimum score (inclusive).
//   - limit: maximum results; 0 means no limit.
// Returns:
//   - []SimilarPost: ranked results, best first.
//   - error: domain.ErrNotFound if the target post is missing.
func (s *PostSimilarityService) SimilarPosts(ctx context.Context, postID uint, threshold float64, limit int) ([]SimilarPost, error) {
	target, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	targetVec, err := s.embedder.EmbedPost(ctx, target)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	model := s.embedder.Store().ModelName()

	candidates, err := s.candidatePool(ctx, target, targetVec, model)
	if err != nil {
		return nil, err
	}

	candidateIDs := make([]uint, 0, len(candidates))
	for _, c := range candidates {
		if c.ID != target.ID {
			candidateIDs = append(candidateIDs, c.ID)
		}
	}
	embByPost := make(map[uint]domain.Vector, len(candidateIDs))
	if embs, err := s.embeddings.ListPostEmbeddingsByPostIDs(ctx, candidateIDs, model); err == nil {
		for _, e := range embs {
			embByPost[e.PostID] = e.Embedding
		}
	}

	stored := s.storedScores(ctx, target.ID, model)

	results := make([]SimilarPost, 0, len(candidateIDs))
	for i := range candidates {
		candidate := &candidates[i]
		if candidate.ID == target.ID {
			continue
		}

		score, algorithm, err := s.scorePair(ctx, target, targetVec, candidate, embByPost[candidate.ID], model, stored)
		if err != nil {
			logger.With(logger.Fields{
				logger.FieldComponent: "post_similarity",
				logger.FieldPostID:    candidate.ID,
			}).Debug(ctx, "skipping unscorable candidate: %v", err)
			continue
		}
		if score < threshold {
			continue
		}
		results = append(results, SimilarPost{
			PostID:    candidate.ID,
			Title:     candidate.Title,
			Score:     score,
			Algorithm: algorithm,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// candidatePool selects the posts to score against the target. The ANN index
// serves the pool when configured and the target has a vector; any index
// failure falls back to the recent-posts scan.
func (s *PostSimilarityService) candidatePool(ctx context.Context, target *domain.Post, targetVec domain.Vector, model string) ([]domain.Post, error) {
	if s.index != nil && targetVec != nil {
		posts, err := s.indexCandidates(ctx, target.ID, targetVec, model)
		if err == nil && len(posts) > 0 {
			return posts, nil
		}
		if err != nil {
			logger.With(logger.Fields{
				logger.FieldComponent: "post_similarity",
				logger.FieldPostID:    target.ID,
			}).Warn(ctx, "index candidate search failed, scanning recent posts: %v", err)
		}
	}
	return s.posts.ListRecent(ctx, s.maxCandidates+1)
}

// indexCandidates resolves ANN hits back to full post records.
func (s *PostSimilarityService) indexCandidates(ctx context.Context, targetID uint, targetVec domain.Vector, model string) ([]domain.Post, error) {
	results, err := s.index.Search(ctx, targetVec, s.maxCandidates+1, &repository.SearchFilters{ModelName: &model})
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(results))
	for _, r := range results {
		if r.PostID != targetID {
			ids = append(ids, r.PostID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return s.posts.GetByIDs(ctx, ids)
}

// pairScoreKey addresses a stored score by the other post in the pair.
type pairScoreKey struct {
	postID    uint
	algorithm domain.SimilarityAlgorithm
}

// storedScores prefetches every persisted score involving the target so each
// candidate costs at most one map lookup instead of a point query.
func (s *PostSimilarityService) storedScores(ctx context.Context, targetID uint, model string) map[pairScoreKey]float64 {
	stored := map[pairScoreKey]float64{}
	for _, algorithm := range []domain.SimilarityAlgorithm{domain.AlgorithmSemantic, domain.AlgorithmFallbackBasic} {
		sims, err := s.storage.ListForPost(ctx, targetID, algorithm, model, 0, 0)
		if err != nil {
			logger.With(logger.Fields{
				logger.FieldComponent: "post_similarity",
				logger.FieldPostID:    targetID,
			}).Debug(ctx, "failed to load stored similarities: %v", err)
			continue
		}
		for _, sim := range sims {
			other := sim.Post1ID
			if other == targetID {
				other = sim.Post2ID
			}
			stored[pairScoreKey{postID: other, algorithm: algorithm}] = sim.Score
		}
	}
	return stored
}

// scorePair returns the stored score for a pair when present, computing and
// persisting it otherwise.
func (s *PostSimilarityService) scorePair(ctx context.Context, target *domain.Post, targetVec domain.Vector, candidate *domain.Post, candidateVec domain.Vector, model string, stored map[pairScoreKey]float64) (float64, domain.SimilarityAlgorithm, error) {
	algorithm := domain.AlgorithmSemantic
	if targetVec == nil || candidateVec == nil {
		algorithm = domain.AlgorithmFallbackBasic
	}

	if score, ok := stored[pairScoreKey{postID: candidate.ID, algorithm: algorithm}]; ok {
		return score, algorithm, nil
	}

	var score float64
	if algorithm == domain.AlgorithmSemantic {
		score = Cosine(targetVec, candidateVec)
		if score < 0 {
			score = 0
		}
	} else {
		score = BasicSimilarity(target, candidate)
	}

	record := &domain.PostSimilarity{
		Post1ID:   target.ID,
		Post2ID:   candidate.ID,
		Score:     score,
		Algorithm: algorithm,
		ModelName: model,
	}
	if err := s.storage.Upsert(ctx, record); err != nil {
		// Losing the cache row is harmless; the score is still valid.
		logger.With(logger.Fields{
			logger.FieldComponent: "post_similarity",
		}).Debug(ctx, "failed to persist similarity: %v", err)
	}
	return score, algorithm, nil
}

// InvalidateFor drops stored similarities for a post after its content, and
// therefore its embedding, changed. The stale index point is removed too;
// losing it is tolerable since the next embed re-upserts the vector.
func (s *PostSimilarityService) InvalidateFor(ctx context.Context, postID uint) error {
	if s.index != nil {
		if err := s.index.DeletePost(ctx, postID); err != nil {
			logger.With(logger.Fields{
				logger.FieldComponent: "post_similarity",
				logger.FieldPostID:    postID,
			}).Warn(ctx, "failed to drop index point: %v", err)
		}
	}
	return s.storage.DeleteForPost(ctx, postID)
}

// BasicSimilarity scores two posts from metadata alone: shared primary
// category 0.4, tag overlap (Jaccard) up to 0.3, same author 0.1, and
// content-length ratio up to 0.2. The result is capped at 1.0.
func BasicSimilarity(a, b *domain.Post) float64 {
	var score float64

	if a.PrimaryCategoryID != nil && b.PrimaryCategoryID != nil && *a.PrimaryCategoryID == *b.PrimaryCategoryID {
		score += weightCategoryMatch
	}

	score += weightTagOverlap * tagJaccard(a.TagNames(), b.TagNames())

	if a.AuthorID == b.AuthorID {
		score += weightSameAuthor
	}

	score += weightLengthRatio * lengthRatio(len(a.Content), len(b.Content))

	if score > 1.0 {
		score = 1.0
	}
	return score
}

func tagJaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	var intersection int
	union := len(set)
	for _, t := range b {
		if _, ok := set[t]; ok {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func lengthRatio(a, b int) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > b {
		a, b = b, a
	}
	return float64(a) / float64(b)
}
