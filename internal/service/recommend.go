package service

import (
	"context"

	"github.com/topicsloop/topicsloop/internal/domain"
)

// RecommendedPost is one ranked feed entry.
type RecommendedPost struct {
	PostID uint    `json:"post_id"`
	Title  string  `json:"title"`
	Score  float64 `json:"score"`
}

// RecommendationEngine ranks candidate posts against a user's interest
// vector. The caller owns the fallback policy for users without a profile;
// the engine only signals that case via domain.ErrNoProfile.
type RecommendationEngine struct {
	embedder   *EntityEmbedder
	posts      RecentPostSource
	embeddings PostEmbeddingReader
}

// NewRecommendationEngine creates a RecommendationEngine.
func NewRecommendationEngine(embedder *EntityEmbedder, posts RecentPostSource, embeddings PostEmbeddingReader) *RecommendationEngine {
	return &RecommendationEngine{
		embedder:   embedder,
		posts:      posts,
		embeddings: embeddings,
	}
}

// Recommend returns up to limit posts ranked by cosine similarity between
// the user's interest vector and each candidate's embedding. The user's own
// posts are excluded; candidates without a stored embedding are skipped.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: the user to recommend for.
//   - limit: maximum results; 0 means no limit.
// Returns:
//   - []RecommendedPost: ranked results, best first.
//   - error: domain.ErrNoProfile when the user has no interest vector.
func (r *RecommendationEngine) Recommend(ctx context.Context, userID uint, limit int) ([]RecommendedPost, error) {
	interest, err := r.embedder.InterestVector(ctx, userID)
	if err != nil {
		return nil, err
	}
	if interest.IsZero() {
		return nil, domain.ErrNoProfile
	}

	candidates, err := r.posts.ListRecent(ctx, maxSimilarityCandidates)
	if err != nil {
		return nil, err
	}

	pool := make([]domain.Post, 0, len(candidates))
	ids := make([]uint, 0, len(candidates))
	for i := range candidates {
		if candidates[i].AuthorID == userID {
			continue
		}
		pool = append(pool, candidates[i])
		ids = append(ids, candidates[i].ID)
	}

	embs, err := r.embeddings.ListPostEmbeddingsByPostIDs(ctx, ids, r.embedder.Store().ModelName())
	if err != nil {
		return nil, err
	}
	embByPost := make(map[uint]domain.Vector, len(embs))
	for _, e := range embs {
		embByPost[e.PostID] = e.Embedding
	}

	scorable := make([]domain.Post, 0, len(pool))
	vectors := make([]domain.Vector, 0, len(pool))
	for i := range pool {
		vec, ok := embByPost[pool[i].ID]
		if !ok {
			continue
		}
		scorable = append(scorable, pool[i])
		vectors = append(vectors, vec)
	}

	top := FindTopK(interest, vectors, limit, 0.0)
	results := make([]RecommendedPost, len(top))
	for i, s := range top {
		results[i] = RecommendedPost{
			PostID: scorable[s.Index].ID,
			Title:  scorable[s.Index].Title,
			Score:  s.Score,
		}
	}
	return results, nil
}
