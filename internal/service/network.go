package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/topicsloop/topicsloop/internal/domain"
	"github.com/topicsloop/topicsloop/internal/logger"
)

const (
	// Edges blended below this strength are pruned as visual clutter.
	hybridEdgeFloor = 0.1

	maxConnectedFavorites      = 10
	defaultNetworkMaxPosts     = 20
	defaultMaxPostConnections  = 30
	postSimilarEdgesPerPost    = 3
	postEdgeSimilarityMinScore = 0.5
)

// NetworkRequest describes one graph construction.
type NetworkRequest struct {
	Level               int
	ParentID            *uint
	UserID              *uint // personalization seed; nil disables it
	SharedWeight        float64
	AIWeight            float64
	MinPosts            int
	SimilarityThreshold float64

	IncludePosts       bool
	FocusPostID        *uint
	MaxPosts           int
	MaxPostConnections int
}

// NetworkNode is a graph node, either a category or a post.
type NetworkNode struct {
	ID        string `json:"id"`
	Type      string `json:"type"` // "category" or "post"
	RefID     uint   `json:"ref_id"`
	Label     string `json:"label"`
	Level     int    `json:"level,omitempty"`
	PostCount int64  `json:"post_count,omitempty"`
	Group     string `json:"group,omitempty"` // "favorite" / "connected" when personalized
}

// NetworkEdge is a weighted graph edge carrying its raw contributing
// signals alongside the blended strength.
type NetworkEdge struct {
	Source       string  `json:"source"`
	Target       string  `json:"target"`
	Kind         string  `json:"kind"` // "hybrid", "membership", "similarity"
	SharedPosts  int     `json:"shared_posts,omitempty"`
	AISimilarity float64 `json:"ai_similarity,omitempty"`
	Strength     float64 `json:"strength"`
	Dashed       bool    `json:"dashed,omitempty"`
	Primary      bool    `json:"primary,omitempty"`
	Color        string  `json:"color,omitempty"`
}

// NetworkStats summarizes the built graph.
type NetworkStats struct {
	CategoryCount       int     `json:"category_count"`
	PostCount           int     `json:"post_count"`
	EdgeCount           int     `json:"edge_count"`
	StrongestConnection float64 `json:"strongest_connection"`
	SharedWeight        float64 `json:"shared_weight"`
	AIWeight            float64 `json:"ai_weight"`
	AIEnabled           bool    `json:"ai_enabled"`
	Message             string  `json:"message,omitempty"`
}

// NetworkGraph is the transient per-request graph. Never persisted.
type NetworkGraph struct {
	Nodes []NetworkNode `json:"nodes"`
	Edges []NetworkEdge `json:"edges"`
	Stats NetworkStats  `json:"stats"`
}

// LeveledCategorySource lists categories by hierarchy position.
type LeveledCategorySource interface {
	ListByLevel(ctx context.Context, level int, parentID *uint) ([]domain.Category, error)
}

// NetworkPostSource provides the post access the builder needs.
type NetworkPostSource interface {
	GetByID(ctx context.Context, id uint) (*domain.Post, error)
	ListByCategorySet(ctx context.Context, categoryIDs []uint, limit int) ([]domain.Post, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Post, error)
}

// FavoriteSource resolves a user's favorite categories per level.
type FavoriteSource interface {
	FavoriteCategoryIDs(ctx context.Context, userID uint, level int) ([]uint, error)
}

// HybridNetworkBuilder constructs the weighted category/post graph by
// blending shared-post co-occurrence with semantic-center similarity.
// Graphs are rebuilt on every call from current data.
type HybridNetworkBuilder struct {
	categories LeveledCategorySource
	posts      NetworkPostSource
	favorites  FavoriteSource
	aggregator *CategoryAggregator
	similarity *PostSimilarityService
	store      *EmbeddingStore
}

// NewHybridNetworkBuilder creates a HybridNetworkBuilder.
func NewHybridNetworkBuilder(categories LeveledCategorySource, posts NetworkPostSource, favorites FavoriteSource, aggregator *CategoryAggregator, similarity *PostSimilarityService, store *EmbeddingStore) *HybridNetworkBuilder {
	return &HybridNetworkBuilder{
		categories: categories,
		posts:      posts,
		favorites:  favorites,
		aggregator: aggregator,
		similarity: similarity,
		store:      store,
	}
}

type categoryPair struct {
	a, b uint // a < b
}

func makePair(x, y uint) categoryPair {
	if x > y {
		x, y = y, x
	}
	return categoryPair{a: x, b: y}
}

// Build runs the full hybrid graph construction.
//
// Category selection honors the level/parent scope; shared-post counts come
// from pairwise co-membership within each post's category set; AI edges come
// from semantic-center cosine similarity when the embedding backend is up.
// The two signals are blended linearly and edges at or below the 0.1 floor
// are dropped. Fewer than 2 qualifying categories yields an empty graph with
// an explanatory message rather than an error.
func (b *HybridNetworkBuilder) Build(ctx context.Context, req NetworkRequest) (*NetworkGraph, error) {
	selected, groups, err := b.selectCategories(ctx, req)
	if err != nil {
		return nil, err
	}

	graph := &NetworkGraph{
		Nodes: []NetworkNode{},
		Edges: []NetworkEdge{},
		Stats: NetworkStats{
			SharedWeight: req.SharedWeight,
			AIWeight:     req.AIWeight,
			AIEnabled:    !b.store.Degraded(),
		},
	}

	if len(selected) < 2 {
		graph.Stats.Message = "not enough categories at this level to build a network"
		return graph, nil
	}

	selectedIDs := make([]uint, len(selected))
	selectedSet := make(map[uint]bool, len(selected))
	for i, cat := range selected {
		selectedIDs[i] = cat.ID
		selectedSet[cat.ID] = true
	}

	for _, cat := range selected {
		count, err := b.aggregator.RecursivePostCount(ctx, cat.ID, true)
		if err != nil {
			logger.With(logger.Fields{
				logger.FieldComponent:  "network",
				logger.FieldCategoryID: cat.ID,
			}).Warn(ctx, "failed to count posts: %v", err)
		}
		graph.Nodes = append(graph.Nodes, NetworkNode{
			ID:        categoryNodeID(cat.ID),
			Type:      "category",
			RefID:     cat.ID,
			Label:     cat.Name,
			Level:     cat.Level,
			PostCount: count,
			Group:     groups[cat.ID],
		})
	}
	graph.Stats.CategoryCount = len(selected)

	sharedCounts, err := b.sharedPostCounts(ctx, selectedIDs, selectedSet)
	if err != nil {
		return nil, err
	}

	aiScores := b.aiSimilarities(ctx, selected, req.SimilarityThreshold)

	b.blendEdges(graph, sharedCounts, aiScores, req)

	if req.IncludePosts {
		if err := b.addPostNodes(ctx, graph, req, selectedSet); err != nil {
			return nil, err
		}
	}

	graph.Stats.EdgeCount = len(graph.Edges)
	return graph, nil
}

// selectCategories applies the level/parent scope and, when personalizing,
// narrows level-0 selections to favorites plus connected categories.
func (b *HybridNetworkBuilder) selectCategories(ctx context.Context, req NetworkRequest) ([]domain.Category, map[uint]string, error) {
	all, err := b.categories.ListByLevel(ctx, req.Level, req.ParentID)
	if err != nil {
		return nil, nil, err
	}

	// Root level filters sparse categories; subcategories stay visible even
	// when sparse so deeper levels remain navigable.
	var selected []domain.Category
	if req.Level == 0 && req.ParentID == nil && req.MinPosts > 0 {
		for _, cat := range all {
			count, err := b.aggregator.RecursivePostCount(ctx, cat.ID, true)
			if err != nil {
				return nil, nil, err
			}
			if count >= int64(req.MinPosts) {
				selected = append(selected, cat)
			}
		}
	} else {
		selected = all
	}

	groups := map[uint]string{}
	if req.UserID == nil || req.Level != 0 || req.ParentID != nil {
		return selected, groups, nil
	}

	favoriteIDs, err := b.favorites.FavoriteCategoryIDs(ctx, *req.UserID, req.Level)
	if err != nil {
		return nil, nil, err
	}
	if len(favoriteIDs) == 0 {
		// No favorites at this level: identical to the unpersonalized graph.
		return selected, groups, nil
	}

	favoriteSet := make(map[uint]bool, len(favoriteIDs))
	for _, id := range favoriteIDs {
		favoriteSet[id] = true
	}

	// Categories sharing at least one post with any favorite are "connected".
	favoritePosts, err := b.posts.ListByCategorySet(ctx, favoriteIDs, 0)
	if err != nil {
		return nil, nil, err
	}
	connectedSet := map[uint]bool{}
	for i := range favoritePosts {
		for _, id := range favoritePosts[i].CategoryIDs() {
			if !favoriteSet[id] {
				connectedSet[id] = true
			}
		}
	}

	var personalized []domain.Category
	connected := 0
	for _, cat := range selected {
		switch {
		case favoriteSet[cat.ID]:
			groups[cat.ID] = "favorite"
			personalized = append(personalized, cat)
		case connectedSet[cat.ID] && connected < maxConnectedFavorites:
			groups[cat.ID] = "connected"
			personalized = append(personalized, cat)
			connected++
		}
	}
	return personalized, groups, nil
}

// sharedPostCounts counts, per unordered category pair, the posts belonging
// to both. O(posts x categories-per-post^2) over the selected scope.
func (b *HybridNetworkBuilder) sharedPostCounts(ctx context.Context, selectedIDs []uint, selectedSet map[uint]bool) (map[categoryPair]int, error) {
	posts, err := b.posts.ListByCategorySet(ctx, selectedIDs, 0)
	if err != nil {
		return nil, err
	}

	counts := map[categoryPair]int{}
	for i := range posts {
		var ids []uint
		for _, id := range posts[i].CategoryIDs() {
			if selectedSet[id] {
				ids = append(ids, id)
			}
		}
		for x := 0; x < len(ids); x++ {
			for y := x + 1; y < len(ids); y++ {
				counts[makePair(ids[x], ids[y])]++
			}
		}
	}
	return counts, nil
}

// aiSimilarities computes pairwise semantic-center similarity for the
// selected categories, keeping pairs at or above the threshold. Skipped
// entirely when the embedding backend is degraded.
func (b *HybridNetworkBuilder) aiSimilarities(ctx context.Context, selected []domain.Category, threshold float64) map[categoryPair]float64 {
	scores := map[categoryPair]float64{}
	if b.store.Degraded() {
		return scores
	}

	stored, err := b.aggregator.StoredCenters(ctx)
	if err != nil {
		logger.With(logger.Fields{
			logger.FieldComponent: "network",
		}).Warn(ctx, "failed to load stored centers: %v", err)
		stored = map[uint]domain.Vector{}
	}

	centers := make(map[uint]domain.Vector, len(selected))
	for _, cat := range selected {
		center := stored[cat.ID]
		if center == nil {
			var err error
			center, _, err = b.aggregator.SemanticCenter(ctx, cat.ID)
			if err != nil || center == nil {
				continue
			}
		}
		centers[cat.ID] = center
	}

	for i := 0; i < len(selected); i++ {
		for j := i + 1; j < len(selected); j++ {
			a, ok := centers[selected[i].ID]
			if !ok {
				continue
			}
			c, ok := centers[selected[j].ID]
			if !ok {
				continue
			}
			score := Cosine(a, c)
			if score >= threshold {
				scores[makePair(selected[i].ID, selected[j].ID)] = score
			}
		}
	}
	return scores
}

// blendEdges merges the two edge sets into hybrid edges, normalizing shared
// counts by the maximum observed count and applying the fixed floor.
func (b *HybridNetworkBuilder) blendEdges(graph *NetworkGraph, sharedCounts map[categoryPair]int, aiScores map[categoryPair]float64, req NetworkRequest) {
	maxShared := 0
	for _, count := range sharedCounts {
		if count > maxShared {
			maxShared = count
		}
	}

	pairs := map[categoryPair]bool{}
	for pair := range sharedCounts {
		pairs[pair] = true
	}
	for pair := range aiScores {
		pairs[pair] = true
	}

	ordered := make([]categoryPair, 0, len(pairs))
	for pair := range pairs {
		ordered = append(ordered, pair)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].a != ordered[j].a {
			return ordered[i].a < ordered[j].a
		}
		return ordered[i].b < ordered[j].b
	})

	for _, pair := range ordered {
		shared := sharedCounts[pair]
		var sharedNorm float64
		if maxShared > 0 {
			sharedNorm = float64(shared) / float64(maxShared)
		}
		ai := aiScores[pair]

		strength := sharedNorm*req.SharedWeight + ai*req.AIWeight
		if strength <= hybridEdgeFloor {
			continue
		}

		graph.Edges = append(graph.Edges, NetworkEdge{
			Source:       categoryNodeID(pair.a),
			Target:       categoryNodeID(pair.b),
			Kind:         "hybrid",
			SharedPosts:  shared,
			AISimilarity: ai,
			Strength:     strength,
		})
		if strength > graph.Stats.StrongestConnection {
			graph.Stats.StrongestConnection = strength
		}
	}
}

// addPostNodes attaches post nodes with membership edges to their selected
// categories and top-k post-post similarity edges, deduplicated and capped.
func (b *HybridNetworkBuilder) addPostNodes(ctx context.Context, graph *NetworkGraph, req NetworkRequest, selectedSet map[uint]bool) error {
	maxPosts := req.MaxPosts
	if maxPosts <= 0 {
		maxPosts = defaultNetworkMaxPosts
	}
	maxConnections := req.MaxPostConnections
	if maxConnections <= 0 {
		maxConnections = defaultMaxPostConnections
	}

	posts, err := b.selectPosts(ctx, req, selectedSet, maxPosts)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		return nil
	}

	included := make(map[uint]bool, len(posts))
	for i := range posts {
		post := &posts[i]
		included[post.ID] = true
		graph.Nodes = append(graph.Nodes, NetworkNode{
			ID:    postNodeID(post.ID),
			Type:  "post",
			RefID: post.ID,
			Label: post.Title,
		})

		if post.PrimaryCategoryID != nil && selectedSet[*post.PrimaryCategoryID] {
			graph.Edges = append(graph.Edges, NetworkEdge{
				Source:   postNodeID(post.ID),
				Target:   categoryNodeID(*post.PrimaryCategoryID),
				Kind:     "membership",
				Strength: 1.0,
				Dashed:   true,
				Primary:  true,
			})
		}
		for _, cat := range post.AdditionalCategories {
			if selectedSet[cat.ID] {
				graph.Edges = append(graph.Edges, NetworkEdge{
					Source:   postNodeID(post.ID),
					Target:   categoryNodeID(cat.ID),
					Kind:     "membership",
					Strength: 0.5,
					Dashed:   true,
				})
			}
		}
	}
	graph.Stats.PostCount = len(posts)

	// Post-post similarity edges: top-k per post, deduplicated, global cap.
	seen := map[categoryPair]bool{}
	totalConnections := 0
	for i := range posts {
		if totalConnections >= maxConnections {
			break
		}
		similar, err := b.similarity.SimilarPosts(ctx, posts[i].ID, postEdgeSimilarityMinScore, postSimilarEdgesPerPost)
		if err != nil {
			continue
		}
		for _, s := range similar {
			if totalConnections >= maxConnections {
				break
			}
			if !included[s.PostID] {
				continue
			}
			pair := makePair(posts[i].ID, s.PostID)
			if seen[pair] {
				continue
			}
			seen[pair] = true
			graph.Edges = append(graph.Edges, NetworkEdge{
				Source:       postNodeID(pair.a),
				Target:       postNodeID(pair.b),
				Kind:         "similarity",
				AISimilarity: s.Score,
				Strength:     s.Score,
				Color:        similarityColor(s.Score),
			})
			totalConnections++
		}
	}
	return nil
}

// selectPosts chooses the post set: focus-post-plus-similar, category scope,
// or most recent, in that order of preference.
func (b *HybridNetworkBuilder) selectPosts(ctx context.Context, req NetworkRequest, selectedSet map[uint]bool, maxPosts int) ([]domain.Post, error) {
	if req.FocusPostID != nil {
		focus, err := b.posts.GetByID(ctx, *req.FocusPostID)
		if err != nil {
			return nil, err
		}
		posts := []domain.Post{*focus}
		similar, err := b.similarity.SimilarPosts(ctx, focus.ID, postEdgeSimilarityMinScore, maxPosts-1)
		if err != nil {
			return posts, nil
		}
		for _, s := range similar {
			p, err := b.posts.GetByID(ctx, s.PostID)
			if err != nil {
				continue
			}
			posts = append(posts, *p)
		}
		return posts, nil
	}

	if len(selectedSet) > 0 {
		ids := make([]uint, 0, len(selectedSet))
		for id := range selectedSet {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		posts, err := b.posts.ListByCategorySet(ctx, ids, maxPosts)
		if err != nil {
			return nil, err
		}
		if len(posts) > 0 {
			return posts, nil
		}
	}

	return b.posts.ListRecent(ctx, maxPosts)
}

func similarityColor(score float64) string {
	switch {
	case score > 0.9:
		return "strong"
	case score > 0.8:
		return "medium"
	default:
		return "default"
	}
}

func categoryNodeID(id uint) string {
	return fmt.Sprintf("category_%d", id)
}

func postNodeID(id uint) string {
	return fmt.Sprintf("post_%d", id)
}
