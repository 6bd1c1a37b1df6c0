package service

import (
	"context"
	"math"
	"testing"

	"github.com/topicsloop/topicsloop/internal/domain"
)

// networkFixture builds three root categories with two signal sources:
// categories 1 and 2 share four posts, and categories 2 and 3 have stored
// semantic centers with cosine similarity 0.9. Category 1 has no center.
func networkFixture() (*HybridNetworkBuilder, *memUsers) {
	categories := newMemCategories(
		&domain.Category{ID: 1, Name: "Science", Level: 0},
		&domain.Category{ID: 2, Name: "Math", Level: 0},
		&domain.Category{ID: 3, Name: "Philosophy", Level: 0},
	)

	posts := newMemPosts(
		&domain.Post{ID: 101, Title: "shared one", AuthorID: 1, PrimaryCategoryID: uintPtr(1), AdditionalCategories: []domain.Category{{ID: 2}}},
		&domain.Post{ID: 102, Title: "shared two", AuthorID: 2, PrimaryCategoryID: uintPtr(1), AdditionalCategories: []domain.Category{{ID: 2}}},
		&domain.Post{ID: 103, Title: "shared three", AuthorID: 3, PrimaryCategoryID: uintPtr(1), AdditionalCategories: []domain.Category{{ID: 2}}},
		&domain.Post{ID: 104, Title: "shared four", AuthorID: 4, PrimaryCategoryID: uintPtr(1), AdditionalCategories: []domain.Category{{ID: 2}}},
	)

	users := newMemUsers(&domain.UserProfile{ID: 7, Username: "viewer"})

	records := newMemRecords()
	records.categoryEmbeddings[2] = &domain.CategoryEmbedding{
		CategoryID: 2, ModelName: fallbackModelName,
		Embedding: domain.Vector{1, 0}, PostCount: 4,
	}
	records.categoryEmbeddings[3] = &domain.CategoryEmbedding{
		CategoryID: 3, ModelName: fallbackModelName,
		Embedding: domain.Vector{0.9, float32(math.Sqrt(1 - 0.81))}, PostCount: 2,
	}

	// Non-nil primary keeps the store out of degraded mode so AI edges run.
	store := NewEmbeddingStore(NewFallbackEncoder(4), NewFallbackEncoder(4), EmbeddingStoreConfig{})

	counter := &aggFakeCounter{counts: map[uint]int64{1: 4, 2: 4, 3: 1}}
	aggregator := NewCategoryAggregator(categories, counter, records, store)
	embedder := NewEntityEmbedder(store, posts, categories, users, records, nil)
	similarity := NewPostSimilarityService(posts, embedder, records, newMemSimilarities(), nil, PostSimilarityConfig{})

	return NewHybridNetworkBuilder(categories, posts, users, aggregator, similarity, store), users
}

func baseRequest() NetworkRequest {
	return NetworkRequest{
		Level:               0,
		SharedWeight:        0.5,
		AIWeight:            0.5,
		SimilarityThreshold: 0.5,
	}
}

func findEdge(edges []NetworkEdge, source, target string) *NetworkEdge {
	for i := range edges {
		if edges[i].Source == source && edges[i].Target == target {
			return &edges[i]
		}
	}
	return nil
}

func TestNetworkBuildHybridEdges(t *testing.T) {
	builder, _ := networkFixture()

	graph, err := builder.Build(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	if graph.Stats.CategoryCount != 3 {
		t.Errorf("got %d category nodes, want 3", graph.Stats.CategoryCount)
	}
	if !graph.Stats.AIEnabled {
		t.Error("AI should be enabled with a working encoder")
	}
	if len(graph.Edges) != 2 {
		t.Fatalf("got %d edges, want 2: %+v", len(graph.Edges), graph.Edges)
	}

	// Categories 1 and 2 connect through shared posts only: 4/4 normalized
	// to 1.0 times the 0.5 shared weight.
	shared := findEdge(graph.Edges, "category_1", "category_2")
	if shared == nil {
		t.Fatal("missing edge between categories 1 and 2")
	}
	if shared.SharedPosts != 4 {
		t.Errorf("got %d shared posts, want 4", shared.SharedPosts)
	}
	if !almostEqual(shared.Strength, 0.5) {
		t.Errorf("got strength %f, want 0.5", shared.Strength)
	}

	// Categories 2 and 3 connect through center similarity only: 0.9 times
	// the 0.5 AI weight.
	ai := findEdge(graph.Edges, "category_2", "category_3")
	if ai == nil {
		t.Fatal("missing edge between categories 2 and 3")
	}
	if math.Abs(ai.AISimilarity-0.9) > 1e-3 {
		t.Errorf("got AI similarity %f, want 0.9", ai.AISimilarity)
	}
	if math.Abs(ai.Strength-0.45) > 1e-3 {
		t.Errorf("got strength %f, want 0.45", ai.Strength)
	}

	// Categories 1 and 3 share nothing.
	if e := findEdge(graph.Edges, "category_1", "category_3"); e != nil {
		t.Errorf("unexpected edge between categories 1 and 3: %+v", e)
	}

	if !almostEqual(graph.Stats.StrongestConnection, 0.5) {
		t.Errorf("got strongest connection %f, want 0.5", graph.Stats.StrongestConnection)
	}
}

func TestNetworkBuildWeightExtremes(t *testing.T) {
	testCases := []struct {
		name         string
		sharedWeight float64
		aiWeight     float64
		wantSource   string
		wantTarget   string
	}{
		{name: "shared only", sharedWeight: 1.0, aiWeight: 0.0, wantSource: "category_1", wantTarget: "category_2"},
		{name: "ai only", sharedWeight: 0.0, aiWeight: 1.0, wantSource: "category_2", wantTarget: "category_3"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			builder, _ := networkFixture()
			req := baseRequest()
			req.SharedWeight = tc.sharedWeight
			req.AIWeight = tc.aiWeight

			graph, err := builder.Build(context.Background(), req)
			if err != nil {
				t.Fatalf("Build returned error: %v", err)
			}
			if len(graph.Edges) != 1 {
				t.Fatalf("got %d edges, want 1: %+v", len(graph.Edges), graph.Edges)
			}
			e := graph.Edges[0]
			if e.Source != tc.wantSource || e.Target != tc.wantTarget {
				t.Errorf("got edge %s-%s, want %s-%s", e.Source, e.Target, tc.wantSource, tc.wantTarget)
			}
		})
	}
}

func TestNetworkEdgeFloorPrunes(t *testing.T) {
	builder, _ := networkFixture()
	req := baseRequest()
	req.SharedWeight = 0.1
	req.AIWeight = 0.0

	graph, err := builder.Build(context.Background(), req)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	// The strongest shared edge lands exactly on the floor and is dropped.
	if len(graph.Edges) != 0 {
		t.Errorf("got %d edges, want 0: %+v", len(graph.Edges), graph.Edges)
	}
}

func TestNetworkTooFewCategories(t *testing.T) {
	builder, _ := networkFixture()
	req := baseRequest()
	req.Level = 5 // no categories exist at this level

	graph, err := builder.Build(context.Background(), req)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(graph.Nodes) != 0 || len(graph.Edges) != 0 {
		t.Errorf("got %d nodes and %d edges, want empty graph", len(graph.Nodes), len(graph.Edges))
	}
	if graph.Stats.Message == "" {
		t.Error("empty graph should carry an explanatory message")
	}
}

func TestNetworkPersonalizationWithoutFavorites(t *testing.T) {
	builder, _ := networkFixture()
	req := baseRequest()
	req.UserID = uintPtr(7) // user exists but has no favorites

	graph, err := builder.Build(context.Background(), req)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if graph.Stats.CategoryCount != 3 {
		t.Errorf("got %d categories, want 3 (same as unpersonalized)", graph.Stats.CategoryCount)
	}
	for _, n := range graph.Nodes {
		if n.Group != "" {
			t.Errorf("node %s carries group %q without favorites", n.ID, n.Group)
		}
	}
}

func TestNetworkPersonalizationWithFavorites(t *testing.T) {
	builder, users := networkFixture()
	users.favorites[7] = []uint{1}

	req := baseRequest()
	req.UserID = uintPtr(7)

	graph, err := builder.Build(context.Background(), req)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	// Category 1 is the favorite; category 2 shares posts with it and is
	// connected; category 3 is unrelated and dropped.
	if graph.Stats.CategoryCount != 2 {
		t.Fatalf("got %d categories, want 2", graph.Stats.CategoryCount)
	}
	groups := map[uint]string{}
	for _, n := range graph.Nodes {
		groups[n.RefID] = n.Group
	}
	if groups[1] != "favorite" {
		t.Errorf("category 1 group = %q, want %q", groups[1], "favorite")
	}
	if groups[2] != "connected" {
		t.Errorf("category 2 group = %q, want %q", groups[2], "connected")
	}
	if _, present := groups[3]; present {
		t.Error("unrelated category 3 included in personalized graph")
	}
}

func TestNetworkIncludePosts(t *testing.T) {
	builder, _ := networkFixture()
	req := baseRequest()
	req.IncludePosts = true

	graph, err := builder.Build(context.Background(), req)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if graph.Stats.PostCount != 4 {
		t.Errorf("got %d post nodes, want 4", graph.Stats.PostCount)
	}

	primary := findEdge(graph.Edges, "post_101", "category_1")
	if primary == nil {
		t.Fatal("missing primary membership edge for post 101")
	}
	if !primary.Dashed || !primary.Primary || !almostEqual(primary.Strength, 1.0) {
		t.Errorf("primary membership edge malformed: %+v", primary)
	}

	additional := findEdge(graph.Edges, "post_101", "category_2")
	if additional == nil {
		t.Fatal("missing additional membership edge for post 101")
	}
	if !additional.Dashed || additional.Primary || !almostEqual(additional.Strength, 0.5) {
		t.Errorf("additional membership edge malformed: %+v", additional)
	}
}

func TestSimilarityColor(t *testing.T) {
	testCases := []struct {
		name  string
		score float64
		want  string
	}{
		{name: "strong", score: 0.95, want: "strong"},
		{name: "medium", score: 0.85, want: "medium"},
		{name: "default band", score: 0.7, want: "default"},
		{name: "boundary stays medium", score: 0.9, want: "medium"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := similarityColor(tc.score); got != tc.want {
				t.Errorf("similarityColor(%f) = %q, want %q", tc.score, got, tc.want)
			}
		})
	}
}

func TestMakePair(t *testing.T) {
	p := makePair(9, 4)
	if p.a != 4 || p.b != 9 {
		t.Errorf("makePair(9, 4) = {%d, %d}, want {4, 9}", p.a, p.b)
	}
}
