package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/topicsloop/topicsloop/internal/domain"
)

func seedSimilarity(t *testing.T, repo *SimilarityRepository, post1, post2 uint, score float64, algorithm domain.SimilarityAlgorithm) {
	t.Helper()
	err := repo.Upsert(context.Background(), &domain.PostSimilarity{
		Post1ID:   post1,
		Post2ID:   post2,
		Score:     score,
		Algorithm: algorithm,
		ModelName: "test-model",
	})
	if err != nil {
		t.Fatalf("Upsert(%d, %d) returned error: %v", post1, post2, err)
	}
}

func TestSimilarityUpsertCanonicalizesPair(t *testing.T) {
	repo := NewSimilarityRepository(newTestDB(t))
	ctx := context.Background()

	// Stored with the higher id first; the row is canonicalized on write.
	seedSimilarity(t, repo, 9, 4, 0.8, domain.AlgorithmSemantic)

	sim, err := repo.GetPair(ctx, 4, 9, domain.AlgorithmSemantic, "test-model")
	if err != nil {
		t.Fatalf("GetPair returned error: %v", err)
	}
	if sim.Post1ID != 4 || sim.Post2ID != 9 {
		t.Errorf("got pair (%d, %d), want (4, 9)", sim.Post1ID, sim.Post2ID)
	}

	// Either argument order resolves the same row.
	if _, err := repo.GetPair(ctx, 9, 4, domain.AlgorithmSemantic, "test-model"); err != nil {
		t.Errorf("GetPair with swapped ids returned error: %v", err)
	}

	// A second write for the same pair replaces the score.
	seedSimilarity(t, repo, 4, 9, 0.3, domain.AlgorithmSemantic)
	sim, err = repo.GetPair(ctx, 4, 9, domain.AlgorithmSemantic, "test-model")
	if err != nil {
		t.Fatalf("GetPair returned error: %v", err)
	}
	if sim.Score != 0.3 {
		t.Errorf("got score %f, want 0.3", sim.Score)
	}
}

func TestSimilarityGetPairMissing(t *testing.T) {
	repo := NewSimilarityRepository(newTestDB(t))

	_, err := repo.GetPair(context.Background(), 1, 2, domain.AlgorithmSemantic, "test-model")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetPair returned %v, want ErrNotFound", err)
	}
}

func TestSimilarityListForPost(t *testing.T) {
	repo := NewSimilarityRepository(newTestDB(t))
	ctx := context.Background()

	seedSimilarity(t, repo, 1, 2, 0.9, domain.AlgorithmSemantic)
	seedSimilarity(t, repo, 1, 3, 0.6, domain.AlgorithmSemantic)
	seedSimilarity(t, repo, 2, 3, 0.8, domain.AlgorithmSemantic)
	seedSimilarity(t, repo, 1, 4, 0.7, domain.AlgorithmFallbackBasic)

	sims, err := repo.ListForPost(ctx, 1, domain.AlgorithmSemantic, "test-model", 0, 0)
	if err != nil {
		t.Fatalf("ListForPost returned error: %v", err)
	}
	if len(sims) != 2 {
		t.Fatalf("got %d rows, want 2: %+v", len(sims), sims)
	}
	// Best first; the fallback-algorithm row is excluded.
	if sims[0].Score != 0.9 || sims[1].Score != 0.6 {
		t.Errorf("got scores (%f, %f), want (0.9, 0.6)", sims[0].Score, sims[1].Score)
	}

	sims, err = repo.ListForPost(ctx, 1, domain.AlgorithmSemantic, "test-model", 0.7, 0)
	if err != nil {
		t.Fatalf("ListForPost returned error: %v", err)
	}
	if len(sims) != 1 || sims[0].Score != 0.9 {
		t.Errorf("threshold 0.7: got %+v, want only the 0.9 row", sims)
	}

	sims, err = repo.ListForPost(ctx, 1, domain.AlgorithmSemantic, "test-model", 0, 1)
	if err != nil {
		t.Fatalf("ListForPost returned error: %v", err)
	}
	if len(sims) != 1 {
		t.Errorf("limit 1: got %d rows, want 1", len(sims))
	}
}

func TestSimilarityDeleteForPost(t *testing.T) {
	repo := NewSimilarityRepository(newTestDB(t))
	ctx := context.Background()

	seedSimilarity(t, repo, 1, 2, 0.9, domain.AlgorithmSemantic)
	seedSimilarity(t, repo, 2, 3, 0.8, domain.AlgorithmSemantic)
	seedSimilarity(t, repo, 3, 4, 0.7, domain.AlgorithmSemantic)

	if err := repo.DeleteForPost(ctx, 2); err != nil {
		t.Fatalf("DeleteForPost returned error: %v", err)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if count != 1 {
		t.Errorf("got %d remaining rows, want 1", count)
	}
}
