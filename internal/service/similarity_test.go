package service

import (
	"math"
	"testing"

	"github.com/topicsloop/topicsloop/internal/domain"
)

const epsilon = 1e-6

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestCosineSymmetry(t *testing.T) {
	testCases := []struct {
		name string
		a    domain.Vector
		b    domain.Vector
	}{
		{name: "unit vectors", a: domain.Vector{1, 0, 0}, b: domain.Vector{0, 1, 0}},
		{name: "arbitrary vectors", a: domain.Vector{0.3, 0.7, 0.2}, b: domain.Vector{0.9, 0.1, 0.5}},
		{name: "negative components", a: domain.Vector{-1, 2, -3}, b: domain.Vector{4, -5, 6}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ab := Cosine(tc.a, tc.b)
			ba := Cosine(tc.b, tc.a)
			if !almostEqual(ab, ba) {
				t.Errorf("Cosine not symmetric: sim(a,b)=%f, sim(b,a)=%f", ab, ba)
			}
		})
	}
}

func TestCosineSelfSimilarity(t *testing.T) {
	v := domain.Vector{0.2, 0.5, 0.8}
	if got := Cosine(v, v); !almostEqual(got, 1.0) {
		t.Errorf("Cosine(v,v) = %f, want 1.0", got)
	}
}

func TestCosineZeroVector(t *testing.T) {
	testCases := []struct {
		name string
		a    domain.Vector
		b    domain.Vector
	}{
		{name: "first zero", a: domain.Vector{0, 0, 0}, b: domain.Vector{1, 2, 3}},
		{name: "second zero", a: domain.Vector{1, 2, 3}, b: domain.Vector{0, 0, 0}},
		{name: "both zero", a: domain.Vector{0, 0, 0}, b: domain.Vector{0, 0, 0}},
		{name: "empty vectors", a: domain.Vector{}, b: domain.Vector{}},
		{name: "dimension mismatch", a: domain.Vector{1, 2}, b: domain.Vector{1, 2, 3}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Cosine(tc.a, tc.b); got != 0.0 {
				t.Errorf("Cosine = %f, want 0.0", got)
			}
		})
	}
}

func TestEuclidean(t *testing.T) {
	v := domain.Vector{1, 2, 3}
	if got := Euclidean(v, v); !almostEqual(got, 1.0) {
		t.Errorf("Euclidean(v,v) = %f, want 1.0", got)
	}

	// Distance 1 maps to 1/(1+1) = 0.5.
	a := domain.Vector{0, 0}
	b := domain.Vector{1, 0}
	if got := Euclidean(a, b); !almostEqual(got, 0.5) {
		t.Errorf("Euclidean = %f, want 0.5", got)
	}
}

func TestDot(t *testing.T) {
	a := domain.Vector{1, 2, 3}
	b := domain.Vector{4, 5, 6}
	if got := Dot(a, b); !almostEqual(got, 32.0) {
		t.Errorf("Dot = %f, want 32.0", got)
	}
}

func TestFindTopK(t *testing.T) {
	target := domain.Vector{1, 0}
	candidates := []domain.Vector{
		{0, 1},       // score 0.0
		{1, 0},       // score 1.0
		{1, 1},       // score ~0.707
		{0.5, 0},     // score 1.0 (tie with index 1)
		{-1, 0},      // score -1.0
		{0.9, 0.436}, // score ~0.9
	}

	results := FindTopK(target, candidates, 3, 0.5)

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted descending at %d: %f > %f", i, results[i].Score, results[i-1].Score)
		}
	}
	for _, r := range results {
		if r.Score < 0.5 {
			t.Errorf("result below threshold: %f", r.Score)
		}
	}

	// Tied scores keep candidate input order.
	if results[0].Index != 1 || results[1].Index != 3 {
		t.Errorf("tie-break not stable: got indexes %d, %d, want 1, 3", results[0].Index, results[1].Index)
	}
}

func TestFindTopKEmptyPool(t *testing.T) {
	results := FindTopK(domain.Vector{1, 0}, nil, 5, 0.0)
	if len(results) != 0 {
		t.Errorf("got %d results for empty pool, want 0", len(results))
	}
}

func TestFindTopKNoLimit(t *testing.T) {
	target := domain.Vector{1, 0}
	candidates := []domain.Vector{{1, 0}, {0.5, 0}, {2, 0}}
	results := FindTopK(target, candidates, 0, 0.0)
	if len(results) != 3 {
		t.Errorf("got %d results with k=0, want all 3", len(results))
	}
}

func TestMeanVector(t *testing.T) {
	testCases := []struct {
		name    string
		vectors []domain.Vector
		want    domain.Vector
	}{
		{
			name:    "two vectors",
			vectors: []domain.Vector{{1, 2}, {3, 4}},
			want:    domain.Vector{2, 3},
		},
		{
			name:    "single vector",
			vectors: []domain.Vector{{5, 5}},
			want:    domain.Vector{5, 5},
		},
		{
			name:    "empty set",
			vectors: nil,
			want:    nil,
		},
		{
			name:    "mixed dimensions",
			vectors: []domain.Vector{{1, 2}, {1, 2, 3}},
			want:    nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := MeanVector(tc.vectors)
			if tc.want == nil {
				if got != nil {
					t.Fatalf("got %v, want nil", got)
				}
				return
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got length %d, want %d", len(got), len(tc.want))
			}
			for i := range got {
				if !almostEqual(float64(got[i]), float64(tc.want[i])) {
					t.Errorf("component %d = %f, want %f", i, got[i], tc.want[i])
				}
			}
		})
	}
}
