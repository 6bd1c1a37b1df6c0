package service

import (
	"math"
	"sort"

	"github.com/topicsloop/topicsloop/internal/domain"
)

// Vector similarity primitives. Numeric edge cases are absorbed locally:
// mismatched or zero-norm inputs yield 0.0, never an error.

// Cosine computes cosine similarity between two vectors. Returns 0.0 when
// either vector has zero norm or the dimensions differ.
func Cosine(a, b domain.Vector) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Euclidean computes a distance-derived similarity 1/(1+d), mapping distance
// 0 to 1.0 and decaying toward 0 as vectors diverge.
func Euclidean(a, b domain.Vector) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0.0
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return 1.0 / (1.0 + math.Sqrt(sum))
}

// Dot computes the raw dot product. Unbounded; used for internal ranking
// only, never reported as a score.
func Dot(a, b domain.Vector) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// Similarity dispatches on algorithm. Unknown algorithms score as cosine.
func Similarity(a, b domain.Vector, algorithm domain.SimilarityAlgorithm) float64 {
	switch algorithm {
	case domain.AlgorithmEuclidean:
		return Euclidean(a, b)
	default:
		return Cosine(a, b)
	}
}

// Scored pairs a candidate index with its similarity score.
type Scored struct {
	Index int
	Score float64
}

// FindTopK scores every candidate against the target with cosine similarity,
// keeps scores >= threshold, and returns up to k results sorted descending.
// Ties preserve candidate input order, so results are deterministic.
// Parameters:
//   - target: the query vector.
//   - candidates: the candidate pool; entries with mismatched dimensions
//     score 0.0 and are filtered by any positive threshold.
//   - k: maximum number of results; 0 or negative means no limit.
//   - threshold: minimum score (inclusive).
// Returns:
//   - []Scored: matching candidates, best first, input order on ties.
func FindTopK(target domain.Vector, candidates []domain.Vector, k int, threshold float64) []Scored {
	results := make([]Scored, 0, len(candidates))
	for i, c := range candidates {
		score := Cosine(target, c)
		if score >= threshold {
			results = append(results, Scored{Index: i, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

// MeanVector computes the arithmetic mean of a set of same-dimension
// vectors. Returns nil for an empty set or mixed dimensions.
func MeanVector(vectors []domain.Vector) domain.Vector {
	if len(vectors) == 0 {
		return nil
	}

	dim := len(vectors[0])
	sum := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil
		}
		for i := range v {
			sum[i] += float64(v[i])
		}
	}

	mean := make(domain.Vector, dim)
	for i := range sum {
		mean[i] = float32(sum[i] / float64(len(vectors)))
	}
	return mean
}
