package service

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"unicode"

	"github.com/topicsloop/topicsloop/internal/domain"
)

// FallbackEncoder produces deterministic local embeddings when no remote
// embedding backend is available. Tokens are hashed into a fixed number of
// term-frequency buckets and the result is L2-normalized, so identical texts
// always map to identical vectors and cosine similarity stays meaningful,
// if much coarser than a learned model.
//
// Texts that yield no tokens at all fall back to a small random vector with
// components in (0, 0.1), which keeps downstream math well-defined without
// implying similarity to anything.
type FallbackEncoder struct {
	dimensions int
}

// NewFallbackEncoder creates a fallback encoder with the given vector size.
func NewFallbackEncoder(dimensions int) *FallbackEncoder {
	if dimensions <= 0 {
		dimensions = defaultVectorDimension
	}
	return &FallbackEncoder{dimensions: dimensions}
}

const fallbackModelName = "local-hashing-tf"

const defaultVectorDimension = 384

// ModelName returns the fallback model identifier
func (e *FallbackEncoder) ModelName() string {
	return fallbackModelName
}

// Dimensions returns the vector size
func (e *FallbackEncoder) Dimensions() int {
	return e.dimensions
}

// Encode generates a hashed term-frequency embedding for a single text
func (e *FallbackEncoder) Encode(_ context.Context, text string) (domain.Vector, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return randomLowVector(e.dimensions), nil
	}

	vec := make(domain.Vector, e.dimensions)
	for _, tok := range tokens {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[int(h.Sum32())%e.dimensions]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

// EncodeBatch generates embeddings for multiple texts
func (e *FallbackEncoder) EncodeBatch(ctx context.Context, texts []string) ([]domain.Vector, error) {
	embeddings := make([]domain.Vector, len(texts))
	for i, text := range texts {
		vec, err := e.Encode(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

// tokenize lowercases and splits on non-letter, non-digit runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func randomLowVector(dimensions int) domain.Vector {
	vec := make(domain.Vector, dimensions)
	for i := range vec {
		vec[i] = float32(rand.Float64() * 0.1)
	}
	return vec
}
