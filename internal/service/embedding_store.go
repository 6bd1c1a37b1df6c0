package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/topicsloop/topicsloop/internal/domain"
	"github.com/topicsloop/topicsloop/internal/logger"
)

const (
	defaultEncodeBatchSize = 32
	emptyTextStandIn       = "empty content"
)

// EmbeddingStore wraps an Encoder with a content-hash-keyed TTL cache and
// batched encoding. When the primary encoder fails the store switches to the
// fallback encoder and stays degraded; callers always get vectors of the
// nominal dimension, never an error from Encode.
type EmbeddingStore struct {
	primary   Encoder
	fallback  Encoder
	cache     *expirable.LRU[string, domain.Vector]
	batchSize int
	degraded  atomic.Bool
}

// EmbeddingStoreConfig holds cache sizing and batching for the store.
type EmbeddingStoreConfig struct {
	CacheSize int
	CacheTTL  time.Duration
	BatchSize int
}

// NewEmbeddingStore creates a store over a primary encoder and a local
// fallback. primary may be nil, in which case the store starts degraded.
func NewEmbeddingStore(primary Encoder, fallback *FallbackEncoder, cfg EmbeddingStoreConfig) *EmbeddingStore {
	size := cfg.CacheSize
	if size <= 0 {
		size = 4096
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultEncodeBatchSize
	}

	s := &EmbeddingStore{
		primary:   primary,
		fallback:  fallback,
		cache:     expirable.NewLRU[string, domain.Vector](size, nil, ttl),
		batchSize: batchSize,
	}
	if primary == nil {
		s.degraded.Store(true)
		logger.Warn("no embedding provider configured, using local fallback encoder")
	}
	return s
}

// Fingerprint hashes content for staleness detection and cache keying.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ModelName returns the active encoder's model identifier.
func (s *EmbeddingStore) ModelName() string {
	return s.encoder().ModelName()
}

// Dimensions returns the active encoder's vector size.
func (s *EmbeddingStore) Dimensions() int {
	return s.encoder().Dimensions()
}

// Degraded reports whether the store is running on the fallback encoder.
func (s *EmbeddingStore) Degraded() bool {
	return s.degraded.Load()
}

func (s *EmbeddingStore) encoder() Encoder {
	if s.degraded.Load() || s.primary == nil {
		return s.fallback
	}
	return s.primary
}

// Encode embeds the given texts, serving from cache where possible and
// batch-encoding the rest. Empty texts map to a stand-in phrase so every
// input yields a usable vector. Output order matches input order.
func (s *EmbeddingStore) Encode(ctx context.Context, texts []string) []domain.Vector {
	results := make([]domain.Vector, len(texts))
	keys := make([]string, len(texts))

	var missing []int
	model := s.ModelName()
	for i, text := range texts {
		if text == "" {
			text = emptyTextStandIn
			texts[i] = text
		}
		keys[i] = Fingerprint(text) + ":" + model
		if vec, ok := s.cache.Get(keys[i]); ok {
			results[i] = vec
			continue
		}
		missing = append(missing, i)
	}

	for start := 0; start < len(missing); start += s.batchSize {
		end := start + s.batchSize
		if end > len(missing) {
			end = len(missing)
		}
		batchIdx := missing[start:end]

		batch := make([]string, len(batchIdx))
		for j, i := range batchIdx {
			batch[j] = texts[i]
		}

		vectors := s.encodeBatch(ctx, batch)
		for j, i := range batchIdx {
			results[i] = vectors[j]
			s.cache.Add(keys[i], vectors[j])
		}
	}

	return results
}

// EncodeOne embeds a single text.
func (s *EmbeddingStore) EncodeOne(ctx context.Context, text string) domain.Vector {
	return s.Encode(ctx, []string{text})[0]
}

// encodeBatch tries the primary encoder, degrades to the fallback on error,
// and hands out low-variance random vectors if even the fallback fails.
func (s *EmbeddingStore) encodeBatch(ctx context.Context, texts []string) []domain.Vector {
	enc := s.encoder()
	vectors, err := enc.EncodeBatch(ctx, texts)
	if err == nil && len(vectors) == len(texts) {
		return vectors
	}

	if enc == s.primary {
		logger.With(logger.Fields{
			logger.FieldComponent: "embedding_store",
			logger.FieldModel:     enc.ModelName(),
		}).Warn(ctx, "primary encoder failed, switching to fallback: %v", err)
		s.degraded.Store(true)

		vectors, err = s.fallback.EncodeBatch(ctx, texts)
		if err == nil && len(vectors) == len(texts) {
			return vectors
		}
	}

	logger.CtxError(ctx, "fallback encoder failed, emitting random vectors: %v", err)
	dims := s.fallback.Dimensions()
	vectors = make([]domain.Vector, len(texts))
	for i := range vectors {
		vectors[i] = randomLowVector(dims)
	}
	return vectors
}
