package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/topicsloop/topicsloop/internal/domain"
)

// countingEncoder wraps the fallback encoder and records batch calls.
type countingEncoder struct {
	inner   *FallbackEncoder
	batches int
	sizes   []int
	fail    bool
}

func (c *countingEncoder) ModelName() string { return "counting-test" }
func (c *countingEncoder) Dimensions() int   { return c.inner.Dimensions() }

func (c *countingEncoder) Encode(ctx context.Context, text string) (domain.Vector, error) {
	if c.fail {
		return nil, errors.New("encoder unavailable")
	}
	return c.inner.Encode(ctx, text)
}

func (c *countingEncoder) EncodeBatch(ctx context.Context, texts []string) ([]domain.Vector, error) {
	c.batches++
	c.sizes = append(c.sizes, len(texts))
	if c.fail {
		return nil, errors.New("encoder unavailable")
	}
	return c.inner.EncodeBatch(ctx, texts)
}

func TestEmbeddingStoreCaching(t *testing.T) {
	enc := &countingEncoder{inner: NewFallbackEncoder(8)}
	store := NewEmbeddingStore(enc, NewFallbackEncoder(8), EmbeddingStoreConfig{
		CacheSize: 16,
		CacheTTL:  time.Minute,
	})
	ctx := context.Background()

	first := store.EncodeOne(ctx, "cached text")
	second := store.EncodeOne(ctx, "cached text")

	if enc.batches != 1 {
		t.Errorf("encoder called %d times, want 1 (second call cached)", enc.batches)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cached vector differs at component %d", i)
		}
	}
}

func TestEmbeddingStoreEmptyText(t *testing.T) {
	store := NewEmbeddingStore(nil, NewFallbackEncoder(8), EmbeddingStoreConfig{})

	vec := store.EncodeOne(context.Background(), "")
	if len(vec) != 8 {
		t.Fatalf("got dimension %d, want 8", len(vec))
	}

	// Empty input maps to a fixed stand-in phrase.
	standIn := store.EncodeOne(context.Background(), emptyTextStandIn)
	for i := range vec {
		if vec[i] != standIn[i] {
			t.Fatalf("empty text vector differs from stand-in at component %d", i)
		}
	}
}

func TestEmbeddingStoreDegradesOnPrimaryFailure(t *testing.T) {
	enc := &countingEncoder{inner: NewFallbackEncoder(8), fail: true}
	store := NewEmbeddingStore(enc, NewFallbackEncoder(8), EmbeddingStoreConfig{})
	ctx := context.Background()

	if store.Degraded() {
		t.Fatal("store degraded before any encode")
	}

	vec := store.EncodeOne(ctx, "some text")
	if len(vec) != 8 {
		t.Fatalf("got dimension %d, want 8", len(vec))
	}
	if !store.Degraded() {
		t.Error("store not degraded after primary failure")
	}

	// Subsequent encodes stay on the fallback without retrying the primary.
	calls := enc.batches
	store.EncodeOne(ctx, "more text")
	if enc.batches != calls {
		t.Errorf("primary retried after degradation: %d calls, want %d", enc.batches, calls)
	}
}

func TestEmbeddingStoreNilPrimaryStartsDegraded(t *testing.T) {
	store := NewEmbeddingStore(nil, NewFallbackEncoder(8), EmbeddingStoreConfig{})
	if !store.Degraded() {
		t.Error("store with nil primary should start degraded")
	}
	if store.ModelName() != fallbackModelName {
		t.Errorf("ModelName = %q, want %q", store.ModelName(), fallbackModelName)
	}
}

func TestEmbeddingStoreBatchSize(t *testing.T) {
	enc := &countingEncoder{inner: NewFallbackEncoder(8)}
	store := NewEmbeddingStore(enc, NewFallbackEncoder(8), EmbeddingStoreConfig{BatchSize: 2})
	ctx := context.Background()

	store.Encode(ctx, []string{"a", "b", "c", "d", "e"})

	if enc.batches != 3 {
		t.Fatalf("got %d batches, want 3", enc.batches)
	}
	want := []int{2, 2, 1}
	for i, size := range enc.sizes {
		if size != want[i] {
			t.Errorf("batch %d had %d texts, want %d", i, size, want[i])
		}
	}
}

func TestEmbeddingStoreBatchOrder(t *testing.T) {
	store := NewEmbeddingStore(nil, NewFallbackEncoder(8), EmbeddingStoreConfig{})
	ctx := context.Background()

	texts := []string{"alpha", "beta", "gamma"}
	batch := store.Encode(ctx, texts)
	if len(batch) != 3 {
		t.Fatalf("got %d vectors, want 3", len(batch))
	}

	for i, text := range texts {
		single := store.EncodeOne(ctx, text)
		for j := range single {
			if batch[i][j] != single[j] {
				t.Fatalf("batch result for %q differs from single encode", text)
			}
		}
	}
}
