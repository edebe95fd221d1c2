package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/m-mizutani/goerr/v2"
)

// Cache stores vectors by key
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Put(ctx context.Context, key string, vector []float32) error
}

// CacheKey derives a cache key from the namespace (typically the model
// name) and the exact text.
func CacheKey(namespace, text string) string {
	sum := sha256.Sum256([]byte(text))
	return namespace + ":" + hex.EncodeToString(sum[:])
}

// MemoryCache is an LRU cache bounded by entry count
type MemoryCache struct {
	entries *lru.Cache[string, []float32]
}

// NewMemoryCache creates a MemoryCache holding at most size vectors.
// A non-positive size falls back to 1024.
func NewMemoryCache(size int) (*MemoryCache, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LRU cache", goerr.V("size", size))
	}
	return &MemoryCache{entries: c}, nil
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	vec, ok := c.entries.Get(key)
	return vec, ok, nil
}

func (c *MemoryCache) Put(ctx context.Context, key string, vector []float32) error {
	c.entries.Add(key, vector)
	return nil
}

// Len returns the number of cached vectors
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}

type cachedProvider struct {
	provider  Provider
	cache     Cache
	namespace string
}

// NewCachedProvider wraps provider so that texts already in cache are not
// sent to it again. Only misses are embedded, in a single call.
func NewCachedProvider(provider Provider, cache Cache, namespace string) Provider {
	return &cachedProvider{
		provider:  provider,
		cache:     cache,
		namespace: namespace,
	}
}

func (p *cachedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	var (
		missTexts   []string
		missIndexes []int
	)
	for i, text := range texts {
		vec, ok, err := p.cache.Get(ctx, CacheKey(p.namespace, text))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get embedding from cache")
		}
		if ok {
			vectors[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIndexes = append(missIndexes, i)
	}

	if len(missTexts) == 0 {
		return vectors, nil
	}

	embedded, err := p.provider.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(missTexts) {
		return nil, goerr.New("embedding count mismatch",
			goerr.V("expected", len(missTexts)),
			goerr.V("actual", len(embedded)))
	}

	for j, vec := range embedded {
		vectors[missIndexes[j]] = vec
		if err := p.cache.Put(ctx, CacheKey(p.namespace, missTexts[j]), vec); err != nil {
			return nil, goerr.Wrap(err, "failed to put embedding to cache")
		}
	}

	return vectors, nil
}
