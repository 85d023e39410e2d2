package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultCacheTTL is how long a cached vector stays valid.
const DefaultCacheTTL = 30 * time.Minute

// CachedEmbedder remembers the vectors of recently embedded texts, so
// repeated queries and unchanged chunks are not sent to the provider again.
type CachedEmbedder struct {
	Embedder
	cache *cache.Cache
}

// NewCached wraps e with an in-memory cache. A non-positive ttl uses
// DefaultCacheTTL.
func NewCached(e Embedder, ttl time.Duration) *CachedEmbedder {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedEmbedder{
		Embedder: e,
		cache:    cache.New(ttl, 2*ttl),
	}
}

// Embed returns cached vectors where available and embeds the rest in one
// call to the wrapped embedder.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if v, ok := c.cache.Get(c.key(text)); ok {
			out[i] = v.([]float32)
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fresh, err := c.Embedder.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, vec := range fresh {
		if j >= len(missingIdx) {
			break
		}
		out[missingIdx[j]] = vec
		c.cache.SetDefault(c.key(missing[j]), vec)
	}
	return out, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.Name() + ":" + hex.EncodeToString(sum[:])
}
