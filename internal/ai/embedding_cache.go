package ai

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"cognichat/internal/logger"
	"cognichat/models"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// CachedEmbedder keeps query embeddings in Redis so a repeated question is
// embedded once per TTL. Document batches are never cached.
type CachedEmbedder struct {
	Embedder
	rdb *redis.Client
	ttl time.Duration
}

// NewCachedEmbedder wraps inner with a Redis cache. A nil client or a
// non-positive ttl returns inner unchanged.
func NewCachedEmbedder(inner Embedder, rdb *redis.Client, ttl time.Duration) Embedder {
	if rdb == nil || ttl <= 0 {
		return inner
	}
	return &CachedEmbedder{Embedder: inner, rdb: rdb, ttl: ttl}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	sum := blake2b.Sum256([]byte(text))
	return fmt.Sprintf("embedding:%s:%s", c.Model(), hex.EncodeToString(sum[:16]))
}

// Embed returns the cached vector for text when present. Cache failures fall
// through to the wrapped embedder.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (models.EmbeddingVector, error) {
	key := c.cacheKey(text)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var vec models.EmbeddingVector
		if jsonErr := json.Unmarshal(raw, &vec); jsonErr == nil {
			logger.Debug("query embedding cache hit", "key", key)
			return vec, nil
		}
		logger.Warn("dropping corrupt cached embedding", "key", key)
	case !errors.Is(err, redis.Nil):
		logger.Warn("embedding cache read failed", "error", err)
	}

	vec, err := c.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(vec); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			logger.Warn("embedding cache write failed", "error", err)
		}
	}
	return vec, nil
}

// Close closes the wrapped embedder when it holds resources.
func (c *CachedEmbedder) Close() error {
	if closer, ok := c.Embedder.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
