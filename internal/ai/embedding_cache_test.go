package ai

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"cognichat/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	*HashEmbedder
	calls atomic.Int32
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) (models.EmbeddingVector, error) {
	c.calls.Add(1)
	return c.HashEmbedder.Embed(ctx, text)
}

func TestCachedEmbedderReusesQueryVectors(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(32)}
	emb := NewCachedEmbedder(inner, rdb, time.Minute)
	ctx := context.Background()

	first, err := emb.Embed(ctx, "how do I trace a chain?")
	require.NoError(t, err)
	second, err := emb.Embed(ctx, "how do I trace a chain?")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, inner.Model(), emb.Model())

	mr.FastForward(2 * time.Minute)
	_, err = emb.Embed(ctx, "how do I trace a chain?")
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCachedEmbedderFallsThroughWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(32)}
	emb := NewCachedEmbedder(inner, rdb, time.Minute)

	vec, err := emb.Embed(context.Background(), "question")
	require.NoError(t, err)
	assert.Len(t, vec, 32)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedEmbedderDisabled(t *testing.T) {
	inner := NewHashEmbedder(16)
	assert.Same(t, inner, NewCachedEmbedder(inner, nil, time.Minute))
}
