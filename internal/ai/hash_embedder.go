package ai

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"cognichat/models"
)

var wordRe = regexp.MustCompile(`\p{L}+|\p{N}+`)

// HashEmbedder is an offline embedder based on feature hashing of word
// unigrams and bigrams. It needs no network and gives the same vector for
// the same text on every run.
type HashEmbedder struct {
	dims int
}

func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 384
	}
	return &HashEmbedder{dims: dims}
}

func (h *HashEmbedder) Model() string { return fmt.Sprintf("local-hash-%d", h.dims) }

func (h *HashEmbedder) Embed(ctx context.Context, text string) (models.EmbeddingVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.vector(text), nil
}

func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]models.EmbeddingVector, error) {
	out := make([]models.EmbeddingVector, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *HashEmbedder) vector(text string) models.EmbeddingVector {
	v := make([]float64, h.dims)
	tokens := wordRe.FindAllString(strings.ToLower(text), -1)
	for i, tok := range tokens {
		h.add(v, tok, 1)
		if i > 0 {
			h.add(v, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var sum float64
	for _, x := range v {
		sum += x * x
	}
	out := make(models.EmbeddingVector, h.dims)
	if sum == 0 {
		return out
	}
	n := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(x / n)
	}
	return out
}

// add hashes feature into a bucket; a second hash bit picks the sign so
// collisions tend to cancel rather than pile up.
func (h *HashEmbedder) add(v []float64, feature string, weight float64) {
	f := fnv.New64a()
	f.Write([]byte(feature))
	sum := f.Sum64()
	bucket := int(sum % uint64(h.dims))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	v[bucket] += weight
}
