// Package vectorindex is an immutable, in-memory nearest-neighbour index
// over chunk embeddings.
//
// Similarity is cosine similarity computed in float64. A zero-norm vector
// scores 0 against everything. Results are ordered by descending score and
// ties keep insertion order, so identical inputs always yield identical output.
package vectorindex

import (
	"fmt"
	"math"
	"sort"

	"cognichat/models"
)

// Pair is one (vector, chunk) entry handed to Build.
type Pair struct {
	Vector models.EmbeddingVector
	Chunk  models.Chunk
}

// Index is read-only after Build and safe for concurrent queries.
type Index struct {
	dimension int
	vectors   [][]float64
	norms     []float64
	chunks    []models.Chunk
}

// Build creates an index from pairs. It fails with models.ErrEmptyCorpus on
// zero pairs and rejects vectors whose dimension differs from the first.
func Build(pairs []Pair) (*Index, error) {
	if len(pairs) == 0 {
		return nil, models.ErrEmptyCorpus
	}

	dimension := len(pairs[0].Vector)
	if dimension == 0 {
		return nil, fmt.Errorf("chunk %s has an empty embedding", pairs[0].Chunk.ID)
	}

	idx := &Index{
		dimension: dimension,
		vectors:   make([][]float64, len(pairs)),
		norms:     make([]float64, len(pairs)),
		chunks:    make([]models.Chunk, len(pairs)),
	}
	for i, p := range pairs {
		if len(p.Vector) != dimension {
			return nil, fmt.Errorf("chunk %s: vector dimension %d, want %d", p.Chunk.ID, len(p.Vector), dimension)
		}
		v := toFloat64(p.Vector)
		idx.vectors[i] = v
		idx.norms[i] = norm(v)
		idx.chunks[i] = p.Chunk
	}
	return idx, nil
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int { return len(idx.chunks) }

// Dimension returns the embedding dimension the index was built with.
func (idx *Index) Dimension() int { return idx.dimension }

// Query returns the min(k, Len()) chunks most similar to vector.
func (idx *Index) Query(vector models.EmbeddingVector, k int) (models.RetrievalResult, error) {
	if k <= 0 {
		return nil, models.ErrInvalidK
	}
	if len(vector) != idx.dimension {
		return nil, fmt.Errorf("query vector dimension %d, want %d", len(vector), idx.dimension)
	}

	q := toFloat64(vector)
	qNorm := norm(q)

	order := make([]int, len(idx.vectors))
	scores := make([]float64, len(idx.vectors))
	for i := range idx.vectors {
		order[i] = i
		scores[i] = cosine(q, qNorm, idx.vectors[i], idx.norms[i])
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if k > len(order) {
		k = len(order)
	}
	result := make(models.RetrievalResult, k)
	for i := 0; i < k; i++ {
		j := order[i]
		result[i] = models.ScoredChunk{Chunk: idx.chunks[j], Score: scores[j]}
	}
	return result, nil
}

func cosine(a []float64, aNorm float64, b []float64, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (aNorm * bNorm)
}

func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func toFloat64(v models.EmbeddingVector) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
