package vectorindex

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"cognichat/models"
)

func chunk(i int) models.Chunk {
	return models.Chunk{
		ID:         fmt.Sprintf("doc:%d", i),
		DocumentID: "doc",
		Index:      i,
		Text:       fmt.Sprintf("chunk %d", i),
	}
}

func randomPairs(n, dim int, seed int64) []Pair {
	r := rand.New(rand.NewSource(seed))
	pairs := make([]Pair, n)
	for i := range pairs {
		v := make(models.EmbeddingVector, dim)
		for j := range v {
			v[j] = r.Float32()*2 - 1
		}
		pairs[i] = Pair{Vector: v, Chunk: chunk(i)}
	}
	return pairs
}

func TestBuildEmpty(t *testing.T) {
	if _, err := Build(nil); !errors.Is(err, models.ErrEmptyCorpus) {
		t.Fatalf("Build(nil) err = %v, want ErrEmptyCorpus", err)
	}
	if _, err := Build([]Pair{}); !errors.Is(err, models.ErrEmptyCorpus) {
		t.Fatalf("Build([]) err = %v, want ErrEmptyCorpus", err)
	}
}

func TestBuildRejectsMixedDimensions(t *testing.T) {
	pairs := []Pair{
		{Vector: models.EmbeddingVector{1, 0}, Chunk: chunk(0)},
		{Vector: models.EmbeddingVector{1, 0, 0}, Chunk: chunk(1)},
	}
	if _, err := Build(pairs); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestQueryInvalidK(t *testing.T) {
	idx, err := Build(randomPairs(3, 4, 1))
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []int{0, -1} {
		if _, err := idx.Query(models.EmbeddingVector{1, 0, 0, 0}, k); !errors.Is(err, models.ErrInvalidK) {
			t.Fatalf("Query(k=%d) err = %v, want ErrInvalidK", k, err)
		}
	}
}

func TestQueryReturnsMinKN(t *testing.T) {
	for _, n := range []int{1, 3, 10} {
		idx, err := Build(randomPairs(n, 8, int64(n)))
		if err != nil {
			t.Fatal(err)
		}
		q := randomPairs(1, 8, 99)[0].Vector
		for _, k := range []int{1, 2, 5, 20} {
			res, err := idx.Query(q, k)
			if err != nil {
				t.Fatal(err)
			}
			want := k
			if n < k {
				want = n
			}
			if len(res) != want {
				t.Fatalf("n=%d k=%d: got %d results, want %d", n, k, len(res), want)
			}
			for i := 1; i < len(res); i++ {
				if res[i].Score > res[i-1].Score {
					t.Fatalf("results not in descending order at %d", i)
				}
			}
		}
	}
}

func TestQueryIsDeterministic(t *testing.T) {
	idx, err := Build(randomPairs(50, 16, 7))
	if err != nil {
		t.Fatal(err)
	}
	q := randomPairs(1, 16, 8)[0].Vector

	first, err := idx.Query(q, 10)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := idx.Query(q, 10)
		if err != nil {
			t.Fatal(err)
		}
		for j := range first {
			if first[j].Chunk.ID != again[j].Chunk.ID || first[j].Score != again[j].Score {
				t.Fatalf("run %d differs at %d", i, j)
			}
		}
	}
}

func TestQueryCosineAndTieBreak(t *testing.T) {
	pairs := []Pair{
		{Vector: models.EmbeddingVector{0, 1}, Chunk: chunk(0)},
		{Vector: models.EmbeddingVector{2, 0}, Chunk: chunk(1)}, // same direction as 3 after normalisation
		{Vector: models.EmbeddingVector{5, 0}, Chunk: chunk(2)},
		{Vector: models.EmbeddingVector{0, 0}, Chunk: chunk(3)},
	}
	idx, err := Build(pairs)
	if err != nil {
		t.Fatal(err)
	}

	res, err := idx.Query(models.EmbeddingVector{1, 0}, 4)
	if err != nil {
		t.Fatal(err)
	}
	gotOrder := []int{res[0].Chunk.Index, res[1].Chunk.Index, res[2].Chunk.Index, res[3].Chunk.Index}
	wantOrder := []int{1, 2, 0, 3}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("order = %v, want %v", gotOrder, wantOrder)
		}
	}
	if res[0].Score != 1 || res[1].Score != 1 {
		t.Fatalf("expected cosine 1 for parallel vectors, got %v %v", res[0].Score, res[1].Score)
	}
	if res[3].Score != 0 {
		t.Fatalf("zero vector score = %v, want 0", res[3].Score)
	}
}

func TestQueryDimensionMismatch(t *testing.T) {
	idx, err := Build(randomPairs(2, 4, 3))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Query(models.EmbeddingVector{1, 2}, 1); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}
