package models

import "time"

// Metadata keys attached to documents and inherited by their chunks.
const (
	MetadataSource      = "source"
	MetadataTitle       = "title"
	MetadataDescription = "description"
	MetadataLanguage    = "language"
)

// Document is one unit of loaded text with its provenance.
// It is treated as immutable once a source has produced it.
type Document struct {
	ID       string            `json:"id" bson:"id"`
	Text     string            `json:"text" bson:"text"`
	Metadata map[string]string `json:"metadata" bson:"metadata"`
}

// Source returns the locator the document was loaded from.
func (d Document) Source() string {
	return d.Metadata[MetadataSource]
}

// Chunk is a bounded span of a document's text, the unit of retrieval.
type Chunk struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Index      int               `json:"index"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Source returns the locator of the chunk's parent document.
func (c Chunk) Source() string {
	return c.Metadata[MetadataSource]
}

// EmbeddingVector is a fixed-length embedding of a piece of text.
type EmbeddingVector []float32

// ScoredChunk pairs a retrieved chunk with its relevance score.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievalResult is ordered by descending relevance and never longer than K.
type RetrievalResult []ScoredChunk

// Chunks returns the chunks of the result in ranked order.
func (r RetrievalResult) Chunks() []Chunk {
	chunks := make([]Chunk, len(r))
	for i, sc := range r {
		chunks[i] = sc.Chunk
	}
	return chunks
}

// Answer is a generated reply together with the chunks it was conditioned on.
type Answer struct {
	Text             string        `json:"text"`
	SupportingChunks []Chunk       `json:"supporting_chunks"`
	Duration         time.Duration `json:"-"`
}

// Sources returns the distinct source locators of the supporting chunks,
// in the order they first appear.
func (a *Answer) Sources() []string {
	seen := make(map[string]bool, len(a.SupportingChunks))
	sources := make([]string, 0, len(a.SupportingChunks))
	for _, c := range a.SupportingChunks {
		src := c.Source()
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		sources = append(sources, src)
	}
	return sources
}

// CloneMetadata returns a copy of m so chunks never share a map with their parent.
func CloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
