package services

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"cognichat/models"
)

// Chunker splits documents into fixed-size windows of runes.
//
// Sizes and overlaps are counted in Unicode code points, so a chunk never
// cuts a multi-byte character in half. Consecutive chunks of the same
// document share exactly overlap runes; only the last chunk may be shorter.
type Chunker struct {
	maxChunkSize int
	overlap      int
}

// NewChunker validates 0 < maxChunkSize and 0 <= overlap < maxChunkSize.
func NewChunker(maxChunkSize, overlap int) (*Chunker, error) {
	if maxChunkSize <= 0 {
		return nil, fmt.Errorf("max chunk size must be greater than 0, got %d", maxChunkSize)
	}
	if overlap < 0 || overlap >= maxChunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", maxChunkSize, overlap)
	}
	return &Chunker{maxChunkSize: maxChunkSize, overlap: overlap}, nil
}

// Split is a convenience wrapper over NewChunker and Chunker.Split.
func Split(documents []models.Document, maxChunkSize, overlap int) ([]models.Chunk, error) {
	c, err := NewChunker(maxChunkSize, overlap)
	if err != nil {
		return nil, err
	}
	return c.Split(documents), nil
}

// Split chunks every document in order. Chunks keep document order and a
// copy of their parent's metadata.
func (c *Chunker) Split(documents []models.Document) []models.Chunk {
	var chunks []models.Chunk
	for _, doc := range documents {
		chunks = append(chunks, c.splitDocument(doc)...)
	}
	return chunks
}

func (c *Chunker) splitDocument(doc models.Document) []models.Chunk {
	if strings.TrimSpace(doc.Text) == "" {
		return nil
	}

	runes := []rune(doc.Text)
	step := c.maxChunkSize - c.overlap

	var chunks []models.Chunk
	for start := 0; ; start += step {
		end := start + c.maxChunkSize
		if end > len(runes) {
			end = len(runes)
		}

		index := len(chunks)
		chunks = append(chunks, models.Chunk{
			ID:         doc.ID + ":" + strconv.Itoa(index),
			DocumentID: doc.ID,
			Index:      index,
			Text:       string(runes[start:end]),
			Metadata:   models.CloneMetadata(doc.Metadata),
		})

		if end == len(runes) {
			break
		}
	}
	return chunks
}

// RuneLen is the length unit used by the chunker.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
