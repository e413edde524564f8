package models

import "time"

// CrawledPage is a single fetched page before it becomes a Document.
type CrawledPage struct {
	URL         string    `bson:"url" json:"url"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Language    string    `bson:"language,omitempty" json:"language,omitempty"`
	Content     string    `bson:"content" json:"content"`
	CrawledAt   time.Time `bson:"crawled_at" json:"crawled_at"`
	StatusCode  int       `bson:"status_code" json:"status_code"`
	Size        int64     `bson:"size" json:"size"`
	WordCount   int       `bson:"word_count,omitempty" json:"word_count,omitempty"`
}

// ToDocument converts the page into an immutable Document keyed by id.
func (p CrawledPage) ToDocument(id string) Document {
	meta := map[string]string{MetadataSource: p.URL}
	if p.Title != "" {
		meta[MetadataTitle] = p.Title
	}
	if p.Description != "" {
		meta[MetadataDescription] = p.Description
	}
	if p.Language != "" {
		meta[MetadataLanguage] = p.Language
	}
	return Document{ID: id, Text: p.Content, Metadata: meta}
}
