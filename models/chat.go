// models/chat.go
package models

import "time"

// AskRequest is the body of the one-shot question endpoint.
type AskRequest struct {
	Question string `json:"question" binding:"required,min=1,max=2000"`
}

// AskResponse is returned by the one-shot question endpoint.
type AskResponse struct {
	Answer         string   `json:"answer"`
	Sources        []string `json:"sources"`
	ResponseTimeMs int64    `json:"response_time_ms"`
}

// ChatRequest is a message posted to an existing chat session.
type ChatRequest struct {
	Message string `json:"message" binding:"required,min=1,max=2000"`
}

// ChatResponse carries the assistant's reply for one session turn.
type ChatResponse struct {
	SessionID      string    `json:"session_id"`
	Reply          string    `json:"reply"`
	Sources        []string  `json:"sources"`
	Chunks         []Chunk   `json:"chunks"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	Timestamp      time.Time `json:"timestamp"`
}

// SessionResponse describes a chat session.
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationHistory is the ordered transcript of one session.
type ConversationHistory struct {
	SessionID string            `json:"session_id"`
	Messages  []TranscriptEntry `json:"messages"`
}

// IndexStatus reports the state of the in-memory vector index.
type IndexStatus struct {
	Built         bool       `json:"built"`
	Building      bool       `json:"building"`
	Documents     int        `json:"documents"`
	Chunks        int        `json:"chunks"`
	BuiltAt       *time.Time `json:"built_at,omitempty"`
	BuildDuration string     `json:"build_duration,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}
