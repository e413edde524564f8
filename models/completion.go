package models

import "time"

// CompositionKind selects one of the topic prompts served by the writing
// endpoints.
type CompositionKind string

const (
	CompositionEssay CompositionKind = "essay"
	CompositionPoem  CompositionKind = "poem"
)

// CompletionRequest is the body of the raw completion endpoint.
type CompletionRequest struct {
	Prompt string `json:"prompt" binding:"required,min=1,max=4000"`
}

// ComposeRequest is the body of the essay and poem endpoints.
type ComposeRequest struct {
	Topic string `json:"topic" binding:"required,min=1,max=200"`
}

// Completion is a model reply produced without retrieval.
type Completion struct {
	Text     string
	Model    string
	Duration time.Duration
}

// CompletionResponse is returned by the completion and writing endpoints.
type CompletionResponse struct {
	Output         string `json:"output"`
	Model          string `json:"model"`
	ResponseTimeMs int64  `json:"response_time_ms"`
}
