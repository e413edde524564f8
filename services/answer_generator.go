package services

import (
	"context"
	"errors"

	"cognichat/internal/ai"
	"cognichat/models"
)

// AnswerGenerator asks the language model to answer from retrieved chunks only.
type AnswerGenerator struct {
	llm ai.TextGenerator
}

func NewAnswerGenerator(llm ai.TextGenerator) *AnswerGenerator {
	return &AnswerGenerator{llm: llm}
}

// Answer renders the grounded prompt and returns the model's reply. The
// returned SupportingChunks are exactly the chunks passed in.
func (g *AnswerGenerator) Answer(ctx context.Context, question string, chunks []models.Chunk) (*models.Answer, error) {
	contexts := make([]string, len(chunks))
	for i, c := range chunks {
		contexts[i] = c.Text
	}

	text, err := g.llm.Generate(ctx, ai.BuildPrompt(question, contexts))
	if err != nil {
		if models.IsRecoverable(err) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &models.GenerationError{Model: g.llm.Model(), Err: err}
	}

	supporting := make([]models.Chunk, len(chunks))
	copy(supporting, chunks)
	return &models.Answer{Text: text, SupportingChunks: supporting}, nil
}
