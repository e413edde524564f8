package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"cognichat/internal/ai"
	"cognichat/internal/logger"
	"cognichat/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Composer sends prompts to the language model without retrieval: raw
// completions and the templated essay and poem prompts.
type Composer struct {
	llm ai.TextGenerator
}

func NewComposer(llm ai.TextGenerator) *Composer {
	return &Composer{llm: llm}
}

// Complete forwards prompt to the model as is.
func (c *Composer) Complete(ctx context.Context, prompt string) (*models.Completion, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, models.ErrEmptyPrompt
	}
	return c.run(ctx, "completion", prompt)
}

// Compose renders the topic prompt for kind and returns the model's reply.
func (c *Composer) Compose(ctx context.Context, kind models.CompositionKind, topic string) (*models.Completion, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, models.ErrEmptyPrompt
	}
	prompt, ok := ai.BuildCompositionPrompt(string(kind), topic)
	if !ok {
		return nil, models.ErrUnknownComposition
	}
	return c.run(ctx, string(kind), prompt)
}

func (c *Composer) run(ctx context.Context, kind, prompt string) (*models.Completion, error) {
	ctx, span := otel.Tracer("composer").Start(ctx, "composer.generate")
	defer span.End()
	span.SetAttributes(attribute.String("composer.kind", kind))

	start := time.Now()
	text, err := c.llm.Generate(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		if models.IsRecoverable(err) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &models.GenerationError{Model: c.llm.Model(), Err: err}
	}

	out := &models.Completion{Text: text, Model: c.llm.Model(), Duration: time.Since(start)}
	logger.Debug("completion generated", "kind", kind, "duration_ms", out.Duration.Milliseconds())
	return out, nil
}
