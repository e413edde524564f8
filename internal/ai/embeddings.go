package ai

import (
	"context"
	"fmt"
	"time"

	"cognichat/internal/config"
	"cognichat/internal/telemetry"
	"cognichat/models"

	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// maxEmbedBatch is the largest batch the Gemini batchEmbedContents call accepts.
const maxEmbedBatch = 100

// Embedder maps text to fixed-dimension vectors. Output is deterministic for
// a given model identifier.
type Embedder interface {
	// Embed embeds a single query text.
	Embed(ctx context.Context, text string) (models.EmbeddingVector, error)
	// EmbedBatch embeds document texts, returning one vector per input in order.
	EmbedBatch(ctx context.Context, texts []string) ([]models.EmbeddingVector, error)
	// Model returns the embedding model identifier.
	Model() string
}

// NewEmbedder returns the embedder selected by cfg.EmbeddingsProvider.
func NewEmbedder(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (Embedder, error) {
	switch cfg.EmbeddingsProvider {
	case config.EmbeddingsProviderGoogle, "":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
		}
		return NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModelID, cfg.RequestTimeout(), metrics)
	case config.EmbeddingsProviderLocal:
		return NewHashEmbedder(cfg.LocalEmbeddingDims), nil
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}
}

// GeminiEmbedder embeds text with a Google Generative AI embedding model
// (text-embedding-004 by default).
type GeminiEmbedder struct {
	client      *genai.Client
	model       string
	timeout     time.Duration
	rateLimiter *rate.Limiter
	metrics     *telemetry.Metrics
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string, timeout time.Duration, metrics *telemetry.Metrics) (*GeminiEmbedder, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings client: %w", err)
	}
	return &GeminiEmbedder{
		client:      client,
		model:       model,
		timeout:     timeout,
		rateLimiter: rate.NewLimiter(rate.Limit(25), 5),
		metrics:     metrics,
	}, nil
}

func (e *GeminiEmbedder) Model() string { return e.model }

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) (models.EmbeddingVector, error) {
	ctx, span := otel.Tracer("gemini-embeddings").Start(ctx, "gemini.embed_query")
	defer span.End()
	span.SetAttributes(attribute.String("gemini.model", e.model))

	var vec models.EmbeddingVector
	err := withTimeout(ctx, "embed", e.timeout, func(ctx context.Context) error {
		if err := e.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		em := e.client.EmbeddingModel(e.model)
		em.TaskType = genai.TaskTypeRetrievalQuery
		resp, err := em.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return err
		}
		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return fmt.Errorf("no embedding returned")
		}
		vec = resp.Embedding.Values
		return nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		e.metrics.RecordEmbedding("query", false)
		return nil, err
	}
	e.metrics.RecordEmbedding("query", true)
	return vec, nil
}

func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]models.EmbeddingVector, error) {
	ctx, span := otel.Tracer("gemini-embeddings").Start(ctx, "gemini.embed_batch")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", e.model),
		attribute.Int("gemini.texts", len(texts)),
	)

	vectors := make([]models.EmbeddingVector, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := start + maxEmbedBatch
		if end > len(texts) {
			end = len(texts)
		}

		err := withTimeout(ctx, "embed batch", e.timeout, func(ctx context.Context) error {
			if err := e.rateLimiter.Wait(ctx); err != nil {
				return err
			}
			em := e.client.EmbeddingModel(e.model)
			em.TaskType = genai.TaskTypeRetrievalDocument
			batch := em.NewBatch()
			for _, t := range texts[start:end] {
				batch.AddContent(genai.Text(t))
			}
			resp, err := em.BatchEmbedContents(ctx, batch)
			if err != nil {
				return err
			}
			if len(resp.Embeddings) != end-start {
				return fmt.Errorf("got %d embeddings for %d texts", len(resp.Embeddings), end-start)
			}
			for _, emb := range resp.Embeddings {
				vectors = append(vectors, emb.Values)
			}
			return nil
		})
		if err != nil {
			span.SetAttributes(attribute.Bool("gemini.error", true))
			e.metrics.RecordEmbedding("document", false)
			return nil, err
		}
	}
	e.metrics.RecordEmbedding("document", true)
	return vectors, nil
}

// Close releases the underlying client.
func (e *GeminiEmbedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
