package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cognichat/internal/ai"
	"cognichat/internal/config"
	"cognichat/internal/logger"
	"cognichat/internal/telemetry"
	"cognichat/internal/vectorindex"
	"cognichat/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DocumentLoader loads the documents found at a locator.
type DocumentLoader interface {
	Load(ctx context.Context, locator string) ([]models.Document, error)
}

// PipelineConfig holds the retrieval options the pipeline is built with.
type PipelineConfig struct {
	Locators     []string
	MaxDocuments int
	MaxChunkSize int
	ChunkOverlap int
	TopK         int
}

func PipelineConfigFrom(cfg *config.Config) PipelineConfig {
	return PipelineConfig{
		Locators:     cfg.SourceURLs,
		MaxDocuments: cfg.MaxDocuments,
		MaxChunkSize: cfg.MaxChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		TopK:         cfg.TopK,
	}
}

// Pipeline ties loading, chunking, embedding, retrieval and generation together.
// The index is built lazily on first use and then shared read-only by all callers.
type Pipeline struct {
	cfg      PipelineConfig
	loader   DocumentLoader
	chunker  *Chunker
	embedder ai.Embedder
	answers  *AnswerGenerator
	metrics  *telemetry.Metrics

	buildMu sync.Mutex

	mu            sync.RWMutex
	index         *vectorindex.Index
	documents     int
	builtAt       time.Time
	buildDuration time.Duration
	building      bool
	lastErr       string
	// generation is bumped by Invalidate; a build that started under an
	// older generation is not installed.
	generation uint64
}

func NewPipeline(cfg PipelineConfig, loader DocumentLoader, embedder ai.Embedder, llm ai.TextGenerator, metrics *telemetry.Metrics) (*Pipeline, error) {
	if cfg.TopK <= 0 {
		return nil, fmt.Errorf("top_k must be greater than 0: %w", models.ErrInvalidK)
	}
	if len(cfg.Locators) == 0 {
		return nil, errors.New("pipeline needs at least one source locator")
	}
	chunker, err := NewChunker(cfg.MaxChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:      cfg,
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		answers:  NewAnswerGenerator(llm),
		metrics:  metrics,
	}, nil
}

// EnsureIndex builds the index if none is live. Concurrent callers wait for a
// single build. A failed build leaves nothing behind and the next call retries.
func (p *Pipeline) EnsureIndex(ctx context.Context) (*vectorindex.Index, error) {
	if idx := p.current(); idx != nil {
		return idx, nil
	}

	p.buildMu.Lock()
	defer p.buildMu.Unlock()

	if idx := p.current(); idx != nil {
		return idx, nil
	}
	return p.buildAndSwap(ctx)
}

// Rebuild builds a fresh index and swaps it in on success. On failure the
// previous index keeps serving.
func (p *Pipeline) Rebuild(ctx context.Context) error {
	p.buildMu.Lock()
	defer p.buildMu.Unlock()

	_, err := p.buildAndSwap(ctx)
	return err
}

// Invalidate drops the live index; the next question triggers a rebuild.
// A build already in flight is discarded when it finishes.
func (p *Pipeline) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index = nil
	p.documents = 0
	p.generation++
	logger.Info("vector index invalidated", "build_in_flight", p.building)
}

func (p *Pipeline) current() *vectorindex.Index {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.index
}

// buildAndSwap must be called with buildMu held.
func (p *Pipeline) buildAndSwap(ctx context.Context) (*vectorindex.Index, error) {
	p.mu.Lock()
	p.building = true
	gen := p.generation
	p.mu.Unlock()

	start := time.Now()
	idx, docs, err := p.build(ctx)
	elapsed := time.Since(start)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.building = false
	if err != nil {
		p.lastErr = err.Error()
		p.metrics.RecordIndexBuild(elapsed.Seconds(), 0, "error")
		logger.Error("vector index build failed", "error", err, "duration", elapsed.String())
		return nil, err
	}
	if p.generation != gen {
		p.metrics.RecordIndexBuild(elapsed.Seconds(), idx.Len(), "discarded")
		logger.Info("vector index build discarded after invalidate", "duration", elapsed.String())
		return idx, nil
	}

	p.index = idx
	p.documents = docs
	p.builtAt = time.Now()
	p.buildDuration = elapsed
	p.lastErr = ""
	p.metrics.RecordIndexBuild(elapsed.Seconds(), idx.Len(), "ok")
	logger.Info("vector index built",
		"documents", docs,
		"chunks", idx.Len(),
		"dimension", idx.Dimension(),
		"duration", elapsed.String())
	return idx, nil
}

func (p *Pipeline) build(ctx context.Context) (*vectorindex.Index, int, error) {
	ctx, span := otel.Tracer("rag-pipeline").Start(ctx, "rag.build_index")
	defer span.End()

	docs, err := p.loadDocuments(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, 0, err
	}

	chunks := p.chunker.Split(docs)
	span.SetAttributes(
		attribute.Int("rag.documents", len(docs)),
		attribute.Int("rag.chunks", len(chunks)),
	)
	if len(chunks) == 0 {
		return nil, 0, models.ErrEmptyCorpus
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embed failed")
		return nil, 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	pairs := make([]vectorindex.Pair, len(chunks))
	for i := range chunks {
		pairs[i] = vectorindex.Pair{Vector: vectors[i], Chunk: chunks[i]}
	}
	idx, err := vectorindex.Build(pairs)
	if err != nil {
		return nil, 0, err
	}
	return idx, len(docs), nil
}

func (p *Pipeline) loadDocuments(ctx context.Context) ([]models.Document, error) {
	var docs []models.Document
	for _, locator := range p.cfg.Locators {
		loaded, err := p.loader.Load(ctx, locator)
		if err != nil {
			var fetchErr *models.FetchError
			if errors.As(err, &fetchErr) {
				return nil, err
			}
			return nil, &models.FetchError{Locator: locator, Err: err}
		}
		docs = append(docs, loaded...)
	}
	if p.cfg.MaxDocuments > 0 && len(docs) > p.cfg.MaxDocuments {
		docs = docs[:p.cfg.MaxDocuments]
	}
	return docs, nil
}

// Retrieve returns the K chunks most similar to question, building the index if needed.
func (p *Pipeline) Retrieve(ctx context.Context, question string) (models.RetrievalResult, error) {
	idx, err := p.EnsureIndex(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("rag-pipeline").Start(ctx, "rag.retrieve")
	defer span.End()

	vec, err := p.embedder.Embed(ctx, question)
	if err != nil {
		span.RecordError(err)
		if models.IsRecoverable(err) || ctx.Err() != nil {
			return nil, err
		}
		return nil, &models.GenerationError{Model: p.embedder.Model(), Err: fmt.Errorf("embed question: %w", err)}
	}
	result, err := idx.Query(vec, p.cfg.TopK)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("rag.retrieved", len(result)))
	return result, nil
}

// Ask answers question from the indexed corpus. The answer's supporting
// chunks are the retrieved top-K, and Duration is the wall time of the call.
func (p *Pipeline) Ask(ctx context.Context, question string) (*models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, models.ErrEmptyQuestion
	}

	ctx, span := otel.Tracer("rag-pipeline").Start(ctx, "rag.ask")
	defer span.End()

	start := time.Now()
	result, err := p.Retrieve(ctx, question)
	if err != nil {
		p.metrics.RecordAnswer(time.Since(start).Seconds(), "retrieve_error")
		span.SetStatus(codes.Error, "retrieve failed")
		return nil, err
	}

	answer, err := p.answers.Answer(ctx, question, result.Chunks())
	if err != nil {
		p.metrics.RecordAnswer(time.Since(start).Seconds(), "generate_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		return nil, err
	}
	answer.Duration = time.Since(start)

	p.metrics.RecordAnswer(answer.Duration.Seconds(), "ok")
	logger.Debug("question answered",
		"chunks", len(answer.SupportingChunks),
		"duration_ms", answer.Duration.Milliseconds())
	return answer, nil
}

// Status reports the state of the live index.
func (p *Pipeline) Status() models.IndexStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	status := models.IndexStatus{
		Built:     p.index != nil,
		Building:  p.building,
		Documents: p.documents,
		LastError: p.lastErr,
	}
	if p.index != nil {
		status.Chunks = p.index.Len()
		builtAt := p.builtAt
		status.BuiltAt = &builtAt
		status.BuildDuration = p.buildDuration.String()
	}
	return status
}

// TopK is the number of chunks retrieved per question.
func (p *Pipeline) TopK() int { return p.cfg.TopK }
