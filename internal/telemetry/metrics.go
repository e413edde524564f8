package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	TokensUsed          metric.Int64Counter
	EmbeddingCalls      metric.Int64Counter
	IndexBuildDuration  metric.Float64Histogram
	IndexChunks         metric.Int64Gauge
	AnswerDuration      metric.Float64Histogram
	CircuitBreakerState metric.Int64Counter
	TranscriptOps       metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("cognichat")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	)
	if err != nil {
		return nil, err
	}

	embeddingCalls, err := meter.Int64Counter(
		"embeddings.calls.total",
		metric.WithDescription("Embedding calls by kind and outcome"),
	)
	if err != nil {
		return nil, err
	}

	indexBuildDuration, err := meter.Float64Histogram(
		"index.build.duration",
		metric.WithDescription("Vector index build duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	indexChunks, err := meter.Int64Gauge(
		"index.chunks",
		metric.WithDescription("Chunks held by the live vector index"),
	)
	if err != nil {
		return nil, err
	}

	answerDuration, err := meter.Float64Histogram(
		"rag.answer.duration",
		metric.WithDescription("Retrieve-and-generate duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	transcriptOps, err := meter.Int64Counter(
		"transcript.operations.total",
		metric.WithDescription("Total transcript store operations"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		TokensUsed:          tokensUsed,
		EmbeddingCalls:      embeddingCalls,
		IndexBuildDuration:  indexBuildDuration,
		IndexChunks:         indexChunks,
		AnswerDuration:      answerDuration,
		CircuitBreakerState: circuitBreakerState,
		TranscriptOps:       transcriptOps,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordTokensUsed records Gemini token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("gemini.model", model),
		attribute.String("service", "gemini"),
	}

	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordEmbedding(kind string, success bool) {
	if m == nil {
		return
	}
	m.EmbeddingCalls.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("embedding.kind", kind),
		attribute.Bool("embedding.success", success),
	))
}

// RecordIndexBuild records a finished index build and the live chunk count.
func (m *Metrics) RecordIndexBuild(duration float64, chunks int, status string) {
	if m == nil {
		return
	}
	m.IndexBuildDuration.Record(context.Background(), duration, metric.WithAttributes(
		attribute.String("index.status", status),
	))
	if status == "ok" {
		m.IndexChunks.Record(context.Background(), int64(chunks))
	}
}

func (m *Metrics) RecordAnswer(duration float64, status string) {
	if m == nil {
		return
	}
	m.AnswerDuration.Record(context.Background(), duration, metric.WithAttributes(
		attribute.String("rag.status", status),
	))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordTranscriptOperation records transcript store calls
func (m *Metrics) RecordTranscriptOperation(operation, backend string, success bool) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("transcript.operation", operation),
		attribute.String("transcript.backend", backend),
		attribute.Bool("transcript.success", success),
	}

	m.TranscriptOps.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
