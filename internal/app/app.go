// Package app assembles the retrieval pipeline, chat sessions and their
// backing clients from configuration.
package app

import (
	"context"
	"fmt"
	"io"

	"cognichat/internal/ai"
	"cognichat/internal/config"
	"cognichat/internal/crawler"
	"cognichat/internal/logger"
	"cognichat/internal/session"
	"cognichat/internal/telemetry"
	"cognichat/services"

	"github.com/redis/go-redis/v9"
)

// App holds the long-lived components shared by the server and the CLI.
type App struct {
	Config   *config.Config
	Metrics  *telemetry.Metrics
	Redis    *redis.Client
	Pipeline *services.Pipeline
	Sessions *session.Manager
	Composer *services.Composer

	closers []io.Closer
}

// New wires every component named by cfg. Redis is only dialled when
// REDIS_URL is set.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	a.Metrics = metrics

	if cfg.RedisURL != "" {
		rdb, err := config.NewRedisClient(cfg)
		if err != nil {
			return nil, err
		}
		a.Redis = rdb
		a.closers = append(a.closers, rdb)
		logger.Info("connected to redis")
	}

	embedder, err := ai.NewEmbedder(ctx, cfg, metrics)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	if c, ok := embedder.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	embedder = ai.NewCachedEmbedder(embedder, a.Redis, cfg.EmbeddingCacheTTL())

	llm, err := ai.NewGeminiClient(ctx, cfg, metrics)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init generation client: %w", err)
	}
	a.closers = append(a.closers, llm)

	pipeline, err := services.NewPipeline(services.PipelineConfigFrom(cfg), crawler.NewDefaultRegistry(cfg), embedder, llm, metrics)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Pipeline = pipeline

	store, err := session.NewStore(cfg, a.Redis, metrics)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Sessions = session.NewManager(pipeline, store, cfg.SessionTTL())
	a.Composer = services.NewComposer(llm)

	logger.Info("pipeline ready",
		"sources", len(cfg.SourceURLs),
		"embedding_model", embedder.Model(),
		"generation_model", llm.Model(),
		"top_k", pipeline.TopK(),
		"transcript_store", cfg.TranscriptStore,
	)
	return a, nil
}

// Close releases clients in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
