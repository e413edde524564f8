package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for the retrieval pipeline.
const (
	DefaultMaxChunkSize      = 1000
	DefaultChunkOverlap      = 0
	DefaultTopK              = 4
	DefaultEmbeddingModelID  = "text-embedding-004"
	DefaultGenerationModelID = "gemini-2.0-flash"
	DefaultRequestTimeoutSec = 30
	DefaultMaxDocuments      = 40
	DefaultSourceURL         = "https://docs.smith.langchain.com/"
)

// Embedding providers.
const (
	EmbeddingsProviderGoogle = "google"
	EmbeddingsProviderLocal  = "local"
)

// Transcript stores.
const (
	TranscriptStoreMemory = "memory"
	TranscriptStoreRedis  = "redis"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	// Retrieval pipeline
	MaxChunkSize          int
	ChunkOverlap          int
	TopK                  int
	EmbeddingModelID      string
	GenerationModelID     string
	RequestTimeoutSeconds int
	EmbeddingsProvider    string // "google" (default), "local"
	LocalEmbeddingDims    int
	EmbeddingCacheTTLMin  int
	Temperature           float32
	MaxOutputTokens       int32

	// Gemini
	GeminiAPIKey string
	GeminiTier   string

	// Document sources
	SourceURLs       []string
	MaxDocuments     int
	CrawlMaxPages    int
	CrawlFollowLinks bool
	CrawlRenderJS    bool
	CrawlTimeout     int
	CrawlDelayMs     int

	// Index lifecycle
	IndexWarmup      bool
	IndexRefreshCron string

	// Sessions
	TranscriptStore   string
	SessionTTLMinutes int

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// HTTP hardening
	RateLimitReqs   int
	RateLimitWindow int
	MaxRequestBytes int64

	// Admin tokens
	AdminSecret string

	// Telemetry
	OTelEnabled          bool
	OTelExporterEndpoint string
	OTelSampleRatio      float64
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080")),

		MaxChunkSize:          getEnvInt("MAX_CHUNK_SIZE", DefaultMaxChunkSize),
		ChunkOverlap:          getEnvInt("CHUNK_OVERLAP", DefaultChunkOverlap),
		TopK:                  getEnvInt("TOP_K", DefaultTopK),
		EmbeddingModelID:      getEnv("EMBEDDING_MODEL_ID", DefaultEmbeddingModelID),
		GenerationModelID:     getEnv("GENERATION_MODEL_ID", DefaultGenerationModelID),
		RequestTimeoutSeconds: getEnvInt("REQUEST_TIMEOUT_SECONDS", DefaultRequestTimeoutSec),
		EmbeddingsProvider:    getEnv("EMBEDDINGS_PROVIDER", EmbeddingsProviderGoogle),
		LocalEmbeddingDims:    getEnvInt("LOCAL_EMBEDDING_DIMS", 384),
		EmbeddingCacheTTLMin:  getEnvInt("EMBEDDING_CACHE_TTL_MINUTES", 60),
		Temperature:           float32(getEnvFloat64("GENERATION_TEMPERATURE", 0.2)),
		MaxOutputTokens:       int32(getEnvInt("GENERATION_MAX_OUTPUT_TOKENS", 2048)),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiTier:   getEnv("GEMINI_TIER", "free"),

		SourceURLs:       splitList(getEnv("SOURCE_URLS", DefaultSourceURL)),
		MaxDocuments:     getEnvInt("MAX_DOCUMENTS", DefaultMaxDocuments),
		CrawlMaxPages:    getEnvInt("CRAWL_MAX_PAGES", DefaultMaxDocuments),
		CrawlFollowLinks: getEnvBool("CRAWL_FOLLOW_LINKS", false),
		CrawlRenderJS:    getEnvBool("CRAWL_RENDER_JS", false),
		CrawlTimeout:     getEnvInt("CRAWL_TIMEOUT_SECONDS", 60),
		CrawlDelayMs:     getEnvInt("CRAWL_DELAY_MS", 500),

		IndexWarmup:      getEnvBool("INDEX_WARMUP", false),
		IndexRefreshCron: getEnv("INDEX_REFRESH_CRON", ""),

		TranscriptStore:   getEnv("TRANSCRIPT_STORE", TranscriptStoreMemory),
		SessionTTLMinutes: getEnvInt("SESSION_TTL_MINUTES", 120),

		// Redis Configuration
		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),
		MaxRequestBytes: getEnvInt64("MAX_REQUEST_BYTES", 1<<20), // 1MB

		AdminSecret: getEnv("ADMIN_SECRET", ""),

		OTelEnabled:          getEnvBool("OTEL_ENABLED", false),
		OTelExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
		OTelSampleRatio:      getEnvFloat64("OTEL_SAMPLE_RATIO", 0.1),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the pipeline options for values the chunker, index and
// model clients cannot work with.
func (c *Config) Validate() error {
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("MAX_CHUNK_SIZE must be greater than 0, got %d", c.MaxChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.MaxChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, MAX_CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("TOP_K must be greater than 0, got %d", c.TopK)
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be greater than 0, got %d", c.RequestTimeoutSeconds)
	}
	if len(c.SourceURLs) == 0 {
		return fmt.Errorf("SOURCE_URLS must name at least one location")
	}
	switch c.EmbeddingsProvider {
	case EmbeddingsProviderGoogle, EmbeddingsProviderLocal:
	default:
		return fmt.Errorf("unknown EMBEDDINGS_PROVIDER: %s", c.EmbeddingsProvider)
	}
	switch c.TranscriptStore {
	case TranscriptStoreMemory:
	case TranscriptStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when TRANSCRIPT_STORE=redis")
		}
	default:
		return fmt.Errorf("unknown TRANSCRIPT_STORE: %s", c.TranscriptStore)
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}
	return nil
}

// RequestTimeout is the deadline applied to each embedding or generation call.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// EmbeddingCacheTTL is how long query embeddings stay in Redis. Zero disables the cache.
func (c *Config) EmbeddingCacheTTL() time.Duration {
	return time.Duration(c.EmbeddingCacheTTLMin) * time.Minute
}

// SessionTTL is how long an idle chat session's transcript is retained.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
