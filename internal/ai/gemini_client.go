package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cognichat/internal/config"
	"cognichat/internal/logger"
	"cognichat/internal/telemetry"
	"cognichat/models"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// ErrQuotaExceeded is returned when the local token counter refuses a request
// before it reaches the API.
var ErrQuotaExceeded = errors.New("rate limit exceeded: wait before retry")

// TextGenerator produces a completion for a fully rendered prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// generateFunc performs one model call and reports tokens consumed.
type generateFunc func(ctx context.Context, prompt string) (string, int, error)

type GeminiClient struct {
	model        string
	breaker      *gobreaker.CircuitBreaker
	rateLimiter  *rate.Limiter
	tokenCounter *TokenCounter
	client       *genai.Client
	tier         string
	timeout      time.Duration
	metrics      *telemetry.Metrics
	generate     generateFunc
}

type TokenCounter struct {
	mu              sync.Mutex
	limits          RateLimits
	minuteTokens    int
	dailyTokens     int
	minuteRequests  int
	dailyRequests   int
	lastMinuteReset time.Time
	lastDayReset    time.Time
}

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

// NewGeminiClient connects to Gemini using the generation settings in cfg.
func NewGeminiClient(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	gc := newGeminiClient(cfg.GenerationModelID, cfg.GeminiTier, cfg.RequestTimeout(), metrics, nil)
	gc.client = client
	gc.generate = func(ctx context.Context, prompt string) (string, int, error) {
		model := client.GenerativeModel(cfg.GenerationModelID)
		model.SetTemperature(cfg.Temperature)
		model.SetMaxOutputTokens(cfg.MaxOutputTokens)

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", 0, err
		}
		text := responseText(resp)
		if text == "" {
			return "", 0, errors.New("model returned no text")
		}
		return text, extractTokenUsage(resp, text), nil
	}
	return gc, nil
}

func newGeminiClient(model, tier string, timeout time.Duration, metrics *telemetry.Metrics, generate generateFunc) *GeminiClient {
	limits := getRateLimits(tier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		// A caller that went away says nothing about the model's health.
		IsSuccessful: func(err error) bool {
			var gone *callerGoneError
			return err == nil || errors.As(err, &gone)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.RecordCircuitBreakerState("gemini", to.String())
		},
	})

	// RPM limit with some buffer
	burst := limits.RPM / 10
	if burst < 1 {
		burst = 1
	}
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), burst)

	return &GeminiClient{
		model:        model,
		breaker:      breaker,
		rateLimiter:  rateLimiter,
		tokenCounter: NewTokenCounter(limits),
		tier:         tier,
		timeout:      timeout,
		metrics:      metrics,
		generate:     generate,
	}
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

func (gc *GeminiClient) Model() string { return gc.model }

// callerGoneError marks a failure caused by the caller's context ending
// mid-call, so the breaker does not count it against the model.
type callerGoneError struct{ err error }

func (e *callerGoneError) Error() string { return e.err.Error() }
func (e *callerGoneError) Unwrap() error { return e.err }

// Generate sends prompt to the model. Failures come back as
// *models.GenerationError, or *models.TimeoutError when the call stalls.
func (gc *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate_content")
	defer span.End()

	estimatedTokens := estimateTokens(prompt)
	span.SetAttributes(
		attribute.Int("gemini.estimated_tokens", estimatedTokens),
		attribute.String("gemini.model", gc.model),
	)

	if !gc.tokenCounter.CanConsume(estimatedTokens, 1) {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", &models.GenerationError{Model: gc.model, Err: ErrQuotaExceeded}
	}

	var text string
	err := withTimeout(ctx, "generation", gc.timeout, func(callCtx context.Context) error {
		if err := gc.rateLimiter.Wait(callCtx); err != nil {
			span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
			return err
		}

		result, err := gc.breaker.Execute(func() (interface{}, error) {
			out, tokens, err := gc.generate(callCtx, prompt)
			if err != nil {
				if ctx.Err() != nil {
					return nil, &callerGoneError{err: err}
				}
				return nil, err
			}
			gc.tokenCounter.RecordUsage(tokens, 1)
			gc.metrics.RecordTokensUsed(int64(tokens), gc.model)
			span.SetAttributes(attribute.Int("gemini.actual_tokens", tokens))
			return out, nil
		})
		if err != nil {
			return err
		}
		text = result.(string)
		return nil
	})

	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		span.SetAttributes(attribute.String("gemini.error_message", err.Error()))

		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		var timeoutErr *models.TimeoutError
		if errors.As(err, &timeoutErr) {
			return "", err
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
		}
		return "", &models.GenerationError{Model: gc.model, Err: err}
	}

	span.SetAttributes(attribute.Bool("gemini.success", true))
	return text, nil
}

func NewTokenCounter(limits RateLimits) *TokenCounter {
	now := time.Now()
	return &TokenCounter{limits: limits, lastMinuteReset: now, lastDayReset: now}
}

func (tc *TokenCounter) CanConsume(tokens, requests int) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	now := time.Now()

	if now.Sub(tc.lastMinuteReset) >= time.Minute {
		tc.minuteTokens = 0
		tc.minuteRequests = 0
		tc.lastMinuteReset = now
	}

	if now.Sub(tc.lastDayReset) >= 24*time.Hour {
		tc.dailyTokens = 0
		tc.dailyRequests = 0
		tc.lastDayReset = now
	}

	if tc.minuteRequests+requests > tc.limits.RPM {
		return false
	}
	if tc.minuteTokens+tokens > tc.limits.TPM {
		return false
	}
	if tc.dailyRequests+requests > tc.limits.RPD {
		return false
	}

	return true
}

func (tc *TokenCounter) RecordUsage(tokens, requests int) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.minuteTokens += tokens
	tc.minuteRequests += requests
	tc.dailyTokens += tokens
	tc.dailyRequests += requests
}

// estimateTokens uses the rough 4 characters per token ratio.
func estimateTokens(prompt string) int {
	return len(prompt) / 4
}

func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		// first candidate only
		break
	}
	return strings.TrimSpace(sb.String())
}

func extractTokenUsage(resp *genai.GenerateContentResponse, text string) int {
	if resp.UsageMetadata != nil && resp.UsageMetadata.TotalTokenCount > 0 {
		return int(resp.UsageMetadata.TotalTokenCount)
	}
	estimated := len(text) / 4
	if estimated < 1 {
		estimated = 1
	}
	return estimated
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
