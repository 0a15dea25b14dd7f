package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/qanoonai/backend/internal/metrics"
	"github.com/qanoonai/backend/pkg/circuitbreaker"
	"github.com/qanoonai/backend/pkg/logger"
	"github.com/qanoonai/backend/pkg/retry"
)

var (
	ErrEmptyEmbedding    = errors.New("embedding provider returned no vector")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Provider turns text into fixed-length vectors.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
	Timeout   time.Duration
	BatchSize int
}

type Client struct {
	client      *openai.Client
	model       string
	dimension   int
	timeout     time.Duration
	batchSize   int
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(cfg Config) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	cb := circuitbreaker.NewCircuitBreaker("embedding", circuitbreaker.Config{
		MaxRequests:      2,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		IsFailure:        isProviderFault,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		ShouldRetry:    isTransient,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Embedding client initialized",
		zap.String("model", cfg.Model),
		zap.Int("dimension", cfg.Dimension),
	)

	return &Client{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		dimension:   cfg.Dimension,
		timeout:     cfg.Timeout,
		batchSize:   cfg.BatchSize,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

// Embed makes a single attempt; query-time callers surface failures rather
// than wait out retries.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var vectors [][]float32
	err := c.cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		vectors, err = c.create(ctx, []string{text})
		return err
	})
	if err != nil {
		metrics.EmbeddingRequests.WithLabelValues("query", "error").Inc()
		return nil, err
	}
	metrics.EmbeddingRequests.WithLabelValues("query", "ok").Inc()
	return vectors[0], nil
}

// EmbedBatch embeds texts in provider-sized batches, retrying transient
// failures. The result is index-aligned with texts.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += c.batchSize {
		end := i + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := texts[i:end]
		vectors, err := retry.DoWithResult(ctx, c.retryConfig, func(ctx context.Context) ([][]float32, error) {
			ctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			var vectors [][]float32
			err := c.cb.Execute(ctx, func(ctx context.Context) error {
				var err error
				vectors, err = c.create(ctx, batch)
				return err
			})
			return vectors, err
		})
		if err != nil {
			metrics.EmbeddingRequests.WithLabelValues("batch", "error").Inc()
			return nil, fmt.Errorf("failed to embed batch %d-%d: %w", i, end, err)
		}
		metrics.EmbeddingRequests.WithLabelValues("batch", "ok").Inc()
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *Client) create(ctx context.Context, input []string) ([][]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: input,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(resp.Data) != len(input) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", ErrEmptyEmbedding, len(resp.Data), len(input))
	}

	metrics.EmbeddingTokensUsed.WithLabelValues(c.model).Add(float64(resp.Usage.TotalTokens))

	vectors := make([][]float32, len(input))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(input) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%w: input %d", ErrEmptyEmbedding, d.Index)
		}
		if c.dimension > 0 && len(d.Embedding) != c.dimension {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(d.Embedding), c.dimension)
		}
		vectors[d.Index] = d.Embedding
	}

	logger.Debug("Embeddings generated",
		zap.Int("inputs", len(input)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return vectors, nil
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// isTransient treats throttling, server errors and transport failures as
// retryable; malformed requests and bad credentials are not.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, ErrDimensionMismatch) {
		return false
	}
	code := statusCode(err)
	return code == 0 || code == http.StatusTooManyRequests || code >= 500
}

// isProviderFault keeps client-side mistakes from opening the breaker.
func isProviderFault(err error) bool {
	code := statusCode(err)
	return code == 0 || code == http.StatusTooManyRequests || code >= 500
}
