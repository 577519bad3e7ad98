// Package embedding batches texts to an embedding provider, respecting
// provider batch limits and retrying transient failures with exponential
// backoff. The same gateway serves document indexing and query embedding;
// the two use distinct provider modes because they map to different regions
// of the embedding space on providers that distinguish them.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Mode selects the provider-side embedding variant.
type Mode string

const (
	ModeDocument Mode = "search_document"
	ModeQuery    Mode = "search_query"
)

// Provider turns a batch of texts into one vector per text.
type Provider interface {
	Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error)
}

const (
	DefaultBatchSize = 20

	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
	maxBackoffDelay    = 30 * time.Second
)

// Gateway batches and retries calls to an embedding Provider.
type Gateway struct {
	provider    Provider
	batchSize   int
	maxAttempts int
	baseDelay   time.Duration
}

// Option adjusts gateway behavior.
type Option func(*Gateway)

// WithBatchSize caps the number of texts sent per provider call.
func WithBatchSize(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.batchSize = n
		}
	}
}

// WithRetry sets the attempt count and backoff base delay.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(g *Gateway) {
		if attempts > 0 {
			g.maxAttempts = attempts
		}
		if baseDelay > 0 {
			g.baseDelay = baseDelay
		}
	}
}

// NewGateway wraps a provider with batching and bounded retry.
func NewGateway(provider Provider, opts ...Option) *Gateway {
	g := &Gateway{
		provider:    provider,
		batchSize:   DefaultBatchSize,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// EmbedDocuments embeds texts in document mode, one provider call per batch,
// concatenating results in input order.
func (g *Gateway) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += g.batchSize {
		end := start + g.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := g.embedWithRetry(ctx, texts[start:end], ModeDocument)
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedding batch %d-%d: expected %d vectors, got %d", start, end, end-start, len(batch))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// EmbedQuery embeds a single question in query mode.
func (g *Gateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.embedWithRetry(ctx, []string{text}, ModeQuery)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding query: expected 1 vector, got %d", len(vectors))
	}
	return vectors[0], nil
}

func (g *Gateway) embedWithRetry(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	var lastErr error
	delay := g.baseDelay
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		vectors, err := g.provider.Embed(ctx, texts, mode)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if attempt == g.maxAttempts {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("embedding call failed, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxBackoffDelay {
			delay = maxBackoffDelay
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", g.maxAttempts, lastErr)
}
