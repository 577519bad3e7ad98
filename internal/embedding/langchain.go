package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"textbook-rag/internal/config"
)

// LangchainProvider adapts any langchaingo embedder client to the Provider
// interface. OpenAI-compatible endpoints take no input-type parameter, so
// the document/query distinction is carried by task prefixes when the
// configured model expects them (nomic-style models); otherwise the mode is
// accepted and ignored.
type LangchainProvider struct {
	client       embeddings.EmbedderClient
	taskPrefixes bool
}

// NewProvider builds the configured embedding provider client.
func NewProvider(cfg *config.EmbeddingConfig) (*LangchainProvider, error) {
	var client embeddings.EmbedderClient
	var err error
	switch cfg.Provider {
	case "openai":
		client, err = openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
			openai.WithModel(cfg.Model),
			openai.WithEmbeddingModel(cfg.Model),
		)
	case "ollama":
		client, err = ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s embedding client: %w", cfg.Provider, err)
	}
	return &LangchainProvider{client: client, taskPrefixes: cfg.TaskPrefixes}, nil
}

// NewLangchainProvider wraps an existing embedder client.
func NewLangchainProvider(client embeddings.EmbedderClient, taskPrefixes bool) *LangchainProvider {
	return &LangchainProvider{client: client, taskPrefixes: taskPrefixes}
}

// Embed implements Provider.
func (p *LangchainProvider) Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	if p.taskPrefixes {
		prefixed := make([]string, len(texts))
		for i, t := range texts {
			prefixed[i] = string(mode) + ": " + t
		}
		texts = prefixed
	}
	return p.client.CreateEmbedding(ctx, texts)
}
