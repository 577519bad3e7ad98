package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, 768, cfg.Embedding.VectorSize)
	assert.Equal(t, 500, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.1, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, "qdrant", cfg.VectorStore.Type)
	assert.Equal(t, "book_chunks", cfg.VectorStore.Qdrant.Collection)
	assert.Equal(t, 400, cfg.RAG.ChunkSize)
	assert.Equal(t, 75, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.InDelta(t, 0.5, float64(cfg.RAG.SimilarityThreshold), 1e-6)
	assert.Equal(t, 3, cfg.Retry.EmbedAttempts)
	assert.Equal(t, time.Second, cfg.Retry.EmbedBaseDelay())
	assert.Equal(t, 5*time.Second, cfg.Retry.IndexDelay())
	assert.NotEmpty(t, cfg.Chapters)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
embedding:
  provider: openai
  model: text-embedding-3-small
  vector_size: 1536
rag:
  chunk_size: 256
  top_k: 3
vector_store:
  type: chromem
  chromem:
    path: /tmp/vectors
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 1536, cfg.Embedding.VectorSize)
	assert.Equal(t, 256, cfg.RAG.ChunkSize)
	assert.Equal(t, 3, cfg.RAG.TopK)
	assert.Equal(t, "chromem", cfg.VectorStore.Type)
	assert.Equal(t, "/tmp/vectors", cfg.VectorStore.Chromem.Path)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Embedding.BaseURL, "provider-aware default")
	assert.Equal(t, 75, cfg.RAG.ChunkOverlap, "unset fields keep defaults")
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EMBEDDING_API_KEY", "embed-key")
	t.Setenv("QDRANT_URL", "http://qdrant.internal:6333")
	t.Setenv("DATABASE_URL", "postgres://rag@db:5432/rag")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "embed-key", cfg.Embedding.APIKey)
	assert.Equal(t, "http://qdrant.internal:6333", cfg.VectorStore.Qdrant.URL)
	assert.Equal(t, "postgres://rag@db:5432/rag", cfg.Database.DSN)
}
