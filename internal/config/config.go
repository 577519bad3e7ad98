// Package config loads the application configuration from a YAML file with
// optional .env loading and environment overrides for secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr                string `yaml:"addr"`
	ShutdownTimeoutSecs int    `yaml:"shutdown_timeout_secs"`
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSecs) * time.Second
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // openai | ollama
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	VectorSize int    `yaml:"vector_size"`
	BatchSize  int    `yaml:"batch_size"`
	// TaskPrefixes enables nomic-style search_document/search_query task
	// prefixes for models that encode the input type in the text itself.
	TaskPrefixes bool `yaml:"task_prefixes"`
}

// LLMConfig configures the generation provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai | ollama
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// QdrantConfig contains connection details for a Qdrant vector index.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ChromemConfig configures the embedded chromem-go vector store.
type ChromemConfig struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	InMemory   bool   `yaml:"in_memory"`
}

// VectorStoreConfig selects the vector store backend.
type VectorStoreConfig struct {
	Type    string        `yaml:"type"` // qdrant | chromem
	Qdrant  QdrantConfig  `yaml:"qdrant"`
	Chromem ChromemConfig `yaml:"chromem"`
}

// RAGConfig holds chunking and retrieval parameters.
type RAGConfig struct {
	ChunkSize           int     `yaml:"chunk_size"`    // tokens
	ChunkOverlap        int     `yaml:"chunk_overlap"` // tokens
	CharsPerToken       int     `yaml:"chars_per_token"`
	TopK                int     `yaml:"top_k"`
	SimilarityThreshold float32 `yaml:"similarity_threshold"`
}

// RetryConfig bounds retries around network calls. Delays are in seconds.
type RetryConfig struct {
	EmbedAttempts      int `yaml:"embed_attempts"`
	EmbedBaseDelaySecs int `yaml:"embed_base_delay_secs"`
	UpsertAttempts     int `yaml:"upsert_attempts"`
	UpsertDelaySecs    int `yaml:"upsert_delay_secs"`
	IndexAttempts      int `yaml:"index_attempts"`
	IndexDelaySecs     int `yaml:"index_delay_secs"`
}

// EmbedBaseDelay returns the backoff base delay for embedding calls.
func (c RetryConfig) EmbedBaseDelay() time.Duration {
	return time.Duration(c.EmbedBaseDelaySecs) * time.Second
}

// UpsertDelay returns the fixed delay between upsert attempts.
func (c RetryConfig) UpsertDelay() time.Duration {
	return time.Duration(c.UpsertDelaySecs) * time.Second
}

// IndexDelay returns the fixed delay between whole-pipeline attempts.
func (c RetryConfig) IndexDelay() time.Duration {
	return time.Duration(c.IndexDelaySecs) * time.Second
}

// DatabaseConfig configures the optional Postgres book registry.
type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

// Config is the root application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	LLM         LLMConfig         `yaml:"llm"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	RAG         RAGConfig         `yaml:"rag"`
	Retry       RetryConfig       `yaml:"retry"`
	Database    DatabaseConfig    `yaml:"database"`
	// Chapters maps documentation path fragments to chapter labels for
	// batch ingestion.
	Chapters map[string]string `yaml:"chapters"`
}

// Load reads the config at path. A missing file yields defaults rather than
// an error; a present but malformed file fails fast.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("QDRANT_URL"); v != "" {
		cfg.VectorStore.Qdrant.URL = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		cfg.VectorStore.Qdrant.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.ShutdownTimeoutSecs == 0 {
		cfg.Server.ShutdownTimeoutSecs = 10
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "ollama"
	}
	if cfg.Embedding.BaseURL == "" {
		if cfg.Embedding.Provider == "ollama" {
			cfg.Embedding.BaseURL = "http://localhost:11434"
		} else {
			cfg.Embedding.BaseURL = "https://api.openai.com/v1"
		}
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.VectorSize == 0 {
		cfg.Embedding.VectorSize = 768
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 20
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
	}
	if cfg.LLM.BaseURL == "" {
		if cfg.LLM.Provider == "ollama" {
			cfg.LLM.BaseURL = "http://localhost:11434"
		} else {
			cfg.LLM.BaseURL = "https://api.openai.com/v1"
		}
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3.1"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 500
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.1
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "qdrant"
	}
	if cfg.VectorStore.Qdrant.URL == "" {
		cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
	}
	if cfg.VectorStore.Qdrant.Collection == "" {
		cfg.VectorStore.Qdrant.Collection = "book_chunks"
	}
	if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
		cfg.VectorStore.Qdrant.TimeoutSecs = 30
	}
	if cfg.VectorStore.Chromem.Path == "" {
		cfg.VectorStore.Chromem.Path = "./chromemdb"
	}
	if cfg.VectorStore.Chromem.Collection == "" {
		cfg.VectorStore.Chromem.Collection = "book_chunks"
	}

	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 400
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 75
	}
	if cfg.RAG.CharsPerToken == 0 {
		cfg.RAG.CharsPerToken = 4
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 5
	}
	if cfg.RAG.SimilarityThreshold == 0 {
		cfg.RAG.SimilarityThreshold = 0.5
	}

	if cfg.Retry.EmbedAttempts == 0 {
		cfg.Retry.EmbedAttempts = 3
	}
	if cfg.Retry.EmbedBaseDelaySecs == 0 {
		cfg.Retry.EmbedBaseDelaySecs = 1
	}
	if cfg.Retry.UpsertAttempts == 0 {
		cfg.Retry.UpsertAttempts = 3
	}
	if cfg.Retry.UpsertDelaySecs == 0 {
		cfg.Retry.UpsertDelaySecs = 5
	}
	if cfg.Retry.IndexAttempts == 0 {
		cfg.Retry.IndexAttempts = 3
	}
	if cfg.Retry.IndexDelaySecs == 0 {
		cfg.Retry.IndexDelaySecs = 5
	}

	if cfg.Chapters == nil {
		cfg.Chapters = DefaultChapters()
	}
}

// DefaultChapters mirrors the textbook docs layout used by batch ingestion.
func DefaultChapters() map[string]string {
	return map[string]string{
		"embodied-intelligence":   "Week 1-2: Foundations - Embodied Intelligence",
		"ros2-fundamentals":       "Week 3-4: ROS 2 Fundamentals",
		"gazebo-unity":            "Week 5-6: Simulation Environments",
		"nvidia-isaac":            "Week 7: NVIDIA Isaac",
		"vla-systems":             "Week 8-9: Vision-Language-Action Systems",
		"conversational-robotics": "Week 10-11: Conversational Robotics",
		"capstone-project":        "Week 12-13: Capstone Project",
		"appendix":                "Appendix",
	}
}
