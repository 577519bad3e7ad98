package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"textbook-rag/internal/chunker"
	"textbook-rag/internal/config"
	"textbook-rag/internal/embedding"
	"textbook-rag/internal/extract"
	"textbook-rag/internal/indexer"
	"textbook-rag/internal/vectordb"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	docsPath := flag.String("docs", "", "Path to the documentation tree")
	bookID := flag.String("book", "", "Book ID to index the documents under")
	flag.Parse()

	if *docsPath == "" || *bookID == "" {
		log.Fatal().Msg("Both -docs and -book are required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	ctx := context.Background()

	store, err := newVectorStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing vector store")
	}
	defer store.Close()

	if err := store.EnsureCollection(ctx, cfg.Embedding.VectorSize); err != nil {
		log.Fatal().Err(err).Msg("Error ensuring collection")
	}
	for _, field := range []string{"book_id", "chapter"} {
		if err := store.CreateFieldIndex(ctx, field); err != nil {
			log.Fatal().Err(err).Str("field", field).Msg("Error creating field index")
		}
	}

	provider, err := embedding.NewProvider(&cfg.Embedding)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedding provider")
	}
	gateway := embedding.NewGateway(provider,
		embedding.WithBatchSize(cfg.Embedding.BatchSize),
		embedding.WithRetry(cfg.Retry.EmbedAttempts, cfg.Retry.EmbedBaseDelay()),
	)

	ch := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, cfg.RAG.CharsPerToken)
	ix := indexer.New(ch, gateway, store, cfg.Retry.IndexAttempts, cfg.Retry.IndexDelay())

	indexed, failed, chunks := 0, 0, 0
	err = filepath.WalkDir(*docsPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isMarkdown(path) {
			return nil
		}

		page, err := extract.MarkdownFile(path, cfg.Chapters)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("Extraction failed, skipping")
			failed++
			return nil
		}
		if strings.TrimSpace(page.Text) == "" {
			log.Debug().Str("file", path).Msg("Empty page, skipping")
			return nil
		}

		title := page.Title
		if title == "" {
			title = page.Name
		}

		// One document at a time keeps memory bounded and stays inside
		// embedding provider rate limits. The running chunk count offsets
		// each document's positions so chunk IDs stay unique across the
		// whole book.
		result, err := ix.IndexDocument(ctx, indexer.Document{
			BookID:        *bookID,
			Content:       page.Text,
			Title:         title,
			Chapter:       page.Chapter,
			SourceFile:    path,
			FirstPosition: chunks,
		})
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("Indexing failed, continuing")
			failed++
			return nil
		}

		indexed++
		chunks += result.ChunksIndexed
		log.Info().Str("file", path).Str("chapter", page.Chapter).Int("chunks", result.ChunksIndexed).Msg("Indexed")
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error walking docs tree")
	}

	total, err := store.Count(ctx, *bookID)
	if err != nil {
		log.Warn().Err(err).Msg("Could not count indexed points")
	}

	log.Info().
		Int("files_indexed", indexed).
		Int("files_failed", failed).
		Int("chunks_indexed", chunks).
		Int("points_in_index", total).
		Msg("Ingestion complete")
}

func isMarkdown(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".mdx"
}

func newVectorStore(cfg *config.Config) (vectordb.Store, error) {
	switch cfg.VectorStore.Type {
	case "qdrant":
		return vectordb.NewQdrant(&cfg.VectorStore.Qdrant, &cfg.Retry), nil
	case "chromem":
		return vectordb.NewChromem(&cfg.VectorStore.Chromem)
	default:
		return nil, fmt.Errorf("unsupported vector store type: %s", cfg.VectorStore.Type)
	}
}
