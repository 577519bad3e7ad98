package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"textbook-rag/internal/config"
	"textbook-rag/internal/embedding"
	"textbook-rag/internal/generator"
	"textbook-rag/internal/retriever"
	"textbook-rag/internal/vectordb"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	bookID := flag.String("book", "", "Book to query")
	flag.Parse()

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

	provider, err := embedding.NewProvider(&cfg.Embedding)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedding provider")
	}
	gateway := embedding.NewGateway(provider,
		embedding.WithBatchSize(cfg.Embedding.BatchSize),
		embedding.WithRetry(cfg.Retry.EmbedAttempts, cfg.Retry.EmbedBaseDelay()),
	)

	model, err := generator.NewModel(&cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing LLM client")
	}

	ret := retriever.New(gateway, store, cfg.RAG.TopK, cfg.RAG.SimilarityThreshold)
	gen := generator.New(model, cfg.LLM.MaxTokens, cfg.LLM.Temperature)

	currentBook := *bookID
	fmt.Println("Textbook chatbot. Type a question, 'book <id>' to switch books, 'exit' to leave.")
	if currentBook != "" {
		fmt.Printf("Querying book: %s\n", currentBook)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			return
		case strings.HasPrefix(line, "book "):
			currentBook = strings.TrimSpace(strings.TrimPrefix(line, "book "))
			fmt.Printf("Querying book: %s\n", currentBook)
			continue
		}
		if currentBook == "" {
			fmt.Println("No book selected. Use 'book <id>' first.")
			continue
		}

		sources, chunks, err := ret.Retrieve(ctx, line, currentBook)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		result, err := gen.AnswerGlobal(ctx, line, chunks, sources)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}

		fmt.Printf("\n%s\n", result.Answer)
		if len(result.Sources) > 0 {
			fmt.Println("\nSources:")
			for _, src := range result.Sources {
				fmt.Printf("  - [%s, p.%d] %s\n", src.Chapter, src.PageNumber, src.Text)
			}
		}
		fmt.Println()
	}
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
