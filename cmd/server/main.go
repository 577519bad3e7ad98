package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"textbook-rag/internal/bookstore"
	"textbook-rag/internal/chunker"
	"textbook-rag/internal/config"
	"textbook-rag/internal/embedding"
	"textbook-rag/internal/generator"
	"textbook-rag/internal/indexer"
	"textbook-rag/internal/retriever"
	"textbook-rag/internal/server"
	"textbook-rag/internal/vectordb"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
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

	model, err := generator.NewModel(&cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing LLM client")
	}

	books, err := newBookStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing book registry")
	}
	defer books.Close()

	ret := retriever.New(gateway, store, cfg.RAG.TopK, cfg.RAG.SimilarityThreshold)
	gen := generator.New(model, cfg.LLM.MaxTokens, cfg.LLM.Temperature)
	ch := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, cfg.RAG.CharsPerToken)
	ix := indexer.New(ch, gateway, store, cfg.Retry.IndexAttempts, cfg.Retry.IndexDelay())

	srv := server.New(ret, gen, ix, books)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

func newVectorStore(cfg *config.Config) (vectordb.Store, error) {
	switch cfg.VectorStore.Type {
	case "qdrant":
		return vectordb.NewQdrant(&cfg.VectorStore.Qdrant, &cfg.Retry), nil
	case "chromem":
		return vectordb.NewChromem(&cfg.VectorStore.Chromem)
	default:
		return nil, errors.New("unsupported vector store type: " + cfg.VectorStore.Type)
	}
}

func newBookStore(ctx context.Context, cfg *config.Config) (bookstore.Store, error) {
	if cfg.Database.DSN == "" {
		log.Info().Msg("No database configured, using in-memory book registry")
		return bookstore.NewMemory(), nil
	}
	return bookstore.NewPostgres(ctx, &cfg.Database)
}
