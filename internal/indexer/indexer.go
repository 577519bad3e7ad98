// Package indexer drives the ingestion pipeline: chunk a document, embed
// the chunks in document mode, and upsert the resulting points. The whole
// pipeline is retried per document on transient index failures.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"textbook-rag/internal/chunker"
	"textbook-rag/internal/models"
	"textbook-rag/internal/vectordb"
)

// Embedder is the document-side slice of the embedding gateway.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Document is one ingestion request.
type Document struct {
	BookID     string
	Content    string
	Title      string
	Chapter    string
	PageNumber int
	SourceFile string

	// FirstPosition offsets the chunk position sequence. Callers indexing
	// several documents under one book pass the running chunk count here;
	// chunk IDs derive from book and position, so without the offset every
	// document would reuse positions 0..n and overwrite its predecessors.
	FirstPosition int
}

// Section is a part of a multi-part document (a PDF page, a spreadsheet
// sheet) indexed under one book with a continuous position sequence.
type Section struct {
	Text       string
	Chapter    string
	PageNumber int
}

// Result summarizes one indexing run.
type Result struct {
	BookID        string `json:"book_id"`
	Status        string `json:"status"`
	ChunksIndexed int    `json:"chunks_indexed"`
}

// Indexer orchestrates Chunker, Embedding Gateway, and the vector store.
type Indexer struct {
	chunker  *chunker.Chunker
	embedder Embedder
	store    vectordb.Store

	maxAttempts int
	retryDelay  time.Duration
}

// New builds the orchestrator. Attempts and delay bound the per-document
// pipeline retry.
func New(ch *chunker.Chunker, embedder Embedder, store vectordb.Store, maxAttempts int, retryDelay time.Duration) *Indexer {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Indexer{
		chunker:     ch,
		embedder:    embedder,
		store:       store,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
	}
}

// IndexDocument chunks, embeds, and upserts one document. Transient index
// failures retry the whole sequence; precondition failures surface
// immediately.
func (ix *Indexer) IndexDocument(ctx context.Context, doc Document) (Result, error) {
	if doc.BookID == "" {
		return Result{}, fmt.Errorf("book id is required")
	}
	return ix.indexSections(ctx, doc.BookID, doc.Title, doc.SourceFile, doc.FirstPosition, []Section{{
		Text:       doc.Content,
		Chapter:    doc.Chapter,
		PageNumber: doc.PageNumber,
	}})
}

// IndexSections indexes a multi-section document under one book, keeping
// one strictly increasing chunk position sequence across sections.
func (ix *Indexer) IndexSections(ctx context.Context, bookID, title, sourceFile string, sections []Section) (Result, error) {
	if bookID == "" {
		return Result{}, fmt.Errorf("book id is required")
	}
	return ix.indexSections(ctx, bookID, title, sourceFile, 0, sections)
}

func (ix *Indexer) indexSections(ctx context.Context, bookID, title, sourceFile string, firstPosition int, sections []Section) (Result, error) {
	var lastErr error
	for attempt := 1; attempt <= ix.maxAttempts; attempt++ {
		result, err := ix.runPipeline(ctx, bookID, title, sourceFile, firstPosition, sections)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, vectordb.ErrUnavailable) {
			return Result{}, err
		}
		lastErr = err
		if attempt == ix.maxAttempts {
			break
		}
		log.Warn().Err(err).Str("book_id", bookID).Int("attempt", attempt).Msg("indexing failed, retrying")
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(ix.retryDelay):
		}
	}
	return Result{}, fmt.Errorf("indexing book %s after %d attempts: %w", bookID, ix.maxAttempts, lastErr)
}

func (ix *Indexer) runPipeline(ctx context.Context, bookID, title, sourceFile string, firstPosition int, sections []Section) (Result, error) {
	var chunks []models.Chunk
	position := firstPosition
	for _, section := range sections {
		sectionChunks := ix.chunker.Chunk(section.Text, chunker.Meta{
			BookID:        bookID,
			Chapter:       section.Chapter,
			PageNumber:    section.PageNumber,
			FirstPosition: position,
		})
		chunks = append(chunks, sectionChunks...)
		position += len(sectionChunks)
	}
	if len(chunks) == 0 {
		log.Info().Str("book_id", bookID).Msg("no chunks produced, nothing to index")
		return Result{BookID: bookID, Status: models.BookStatusCompleted, ChunksIndexed: 0}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return Result{}, fmt.Errorf("embedding %d chunks for book %s: %w", len(chunks), bookID, err)
	}
	if len(vectors) != len(chunks) {
		return Result{}, fmt.Errorf("embedding count mismatch for book %s: %d chunks, %d vectors", bookID, len(chunks), len(vectors))
	}

	points := make([]vectordb.Point, len(chunks))
	for i, c := range chunks {
		points[i] = vectordb.Point{
			ID:      c.ChunkID,
			Vector:  vectors[i],
			Payload: vectordb.PayloadFromChunk(c, title, sourceFile),
		}
	}
	if err := ix.store.Upsert(ctx, points); err != nil {
		return Result{}, fmt.Errorf("upserting %d points for book %s: %w", len(points), bookID, err)
	}

	log.Info().Str("book_id", bookID).Int("chunks", len(points)).Msg("indexed document")
	return Result{BookID: bookID, Status: models.BookStatusCompleted, ChunksIndexed: len(points)}, nil
}
