// Package retriever turns a question into ranked source references: embed
// the question, run a book-scoped similarity search, and project surviving
// hits into caller-facing references.
package retriever

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"textbook-rag/internal/models"
	"textbook-rag/internal/vectordb"
)

// Embedder is the query-side slice of the embedding gateway.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retriever orchestrates query embedding and filtered search.
type Retriever struct {
	embedder Embedder
	store    vectordb.Store

	topK           int
	scoreThreshold float32
}

// New builds a retriever with the given retrieval parameters.
func New(embedder Embedder, store vectordb.Store, topK int, scoreThreshold float32) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{
		embedder:       embedder,
		store:          store,
		topK:           topK,
		scoreThreshold: scoreThreshold,
	}
}

// Retrieve returns the sources backing a question, in descending relevance
// order. Hits below the score threshold never survive, even if the index
// fails to enforce its own cutoff.
func (r *Retriever) Retrieve(ctx context.Context, question, bookID string) ([]models.SourceReference, []models.Chunk, error) {
	vector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding question: %w", err)
	}

	hits, err := r.store.Search(ctx, vector, bookID, r.topK, r.scoreThreshold)
	if err != nil {
		return nil, nil, fmt.Errorf("searching index: %w", err)
	}

	var sources []models.SourceReference
	var chunks []models.Chunk
	for _, hit := range hits {
		// Defense in depth: the index applies the threshold too, with the
		// same comparator.
		if hit.Score < r.scoreThreshold {
			continue
		}
		chunk := vectordb.ChunkFromPayload(hit.Payload)
		chunks = append(chunks, chunk)
		sources = append(sources, models.SourceReference{
			ChunkID:    chunk.ChunkID,
			Chapter:    chunk.Chapter,
			PageNumber: chunk.PageNumber,
			Text:       models.TruncateText(chunk.Content, models.SourceExcerptLength),
		})
	}

	log.Debug().Str("book_id", bookID).Int("hits", len(hits)).Int("kept", len(chunks)).Msg("retrieved context")
	return sources, chunks, nil
}
