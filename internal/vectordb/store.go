// Package vectordb owns the similarity index: collection schema, payload
// indexing, point upsert, and filtered search. Two backends implement the
// same Store contract: a Qdrant REST client and an embedded chromem-go
// store.
package vectordb

import (
	"context"
	"errors"
	"fmt"

	"textbook-rag/internal/models"
)

// ErrUnavailable wraps connectivity failures so retry layers can tell
// transient errors from precondition failures.
var ErrUnavailable = errors.New("vector index unavailable")

// Point is one indexed chunk: identity, vector, and payload metadata.
type Point struct {
	ID      uint64
	Vector  []float32
	Payload Payload
}

// Payload is the metadata stored alongside each vector. book_id and chapter
// are index-filtered fields.
type Payload struct {
	BookID     string `json:"book_id"`
	ChunkID    uint64 `json:"chunk_id"`
	Content    string `json:"content"`
	Chapter    string `json:"chapter,omitempty"`
	PageNumber int    `json:"page_number,omitempty"`
	Position   int    `json:"position"`
	Title      string `json:"title,omitempty"`
	SourceFile string `json:"source_file,omitempty"`
}

// Hit is one search result, ordered by descending score.
type Hit struct {
	ID      uint64
	Score   float32
	Payload Payload
}

// Store is the vector index contract used by the retriever and the indexing
// orchestrator.
type Store interface {
	// EnsureCollection creates the collection if it is missing. It is
	// idempotent and never errors on an already existing collection.
	EnsureCollection(ctx context.Context, vectorSize int) error

	// CreateFieldIndex registers a payload field for equality filtering.
	CreateFieldIndex(ctx context.Context, field string) error

	// Upsert writes points by ID, last write wins. Connectivity failures
	// surface wrapped in ErrUnavailable.
	Upsert(ctx context.Context, points []Point) error

	// Search returns up to limit hits with score >= scoreThreshold,
	// filtered to bookID when it is non-empty, in descending score order.
	// Search is never retried internally.
	Search(ctx context.Context, vector []float32, bookID string, limit int, scoreThreshold float32) ([]Hit, error)

	// Count reports how many points a book currently has in the index.
	Count(ctx context.Context, bookID string) (int, error)

	Close() error
}

// ChunkFromPayload rebuilds the typed chunk record a payload was built from.
func ChunkFromPayload(p Payload) models.Chunk {
	return models.Chunk{
		ChunkID:    p.ChunkID,
		BookID:     p.BookID,
		Content:    p.Content,
		Chapter:    p.Chapter,
		PageNumber: p.PageNumber,
		Position:   p.Position,
	}
}

// PayloadFromChunk builds the stored payload for a chunk, attaching the
// optional document metadata.
func PayloadFromChunk(c models.Chunk, title, sourceFile string) Payload {
	return Payload{
		BookID:     c.BookID,
		ChunkID:    c.ChunkID,
		Content:    c.Content,
		Chapter:    c.Chapter,
		PageNumber: c.PageNumber,
		Position:   c.Position,
		Title:      title,
		SourceFile: sourceFile,
	}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
