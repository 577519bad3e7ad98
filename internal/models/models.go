package models

import "time"

// Chunk is the unit of indexed content: a bounded contiguous slice of
// document text plus positional metadata. Chunks are immutable once
// embedded; re-ingesting the same document overwrites chunks that share a
// deterministic ID.
type Chunk struct {
	ChunkID    uint64 `json:"chunk_id"`
	BookID     string `json:"book_id"`
	Content    string `json:"content"`
	Chapter    string `json:"chapter,omitempty"`
	PageNumber int    `json:"page_number,omitempty"`
	Position   int    `json:"position"`
}

// SourceReference is the caller-facing projection of a chunk, or of literal
// selected text, attached to an answer.
type SourceReference struct {
	ChunkID    uint64 `json:"chunk_id,omitempty"`
	Chapter    string `json:"chapter,omitempty"`
	PageNumber int    `json:"page_number,omitempty"`
	Text       string `json:"text"`
}

// QueryResult couples an answer with the sources that ground it.
// An empty source list always carries the canonical refusal answer, and a
// non-empty list never does.
type QueryResult struct {
	Answer  string            `json:"answer"`
	Sources []SourceReference `json:"sources"`
}

// Book indexing states kept in the registry.
const (
	BookStatusIndexing  = "indexing"
	BookStatusCompleted = "completed"
	BookStatusFailed    = "failed"
)

// Book is a registry record for an uploaded book.
type Book struct {
	BookID        string    `json:"book_id"`
	Title         string    `json:"title"`
	Author        string    `json:"author,omitempty"`
	Status        string    `json:"status"`
	ChunksIndexed int       `json:"chunks_indexed"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TruncateText shortens s for display in a source reference, appending an
// ellipsis marker when content was cut.
func TruncateText(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
