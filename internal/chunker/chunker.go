// Package chunker splits raw document text into overlapping token-bounded
// chunks with deterministic identifiers. It is pure computation: no I/O.
package chunker

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"textbook-rag/internal/models"
)

const (
	// DefaultCharsPerToken approximates token counts by character counts
	// (1 token ~ 4 chars). The factor is configurable so a real tokenizer
	// can be substituted without changing the control flow.
	DefaultCharsPerToken = 4

	// maxOverlapLookback bounds how many preceding sentences the overlap
	// window may walk back through.
	maxOverlapLookback = 10

	// chunkIDModulus keeps chunk IDs within 9 digits for vector-store
	// point-ID compatibility.
	chunkIDModulus = 1_000_000_000
)

var sentenceSplitter = regexp.MustCompile(`[.!?]+\s+`)

// Meta carries the document metadata stamped onto every produced chunk.
type Meta struct {
	BookID     string
	Chapter    string
	PageNumber int

	// FirstPosition offsets the zero-based position counter, letting a
	// multi-section document (per-page PDF text) keep one strictly
	// increasing position sequence across sections.
	FirstPosition int
}

// Chunker accumulates sentences into chunks of at most Size estimated
// tokens, seeding each chunk after the first with up to Overlap estimated
// tokens of trailing sentences from its predecessor.
type Chunker struct {
	size          int
	overlap       int
	charsPerToken int
}

// New returns a Chunker for the given size and overlap, both in estimated
// tokens. Non-positive charsPerToken falls back to the default factor.
func New(size, overlap, charsPerToken int) *Chunker {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Chunker{size: size, overlap: overlap, charsPerToken: charsPerToken}
}

// Chunk splits text into ordered chunk records. Empty input yields nil. A
// single sentence longer than the size budget is emitted as its own
// oversized chunk; the limit is advisory, not enforced hard.
func (c *Chunker) Chunk(text string, meta Meta) []models.Chunk {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	maxChars := c.size * c.charsPerToken
	overlapChars := c.overlap * c.charsPerToken

	var chunks []models.Chunk
	var current []string
	currentLen := 0
	position := meta.FirstPosition

	flush := func() {
		content := strings.TrimSpace(strings.Join(current, " "))
		if content == "" {
			return
		}
		chunks = append(chunks, models.Chunk{
			ChunkID:    ChunkID(meta.BookID, position),
			BookID:     meta.BookID,
			Content:    content,
			Chapter:    meta.Chapter,
			PageNumber: meta.PageNumber,
			Position:   position,
		})
		position++
	}

	for i, sentence := range sentences {
		if currentLen+len(sentence) > maxChars && len(current) > 0 {
			flush()

			// Seed the next buffer with trailing sentences of the
			// finished chunk, bounded by the overlap budget.
			window, windowLen := overlapWindow(sentences, i, overlapChars)
			current = append(window, sentence)
			currentLen = windowLen + len(sentence)
			continue
		}
		current = append(current, sentence)
		currentLen += len(sentence)
	}
	flush()

	return chunks
}

// ChunkID derives the stable identifier for the chunk at the given position
// of a document. Identical inputs always produce identical IDs, so
// re-ingestion overwrites rather than duplicates.
func ChunkID(bookID string, position int) uint64 {
	if bookID == "" {
		bookID = "unknown_book"
	}
	h := fnv.New64a()
	fmt.Fprintf(h, "%s_chunk_%d", bookID, position)
	return h.Sum64() % chunkIDModulus
}

func splitSentences(text string) []string {
	parts := sentenceSplitter.Split(text, -1)
	sentences := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}

// overlapWindow walks backward from the sentence before index i, collecting
// sentences while they fit the overlap budget, up to a bounded lookback.
func overlapWindow(sentences []string, i, overlapChars int) ([]string, int) {
	var window []string
	total := 0
	for j := i - 1; j >= 0 && j >= i-maxOverlapLookback; j-- {
		if total+len(sentences[j]) > overlapChars {
			break
		}
		window = append([]string{sentences[j]}, window...)
		total += len(sentences[j])
	}
	return window, total
}
