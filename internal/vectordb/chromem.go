package vectordb

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"textbook-rag/internal/config"
)

// Chromem is an embedded vector store backed by chromem-go. It serves local
// single-process deployments and tests; the Store semantics match the
// Qdrant backend.
type Chromem struct {
	db         *chromem.DB
	collection *chromem.Collection
	name       string

	mu    sync.Mutex
	books map[string]map[uint64]struct{}
}

// NewChromem opens (or creates) the configured database.
func NewChromem(cfg *config.ChromemConfig) (*Chromem, error) {
	var db *chromem.DB
	var err error
	if cfg.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("opening chromem db at %s: %w", cfg.Path, err)
		}
	}
	return &Chromem{
		db:    db,
		name:  cfg.Collection,
		books: make(map[string]map[uint64]struct{}),
	}, nil
}

// EnsureCollection creates or reopens the collection. Vector size is
// determined by the stored embeddings themselves, so only the name matters.
func (c *Chromem) EnsureCollection(ctx context.Context, vectorSize int) error {
	col, err := c.db.GetOrCreateCollection(c.name, nil, nil)
	if err != nil {
		return fmt.Errorf("creating chromem collection %s: %w", c.name, err)
	}
	c.collection = col
	log.Info().Str("collection", c.name).Msg("chromem collection ready")
	return nil
}

// CreateFieldIndex is a no-op: chromem filters payload metadata without a
// dedicated index structure.
func (c *Chromem) CreateFieldIndex(ctx context.Context, field string) error {
	return nil
}

// Upsert adds documents with precomputed embeddings; same-ID writes
// overwrite.
func (c *Chromem) Upsert(ctx context.Context, points []Point) error {
	if c.collection == nil {
		return fmt.Errorf("collection %s not initialized", c.name)
	}
	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		docs[i] = chromem.Document{
			ID:        strconv.FormatUint(p.ID, 10),
			Content:   p.Payload.Content,
			Embedding: p.Vector,
			Metadata:  metadataFromPayload(p.Payload),
		}
	}
	if err := c.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding %d documents: %w", len(docs), err)
	}

	c.mu.Lock()
	for _, p := range points {
		ids := c.books[p.Payload.BookID]
		if ids == nil {
			ids = make(map[uint64]struct{})
			c.books[p.Payload.BookID] = ids
		}
		ids[p.ID] = struct{}{}
	}
	c.mu.Unlock()
	return nil
}

// Search queries by embedding with an equality filter on book_id, dropping
// hits under the threshold.
func (c *Chromem) Search(ctx context.Context, vector []float32, bookID string, limit int, scoreThreshold float32) ([]Hit, error) {
	if c.collection == nil {
		return nil, fmt.Errorf("collection %s not initialized", c.name)
	}
	if limit <= 0 {
		limit = 5
	}
	// chromem rejects result counts above the collection size.
	if n := c.collection.Count(); limit > n {
		limit = n
	}
	if limit == 0 {
		return nil, nil
	}

	opts := chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       limit,
	}
	if bookID != "" {
		opts.Where = map[string]string{"book_id": bookID}
	}
	results, err := c.collection.QueryWithOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", c.name, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		if r.Similarity < scoreThreshold {
			continue
		}
		id, _ := strconv.ParseUint(r.ID, 10, 64)
		hits = append(hits, Hit{
			ID:      id,
			Score:   r.Similarity,
			Payload: payloadFromMetadata(r.Content, r.Metadata),
		})
	}
	return hits, nil
}

// Count reports points tracked for a book in this process lifetime.
func (c *Chromem) Count(ctx context.Context, bookID string) (int, error) {
	if bookID == "" {
		if c.collection == nil {
			return 0, nil
		}
		return c.collection.Count(), nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.books[bookID]), nil
}

// Close is a no-op; persistent chromem writes through on every mutation.
func (c *Chromem) Close() error { return nil }

func metadataFromPayload(p Payload) map[string]string {
	m := map[string]string{
		"book_id":  p.BookID,
		"chunk_id": strconv.FormatUint(p.ChunkID, 10),
		"position": strconv.Itoa(p.Position),
	}
	if p.Chapter != "" {
		m["chapter"] = p.Chapter
	}
	if p.PageNumber != 0 {
		m["page_number"] = strconv.Itoa(p.PageNumber)
	}
	if p.Title != "" {
		m["title"] = p.Title
	}
	if p.SourceFile != "" {
		m["source_file"] = p.SourceFile
	}
	return m
}

func payloadFromMetadata(content string, m map[string]string) Payload {
	chunkID, _ := strconv.ParseUint(m["chunk_id"], 10, 64)
	position, _ := strconv.Atoi(m["position"])
	pageNumber, _ := strconv.Atoi(m["page_number"])
	return Payload{
		BookID:     m["book_id"],
		ChunkID:    chunkID,
		Content:    content,
		Chapter:    m["chapter"],
		PageNumber: pageNumber,
		Position:   position,
		Title:      m["title"],
		SourceFile: m["source_file"],
	}
}
