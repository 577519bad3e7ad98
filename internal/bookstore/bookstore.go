// Package bookstore tracks the books known to the system and their indexing
// state. The registry is injected; callers choose the in-memory store or the
// Postgres one at startup.
package bookstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"textbook-rag/internal/models"
)

// ErrNotFound is returned when no book exists under the requested ID.
var ErrNotFound = errors.New("book not found")

// Store is the book registry.
type Store interface {
	Get(ctx context.Context, bookID string) (*models.Book, error)
	Put(ctx context.Context, book *models.Book) error
	Delete(ctx context.Context, bookID string) error
	List(ctx context.Context) ([]models.Book, error)
	Close() error
}

// Memory is a process-local Store for single-node deployments and tests.
type Memory struct {
	mu    sync.RWMutex
	books map[string]models.Book
}

// NewMemory returns an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{books: make(map[string]models.Book)}
}

func (m *Memory) Get(ctx context.Context, bookID string) (*models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	book, ok := m.books[bookID]
	if !ok {
		return nil, ErrNotFound
	}
	return &book, nil
}

// Put inserts or replaces a book record, stamping timestamps.
func (m *Memory) Put(ctx context.Context, book *models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := m.books[book.BookID]; ok {
		book.CreatedAt = existing.CreatedAt
	} else if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = now
	m.books[book.BookID] = *book
	return nil
}

func (m *Memory) Delete(ctx context.Context, bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[bookID]; !ok {
		return ErrNotFound
	}
	delete(m.books, bookID)
	return nil
}

// List returns all books ordered by ID.
func (m *Memory) List(ctx context.Context) ([]models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Book, 0, len(m.books))
	for _, book := range m.books {
		out = append(out, book)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookID < out[j].BookID })
	return out, nil
}

func (m *Memory) Close() error { return nil }
