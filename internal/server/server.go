// Package server exposes the question answering and ingestion pipeline over
// HTTP. Handlers translate JSON and multipart requests into pipeline calls;
// all pipeline clients are injected at construction.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"textbook-rag/internal/bookstore"
	"textbook-rag/internal/indexer"
	"textbook-rag/internal/models"
)

// Retriever finds grounded context for a question scoped to one book.
type Retriever interface {
	Retrieve(ctx context.Context, question, bookID string) ([]models.SourceReference, []models.Chunk, error)
}

// Answerer produces grounded answers for the two query modes.
type Answerer interface {
	AnswerGlobal(ctx context.Context, question string, chunks []models.Chunk, sources []models.SourceReference) (models.QueryResult, error)
	AnswerSelectedText(ctx context.Context, question, selectedText string) (models.QueryResult, error)
}

// Ingester indexes multi-section documents.
type Ingester interface {
	IndexSections(ctx context.Context, bookID, title, sourceFile string, sections []indexer.Section) (indexer.Result, error)
}

// Server wires the HTTP surface to the pipeline.
type Server struct {
	retriever Retriever
	answerer  Answerer
	ingester  Ingester
	books     bookstore.Store
}

// New builds a Server over the injected pipeline components.
func New(retriever Retriever, answerer Answerer, ingester Ingester, books bookstore.Store) *Server {
	return &Server{
		retriever: retriever,
		answerer:  answerer,
		ingester:  ingester,
		books:     books,
	}
}

// Handler returns the routed HTTP handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/query-global", s.handleQueryGlobal)
	mux.HandleFunc("POST /api/v1/query-selected-text", s.handleQuerySelectedText)
	mux.HandleFunc("POST /api/v1/upload", s.handleUpload)
	mux.HandleFunc("GET /api/v1/books", s.handleListBooks)
	mux.HandleFunc("GET /api/v1/books/{id}", s.handleGetBook)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return requestLogger(mux)
}

type queryRequest struct {
	Question     string `json:"question"`
	BookID       string `json:"book_id,omitempty"`
	SelectedText string `json:"selected_text,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
}

type queryResponse struct {
	Answer    string                   `json:"answer"`
	Sources   []models.SourceReference `json:"sources"`
	SessionID string                   `json:"session_id"`
}

func (s *Server) handleQueryGlobal(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.BookID == "" {
		writeError(w, http.StatusBadRequest, "book_id is required")
		return
	}

	sources, chunks, err := s.retriever.Retrieve(r.Context(), req.Question, req.BookID)
	if err != nil {
		log.Error().Err(err).Str("book_id", req.BookID).Msg("retrieval failed")
		writeError(w, http.StatusBadGateway, "retrieval failed")
		return
	}
	result, err := s.answerer.AnswerGlobal(r.Context(), req.Question, chunks, sources)
	if err != nil {
		log.Error().Err(err).Msg("answer generation failed")
		writeError(w, http.StatusBadGateway, "answer generation failed")
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Answer:    result.Answer,
		Sources:   result.Sources,
		SessionID: sessionID(req.SessionID),
	})
}

func (s *Server) handleQuerySelectedText(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	result, err := s.answerer.AnswerSelectedText(r.Context(), req.Question, req.SelectedText)
	if err != nil {
		log.Error().Err(err).Msg("answer generation failed")
		writeError(w, http.StatusBadGateway, "answer generation failed")
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Answer:    result.Answer,
		Sources:   result.Sources,
		SessionID: sessionID(req.SessionID),
	})
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.books.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("listing books failed")
		writeError(w, http.StatusInternalServerError, "listing books failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": books})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.books.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, bookstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		log.Error().Err(err).Msg("fetching book failed")
		writeError(w, http.StatusInternalServerError, "fetching book failed")
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func sessionID(existing string) string {
	if existing != "" {
		return existing
	}
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
