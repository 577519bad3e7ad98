package server

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"textbook-rag/internal/indexer"
	"textbook-rag/internal/models"
	"textbook-rag/internal/parser"
)

const maxUploadBytes = 64 << 20

// handleUpload accepts a multipart book upload, extracts text sections from
// the file, and indexes them. The registry records the book as indexing
// while the pipeline runs and completed or failed afterwards.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	bookID := r.FormValue("book_id")
	if bookID == "" {
		writeError(w, http.StatusBadRequest, "book_id is required")
		return
	}
	title := r.FormValue("title")
	author := r.FormValue("author")
	chapter := r.FormValue("chapter")
	pageNumber := 0
	if v := r.FormValue("page_number"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "page_number must be a non-negative integer")
			return
		}
		pageNumber = n
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	path, err := saveUpload(file, header.Filename)
	if err != nil {
		log.Error().Err(err).Msg("saving upload failed")
		writeError(w, http.StatusInternalServerError, "saving upload failed")
		return
	}
	defer os.Remove(path)

	sections, err := parser.Parse(path)
	if err != nil {
		var unsupported *parser.ErrUnsupportedFormat
		if errors.As(err, &unsupported) {
			writeError(w, http.StatusBadRequest, unsupported.Error())
			return
		}
		log.Error().Err(err).Str("file", header.Filename).Msg("parsing upload failed")
		writeError(w, http.StatusUnprocessableEntity, "could not extract text from file")
		return
	}

	book := &models.Book{
		BookID: bookID,
		Title:  title,
		Author: author,
		Status: models.BookStatusIndexing,
	}
	if err := s.books.Put(r.Context(), book); err != nil {
		log.Error().Err(err).Str("book_id", bookID).Msg("registering book failed")
		writeError(w, http.StatusInternalServerError, "registering book failed")
		return
	}

	docSections := make([]indexer.Section, len(sections))
	for i, sec := range sections {
		docSections[i] = indexer.Section{
			Text:       sec.Text,
			Chapter:    chapter,
			PageNumber: sec.Page,
		}
	}
	if pageNumber > 0 && len(docSections) == 1 {
		docSections[0].PageNumber = pageNumber
	}

	result, err := s.ingester.IndexSections(r.Context(), bookID, title, header.Filename, docSections)
	if err != nil {
		book.Status = models.BookStatusFailed
		if putErr := s.books.Put(r.Context(), book); putErr != nil {
			log.Error().Err(putErr).Str("book_id", bookID).Msg("recording failed status")
		}
		log.Error().Err(err).Str("book_id", bookID).Msg("indexing failed")
		writeError(w, http.StatusBadGateway, "indexing failed")
		return
	}

	book.Status = result.Status
	book.ChunksIndexed = result.ChunksIndexed
	if err := s.books.Put(r.Context(), book); err != nil {
		log.Error().Err(err).Str("book_id", bookID).Msg("recording completed status")
	}

	writeJSON(w, http.StatusOK, result)
}

// saveUpload writes the multipart file to a temp path that keeps the
// original extension, since extractors dispatch on it.
func saveUpload(src io.Reader, filename string) (string, error) {
	ext := filepath.Ext(filename)
	tmp, err := os.CreateTemp("", "upload-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
