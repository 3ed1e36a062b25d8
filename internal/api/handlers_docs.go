package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/docsearch/internal/docs"
	"github.com/dgallion1/docsearch/internal/query"
	"github.com/dgallion1/docsearch/internal/roles"
	"github.com/dgallion1/docsearch/internal/searchstore"
	"github.com/go-chi/chi/v5"
)

func visibleTo(r *http.Request) roles.Set {
	caller, _ := CallerFrom(r.Context())
	return roles.Visible(caller.Role)
}

// handleListDocuments lists every document the caller can see.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	list, err := s.docs.ListAll(r.Context(), visibleTo(r))
	if err != nil {
		s.serviceError(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": list, "total": len(list)})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docs.GetByID(r.Context(), chi.URLParam(r, "docID"), visibleTo(r))
	if err != nil {
		s.serviceError(w, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleSearch runs a full-text search. A blank q lists documents instead.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		s.handleListDocuments(w, r)
		return
	}

	var opts docs.SearchOptions
	if v := r.URL.Query().Get("proximity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonError(w, "proximity must be a non-negative integer", http.StatusBadRequest)
			return
		}
		opts.Proximity = n
	}

	results, err := s.docs.Search(r.Context(), q, visibleTo(r), opts)
	if err != nil {
		s.serviceError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "results": results, "total": len(results)})
}

// handleDeleteDocument deletes a document, its chunks and its stored upload.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	ctx := r.Context()

	doc, err := s.docs.GetByID(ctx, docID, visibleTo(r))
	if err != nil {
		s.serviceError(w, "delete document", err)
		return
	}

	res, err := s.docs.Delete(ctx, docID)
	if err != nil {
		s.log.Error("delete incomplete", "doc_id", docID, "deleted", res.Deleted, "failed", res.Failed, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, searchstore.ErrUnavailable) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]any{
			"error":   err.Error(),
			"doc_id":  docID,
			"deleted": res.Deleted,
			"failed":  res.Failed,
		})
		return
	}

	s.removeUpload(doc.FilePath)
	writeJSON(w, http.StatusOK, map[string]any{
		"doc_id":  docID,
		"deleted": res.Deleted,
	})
}

// removeUpload deletes a stored original if it lives under the upload dir.
func (s *Server) removeUpload(path string) {
	if path == "" || s.cfg.UploadDir == "" {
		return
	}
	dir, err := filepath.Abs(s.cfg.UploadDir)
	if err != nil {
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil || !strings.HasPrefix(abs, dir+string(filepath.Separator)) {
		s.log.Warn("stored upload outside upload dir, not removed", "path", path)
		return
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		s.log.Warn("removing upload failed", "path", abs, "error", err)
	}
}

func (s *Server) serviceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, docs.ErrNotFound):
		jsonError(w, "document not found", http.StatusNotFound)
	case errors.Is(err, query.ErrEmptyQuery):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, searchstore.ErrUnavailable):
		s.log.Error(op+" failed", "error", err)
		jsonError(w, "search backend unavailable", http.StatusServiceUnavailable)
	default:
		s.log.Error(op+" failed", "error", err)
		jsonError(w, op+" failed", http.StatusInternalServerError)
	}
}
