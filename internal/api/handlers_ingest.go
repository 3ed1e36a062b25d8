package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docsearch/internal/parser"
	"github.com/dgallion1/docsearch/internal/pipeline"
	"github.com/dgallion1/docsearch/internal/roles"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())

	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	// Documents default to the uploader's role; an explicit role must be one
	// the uploader can see.
	role := caller.Role
	if v := strings.TrimSpace(r.FormValue("role")); v != "" {
		role = v
	}
	canon, ok := roles.Canonical(role)
	if !ok {
		jsonError(w, fmt.Sprintf("unknown role: %s", role), http.StatusBadRequest)
		return
	}
	if !roles.Visible(caller.Role).Contains(canon) {
		jsonError(w, fmt.Sprintf("cannot upload documents for role %s", canon), http.StatusForbidden)
		return
	}

	// Read file data.
	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	job := pipeline.NewIngestJob(filename, canon, data)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	s.log.Info("upload accepted", "job_id", job.ID, "doc_id", job.DocID, "filename", filename, "role", canon, "subject", caller.Subject)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"doc_id":   job.DocID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/jobs/%s", job.ID),
	})
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	job, err := s.orchestrator.StartReindex()
	switch {
	case errors.Is(err, pipeline.ErrReindexInProgress):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":    err.Error(),
			"job_id":   job.ID,
			"poll_url": fmt.Sprintf("/api/jobs/%s", job.ID),
		})
		return
	case err != nil:
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/jobs/%s", job.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())

	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()

	// Reindex jobs are admin-only; ingest jobs follow document visibility.
	var visible bool
	switch snap.Kind {
	case pipeline.KindReindex:
		visible = roles.AtLeast(caller.Role, roles.Admin)
	default:
		visible = roles.Visible(caller.Role).Contains(snap.Role)
	}
	if !visible {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
