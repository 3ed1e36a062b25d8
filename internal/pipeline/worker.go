package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/docsearch/internal/docs"
	"github.com/dgallion1/docsearch/internal/parser"
)

// Indexer is the document service the pipeline drives.
type Indexer interface {
	Ingest(ctx context.Context, req docs.IngestRequest) (string, error)
	Reindex(ctx context.Context, progress docs.ProgressFunc) (docs.ReindexReport, error)
}

// Worker processes a single job.
type Worker struct {
	indexer   Indexer
	log       *slog.Logger
	parseOpts parser.Options
	uploadDir string
	backoff   func(attempt int) time.Duration
}

func NewWorker(indexer Indexer, log *slog.Logger, parseOpts parser.Options, uploadDir string, backoff func(int) time.Duration) *Worker {
	if backoff == nil {
		backoff = Backoff
	}
	return &Worker{
		indexer:   indexer,
		log:       log,
		parseOpts: parseOpts,
		uploadDir: uploadDir,
		backoff:   backoff,
	}
}

// Process runs a job to completion.
func (w *Worker) Process(ctx context.Context, job *Job) {
	switch job.Kind {
	case KindReindex:
		w.reindex(ctx, job)
	default:
		w.ingest(ctx, job)
	}
}

func (w *Worker) ingest(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "filename", job.Filename)

	data := job.FileData()
	contentType := parser.ContentType(job.Filename)

	// Phase 1: keep the original
	job.SetStatus(StatusExtracting, "saving upload")
	path, err := w.saveUpload(job.DocID, job.Filename, data)
	if err != nil {
		log.Warn("saving upload failed, indexing without file path", "error", err)
		job.AddError(fmt.Sprintf("save upload: %s", err))
	}
	job.SetFileMeta(path, contentType)

	// Phase 2: extract
	job.SetStatus(StatusExtracting, "extracting text")
	text := parser.ExtractText(data, job.Filename, w.parseOpts, log)
	if text == "" {
		log.Warn("no text extracted, indexing metadata only")
	}

	// Phase 3: index, retrying while the backend is unavailable
	job.SetStatus(StatusIndexing, "indexing")
	req := docs.IngestRequest{
		ID:          job.DocID,
		Text:        text,
		FileName:    job.Filename,
		FilePath:    path,
		ContentType: contentType,
		Role:        job.Role,
		FileSize:    job.FileSize,
		UploadDate:  job.CreatedAt.UTC(),
	}

	var lastErr error
retry:
	for attempt := range MaxRetries {
		job.IncrAttempts()
		_, lastErr = w.indexer.Ingest(ctx, req)
		if lastErr == nil || !IsRetryable(lastErr) || attempt == MaxRetries-1 {
			break
		}
		log.Warn("retryable indexing error", "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(w.backoff(attempt)):
		case <-ctx.Done():
			lastErr = ctx.Err()
			break retry
		}
	}

	if lastErr != nil {
		log.Error("indexing failed", "error", lastErr)
		job.AddError(fmt.Sprintf("index: %s", lastErr))
		w.removeUpload(path, log)
		job.releaseFileData()
		job.SetProgress(0, 1, 1)
		job.SetStatus(StatusFailed, "indexing")
		return
	}

	job.releaseFileData()
	job.SetProgress(1, 0, 1)
	job.SetStatus(StatusCompleted, "done")
	log.Info("document indexed", "chars", len(text), "bytes", len(data))
}

func (w *Worker) reindex(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID)

	job.SetStatus(StatusIndexing, "reindexing")
	report, err := w.indexer.Reindex(ctx, job.SetProgress)
	for _, e := range report.Errors {
		job.AddError(e)
	}
	if err != nil {
		log.Error("reindex failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "reindexing")
		return
	}
	job.SetProgress(report.Indexed, report.Failed, report.Documents)

	// Document failures alone never fail a reindex.
	if report.Failed > 0 {
		job.SetStatus(StatusPartial, "done")
		return
	}
	job.SetStatus(StatusCompleted, "done")
}

// saveUpload writes the original file under the upload directory as
// <docID><ext>. An empty upload directory disables this.
func (w *Worker) saveUpload(docID, filename string, data []byte) (string, error) {
	if w.uploadDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(w.uploadDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(w.uploadDir, docID+strings.ToLower(filepath.Ext(filename)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (w *Worker) removeUpload(path string, log *slog.Logger) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("removing upload failed", "path", path, "error", err)
	}
}
