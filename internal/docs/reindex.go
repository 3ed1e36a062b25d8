package docs

import (
	"context"
	"fmt"
	"time"

	"github.com/dgallion1/docsearch/internal/aggregate"
	"github.com/dgallion1/docsearch/internal/roles"
)

// ReindexReport summarizes a rebuild.
type ReindexReport struct {
	Documents int      `json:"documents"`
	Indexed   int      `json:"indexed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// ProgressFunc receives running counts after each document.
type ProgressFunc func(indexed, failed, total int)

// Reindex drops and rebuilds the index from the current corpus. Failures
// before the index is recreated abort with an error; per-document failures
// afterwards are logged, counted and skipped.
//
// Once the corpus has been read, work continues on a context detached from
// ctx's cancellation and bounded by the reindex timeout, so the delete and
// recreate always run as a pair. Uploads racing a reindex are last writer
// wins per document.
func (s *Service) Reindex(ctx context.Context, progress ProgressFunc) (ReindexReport, error) {
	var report ReindexReport

	corpus, err := s.ListAll(ctx, roles.Unrestricted())
	if err != nil {
		return report, fmt.Errorf("read corpus: %w", err)
	}
	report.Documents = len(corpus)
	if len(corpus) == 0 {
		s.log.Info("reindex skipped, corpus is empty")
		return report, nil
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ReindexTimeout)
	defer cancel()

	if err := s.store.DeleteIndex(rctx); err != nil {
		return report, fmt.Errorf("%w: delete index: %w", ErrIndexCreateFailed, err)
	}
	if err := s.store.EnsureIndex(rctx); err != nil {
		return report, fmt.Errorf("%w: create index: %w", ErrIndexCreateFailed, err)
	}
	s.log.Info("index recreated", "documents", len(corpus))

	limiter := newLimiter(s.opts.ReindexRate)
	start := time.Now()
	for _, doc := range corpus {
		if limiter != nil {
			if err := limiter.Wait(rctx); err != nil {
				// Remaining documents are written unthrottled.
				s.log.Warn("reindex throttle lifted", "error", err, "remaining", len(corpus)-report.Indexed-report.Failed)
				limiter = nil
			}
		}

		if err := s.write(rctx, requestFor(doc)); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", doc.ID, err))
			s.log.Error("reindex document failed", "id", doc.ID, "error", err)
		} else {
			report.Indexed++
		}
		if progress != nil {
			progress(report.Indexed, report.Failed, report.Documents)
		}
	}

	s.log.Info("reindex complete",
		"documents", report.Documents,
		"indexed", report.Indexed,
		"failed", report.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

func requestFor(doc aggregate.Document) IngestRequest {
	return IngestRequest{
		ID:          doc.ID,
		Text:        doc.Content,
		FileName:    doc.FileName,
		FilePath:    doc.FilePath,
		ContentType: doc.ContentType,
		Role:        doc.Role,
		FileSize:    doc.FileSize,
		UploadDate:  doc.UploadDate,
	}
}
