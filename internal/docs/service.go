// Package docs implements the caller-facing document operations on top of a
// search backend: ingest with chunking, search, listing, lookup, delete and
// full reindex.
package docs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dgallion1/docsearch/internal/aggregate"
	"github.com/dgallion1/docsearch/internal/chunker"
	"github.com/dgallion1/docsearch/internal/query"
	"github.com/dgallion1/docsearch/internal/roles"
	"github.com/dgallion1/docsearch/internal/searchstore"
)

var (
	// ErrNotFound is returned when no visible record exists for an id.
	ErrNotFound = errors.New("document not found")

	// ErrIndexCreateFailed is returned when the index could not be
	// (re)created. The service cannot accept writes until it succeeds.
	ErrIndexCreateFailed = errors.New("index create failed")
)

// Options configures a Service.
type Options struct {
	// Threshold is the largest body, in runes, stored as one record.
	Threshold int
	// MaxConcurrentPuts bounds parallel bulk requests for one document.
	MaxConcurrentPuts int
	Query             query.Options
	// ReindexTimeout bounds the detached part of a reindex.
	ReindexTimeout time.Duration
	// ReindexRate limits re-indexed documents per second. Zero is unlimited.
	ReindexRate float64
}

// Service is safe for concurrent use.
type Service struct {
	store searchstore.Store
	log   *slog.Logger
	opts  Options
	now   func() time.Time
}

func NewService(store searchstore.Store, log *slog.Logger, opts Options) *Service {
	if opts.Threshold <= 0 {
		opts.Threshold = chunker.DefaultThreshold
	}
	if opts.MaxConcurrentPuts <= 0 {
		opts.MaxConcurrentPuts = 4
	}
	if opts.ReindexTimeout <= 0 {
		opts.ReindexTimeout = 30 * time.Minute
	}
	if opts.Query.MaxResults <= 0 {
		opts.Query = query.DefaultOptions()
	}
	return &Service{store: store, log: log, opts: opts, now: time.Now}
}

// EnsureIndex creates the backend index if needed.
func (s *Service) EnsureIndex(ctx context.Context) error {
	if err := s.store.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrIndexCreateFailed, err)
	}
	return nil
}

// IngestRequest is one extracted document to index.
type IngestRequest struct {
	ID          string
	Text        string
	FileName    string
	FilePath    string
	ContentType string
	Role        string
	FileSize    int64
	UploadDate  time.Time
}

// Ingest indexes a document and returns its id. Oversized bodies are split
// into a placeholder plus chunk records. Re-ingesting an id replaces every
// record of the earlier version. A failed ingest leaves nothing under the id.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (string, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.UploadDate.IsZero() {
		req.UploadDate = s.now().UTC()
	}
	if canon, ok := roles.Canonical(req.Role); ok {
		req.Role = canon
	}

	if err := s.write(ctx, req); err != nil {
		return "", err
	}
	return req.ID, nil
}

// putBatchSize caps the records sent in one bulk request.
const putBatchSize = 50

// write stores req as one record or as a placeholder plus chunks, then drops
// chunks left over from a longer previous version. On any failure every
// record for the id is removed so no truncated document stays listed.
func (s *Service) write(ctx context.Context, req IngestRequest) error {
	recs, chunks := layout(req, s.opts.Threshold)
	err := s.put(ctx, req.ID, recs)
	if err == nil {
		err = s.pruneChunks(ctx, req.ID, chunks)
	}
	if err != nil {
		s.discard(ctx, req.ID)
		return err
	}
	if chunks > 0 {
		s.log.Debug("document chunked", "id", req.ID, "chunks", chunks)
	}
	return nil
}

// layout builds the records for req and returns them with the chunk count.
// The placeholder, when there is one, comes first.
func layout(req IngestRequest, threshold int) ([]searchstore.StoredDocument, int) {
	base := searchstore.StoredDocument{
		ID:          req.ID,
		FileName:    req.FileName,
		FilePath:    req.FilePath,
		FileSize:    req.FileSize,
		UploadDate:  req.UploadDate,
		ContentType: req.ContentType,
		Role:        req.Role,
	}

	plan := chunker.PlanText(req.Text, threshold)
	if !plan.NeedsSplit {
		base.Content = req.Text
		return []searchstore.StoredDocument{base}, 0
	}

	recs := make([]searchstore.StoredDocument, 0, len(plan.Chunks)+1)
	parent := base
	parent.IsParent = true
	parent.TotalChunks = plan.TotalChunks
	parent.Content = plan.Placeholder
	recs = append(recs, parent)

	for _, c := range plan.Chunks {
		rec := base
		rec.ID = chunker.ChunkID(req.ID, c.Index)
		rec.ParentID = req.ID
		rec.ChunkIndex = c.Index
		rec.TotalChunks = c.Total
		rec.FileName = chunker.ChunkFileName(req.FileName, c.Index, c.Total)
		rec.DisplayName = req.FileName
		rec.Content = c.Content
		recs = append(recs, rec)
	}
	return recs, plan.TotalChunks
}

// put sends a lone record with Put and anything larger as bulk requests,
// at most MaxConcurrentPuts in flight.
func (s *Service) put(ctx context.Context, id string, recs []searchstore.StoredDocument) error {
	if len(recs) == 1 {
		if err := s.store.Put(ctx, recs[0]); err != nil {
			return fmt.Errorf("index %s: %w", id, err)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrentPuts)
	for start := 0; start < len(recs); start += putBatchSize {
		batch := recs[start:min(start+putBatchSize, len(recs))]
		g.Go(func() error {
			if err := s.store.PutBatch(gctx, batch); err != nil {
				return fmt.Errorf("index %s records %d-%d: %w", id, start, start+len(batch)-1, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// pruneChunks deletes chunks of id whose index is keep or above.
func (s *Service) pruneChunks(ctx context.Context, id string, keep int) error {
	chunks, err := s.collect(ctx, searchstore.Term{Field: searchstore.FieldParentID, Value: id})
	if err != nil {
		return fmt.Errorf("find stale chunks of %s: %w", id, err)
	}
	for _, c := range chunks {
		if c.ChunkIndex < keep {
			continue
		}
		if err := s.store.Delete(ctx, c.ID); err != nil && !errors.Is(err, searchstore.ErrNotFound) {
			return fmt.Errorf("delete stale chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// discard removes every record stored for id. It runs even when ctx is done
// and only logs failures.
func (s *Service) discard(ctx context.Context, id string) {
	ctx = context.WithoutCancel(ctx)
	recs, err := s.records(ctx, id)
	if err != nil {
		s.log.Warn("cleanup after failed write skipped", "id", id, "error", err)
		return
	}
	for _, r := range recs {
		if err := s.store.Delete(ctx, r.ID); err != nil && !errors.Is(err, searchstore.ErrNotFound) {
			s.log.Warn("cleanup after failed write incomplete", "id", id, "record", r.ID, "error", err)
		}
	}
}

// SearchOptions are per-request search hints.
type SearchOptions struct {
	// Proximity is the maximum word distance for a phrase boost. Zero disables it.
	Proximity int
}

// Search runs a relevance query and returns one result per visible logical
// document. Blank text returns query.ErrEmptyQuery.
func (s *Service) Search(ctx context.Context, text string, visible roles.Set, opts SearchOptions) ([]aggregate.SearchResult, error) {
	qopts := s.opts.Query
	qopts.Roles = visible.Names()
	qopts.Proximity = opts.Proximity

	req, err := query.Build(text, qopts)
	if err != nil {
		return nil, err
	}
	hits, err := s.store.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return aggregate.SearchHits(hits, visible), nil
}

// ListAll returns every visible document with its body reassembled.
func (s *Service) ListAll(ctx context.Context, visible roles.Set) ([]aggregate.Document, error) {
	records, err := s.collect(ctx, roleQuery(visible))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return aggregate.Documents(records, visible), nil
}

// GetByID returns one reassembled document, or ErrNotFound when it does not
// exist or is not visible.
func (s *Service) GetByID(ctx context.Context, id string, visible roles.Set) (*aggregate.Document, error) {
	records, err := s.records(ctx, id)
	if err != nil {
		return nil, err
	}
	docs := aggregate.Documents(records, visible)
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return &docs[0], nil
}

// DeleteResult reports what a delete removed.
type DeleteResult struct {
	ID      string `json:"id"`
	Deleted int    `json:"deleted"`
	Failed  int    `json:"failed"`
}

// Delete removes a document and all its chunks. Every record is attempted;
// the first failure is returned with the counts.
func (s *Service) Delete(ctx context.Context, id string) (DeleteResult, error) {
	res := DeleteResult{ID: id}
	records, err := s.records(ctx, id)
	if err != nil {
		return res, err
	}
	if len(records) == 0 {
		return res, ErrNotFound
	}

	// Chunks go before the parent.
	ordered := make([]string, 0, len(records))
	var parent string
	for _, r := range records {
		if r.ID == id {
			parent = r.ID
			continue
		}
		ordered = append(ordered, r.ID)
	}
	if parent != "" {
		ordered = append(ordered, parent)
	}

	var firstErr error
	for _, rid := range ordered {
		err := s.store.Delete(ctx, rid)
		if err != nil && !errors.Is(err, searchstore.ErrNotFound) {
			res.Failed++
			if firstErr == nil {
				firstErr = fmt.Errorf("delete %s: %w", rid, err)
			}
			s.log.Warn("record delete failed", "id", rid, "error", err)
			continue
		}
		res.Deleted++
	}
	return res, firstErr
}

// records loads the record stored under id plus every chunk whose parent is id.
func (s *Service) records(ctx context.Context, id string) ([]searchstore.StoredDocument, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}

	var out []searchstore.StoredDocument
	doc, err := s.store.Get(ctx, id)
	switch {
	case err == nil && !doc.IsChunk():
		out = append(out, *doc)
	case err == nil:
	case errors.Is(err, searchstore.ErrNotFound):
	default:
		return nil, fmt.Errorf("get %s: %w", id, err)
	}

	chunks, err := s.collect(ctx, searchstore.Term{Field: searchstore.FieldParentID, Value: id})
	if err != nil {
		return nil, fmt.Errorf("get chunks of %s: %w", id, err)
	}
	return append(out, chunks...), nil
}

func (s *Service) collect(ctx context.Context, q searchstore.Query) ([]searchstore.StoredDocument, error) {
	var out []searchstore.StoredDocument
	err := s.store.Scan(ctx, q, func(d searchstore.StoredDocument) error {
		out = append(out, d)
		return nil
	})
	return out, err
}

func roleQuery(visible roles.Set) searchstore.Query {
	if visible.IsUnrestricted() {
		return searchstore.MatchAll{}
	}
	return searchstore.Bool{
		Filter: []searchstore.Query{searchstore.Terms{Field: searchstore.FieldRole, Values: visible.Names()}},
	}
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
