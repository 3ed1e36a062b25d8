// Package blevestore implements searchstore.Store on an embedded bleve index,
// either in memory or on local disk.
package blevestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	blevesearch "github.com/blevesearch/bleve/v2/search"

	"github.com/dgallion1/docsearch/internal/searchstore"
)

const scanPageSize = 500

// Store is an embedded bleve index. An empty path keeps the index in memory.
type Store struct {
	path string

	mu    sync.RWMutex
	index bleve.Index
}

var _ searchstore.Store = (*Store)(nil)

// New returns a store rooted at path. The index is opened if it exists on
// disk; otherwise it is created by EnsureIndex.
func New(path string) (*Store, error) {
	s := &Store{path: path}
	if path == "" {
		return s, nil
	}
	idx, err := bleve.Open(path)
	switch {
	case err == nil:
		s.index = idx
	case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
	default:
		return nil, fmt.Errorf("open bleve index %s: %w", path, err)
	}
	return s, nil
}

// EnsureIndex creates the index when missing.
func (s *Store) EnsureIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil {
		return nil
	}

	var (
		idx bleve.Index
		err error
	)
	if s.path == "" {
		idx, err = bleve.NewMemOnly(buildMapping())
	} else {
		idx, err = bleve.New(s.path, buildMapping())
	}
	if err != nil {
		return backendErr("create index", err, searchstore.ErrRejected)
	}
	s.index = idx
	return nil
}

// DeleteIndex closes and removes the index.
func (s *Store) DeleteIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	if err != nil {
		return backendErr("delete index", err, searchstore.ErrUnavailable)
	}
	if s.path != "" {
		if err := os.RemoveAll(s.path); err != nil {
			return backendErr("delete index", err, searchstore.ErrUnavailable)
		}
	}
	return nil
}

func (s *Store) Put(ctx context.Context, doc searchstore.StoredDocument) error {
	if err := ctx.Err(); err != nil {
		return backendErr("put "+doc.ID, err, searchstore.ErrUnavailable)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return indexMissing("put " + doc.ID)
	}
	if err := s.index.Index(doc.ID, toFields(doc)); err != nil {
		return backendErr("put "+doc.ID, err, searchstore.ErrRejected)
	}
	return nil
}

func (s *Store) PutBatch(ctx context.Context, docs []searchstore.StoredDocument) error {
	if len(docs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return backendErr("bulk", err, searchstore.ErrUnavailable)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return indexMissing("bulk")
	}
	batch := s.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, toFields(doc)); err != nil {
			return backendErr("bulk "+doc.ID, err, searchstore.ErrRejected)
		}
	}
	if err := s.index.Batch(batch); err != nil {
		return backendErr("bulk", err, searchstore.ErrRejected)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*searchstore.StoredDocument, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery([]string{id}), 1, 0, false)
	req.Fields = []string{"*"}

	res, err := s.search(ctx, "get "+id, req)
	if err != nil {
		return nil, err
	}
	if len(res.Hits) == 0 {
		return nil, &searchstore.BackendError{Op: "get " + id, Message: "no such document", Kind: searchstore.ErrNotFound}
	}
	doc := fromFields(res.Hits[0])
	return &doc, nil
}

// Delete removes a record. Deleting a missing id succeeds.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return indexMissing("delete " + id)
	}
	if err := s.index.Delete(id); err != nil {
		return backendErr("delete "+id, err, searchstore.ErrUnavailable)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, sr searchstore.SearchRequest) ([]searchstore.Hit, error) {
	q, err := translate(sr.Query)
	if err != nil {
		return nil, backendErr("search", err, searchstore.ErrRejected)
	}
	size := sr.Size
	if size <= 0 {
		size = 10
	}
	req := bleve.NewSearchRequestOptions(q, size, 0, false)
	req.Fields = []string{"*"}
	if len(sr.Highlight) > 0 {
		req.Highlight = bleve.NewHighlightWithStyle(highlighterName)
		for _, hf := range sr.Highlight {
			req.Highlight.AddField(hf.Field)
		}
	}

	res, err := s.search(ctx, "search", req)
	if err != nil {
		return nil, err
	}

	hits := make([]searchstore.Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, searchstore.Hit{
			Document:   fromFields(h),
			Score:      h.Score,
			Highlights: fragments(h.Fragments, sr),
		})
	}
	return hits, nil
}

// Scan pages through every match sorted by document id.
func (s *Store) Scan(ctx context.Context, sq searchstore.Query, fn func(searchstore.StoredDocument) error) error {
	q, err := translate(sq)
	if err != nil {
		return backendErr("scan", err, searchstore.ErrRejected)
	}

	var after string
	for {
		req := bleve.NewSearchRequestOptions(q, scanPageSize, 0, false)
		req.Fields = []string{"*"}
		req.SortBy([]string{"_id"})
		if after != "" {
			req.SearchAfter = []string{after}
		}

		res, err := s.search(ctx, "scan", req)
		if err != nil {
			return err
		}
		for _, h := range res.Hits {
			if err := fn(fromFields(h)); err != nil {
				return err
			}
		}
		if len(res.Hits) < scanPageSize {
			return nil
		}
		after = res.Hits[len(res.Hits)-1].ID
	}
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}

func (s *Store) search(ctx context.Context, op string, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return nil, indexMissing(op)
	}
	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		kind := searchstore.ErrRejected
		if ctx.Err() != nil || errors.Is(err, bleve.ErrorIndexClosed) {
			kind = searchstore.ErrUnavailable
		}
		return nil, backendErr(op, err, kind)
	}
	return res, nil
}

// fragments caps each field at its configured count and rewrites the
// highlighter's fixed tags when the request asks for others.
func fragments(in blevesearch.FieldFragmentMap, sr searchstore.SearchRequest) map[string][]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string][]string, len(in))
	for _, hf := range sr.Highlight {
		frags := in[hf.Field]
		if len(frags) == 0 {
			continue
		}
		if hf.MaxFragments > 0 && len(frags) > hf.MaxFragments {
			frags = frags[:hf.MaxFragments]
		}
		cp := make([]string, len(frags))
		for i, f := range frags {
			if sr.PreTag != "" && sr.PreTag != markPre {
				f = strings.ReplaceAll(f, markPre, sr.PreTag)
			}
			if sr.PostTag != "" && sr.PostTag != markPost {
				f = strings.ReplaceAll(f, markPost, sr.PostTag)
			}
			cp[i] = f
		}
		out[hf.Field] = cp
	}
	return out
}

func toFields(doc searchstore.StoredDocument) map[string]interface{} {
	m := map[string]interface{}{
		searchstore.FieldID:          doc.ID,
		searchstore.FieldIsParent:    doc.IsParent,
		searchstore.FieldChunkIndex:  float64(doc.ChunkIndex),
		searchstore.FieldTotalChunks: float64(doc.TotalChunks),
		searchstore.FieldFileName:    doc.FileName,
		searchstore.FieldFileSize:    float64(doc.FileSize),
		searchstore.FieldRole:        doc.Role,
		searchstore.FieldContent:     doc.Content,
	}
	optional := map[string]string{
		searchstore.FieldParentID:    doc.ParentID,
		searchstore.FieldDisplayName: doc.DisplayName,
		searchstore.FieldFilePath:    doc.FilePath,
		searchstore.FieldContentType: doc.ContentType,
	}
	for k, v := range optional {
		if v != "" {
			m[k] = v
		}
	}
	if !doc.UploadDate.IsZero() {
		m[searchstore.FieldUploadDate] = doc.UploadDate.UTC().Format(time.RFC3339Nano)
	}
	return m
}

func fromFields(h *blevesearch.DocumentMatch) searchstore.StoredDocument {
	f := h.Fields
	doc := searchstore.StoredDocument{
		ID:          h.ID,
		ParentID:    str(f, searchstore.FieldParentID),
		IsParent:    boolean(f, searchstore.FieldIsParent),
		ChunkIndex:  int(num(f, searchstore.FieldChunkIndex)),
		TotalChunks: int(num(f, searchstore.FieldTotalChunks)),
		FileName:    str(f, searchstore.FieldFileName),
		DisplayName: str(f, searchstore.FieldDisplayName),
		FilePath:    str(f, searchstore.FieldFilePath),
		FileSize:    int64(num(f, searchstore.FieldFileSize)),
		ContentType: str(f, searchstore.FieldContentType),
		Role:        str(f, searchstore.FieldRole),
		Content:     str(f, searchstore.FieldContent),
	}
	if ts := str(f, searchstore.FieldUploadDate); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			doc.UploadDate = t
		}
	}
	return doc
}

func str(fields map[string]interface{}, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func num(fields map[string]interface{}, key string) float64 {
	if v, ok := fields[key].(float64); ok {
		return v
	}
	return 0
}

func boolean(fields map[string]interface{}, key string) bool {
	switch v := fields[key].(type) {
	case bool:
		return v
	case string:
		return v == "T" || v == "true"
	}
	return false
}

func indexMissing(op string) error {
	return &searchstore.BackendError{Op: op, Message: "index does not exist", Kind: searchstore.ErrIndexNotFound}
}

func backendErr(op string, err error, kind error) error {
	return &searchstore.BackendError{Op: op, Message: err.Error(), Kind: kind}
}
