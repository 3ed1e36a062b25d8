package stats

import (
	"context"
	"errors"
	"time"

	"github.com/dgallion1/docsearch/internal/searchstore"
)

// Instrument wraps store so every call is timed into reg under the method
// name. A missing record on Get is not counted as a failure.
func Instrument(store searchstore.Store, reg *Registry) searchstore.Store {
	return &instrumented{next: store, reg: reg}
}

type instrumented struct {
	next searchstore.Store
	reg  *Registry
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	failed := err != nil && !errors.Is(err, searchstore.ErrNotFound)
	s.reg.Op(op).Record(time.Since(start), failed)
}

func (s *instrumented) EnsureIndex(ctx context.Context) error {
	start := time.Now()
	err := s.next.EnsureIndex(ctx)
	s.observe("ensure_index", start, err)
	return err
}

func (s *instrumented) DeleteIndex(ctx context.Context) error {
	start := time.Now()
	err := s.next.DeleteIndex(ctx)
	s.observe("delete_index", start, err)
	return err
}

func (s *instrumented) Put(ctx context.Context, doc searchstore.StoredDocument) error {
	start := time.Now()
	err := s.next.Put(ctx, doc)
	s.observe("put", start, err)
	return err
}

func (s *instrumented) PutBatch(ctx context.Context, docs []searchstore.StoredDocument) error {
	start := time.Now()
	err := s.next.PutBatch(ctx, docs)
	s.observe("put_batch", start, err)
	return err
}

func (s *instrumented) Get(ctx context.Context, id string) (*searchstore.StoredDocument, error) {
	start := time.Now()
	doc, err := s.next.Get(ctx, id)
	s.observe("get", start, err)
	return doc, err
}

func (s *instrumented) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := s.next.Delete(ctx, id)
	s.observe("delete", start, err)
	return err
}

func (s *instrumented) Search(ctx context.Context, req searchstore.SearchRequest) ([]searchstore.Hit, error) {
	start := time.Now()
	hits, err := s.next.Search(ctx, req)
	s.observe("search", start, err)
	return hits, err
}

func (s *instrumented) Scan(ctx context.Context, q searchstore.Query, fn func(searchstore.StoredDocument) error) error {
	start := time.Now()
	err := s.next.Scan(ctx, q, fn)
	s.observe("scan", start, err)
	return err
}

func (s *instrumented) Close() error {
	return s.next.Close()
}
