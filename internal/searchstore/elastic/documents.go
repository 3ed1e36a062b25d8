package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dgallion1/docsearch/internal/searchstore"
)

const scanPageSize = 500

func (c *Client) Put(ctx context.Context, doc searchstore.StoredDocument) error {
	u := c.indexURL("_doc", url.PathEscape(doc.ID)) + "?refresh=" + url.QueryEscape(c.refresh)
	_, err := c.doJSON(ctx, "put "+doc.ID, http.MethodPut, u, doc, nil)
	return err
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// PutBatch indexes docs with one _bulk request. The first failed item is
// reported.
func (c *Client) PutBatch(ctx context.Context, docs []searchstore.StoredDocument) error {
	if len(docs) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		action := map[string]any{"index": map[string]string{"_id": doc.ID}}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("marshal bulk action: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("marshal bulk doc %s: %w", doc.ID, err)
		}
	}

	u := c.indexURL("_bulk") + "?refresh=" + url.QueryEscape(c.refresh)
	_, body, err := c.do(ctx, "bulk", http.MethodPost, u, "application/x-ndjson", buf.Bytes())
	if err != nil {
		return err
	}

	var resp bulkResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode bulk: %w", err)
	}
	if !resp.Errors {
		return nil
	}
	for _, item := range resp.Items {
		for _, r := range item {
			if r.Error == nil {
				continue
			}
			raw, _ := json.Marshal(map[string]any{"error": r.Error})
			return statusError("bulk "+r.ID, r.Status, raw)
		}
	}
	return &searchstore.BackendError{Op: "bulk", Message: "bulk reported errors", Kind: searchstore.ErrRejected}
}

type getResponse struct {
	Found  bool                       `json:"found"`
	Source searchstore.StoredDocument `json:"_source"`
}

func (c *Client) Get(ctx context.Context, id string) (*searchstore.StoredDocument, error) {
	var resp getResponse
	_, err := c.doJSON(ctx, "get "+id, http.MethodGet, c.indexURL("_doc", url.PathEscape(id)), nil, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Found {
		return nil, &searchstore.BackendError{Op: "get " + id, Status: http.StatusNotFound, Message: "not found", Kind: searchstore.ErrNotFound}
	}
	return &resp.Source, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	u := c.indexURL("_doc", url.PathEscape(id)) + "?refresh=" + url.QueryEscape(c.refresh)
	_, err := c.doJSON(ctx, "delete "+id, http.MethodDelete, u, nil, nil)
	return err
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID        string                     `json:"_id"`
			Score     *float64                   `json:"_score"`
			Source    searchstore.StoredDocument `json:"_source"`
			Highlight map[string][]string        `json:"highlight"`
			Sort      []any                      `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

func (c *Client) Search(ctx context.Context, req searchstore.SearchRequest) ([]searchstore.Hit, error) {
	q, err := translate(req.Query)
	if err != nil {
		return nil, &searchstore.BackendError{Op: "search", Message: err.Error(), Kind: searchstore.ErrRejected}
	}
	body := map[string]any{"query": q}
	if req.Size > 0 {
		body["size"] = req.Size
	}
	if len(req.Highlight) > 0 {
		fields := make(map[string]any, len(req.Highlight))
		for _, hf := range req.Highlight {
			fields[hf.Field] = map[string]any{
				"fragment_size":       hf.FragmentSize,
				"number_of_fragments": hf.MaxFragments,
			}
		}
		hl := map[string]any{"fields": fields}
		if req.PreTag != "" {
			hl["pre_tags"] = []string{req.PreTag}
		}
		if req.PostTag != "" {
			hl["post_tags"] = []string{req.PostTag}
		}
		body["highlight"] = hl
	}

	var resp searchResponse
	if _, err := c.doJSON(ctx, "search", http.MethodPost, c.indexURL("_search"), body, &resp); err != nil {
		return nil, err
	}

	hits := make([]searchstore.Hit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		doc := h.Source
		if doc.ID == "" {
			doc.ID = h.ID
		}
		hit := searchstore.Hit{Document: doc, Highlights: h.Highlight}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Scan pages with search_after on the id keyword.
func (c *Client) Scan(ctx context.Context, q searchstore.Query, fn func(searchstore.StoredDocument) error) error {
	dsl, err := translate(q)
	if err != nil {
		return &searchstore.BackendError{Op: "scan", Message: err.Error(), Kind: searchstore.ErrRejected}
	}

	var after []any
	for {
		body := map[string]any{
			"query": dsl,
			"size":  scanPageSize,
			"sort":  []any{map[string]string{searchstore.FieldID: "asc"}},
		}
		if after != nil {
			body["search_after"] = after
		}

		var resp searchResponse
		if _, err := c.doJSON(ctx, "scan", http.MethodPost, c.indexURL("_search"), body, &resp); err != nil {
			return err
		}
		for _, h := range resp.Hits.Hits {
			doc := h.Source
			if doc.ID == "" {
				doc.ID = h.ID
			}
			if err := fn(doc); err != nil {
				return err
			}
		}
		if len(resp.Hits.Hits) < scanPageSize {
			return nil
		}
		after = resp.Hits.Hits[len(resp.Hits.Hits)-1].Sort
	}
}
