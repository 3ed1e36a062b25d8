package elastic

import (
	"context"
	"errors"
	"net/http"

	"github.com/dgallion1/docsearch/internal/searchstore"
)

const analyzerName = "docsearch_text"

// indexBody is the settings and mapping sent on index creation.
func (c *Client) indexBody() map[string]any {
	keyword := map[string]any{"type": "keyword"}
	text := map[string]any{"type": "text", "analyzer": analyzerName}

	return map[string]any{
		"settings": map[string]any{
			"analysis": map[string]any{
				"filter": map[string]any{
					"docsearch_stemmer": map[string]any{
						"type":     "stemmer",
						"language": c.language,
					},
				},
				"analyzer": map[string]any{
					analyzerName: map[string]any{
						"type":      "custom",
						"tokenizer": "standard",
						"filter":    []string{"lowercase", "docsearch_stemmer"},
					},
				},
			},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				searchstore.FieldID:          keyword,
				searchstore.FieldParentID:    keyword,
				searchstore.FieldIsParent:    map[string]any{"type": "boolean"},
				searchstore.FieldChunkIndex:  map[string]any{"type": "integer"},
				searchstore.FieldTotalChunks: map[string]any{"type": "integer"},
				searchstore.FieldFileName:    text,
				searchstore.FieldDisplayName: keyword,
				searchstore.FieldFilePath:    keyword,
				searchstore.FieldFileSize:    map[string]any{"type": "long"},
				searchstore.FieldUploadDate:  map[string]any{"type": "date"},
				searchstore.FieldContentType: keyword,
				searchstore.FieldRole:        keyword,
				searchstore.FieldContent: map[string]any{
					"type":     "text",
					"analyzer": analyzerName,
					"fields": map[string]any{
						"raw": map[string]any{
							"type":       "keyword",
							"index":      false,
							"doc_values": false,
						},
					},
				},
			},
		},
	}
}

// EnsureIndex creates the index when it does not exist.
func (c *Client) EnsureIndex(ctx context.Context) error {
	status, _, err := c.do(ctx, "check index", http.MethodHead, c.indexURL(), "", nil)
	if err == nil && status == http.StatusOK {
		return nil
	}
	if err != nil && !isKind(err, searchstore.ErrNotFound) && !isKind(err, searchstore.ErrIndexNotFound) {
		return err
	}

	_, err = c.doJSON(ctx, "create index", http.MethodPut, c.indexURL(), c.indexBody(), nil)
	var be *searchstore.BackendError
	if errors.As(err, &be) && be.Reason == "resource_already_exists_exception" {
		return nil
	}
	return err
}

// DeleteIndex drops the index; a missing index is not an error.
func (c *Client) DeleteIndex(ctx context.Context) error {
	_, err := c.doJSON(ctx, "delete index", http.MethodDelete, c.indexURL(), nil, nil)
	if isKind(err, searchstore.ErrIndexNotFound) || isKind(err, searchstore.ErrNotFound) {
		return nil
	}
	return err
}
