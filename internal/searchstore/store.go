// Package searchstore defines the port between the document engine and the
// full-text search backend, plus the backend-neutral query tree the engine
// builds. Adapters live in the elastic and blevestore subpackages.
package searchstore

import (
	"context"
	"time"
)

// Backend field names, shared by mappings, queries and highlighting.
const (
	FieldID          = "id"
	FieldParentID    = "parentId"
	FieldIsParent    = "isParent"
	FieldChunkIndex  = "chunkIndex"
	FieldTotalChunks = "totalChunks"
	FieldFileName    = "fileName"
	FieldDisplayName = "displayName"
	FieldFilePath    = "filePath"
	FieldFileSize    = "fileSize"
	FieldUploadDate  = "uploadDate"
	FieldContentType = "contentType"
	FieldRole        = "role"
	FieldContent     = "content"
)

// StoredDocument is one backend record: a whole small document, the
// placeholder of a chunked document, or a single chunk.
type StoredDocument struct {
	ID          string    `json:"id"`
	ParentID    string    `json:"parentId,omitempty"`
	IsParent    bool      `json:"isParent"`
	ChunkIndex  int       `json:"chunkIndex"`
	TotalChunks int       `json:"totalChunks"`
	FileName    string    `json:"fileName"`
	DisplayName string    `json:"displayName,omitempty"`
	FilePath    string    `json:"filePath,omitempty"`
	FileSize    int64     `json:"fileSize"`
	UploadDate  time.Time `json:"uploadDate"`
	ContentType string    `json:"contentType,omitempty"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
}

// IsChunk reports whether the record is a slice of a chunked document.
func (d StoredDocument) IsChunk() bool {
	return d.ParentID != ""
}

// LogicalID is the id of the caller-visible document this record belongs to.
func (d StoredDocument) LogicalID() string {
	if d.ParentID != "" {
		return d.ParentID
	}
	return d.ID
}

// HighlightField configures fragment extraction for one field.
type HighlightField struct {
	Field        string
	FragmentSize int
	MaxFragments int
}

// SearchRequest is a relevance query with highlighting.
type SearchRequest struct {
	Query     Query
	Highlight []HighlightField
	PreTag    string
	PostTag   string
	Size      int
}

// Hit is one ranked record returned by Search.
type Hit struct {
	Document   StoredDocument
	Highlights map[string][]string
	Score      float64
}

// Store is the search backend. Implementations are safe for concurrent use
// and never retry; retry policy belongs to the caller.
type Store interface {
	// EnsureIndex creates the index with its analyzer and mapping when missing.
	EnsureIndex(ctx context.Context) error

	// DeleteIndex drops the index. A missing index is not an error.
	DeleteIndex(ctx context.Context) error

	// Put indexes or replaces a single record.
	Put(ctx context.Context, doc StoredDocument) error

	// PutBatch indexes records in one round trip.
	PutBatch(ctx context.Context, docs []StoredDocument) error

	// Get returns the record with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (*StoredDocument, error)

	// Delete removes one record. A missing record yields ErrNotFound or nil.
	Delete(ctx context.Context, id string) error

	// Search runs a relevance query; hits are sorted by score, highest first.
	Search(ctx context.Context, req SearchRequest) ([]Hit, error)

	// Scan calls fn for every record matching q, in id order.
	Scan(ctx context.Context, q Query, fn func(StoredDocument) error) error

	// Close releases resources.
	Close() error
}
