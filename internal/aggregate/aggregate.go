// Package aggregate folds chunk-level backend records into one entry per
// logical document.
package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/dgallion1/docsearch/internal/roles"
	"github.com/dgallion1/docsearch/internal/searchstore"
)

// SearchResult is one logical document matched by a search.
type SearchResult struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	FilePath    string    `json:"filePath,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	Role        string    `json:"role"`
	FileSize    int64     `json:"fileSize"`
	UploadDate  time.Time `json:"uploadDate"`
	Score       float64   `json:"score"`
	Chunked     bool      `json:"chunked"`
	Highlights  []string  `json:"highlights"`
}

// Document is a logical document with its body reassembled.
type Document struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	FilePath    string    `json:"filePath,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	Role        string    `json:"role"`
	FileSize    int64     `json:"fileSize"`
	UploadDate  time.Time `json:"uploadDate"`
	Content     string    `json:"content"`
	TotalChunks int       `json:"totalChunks,omitempty"`
}

// SearchHits groups hits by logical document in the order the backend
// returned them. Hits whose role is not in visible are dropped. Content
// fragments precede file-name fragments and are never deduplicated.
func SearchHits(hits []searchstore.Hit, visible roles.Set) []SearchResult {
	index := make(map[string]int)
	var results []SearchResult

	for _, hit := range hits {
		doc := hit.Document
		if !visible.Contains(doc.Role) {
			continue
		}
		id := doc.LogicalID()

		i, seen := index[id]
		if !seen {
			i = len(results)
			index[id] = i
			results = append(results, SearchResult{
				ID:          id,
				FileName:    DisplayName(doc),
				FilePath:    doc.FilePath,
				ContentType: doc.ContentType,
				Role:        doc.Role,
				FileSize:    doc.FileSize,
				UploadDate:  doc.UploadDate,
				Score:       hit.Score,
				Chunked:     doc.IsChunk(),
				Highlights:  []string{},
			})
		}

		r := &results[i]
		r.Highlights = append(r.Highlights, hit.Highlights[searchstore.FieldContent]...)
		r.Highlights = append(r.Highlights, hit.Highlights[searchstore.FieldFileName]...)
	}
	return results
}

// Documents reassembles stored records into logical documents, preserving
// the order in which each logical id first appears. Chunks are joined in
// chunkIndex order regardless of arrival order.
func Documents(records []searchstore.StoredDocument, visible roles.Set) []Document {
	type group struct {
		doc    Document
		meta   bool
		chunks []searchstore.StoredDocument
	}

	var order []string
	groups := make(map[string]*group)

	records = roles.Filter(records, visible, func(rec searchstore.StoredDocument) string { return rec.Role })
	for _, rec := range records {
		id := rec.LogicalID()
		g, ok := groups[id]
		if !ok {
			g = &group{doc: Document{ID: id}}
			groups[id] = g
			order = append(order, id)
		}

		switch {
		case rec.IsChunk():
			g.chunks = append(g.chunks, rec)
			if !g.meta {
				fillMeta(&g.doc, rec)
				g.doc.TotalChunks = rec.TotalChunks
			}
		case rec.IsParent:
			fillMeta(&g.doc, rec)
			g.doc.TotalChunks = rec.TotalChunks
			g.meta = true
		default:
			fillMeta(&g.doc, rec)
			g.doc.Content = rec.Content
			g.meta = true
		}
	}

	out := make([]Document, 0, len(order))
	for _, id := range order {
		g := groups[id]
		if g.doc.TotalChunks > 0 || len(g.chunks) > 0 {
			g.doc.Content = joinChunks(g.chunks)
		}
		out = append(out, g.doc)
	}
	return out
}

// DisplayName returns the caller-facing name of a record. Records written
// before displayName existed only carry the annotated chunk name.
func DisplayName(doc searchstore.StoredDocument) string {
	if doc.DisplayName != "" {
		return doc.DisplayName
	}
	if doc.IsChunk() {
		if i := strings.Index(doc.FileName, "("); i >= 0 {
			return strings.TrimSpace(doc.FileName[:i])
		}
	}
	return doc.FileName
}

func fillMeta(d *Document, rec searchstore.StoredDocument) {
	d.FileName = DisplayName(rec)
	d.FilePath = rec.FilePath
	d.ContentType = rec.ContentType
	d.Role = rec.Role
	d.FileSize = rec.FileSize
	d.UploadDate = rec.UploadDate
}

func joinChunks(chunks []searchstore.StoredDocument) string {
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].ChunkIndex < chunks[j].ChunkIndex
	})
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Content)
	}
	return sb.String()
}
