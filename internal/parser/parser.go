// Package parser extracts plain text from uploaded documents.
package parser

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

// Extractor converts raw document bytes into plain text.
type Extractor interface {
	Extract(r io.Reader) (string, error)
}

// Options tunes extractor behavior.
type Options struct {
	// PDFFallbackPdftotext shells out to pdftotext when the Go PDF reader fails.
	PDFFallbackPdftotext bool
}

// SupportedExtensions maps file extensions this service can handle to their
// content type.
var SupportedExtensions = map[string]string{
	".pdf":      "application/pdf",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".csv":      "text/csv",
	".html":     "text/html",
	".htm":      "text/html",
}

// ForFile returns the extractor for a filename.
func ForFile(filename string, opts Options) (Extractor, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return &PDFExtractor{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXExtractor{}, nil
	case ".txt":
		return &TextExtractor{}, nil
	case ".md", ".markdown":
		return &MarkdownExtractor{}, nil
	case ".csv":
		return &CSVExtractor{}, nil
	case ".html", ".htm":
		return &HTMLExtractor{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %q", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	_, ok := SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// ContentType returns the MIME type for a supported filename, or
// application/octet-stream.
func ContentType(filename string) string {
	if ct, ok := SupportedExtensions[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ExtractText returns the text of data, or "" when extraction fails. Failures
// are logged and never returned; a document with no text is still indexed.
func ExtractText(data []byte, filename string, opts Options, log *slog.Logger) (text string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("text extraction panicked", "filename", filename, "panic", r)
			text = ""
		}
	}()

	ex, err := ForFile(filename, opts)
	if err != nil {
		log.Warn("text extraction skipped", "filename", filename, "error", err)
		return ""
	}
	text, err = ex.Extract(bytes.NewReader(data))
	if err != nil {
		log.Warn("text extraction failed", "filename", filename, "error", err)
		return ""
	}
	return text
}

// blocks accumulates paragraphs separated by blank lines.
type blocks struct {
	sb strings.Builder
}

func (b *blocks) add(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	if b.sb.Len() > 0 {
		b.sb.WriteString("\n\n")
	}
	b.sb.WriteString(s)
}

func (b *blocks) String() string {
	return b.sb.String()
}
