package blevestore

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search/highlight"
	htmlformat "github.com/blevesearch/bleve/v2/search/highlight/format/html"
	simplefrag "github.com/blevesearch/bleve/v2/search/highlight/fragmenter/simple"
	simplehl "github.com/blevesearch/bleve/v2/search/highlight/highlighter/simple"

	"github.com/dgallion1/docsearch/internal/searchstore"
)

const (
	highlighterName = "docsearch-mark"
	markPre         = "<mark>"
	markPost        = "</mark>"
	fragmentSize    = 300
)

func init() {
	registry.RegisterHighlighter(highlighterName, func(map[string]interface{}, *registry.Cache) (highlight.Highlighter, error) {
		return simplehl.NewHighlighter(
			simplefrag.NewFragmenter(fragmentSize),
			htmlformat.NewFragmentFormatter(markPre, markPost),
			simplehl.DefaultSeparator,
		), nil
	})
}

// buildMapping returns the index mapping: English stemming on the body and
// file name, exact keywords for identifiers and roles.
func buildMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = en.AnalyzerName
	text.Store = true
	text.IncludeTermVectors = true

	kw := func() *mapping.FieldMapping {
		m := bleve.NewKeywordFieldMapping()
		m.Store = true
		m.IncludeInAll = false
		return m
	}

	num := bleve.NewNumericFieldMapping()
	num.Store = true
	num.IncludeInAll = false

	flag := bleve.NewBooleanFieldMapping()
	flag.Store = true
	flag.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(searchstore.FieldContent, text)
	doc.AddFieldMappingsAt(searchstore.FieldFileName, text)
	for _, f := range []string{
		searchstore.FieldID,
		searchstore.FieldParentID,
		searchstore.FieldRole,
		searchstore.FieldContentType,
		searchstore.FieldFilePath,
		searchstore.FieldDisplayName,
		searchstore.FieldUploadDate,
	} {
		doc.AddFieldMappingsAt(f, kw())
	}
	doc.AddFieldMappingsAt(searchstore.FieldIsParent, flag)
	for _, f := range []string{
		searchstore.FieldChunkIndex,
		searchstore.FieldTotalChunks,
		searchstore.FieldFileSize,
	} {
		doc.AddFieldMappingsAt(f, num)
	}

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = en.AnalyzerName
	return im
}
