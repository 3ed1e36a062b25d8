// Package query builds the relevance query and highlight settings for a
// free-text search.
package query

import (
	"errors"
	"strings"

	"github.com/dgallion1/docsearch/internal/searchstore"
)

// ErrEmptyQuery is returned for blank search text. Callers fall back to
// listing documents.
var ErrEmptyQuery = errors.New("empty query")

// Options tunes the generated request.
type Options struct {
	MaxResults int

	ContentFragmentSize int
	ContentFragments    int
	NameFragmentSize    int
	NameFragments       int

	PreTag  string
	PostTag string

	// Roles restricts matches to records with one of these roles. Empty means
	// no restriction.
	Roles []string

	// Proximity adds an optional phrase clause with this slop that only
	// boosts scoring. Zero disables it.
	Proximity int
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		MaxResults:          1000,
		ContentFragmentSize: 300,
		ContentFragments:    5,
		NameFragmentSize:    150,
		NameFragments:       1,
		PreTag:              "<mark>",
		PostTag:             "</mark>",
	}
}

// Build turns text into a search request. Every term must appear, in the
// body or the file name, with length-scaled fuzziness. Chunked-document
// placeholders never match.
func Build(text string, opts Options) (searchstore.SearchRequest, error) {
	text = strings.TrimSpace(text)
	terms := strings.Fields(text)
	if len(terms) == 0 {
		return searchstore.SearchRequest{}, ErrEmptyQuery
	}
	opts = withDefaults(opts)

	root := searchstore.Bool{
		Must: []searchstore.Query{
			searchstore.Match{
				Field:    searchstore.FieldContent,
				Text:     text,
				Operator: searchstore.OperatorAnd,
				Fuzzy:    true,
			},
		},
		MustNot: []searchstore.Query{
			searchstore.Flag{Field: searchstore.FieldIsParent, Value: true},
		},
	}

	if len(terms) > 1 {
		for _, term := range terms {
			root.Must = append(root.Must, searchstore.Bool{
				Should: []searchstore.Query{
					searchstore.Match{Field: searchstore.FieldContent, Text: term, Fuzzy: true},
					searchstore.Match{Field: searchstore.FieldFileName, Text: term, Fuzzy: true},
				},
				MinimumShouldMatch: 1,
			})
		}
	}

	if opts.Proximity > 0 && len(terms) > 1 {
		root.Should = append(root.Should, searchstore.Phrase{
			Field: searchstore.FieldContent,
			Text:  text,
			Slop:  opts.Proximity,
		})
	}

	if len(opts.Roles) > 0 {
		values := make([]string, len(opts.Roles))
		copy(values, opts.Roles)
		root.Filter = append(root.Filter, searchstore.Terms{
			Field:  searchstore.FieldRole,
			Values: values,
		})
	}

	return searchstore.SearchRequest{
		Query: root,
		Highlight: []searchstore.HighlightField{
			{Field: searchstore.FieldContent, FragmentSize: opts.ContentFragmentSize, MaxFragments: opts.ContentFragments},
			{Field: searchstore.FieldFileName, FragmentSize: opts.NameFragmentSize, MaxFragments: opts.NameFragments},
		},
		PreTag:  opts.PreTag,
		PostTag: opts.PostTag,
		Size:    opts.MaxResults,
	}, nil
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.MaxResults <= 0 {
		opts.MaxResults = def.MaxResults
	}
	if opts.ContentFragmentSize <= 0 {
		opts.ContentFragmentSize = def.ContentFragmentSize
	}
	if opts.ContentFragments <= 0 {
		opts.ContentFragments = def.ContentFragments
	}
	if opts.NameFragmentSize <= 0 {
		opts.NameFragmentSize = def.NameFragmentSize
	}
	if opts.NameFragments <= 0 {
		opts.NameFragments = def.NameFragments
	}
	if opts.PreTag == "" && opts.PostTag == "" {
		opts.PreTag, opts.PostTag = def.PreTag, def.PostTag
	}
	return opts
}
