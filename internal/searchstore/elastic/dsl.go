package elastic

import (
	"fmt"

	"github.com/dgallion1/docsearch/internal/searchstore"
)

// translate renders a query tree as Elasticsearch query DSL.
func translate(q searchstore.Query) (map[string]any, error) {
	switch n := q.(type) {
	case nil, searchstore.MatchAll:
		return map[string]any{"match_all": map[string]any{}}, nil

	case searchstore.Match:
		body := map[string]any{"query": n.Text}
		if n.Operator != "" {
			body["operator"] = string(n.Operator)
		}
		if n.Fuzzy {
			body["fuzziness"] = "AUTO"
		}
		return map[string]any{"match": map[string]any{n.Field: body}}, nil

	case searchstore.Phrase:
		return map[string]any{"match_phrase": map[string]any{
			n.Field: map[string]any{"query": n.Text, "slop": n.Slop},
		}}, nil

	case searchstore.Term:
		return map[string]any{"term": map[string]any{n.Field: n.Value}}, nil

	case searchstore.Terms:
		return map[string]any{"terms": map[string]any{n.Field: n.Values}}, nil

	case searchstore.Flag:
		return map[string]any{"term": map[string]any{n.Field: n.Value}}, nil

	case searchstore.Bool:
		body := map[string]any{}
		for key, clauses := range map[string][]searchstore.Query{
			"must":     n.Must,
			"should":   n.Should,
			"must_not": n.MustNot,
			"filter":   n.Filter,
		} {
			if len(clauses) == 0 {
				continue
			}
			out := make([]any, 0, len(clauses))
			for _, c := range clauses {
				dsl, err := translate(c)
				if err != nil {
					return nil, err
				}
				out = append(out, dsl)
			}
			body[key] = out
		}
		if n.MinimumShouldMatch > 0 {
			body["minimum_should_match"] = n.MinimumShouldMatch
		}
		return map[string]any{"bool": body}, nil

	default:
		return nil, fmt.Errorf("unsupported query node %T", q)
	}
}
