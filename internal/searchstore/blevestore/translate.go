package blevestore

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/dgallion1/docsearch/internal/searchstore"
)

// translate converts a searchstore query tree into a bleve query.
func translate(q searchstore.Query) (query.Query, error) {
	switch n := q.(type) {
	case nil, searchstore.MatchAll:
		return bleve.NewMatchAllQuery(), nil

	case searchstore.Match:
		return matchQuery(n), nil

	case searchstore.Phrase:
		// bleve phrase queries have no slop; the clause degrades to an exact
		// phrase boost.
		pq := bleve.NewMatchPhraseQuery(n.Text)
		pq.SetField(n.Field)
		return pq, nil

	case searchstore.Term:
		tq := bleve.NewTermQuery(n.Value)
		tq.SetField(n.Field)
		return tq, nil

	case searchstore.Terms:
		if len(n.Values) == 0 {
			return bleve.NewMatchNoneQuery(), nil
		}
		terms := make([]query.Query, 0, len(n.Values))
		for _, v := range n.Values {
			tq := bleve.NewTermQuery(v)
			tq.SetField(n.Field)
			terms = append(terms, tq)
		}
		dq := bleve.NewDisjunctionQuery(terms...)
		dq.SetMin(1)
		return dq, nil

	case searchstore.Flag:
		bq := bleve.NewBoolFieldQuery(n.Value)
		bq.SetField(n.Field)
		return bq, nil

	case searchstore.Bool:
		return boolQuery(n)

	default:
		return nil, fmt.Errorf("unsupported query node %T", q)
	}
}

// matchQuery expands a fuzzy match into one clause per whitespace term so
// each term gets its own edit distance.
func matchQuery(m searchstore.Match) query.Query {
	op := query.MatchQueryOperatorOr
	if m.Operator == searchstore.OperatorAnd {
		op = query.MatchQueryOperatorAnd
	}

	terms := strings.Fields(m.Text)
	if !m.Fuzzy || len(terms) <= 1 {
		mq := bleve.NewMatchQuery(m.Text)
		mq.SetField(m.Field)
		mq.SetOperator(op)
		if m.Fuzzy {
			mq.SetFuzziness(searchstore.AutoFuzziness(m.Text))
		}
		return mq
	}

	clauses := make([]query.Query, 0, len(terms))
	for _, term := range terms {
		mq := bleve.NewMatchQuery(term)
		mq.SetField(m.Field)
		mq.SetOperator(op)
		mq.SetFuzziness(searchstore.AutoFuzziness(term))
		clauses = append(clauses, mq)
	}
	if op == query.MatchQueryOperatorAnd {
		return bleve.NewConjunctionQuery(clauses...)
	}
	dq := bleve.NewDisjunctionQuery(clauses...)
	dq.SetMin(1)
	return dq
}

// boolQuery maps filter clauses onto must; bleve has no non-scoring filter.
func boolQuery(b searchstore.Bool) (query.Query, error) {
	bq := bleve.NewBooleanQuery()

	for _, c := range append(append([]searchstore.Query{}, b.Must...), b.Filter...) {
		q, err := translate(c)
		if err != nil {
			return nil, err
		}
		bq.AddMust(q)
	}
	for _, c := range b.Should {
		q, err := translate(c)
		if err != nil {
			return nil, err
		}
		bq.AddShould(q)
	}
	for _, c := range b.MustNot {
		q, err := translate(c)
		if err != nil {
			return nil, err
		}
		bq.AddMustNot(q)
	}
	if b.MinimumShouldMatch > 0 {
		bq.SetMinShould(float64(b.MinimumShouldMatch))
	}
	return bq, nil
}
