package searchstore

// Query is a node of the backend-neutral query tree. Adapters translate it
// into their native query language.
type Query interface {
	isQuery()
}

// Operator combines the analyzed terms of a Match clause.
type Operator string

const (
	OperatorOr  Operator = "or"
	OperatorAnd Operator = "and"
)

// MatchAll matches every record.
type MatchAll struct{}

// Match is an analyzed full-text clause. Fuzzy enables per-term edit
// distance scaled to term length.
type Match struct {
	Field    string
	Text     string
	Operator Operator
	Fuzzy    bool
}

// Phrase matches terms in order, allowing Slop positions between them.
type Phrase struct {
	Field string
	Text  string
	Slop  int
}

// Term is an exact, unanalyzed match on a keyword field.
type Term struct {
	Field string
	Value string
}

// Terms matches when the keyword field equals any of Values.
type Terms struct {
	Field  string
	Values []string
}

// Flag is an exact match on a boolean field.
type Flag struct {
	Field string
	Value bool
}

// Bool combines clauses. Filter clauses restrict without scoring where the
// backend supports it.
type Bool struct {
	Must               []Query
	Should             []Query
	MustNot            []Query
	Filter             []Query
	MinimumShouldMatch int
}

func (MatchAll) isQuery() {}
func (Match) isQuery()    {}
func (Phrase) isQuery()   {}
func (Term) isQuery()     {}
func (Terms) isQuery()    {}
func (Flag) isQuery()     {}
func (Bool) isQuery()     {}

// AutoFuzziness returns the edit distance allowed for a term: none up to two
// runes, one up to five, two beyond.
func AutoFuzziness(term string) int {
	n := len([]rune(term))
	switch {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}
