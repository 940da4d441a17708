// Package query parses the boolean query language into an AST.
//
// The language supports terms, "phrases"~slop, wildcards (* and ?), fuzzy
// terms (~edits or ~similarity), FIELD: qualifiers, ^boosts, parentheses
// and the case-insensitive operators AND, OR and NOT. Adjacent clauses
// without an operator are OR'ed.
package query

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultFuzzyEdits is used for a bare "term~".
const DefaultFuzzyEdits = 2

// Node is a query AST node. An empty Field on a leaf means the searcher's
// default field.
type Node interface {
	String() string
	node()
}

type TermQuery struct {
	Field string
	Text  string
}

type PhraseQuery struct {
	Field string
	Terms []string
	Slop  int
}

type WildcardQuery struct {
	Field   string
	Pattern string
}

// FuzzyQuery matches terms within an edit distance of Text. Similarity,
// when positive, overrides MaxEdits (see Edits).
type FuzzyQuery struct {
	Field      string
	Text       string
	MaxEdits   int
	Similarity float64
}

type BoostQuery struct {
	Query Node
	Boost float64
}

type AndQuery struct {
	Left, Right Node
}

type OrQuery struct {
	Left, Right Node
}

type NotQuery struct {
	Query Node
}

type GroupQuery struct {
	Query Node
}

func (*TermQuery) node()     {}
func (*PhraseQuery) node()   {}
func (*WildcardQuery) node() {}
func (*FuzzyQuery) node()    {}
func (*BoostQuery) node()    {}
func (*AndQuery) node()      {}
func (*OrQuery) node()       {}
func (*NotQuery) node()      {}
func (*GroupQuery) node()    {}

// Edits returns the maximum edit distance. For a similarity s it is
// floor((1-s) * len(Text)) in runes, never below zero.
func (q *FuzzyQuery) Edits() int {
	if q.Similarity <= 0 {
		return max(q.MaxEdits, 0)
	}
	n := utf8.RuneCountInString(q.Text)
	// The epsilon keeps values like (1-0.6)*5 from flooring to 1.
	return max(int(math.Floor((1-q.Similarity)*float64(n)+1e-9)), 0)
}

func qualify(field, s string) string {
	if field == "" {
		return s
	}
	return field + ":" + s
}

func (q *TermQuery) String() string {
	return qualify(q.Field, q.Text)
}

func (q *PhraseQuery) String() string {
	s := `"` + strings.Join(q.Terms, " ") + `"`
	if q.Slop > 0 {
		s += "~" + strconv.Itoa(q.Slop)
	}
	return qualify(q.Field, s)
}

func (q *WildcardQuery) String() string {
	return qualify(q.Field, q.Pattern)
}

func (q *FuzzyQuery) String() string {
	if q.Similarity > 0 {
		return qualify(q.Field, q.Text+"~"+strconv.FormatFloat(q.Similarity, 'f', -1, 64))
	}
	return qualify(q.Field, q.Text+"~"+strconv.Itoa(q.MaxEdits))
}

func (q *BoostQuery) String() string {
	return q.Query.String() + "^" + strconv.FormatFloat(q.Boost, 'f', -1, 64)
}

func (q *AndQuery) String() string {
	return "(" + q.Left.String() + " AND " + q.Right.String() + ")"
}

func (q *OrQuery) String() string {
	return "(" + q.Left.String() + " OR " + q.Right.String() + ")"
}

func (q *NotQuery) String() string {
	return "NOT " + q.Query.String()
}

func (q *GroupQuery) String() string {
	return "(" + q.Query.String() + ")"
}

// withField sets field on every leaf below n that has none.
func withField(n Node, field string) Node {
	switch q := n.(type) {
	case *TermQuery:
		if q.Field == "" {
			q.Field = field
		}
	case *PhraseQuery:
		if q.Field == "" {
			q.Field = field
		}
	case *WildcardQuery:
		if q.Field == "" {
			q.Field = field
		}
	case *FuzzyQuery:
		if q.Field == "" {
			q.Field = field
		}
	case *BoostQuery:
		withField(q.Query, field)
	case *AndQuery:
		withField(q.Left, field)
		withField(q.Right, field)
	case *OrQuery:
		withField(q.Left, field)
		withField(q.Right, field)
	case *NotQuery:
		withField(q.Query, field)
	case *GroupQuery:
		withField(q.Query, field)
	}
	return n
}
