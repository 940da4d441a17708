package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"ranker/internal/domain"
	"ranker/internal/port"
)

// ParseError reports invalid query syntax. Pos is a byte offset into Query.
type ParseError struct {
	Query string
	Pos   int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s", e.Pos, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return domain.ErrParse
}

// Parser turns query strings into ASTs. Term text is normalized with the
// same tokenizer the index was built with.
type Parser struct {
	tokenizer port.Tokenizer
}

func NewParser(tokenizer port.Tokenizer) *Parser {
	return &Parser{tokenizer: tokenizer}
}

// Parse parses q. Syntax errors are returned as *ParseError.
func (p *Parser) Parse(q string) (Node, error) {
	toks, err := lex(q)
	if err != nil {
		return nil, err
	}
	st := &parseState{query: q, toks: toks, tokenizer: p.tokenizer}
	if st.peek().Kind == tokEOF {
		return nil, st.errorf(st.peek(), "empty query")
	}
	n, err := st.parseOr()
	if err != nil {
		return nil, err
	}
	if t := st.peek(); t.Kind != tokEOF {
		return nil, st.errorf(t, "unexpected %s", t.Kind)
	}
	return n, nil
}

type parseState struct {
	query     string
	toks      []token
	i         int
	tokenizer port.Tokenizer
}

func (s *parseState) peek() token {
	return s.toks[s.i]
}

func (s *parseState) next() token {
	t := s.toks[s.i]
	if t.Kind != tokEOF {
		s.i++
	}
	return t
}

// adjacent reports whether the upcoming token touches prev with no space.
func (s *parseState) adjacent(prev token) bool {
	return s.peek().Pos == prev.End
}

func (s *parseState) errorf(t token, format string, args ...any) *ParseError {
	return &ParseError{Query: s.query, Pos: t.Pos, Msg: fmt.Sprintf(format, args...)}
}

func startsClause(k tokenKind) bool {
	return k == tokWord || k == tokPhrase || k == tokLParen || k == tokNot
}

func (s *parseState) parseOr() (Node, error) {
	left, err := s.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		switch k := s.peek().Kind; {
		case k == tokOr:
			s.next()
		case startsClause(k):
			// Adjacent clauses without an operator.
		default:
			return left, nil
		}
		right, err := s.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &OrQuery{Left: left, Right: right}
	}
}

func (s *parseState) parseAnd() (Node, error) {
	left, err := s.parseNot()
	if err != nil {
		return nil, err
	}
	for s.peek().Kind == tokAnd {
		s.next()
		right, err := s.parseNot()
		if err != nil {
			return nil, err
		}
		left = &AndQuery{Left: left, Right: right}
	}
	return left, nil
}

func (s *parseState) parseNot() (Node, error) {
	if s.peek().Kind != tokNot {
		return s.parseBoostable()
	}
	s.next()
	operand, err := s.parseBoostable()
	if err != nil {
		return nil, err
	}
	return &NotQuery{Query: operand}, nil
}

func (s *parseState) parseBoostable() (Node, error) {
	atom, err := s.parseAtom()
	if err != nil {
		return nil, err
	}
	if s.peek().Kind != tokCaret {
		return atom, nil
	}
	caret := s.next()
	num := s.peek()
	if num.Kind != tokWord || !s.adjacent(caret) {
		return nil, s.errorf(caret, "boost requires a number")
	}
	s.next()
	boost, err := strconv.ParseFloat(num.Text, 64)
	if err != nil || math.IsNaN(boost) || math.IsInf(boost, 0) || boost <= 0 {
		return nil, s.errorf(num, "boost %q must be a positive number", num.Text)
	}
	return &BoostQuery{Query: atom, Boost: boost}, nil
}

func (s *parseState) parseAtom() (Node, error) {
	t := s.peek()
	switch t.Kind {
	case tokLParen:
		s.next()
		inner, err := s.parseOr()
		if err != nil {
			return nil, err
		}
		if s.peek().Kind != tokRParen {
			return nil, s.errorf(t, "unbalanced parenthesis")
		}
		s.next()
		return &GroupQuery{Query: inner}, nil

	case tokPhrase:
		s.next()
		return s.parsePhrase(t)

	case tokWord:
		s.next()
		if s.peek().Kind == tokColon && s.adjacent(t) {
			return s.parseField(t)
		}
		return s.parseWord(t)

	case tokEOF:
		return nil, s.errorf(t, "unexpected end of query")

	default:
		return nil, s.errorf(t, "unexpected %s", t.Kind)
	}
}

func (s *parseState) parseField(name token) (Node, error) {
	colon := s.next()
	if !isFieldName(name.Text) {
		return nil, s.errorf(name, "field name %q must be an uppercase identifier", name.Text)
	}
	if !s.adjacent(colon) {
		return nil, s.errorf(colon, "missing query after field %s", name.Text)
	}
	atom, err := s.parseAtom()
	if err != nil {
		return nil, err
	}
	return withField(atom, name.Text), nil
}

func isFieldName(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
		case r == '_' || (i > 0 && r >= '0' && r <= '9'):
		default:
			return false
		}
	}
	return s != ""
}

func (s *parseState) parsePhrase(t token) (Node, error) {
	terms := s.tokenizer.Terms(t.Text)
	if len(terms) == 0 {
		return nil, s.errorf(t, "empty phrase")
	}
	phrase := &PhraseQuery{Terms: terms}
	if s.peek().Kind != tokTilde || !s.adjacent(t) {
		return phrase, nil
	}
	tilde := s.next()
	num := s.peek()
	if num.Kind != tokWord || !s.adjacent(tilde) {
		return nil, s.errorf(tilde, "phrase slop requires a number")
	}
	s.next()
	slop, err := strconv.ParseUint(num.Text, 10, 31)
	if err != nil {
		return nil, s.errorf(num, "malformed slop %q", num.Text)
	}
	phrase.Slop = int(slop)
	return phrase, nil
}

func (s *parseState) parseWord(t token) (Node, error) {
	if strings.ContainsAny(t.Text, "*?") {
		return &WildcardQuery{Pattern: strings.ToLower(t.Text)}, nil
	}

	terms := s.tokenizer.Terms(t.Text)

	if s.peek().Kind == tokTilde && s.adjacent(t) {
		return s.parseFuzzy(t, terms)
	}

	switch len(terms) {
	case 0:
		// Punctuation only; matches nothing.
		return &TermQuery{}, nil
	case 1:
		return &TermQuery{Text: terms[0]}, nil
	default:
		return &PhraseQuery{Terms: terms}, nil
	}
}

func (s *parseState) parseFuzzy(t token, terms []string) (Node, error) {
	tilde := s.next()
	if len(terms) != 1 {
		return nil, s.errorf(t, "fuzzy query needs a single term, got %q", t.Text)
	}
	fuzzy := &FuzzyQuery{Text: terms[0], MaxEdits: DefaultFuzzyEdits}

	num := s.peek()
	if num.Kind != tokWord || !s.adjacent(tilde) {
		return fuzzy, nil
	}
	s.next()
	if strings.Contains(num.Text, ".") {
		sim, err := strconv.ParseFloat(num.Text, 64)
		if err != nil || !(sim > 0 && sim < 1) {
			return nil, s.errorf(num, "fuzzy similarity %q must be between 0 and 1", num.Text)
		}
		fuzzy.Similarity = sim
		fuzzy.MaxEdits = 0
		return fuzzy, nil
	}
	edits, err := strconv.ParseUint(num.Text, 10, 31)
	if err != nil {
		return nil, s.errorf(num, "malformed fuzzy edit distance %q", num.Text)
	}
	fuzzy.MaxEdits = int(edits)
	return fuzzy, nil
}
