package query

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokPhrase
	tokLParen
	tokRParen
	tokCaret
	tokTilde
	tokColon
	tokAnd
	tokOr
	tokNot
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of query"
	case tokWord:
		return "term"
	case tokPhrase:
		return "phrase"
	case tokLParen:
		return `"("`
	case tokRParen:
		return `")"`
	case tokCaret:
		return `"^"`
	case tokTilde:
		return `"~"`
	case tokColon:
		return `":"`
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	case tokNot:
		return "NOT"
	default:
		return fmt.Sprintf("token(%d)", int(k))
	}
}

// token spans query[Pos:End]. Text is the word or the phrase body.
type token struct {
	Kind tokenKind
	Text string
	Pos  int
	End  int
}

const reserved = `()"^~:`

func isWordRune(r rune) bool {
	return !unicode.IsSpace(r) && !strings.ContainsRune(reserved, r)
}

func lex(q string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(q) {
		r, size := utf8.DecodeRuneInString(q[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case r == '(':
			toks = append(toks, token{Kind: tokLParen, Pos: i, End: i + 1})
			i++
		case r == ')':
			toks = append(toks, token{Kind: tokRParen, Pos: i, End: i + 1})
			i++
		case r == '^':
			toks = append(toks, token{Kind: tokCaret, Pos: i, End: i + 1})
			i++
		case r == '~':
			toks = append(toks, token{Kind: tokTilde, Pos: i, End: i + 1})
			i++
		case r == ':':
			toks = append(toks, token{Kind: tokColon, Pos: i, End: i + 1})
			i++
		case r == '"':
			end := strings.IndexByte(q[i+1:], '"')
			if end < 0 {
				return nil, &ParseError{Query: q, Pos: i, Msg: "unterminated phrase"}
			}
			body := q[i+1 : i+1+end]
			toks = append(toks, token{Kind: tokPhrase, Text: body, Pos: i, End: i + end + 2})
			i += end + 2
		default:
			start := i
			for i < len(q) {
				r, size := utf8.DecodeRuneInString(q[i:])
				if !isWordRune(r) {
					break
				}
				i += size
			}
			word := q[start:i]
			toks = append(toks, token{Kind: keyword(word), Text: word, Pos: start, End: i})
		}
	}
	toks = append(toks, token{Kind: tokEOF, Pos: len(q), End: len(q)})
	return toks, nil
}

func keyword(word string) tokenKind {
	switch {
	case strings.EqualFold(word, "AND"):
		return tokAnd
	case strings.EqualFold(word, "OR"):
		return tokOr
	case strings.EqualFold(word, "NOT"):
		return tokNot
	default:
		return tokWord
	}
}
