package analyzer

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"ranker/internal/domain"
)

// Tokenizer lowercases text and splits it on runs of characters that are
// neither letters nor digits. It keeps every token, with no stemming and no
// stopword list, so positions count all words of a field.
type Tokenizer struct{}

// NewTokenizer creates a new Tokenizer.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{}
}

// Tokenize returns a lazy token sequence. Each range over the sequence
// rescans text from the beginning.
func (t *Tokenizer) Tokenize(text string) iter.Seq[domain.Token] {
	return func(yield func(domain.Token) bool) {
		pos := 0
		start := -1
		for i, r := range text {
			if isWordRune(r) {
				if start < 0 {
					start = i
				}
				continue
			}
			if start >= 0 {
				if !yield(domain.Token{Term: strings.ToLower(text[start:i]), Position: pos}) {
					return
				}
				pos++
				start = -1
			}
		}
		if start >= 0 {
			yield(domain.Token{Term: strings.ToLower(text[start:]), Position: pos})
		}
	}
}

// Terms collects the terms of text in order.
func (t *Tokenizer) Terms(text string) []string {
	terms := make([]string, 0, utf8.RuneCountInString(text)/6+1)
	for tok := range t.Tokenize(text) {
		terms = append(terms, tok.Term)
	}
	return terms
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
