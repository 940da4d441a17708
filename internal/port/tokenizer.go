package port

import (
	"iter"

	"ranker/internal/domain"
)

type Tokenizer interface {
	Tokenize(text string) iter.Seq[domain.Token]

	Terms(text string) []string
}
