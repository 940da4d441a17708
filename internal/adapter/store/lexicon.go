package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"ranker/internal/domain"
	"ranker/internal/port"
)

// scanCheckEvery is how many terms a scan visits between context checks.
const scanCheckEvery = 512

// lexicon is the sorted term list of one field. It is loaded on first use
// and shared by every query against the snapshot.
type lexicon struct {
	once  sync.Once
	terms []string
	err   error
}

func (l *lexicon) load(fn func() ([]string, error)) ([]string, error) {
	l.once.Do(func() {
		l.terms, l.err = fn()
	})
	return l.terms, l.err
}

// wildcardPrefix returns the literal text before the first '*' or '?'.
func wildcardPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, "*?"); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

// globPattern escapes everything doublestar treats as special except the
// two wildcard characters of the query language.
func globPattern(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern) + 4)
	for _, r := range pattern {
		switch r {
		case '[', ']', '{', '}', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func prefixScan(ctx context.Context, terms []string, pattern string) ([]string, error) {
	if strings.ContainsRune(pattern, '/') {
		// Terms never contain a separator.
		return nil, nil
	}
	glob := globPattern(pattern)
	if !doublestar.ValidatePattern(glob) {
		return nil, fmt.Errorf("invalid wildcard pattern %q", pattern)
	}
	prefix := wildcardPrefix(pattern)
	start := sort.SearchStrings(terms, prefix)

	var matches []string
	for i := start; i < len(terms); i++ {
		if (i-start)%scanCheckEvery == 0 {
			if err := cancelled(ctx); err != nil {
				return nil, err
			}
		}
		term := terms[i]
		if !strings.HasPrefix(term, prefix) {
			break
		}
		ok, err := doublestar.Match(glob, term)
		if err != nil {
			return nil, fmt.Errorf("match %q: %w", pattern, err)
		}
		if ok {
			matches = append(matches, term)
		}
	}
	return matches, nil
}

func fuzzyScan(ctx context.Context, terms []string, text string, maxEdits int) ([]port.TermMatch, error) {
	if maxEdits < 0 {
		maxEdits = 0
	}
	target := []rune(text)
	var matches []port.TermMatch
	for i, term := range terms {
		if i%scanCheckEvery == 0 {
			if err := cancelled(ctx); err != nil {
				return nil, err
			}
		}
		n := utf8.RuneCountInString(term)
		if n-len(target) > maxEdits || len(target)-n > maxEdits {
			continue
		}
		if d := boundedLevenshtein(target, []rune(term), maxEdits); d <= maxEdits {
			matches = append(matches, port.TermMatch{Term: term, Distance: d})
		}
	}
	return matches, nil
}

// boundedLevenshtein returns the edit distance of a and b, or limit+1 once
// every cell of a row exceeds limit.
func boundedLevenshtein(a, b []rune, limit int) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			rowMin = min(rowMin, curr[j])
		}
		if rowMin > limit {
			return limit + 1
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCancelled, err)
	}
	return nil
}
