package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ranker/internal/domain"
	"ranker/internal/port"
)

func TestPrefixScan(t *testing.T) {
	terms := []string{"obadiah", "obama", "obamacare", "obscure", "zebra"}
	ctx := context.Background()

	tests := []struct {
		pattern string
		want    []string
	}{
		{"ob*ma", []string{"obama"}},
		{"ob*", []string{"obadiah", "obama", "obamacare", "obscure"}},
		{"obam?", []string{"obama"}},
		{"*bra", []string{"zebra"}},
		{"ob[a]ma", nil},
		{"a/b*", nil},
		{"nothing*", nil},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := prefixScan(ctx, terms, tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWildcardPrefix(t *testing.T) {
	assert.Equal(t, "ob", wildcardPrefix("ob*ma"))
	assert.Equal(t, "", wildcardPrefix("?x"))
	assert.Equal(t, "plain", wildcardPrefix("plain"))
}

func TestFuzzyScan(t *testing.T) {
	terms := []string{"bama", "obama", "obamma", "osama", "zzzzzzz"}

	got, err := fuzzyScan(context.Background(), terms, "obama", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"bama", "obama", "obamma", "osama"}, matchTerms(got))

	exact, err := fuzzyScan(context.Background(), terms, "obama", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"obama"}, matchTerms(exact))

	negative, err := fuzzyScan(context.Background(), terms, "obama", -3)
	require.NoError(t, err)
	assert.Equal(t, exact, negative)
}

func TestScans_Cancelled(t *testing.T) {
	terms := make([]string, 2000)
	for i := range terms {
		terms[i] = fmt.Sprintf("term%05d", i)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := prefixScan(ctx, terms, "term*")
	assert.ErrorIs(t, err, domain.ErrCancelled)

	_, err = fuzzyScan(ctx, terms, "term00001", 2)
	assert.ErrorIs(t, err, domain.ErrCancelled)
}

func TestBoundedLevenshtein(t *testing.T) {
	tests := []struct {
		a, b  string
		limit int
		want  int
	}{
		{"obama", "obama", 2, 0},
		{"obama", "obamma", 2, 1},
		{"kitten", "sitting", 3, 3},
		{"kitten", "sitting", 1, 2},
		{"", "abc", 5, 3},
		{"straße", "strasse", 2, 2},
	}
	for _, tt := range tests {
		got := boundedLevenshtein([]rune(tt.a), []rune(tt.b), tt.limit)
		assert.Equal(t, tt.want, got, "%s/%s", tt.a, tt.b)
	}
}

func matchTerms(matches []port.TermMatch) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Term
	}
	return out
}
