package retriever

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ranker/internal/adapter/analyzer"
	"ranker/internal/adapter/query"
	"ranker/internal/adapter/store"
	"ranker/internal/domain"
)

// newScorer indexes contents as documents 0..n-1 and returns a scorer over
// the committed snapshot.
func newScorer(t *testing.T, contents ...string) *Scorer {
	t.Helper()
	dir := t.TempDir()
	tok := analyzer.NewTokenizer()

	b, err := store.OpenBuilder(dir, domain.ModeCreate, tok, store.BuilderOptions{})
	require.NoError(t, err)
	for i, c := range contents {
		path := string(rune('a'+i)) + ".txt"
		_, err := b.AddDocument(domain.Document{
			Path: path,
			Fields: map[string]string{
				domain.FieldPath:      path,
				domain.FieldContent:   c,
				domain.FieldFirstLine: c,
			},
		})
		require.NoError(t, err)
	}
	_, err = b.Commit(context.Background())
	require.NoError(t, err)

	snap, err := store.OpenSnapshot(dir, store.SnapshotOptions{CacheSize: 64})
	require.NoError(t, err)
	t.Cleanup(func() { snap.Close() })
	return NewScorer(snap, domain.FieldContent)
}

func search(t *testing.T, s *Scorer, q string, k int) []domain.ScoredDocument {
	t.Helper()
	n, err := query.NewParser(analyzer.NewTokenizer()).Parse(q)
	require.NoError(t, err, q)
	hits, err := s.Search(context.Background(), n, k)
	require.NoError(t, err, q)
	return hits
}

func ids(hits []domain.ScoredDocument) []uint32 {
	out := make([]uint32, len(hits))
	for i, h := range hits {
		out[i] = h.DocID
	}
	return out
}

func TestScorer_Boolean(t *testing.T) {
	s := newScorer(t, "cat dog", "dog", "cat")

	assert.Equal(t, []uint32{0}, ids(search(t, s, "cat AND dog", 10)))
	assert.ElementsMatch(t, []uint32{0, 1, 2}, ids(search(t, s, "cat OR dog", 10)))
	assert.Equal(t, []uint32{2}, ids(search(t, s, "cat AND NOT dog", 10)))
	assert.Equal(t, []uint32{2}, ids(search(t, s, "NOT dog AND cat", 10)))
	assert.Empty(t, search(t, s, "NOT dog", 10), "pure negation matches nothing")
}

func TestScorer_OrSumsBothSides(t *testing.T) {
	s := newScorer(t, "cat dog", "dog", "cat")

	hits := search(t, s, "cat OR dog", 10)
	require.Len(t, hits, 3)
	assert.Equal(t, uint32(0), hits[0].DocID, "document matching both sides ranks first")
	assert.Greater(t, hits[0].Score, hits[1].Score)
	assert.InDelta(t, hits[1].Score, hits[2].Score, 1e-12)
	assert.Equal(t, uint32(1), hits[1].DocID, "ties break on lower docId")
}

func TestScorer_RoundTrip(t *testing.T) {
	s := newScorer(t, "alpha beta", "beta gamma", "gamma delta")

	hits := search(t, s, "alpha", 5)
	require.Len(t, hits, 1)
	assert.Equal(t, uint32(0), hits[0].DocID)
	assert.Positive(t, hits[0].Score)
}

func TestScorer_TFIDF(t *testing.T) {
	s := newScorer(t, "cat cat cat cat", "cat", "dog")

	hits := search(t, s, "cat", 5)
	require.Len(t, hits, 2)
	// N=3, df=2: idf = 1 + ln(3/3) = 1.
	assert.InDelta(t, 2.0, hits[0].Score, 1e-9)
	assert.InDelta(t, 1.0, hits[1].Score, 1e-9)
}

func TestScorer_BoostInvertsRanking(t *testing.T) {
	s := newScorer(t, "x", "y")

	first := search(t, s, "x^10 OR y^0.1", 5)
	second := search(t, s, "x^0.1 OR y^10", 5)
	require.Len(t, first, 2)
	require.Len(t, second, 2)
	assert.Equal(t, []uint32{0, 1}, ids(first))
	assert.Equal(t, []uint32{1, 0}, ids(second))
}

func TestScorer_PhraseSlop(t *testing.T) {
	s := newScorer(t, "the quick brown fox", "quick dog")

	assert.Equal(t, []uint32{0}, ids(search(t, s, `"quick fox"~2`, 5)))
	assert.Empty(t, search(t, s, `"quick fox"`, 5))
	assert.Equal(t, []uint32{0}, ids(search(t, s, `"quick brown fox"`, 5)))
}

func TestScorer_PhraseScoresOncePerDocument(t *testing.T) {
	s := newScorer(t, "new york new york", "new york", "york")

	hits := search(t, s, `"new york"`, 5)
	require.Len(t, hits, 2)
	assert.InDelta(t, hits[0].Score, hits[1].Score, 1e-12)
	assert.Equal(t, []uint32{0, 1}, ids(hits))
}

func TestScorer_Wildcard(t *testing.T) {
	s := newScorer(t, "Obama spoke", "Obadiah listened")

	assert.Equal(t, []uint32{0}, ids(search(t, s, "Ob*ma", 5)))
	assert.ElementsMatch(t, []uint32{0, 1}, ids(search(t, s, "oba*", 5)))
	assert.Equal(t, []uint32{0}, ids(search(t, s, "obam?", 5)))
}

func TestScorer_Fuzzy(t *testing.T) {
	s := newScorer(t, "Obamma spoke", "Osama", "unrelated")

	hits := search(t, s, "Obama~0.6", 5)
	assert.Contains(t, ids(hits), uint32(0))
	assert.NotContains(t, ids(hits), uint32(2))

	assert.Empty(t, search(t, s, "Obama~0", 5))
}

func TestScorer_FuzzySubWeight(t *testing.T) {
	s := newScorer(t, "obama", "obamma")

	hits := search(t, s, "obama~1", 5)
	require.Len(t, hits, 2)
	assert.Equal(t, uint32(0), hits[0].DocID, "exact match outranks the one-edit match")
	assert.InDelta(t, hits[0].Score*0.8, hits[1].Score, 1e-9)
}

func TestScorer_FuzzyLongerThanTermKeepsOtherSide(t *testing.T) {
	s := newScorer(t, "abcd foo", "foo")

	hits := search(t, s, "foo OR a~3", 5)
	assert.Equal(t, []uint32{0, 1}, ids(hits))
	for _, h := range hits {
		assert.Positive(t, h.Score)
	}
}

func TestScorer_PhraseOnRepetitiveDocument(t *testing.T) {
	doc := strings.Repeat("a ", 300) + strings.Repeat("z ", 200) + "x"
	s := newScorer(t, doc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := query.NewParser(analyzer.NewTokenizer()).Parse(`"a a a a a a x"~40`)
	require.NoError(t, err)
	hits, err := s.Search(ctx, n, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	n, err = query.NewParser(analyzer.NewTokenizer()).Parse(`"a a a a a a z"`)
	require.NoError(t, err)
	hits, err = s.Search(ctx, n, 5)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, ids(hits))
}

func TestScorer_ConcurrentSearches(t *testing.T) {
	docs := []string{
		"obama spoke in chicago",
		"obamma and hillary",
		"the quick brown fox",
		"hillary clinton spoke",
		"brown bears in chicago",
	}
	queries := []string{
		"obama",
		"ob*",
		"obama~1",
		"chi?ago OR fox",
		`"quick brown"~1`,
		"hillary AND NOT clinton",
		"sp*ke^2 OR bears~1",
	}

	want := make(map[string][]domain.ScoredDocument, len(queries))
	serial := newScorer(t, docs...)
	for _, q := range queries {
		want[q] = search(t, serial, q, 5)
	}

	// A fresh snapshot so the lexicons and the postings cache fill up
	// under contention.
	shared := newScorer(t, docs...)
	parser := query.NewParser(analyzer.NewTokenizer())

	const workers = 8
	type result struct {
		query string
		hits  []domain.ScoredDocument
		err   error
	}
	results := make(chan result, workers*len(queries))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for i := range queries {
				q := queries[(i+offset)%len(queries)]
				n, err := parser.Parse(q)
				if err != nil {
					results <- result{query: q, err: err}
					continue
				}
				hits, err := shared.Search(context.Background(), n, 5)
				results <- result{query: q, hits: hits, err: err}
			}
		}(w)
	}
	wg.Wait()
	close(results)

	for r := range results {
		require.NoError(t, r.err, r.query)
		assert.Equal(t, want[r.query], r.hits, r.query)
	}
}

func TestScorer_FieldQualified(t *testing.T) {
	s := newScorer(t, "alpha", "beta")

	assert.Equal(t, []uint32{1}, ids(search(t, s, "PATH:b", 5)))
	assert.Empty(t, search(t, s, "PATH:alpha", 5))
	assert.Equal(t, []uint32{0}, ids(search(t, s, "FIRST_LINE:alpha", 5)))
}

func TestScorer_UnknownTermAndEmptyTerm(t *testing.T) {
	s := newScorer(t, "alpha")

	assert.Empty(t, search(t, s, "missing", 5))
	assert.Equal(t, []uint32{0}, ids(search(t, s, "alpha OR ---", 5)))
}

func TestScorer_TopK(t *testing.T) {
	s := newScorer(t, "w", "w", "w", "w", "w", "w", "w")

	hits := search(t, s, "w", 3)
	assert.Equal(t, []uint32{0, 1, 2}, ids(hits))
}

func TestScorer_Cancelled(t *testing.T) {
	s := newScorer(t, "alpha")
	n, err := query.NewParser(analyzer.NewTokenizer()).Parse("alp*")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Search(ctx, n, 5)
	assert.ErrorIs(t, err, domain.ErrCancelled)
}

func TestAlignPhrase(t *testing.T) {
	tests := []struct {
		name      string
		positions [][]int
		slop      int
		want      bool
	}{
		{"exact", [][]int{{1}, {2}}, 0, true},
		{"gap within slop", [][]int{{1}, {3}}, 1, true},
		{"gap beyond slop", [][]int{{1}, {4}}, 1, false},
		{"reversed needs slop", [][]int{{2}, {1}}, 2, true},
		{"reversed exact", [][]int{{2}, {1}}, 0, false},
		{"later occurrence", [][]int{{0, 5}, {6}}, 0, true},
		{"repeated term needs distinct positions", [][]int{{0}, {0}}, 1, false},
		{"repeated term at distinct positions", [][]int{{0, 1}, {0, 1}}, 0, true},
		{"three terms", [][]int{{0, 7}, {8}, {3, 10}}, 1, true},
		{"middle term breaks chain", [][]int{{0}, {5}, {6}}, 1, false},
		{"no terms", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, alignPhrase(tt.positions, tt.slop))
		})
	}
}
