package retriever

import (
	"context"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/RoaringBitmap/roaring/v2"
	"ranker/internal/adapter/query"
	"ranker/internal/domain"
	"ranker/internal/port"
)

// Scorer evaluates query ASTs against one index snapshot using TF-IDF:
// tf = sqrt(termFrequency), idf = 1 + ln(N / (df + 1)). It holds no state
// besides the snapshot, so one Scorer may serve concurrent searches.
type Scorer struct {
	index        port.IndexReader
	defaultField string
}

func NewScorer(index port.IndexReader, defaultField string) *Scorer {
	if defaultField == "" {
		defaultField = domain.FieldContent
	}
	return &Scorer{index: index, defaultField: defaultField}
}

// matchSet is the candidate set of a subtree and each candidate's score.
// Candidates excluded only through NOT carry no score entry.
type matchSet struct {
	docs   *roaring.Bitmap
	scores map[uint32]float64
}

func emptyMatch() *matchSet {
	return &matchSet{docs: roaring.New(), scores: map[uint32]float64{}}
}

// Search returns the k best documents in rank order.
func (s *Scorer) Search(ctx context.Context, n query.Node, k int) ([]domain.ScoredDocument, error) {
	scored, err := s.Evaluate(ctx, n)
	if err != nil {
		return nil, err
	}
	top := NewTopK(k)
	for _, d := range scored {
		top.Offer(d)
	}
	return top.Results(), nil
}

// Evaluate returns every matching document with a positive score, in
// docId order. A query made only of negations matches nothing.
func (s *Scorer) Evaluate(ctx context.Context, n query.Node) ([]domain.ScoredDocument, error) {
	all := roaring.New()
	all.AddRange(0, uint64(s.index.TotalDocuments()))

	m, err := s.eval(ctx, n, all)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ScoredDocument, 0, len(m.scores))
	it := m.docs.Iterator()
	for it.HasNext() {
		id := it.Next()
		if score := m.scores[id]; score > 0 {
			out = append(out, domain.ScoredDocument{DocID: id, Score: score})
		}
	}
	return out, nil
}

func (s *Scorer) field(f string) string {
	if f == "" {
		return s.defaultField
	}
	return f
}

func (s *Scorer) eval(ctx context.Context, n query.Node, scope *roaring.Bitmap) (*matchSet, error) {
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	switch q := n.(type) {
	case *query.TermQuery:
		if q.Text == "" {
			return emptyMatch(), nil
		}
		return s.leaf(s.field(q.Field), []weightedTerm{{term: q.Text, weight: 1}}, scope)

	case *query.WildcardQuery:
		terms, err := s.index.PrefixScan(ctx, s.field(q.Field), q.Pattern)
		if err != nil {
			return nil, err
		}
		wt := make([]weightedTerm, len(terms))
		for i, t := range terms {
			wt[i] = weightedTerm{term: t, weight: 1}
		}
		return s.leaf(s.field(q.Field), wt, scope)

	case *query.FuzzyQuery:
		matches, err := s.index.FuzzyScan(ctx, s.field(q.Field), q.Text, q.Edits())
		if err != nil {
			return nil, err
		}
		length := float64(max(utf8.RuneCountInString(q.Text), 1))
		wt := make([]weightedTerm, len(matches))
		for i, m := range matches {
			// Edit counts above the term length would go negative.
			wt[i] = weightedTerm{term: m.Term, weight: max(1-float64(m.Distance)/length, 0)}
		}
		return s.leaf(s.field(q.Field), wt, scope)

	case *query.PhraseQuery:
		return s.phrase(ctx, s.field(q.Field), q.Terms, q.Slop, scope)

	case *query.GroupQuery:
		return s.eval(ctx, q.Query, scope)

	case *query.BoostQuery:
		m, err := s.eval(ctx, q.Query, scope)
		if err != nil {
			return nil, err
		}
		for id, score := range m.scores {
			m.scores[id] = score * q.Boost
		}
		return m, nil

	case *query.AndQuery:
		left, err := s.eval(ctx, q.Left, scope)
		if err != nil {
			return nil, err
		}
		// The right side only needs to look at what the left side kept.
		right, err := s.eval(ctx, q.Right, left.docs)
		if err != nil {
			return nil, err
		}
		out := &matchSet{docs: roaring.And(left.docs, right.docs), scores: map[uint32]float64{}}
		it := out.docs.Iterator()
		for it.HasNext() {
			id := it.Next()
			if score := left.scores[id] + right.scores[id]; score != 0 {
				out.scores[id] = score
			}
		}
		return out, nil

	case *query.OrQuery:
		left, err := s.eval(ctx, q.Left, scope)
		if err != nil {
			return nil, err
		}
		right, err := s.eval(ctx, q.Right, scope)
		if err != nil {
			return nil, err
		}
		left.docs.Or(right.docs)
		for id, score := range right.scores {
			left.scores[id] += score
		}
		return left, nil

	case *query.NotQuery:
		excluded, err := s.eval(ctx, q.Query, scope)
		if err != nil {
			return nil, err
		}
		return &matchSet{docs: roaring.AndNot(scope, excluded.docs), scores: map[uint32]float64{}}, nil

	default:
		return nil, fmt.Errorf("unsupported query node %T", n)
	}
}

func checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCancelled, err)
	}
	return nil
}

type weightedTerm struct {
	term   string
	weight float64
}

func (s *Scorer) idf(df int) float64 {
	return 1 + math.Log(float64(s.index.TotalDocuments())/float64(df+1))
}

// leaf scores a union of terms, each contributing weight * sqrt(tf) * idf.
func (s *Scorer) leaf(field string, terms []weightedTerm, scope *roaring.Bitmap) (*matchSet, error) {
	m := emptyMatch()
	for _, wt := range terms {
		postings, err := s.index.Postings(field, wt.term)
		if err != nil {
			return nil, err
		}
		if len(postings) == 0 {
			continue
		}
		idf := s.idf(len(postings))
		for _, p := range postings {
			if !scope.Contains(p.DocID) {
				continue
			}
			m.docs.Add(p.DocID)
			m.scores[p.DocID] += wt.weight * math.Sqrt(float64(p.Frequency)) * idf
		}
	}
	return m, nil
}
