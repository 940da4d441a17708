package retriever

import (
	"context"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"ranker/internal/domain"
)

const phraseCheckEvery = 64

// phrase scores documents containing terms in order. A match counts once
// per document, so every matching document scores idf(phraseDf), where
// phraseDf is the number of matching documents in the whole index.
func (s *Scorer) phrase(ctx context.Context, field string, terms []string, slop int, scope *roaring.Bitmap) (*matchSet, error) {
	m := emptyMatch()
	if len(terms) == 0 {
		return m, nil
	}

	lists := make([]domain.PostingsList, len(terms))
	var candidates *roaring.Bitmap
	for i, term := range terms {
		list, err := s.index.Postings(field, term)
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return m, nil
		}
		lists[i] = list

		docs := roaring.New()
		for _, p := range list {
			docs.Add(p.DocID)
		}
		if candidates == nil {
			candidates = docs
		} else {
			candidates.And(docs)
		}
	}

	positions := make([][]int, len(terms))
	matched := roaring.New()
	it := candidates.Iterator()
	for n := 0; it.HasNext(); n++ {
		if n%phraseCheckEvery == 0 {
			if err := checkCancelled(ctx); err != nil {
				return nil, err
			}
		}
		id := it.Next()
		for i, list := range lists {
			positions[i] = postingFor(list, id).Positions
		}
		if alignPhrase(positions, slop) {
			matched.Add(id)
		}
	}
	if matched.IsEmpty() {
		return m, nil
	}

	idf := s.idf(int(matched.GetCardinality()))
	m.docs = roaring.And(matched, scope)
	mit := m.docs.Iterator()
	for mit.HasNext() {
		m.scores[mit.Next()] = idf
	}
	return m, nil
}

// postingFor finds id in a postings list known to contain it.
func postingFor(list domain.PostingsList, id uint32) domain.Posting {
	i := sort.Search(len(list), func(i int) bool { return list[i].DocID >= id })
	return list[i]
}

// alignPhrase reports whether one position can be picked per term so that
// each lies within slop of the position right after its predecessor and
// differs from it. It tracks the positions each term can end on, so the
// cost is linear in the number of terms.
func alignPhrase(positions [][]int, slop int) bool {
	if len(positions) == 0 {
		return false
	}
	reach := positions[0]
	for _, cands := range positions[1:] {
		next := make([]int, 0, len(cands))
		for _, p := range cands {
			if reachable(reach, p, slop) {
				next = append(next, p)
			}
		}
		if len(next) == 0 {
			return false
		}
		reach = next
	}
	return true
}

// reachable reports whether some q in the sorted slice prev, other than p
// itself, satisfies |p - (q+1)| <= slop.
func reachable(prev []int, p, slop int) bool {
	lo := sort.SearchInts(prev, p-1-slop)
	for j := lo; j < len(prev) && prev[j] <= p-1+slop; j++ {
		if prev[j] != p {
			return true
		}
	}
	return false
}
