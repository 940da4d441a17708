package retriever

import (
	pq "github.com/emirpasic/gods/v2/queues/priorityqueue"
	"ranker/internal/domain"
)

// DefaultTopK is the number of hits kept per query.
const DefaultTopK = 5

// TopK keeps the k best documents seen so far in a bounded min-heap whose
// head is the current worst entry.
type TopK struct {
	k     int
	queue *pq.Queue[domain.ScoredDocument]
}

// worseFirst orders lower scores first; among equal scores the higher
// docId is worse.
func worseFirst(a, b domain.ScoredDocument) int {
	switch {
	case a.Score < b.Score:
		return -1
	case a.Score > b.Score:
		return 1
	case a.DocID > b.DocID:
		return -1
	case a.DocID < b.DocID:
		return 1
	default:
		return 0
	}
}

func NewTopK(k int) *TopK {
	if k <= 0 {
		k = DefaultTopK
	}
	return &TopK{k: k, queue: pq.NewWith[domain.ScoredDocument](worseFirst)}
}

// Offer adds d if it ranks above the current worst entry of a full heap.
func (t *TopK) Offer(d domain.ScoredDocument) bool {
	if t.queue.Size() < t.k {
		t.queue.Enqueue(d)
		return true
	}
	worst, _ := t.queue.Peek()
	if worseFirst(d, worst) <= 0 {
		return false
	}
	t.queue.Dequeue()
	t.queue.Enqueue(d)
	return true
}

func (t *TopK) Len() int {
	return t.queue.Size()
}

// Results drains the heap, best first.
func (t *TopK) Results() []domain.ScoredDocument {
	out := make([]domain.ScoredDocument, t.queue.Size())
	for i := len(out) - 1; i >= 0; i-- {
		out[i], _ = t.queue.Dequeue()
	}
	return out
}
