package memstore

import (
	"slices"
	"sync"

	"ranker/internal/domain"
)

// MemoryIndex is the staging dictionary of a builder session. Documents must
// be inserted in ascending docId order; postings lists then stay sorted
// without re-sorting.
type MemoryIndex struct {
	mu     sync.RWMutex
	fields map[string]map[string]domain.PostingsList
	docs   int
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		fields: make(map[string]map[string]domain.PostingsList),
	}
}

// Insert records one occurrence of term at position in docID.
func (m *MemoryIndex) Insert(field, term string, docID uint32, position int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dict, ok := m.fields[field]
	if !ok {
		dict = make(map[string]domain.PostingsList)
		m.fields[field] = dict
	}

	list := dict[term]
	if n := len(list); n > 0 && list[n-1].DocID == docID {
		last := &list[n-1]
		last.Positions = append(last.Positions, position)
		last.Frequency++
		return
	}
	dict[term] = append(list, domain.Posting{
		DocID:     docID,
		Frequency: 1,
		Positions: []int{position},
	})
}

// AddField registers a field even when it produced no tokens.
func (m *MemoryIndex) AddField(field string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.fields[field]; !ok {
		m.fields[field] = make(map[string]domain.PostingsList)
	}
}

// MarkDocument counts a document as staged.
func (m *MemoryIndex) MarkDocument() {
	m.mu.Lock()
	m.docs++
	m.mu.Unlock()
}

func (m *MemoryIndex) DocumentCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docs
}

// Fields returns field names in sorted order.
func (m *MemoryIndex) Fields() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fields := make([]string, 0, len(m.fields))
	for f := range m.fields {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	return fields
}

// Terms returns the terms of field in sorted order.
func (m *MemoryIndex) Terms(field string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dict := m.fields[field]
	terms := make([]string, 0, len(dict))
	for t := range dict {
		terms = append(terms, t)
	}
	slices.Sort(terms)
	return terms
}

// Entry returns the dictionary entry for term, or false when absent.
func (m *MemoryIndex) Entry(field, term string) (domain.TermEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list, ok := m.fields[field][term]
	if !ok {
		return domain.TermEntry{}, false
	}
	return domain.TermEntry{
		Term:              term,
		DocumentFrequency: len(list),
		Postings:          list,
	}, true
}

// Reset drops all staged data.
func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields = make(map[string]map[string]domain.PostingsList)
	m.docs = 0
}
