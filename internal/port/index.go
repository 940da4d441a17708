package port

import (
	"context"

	"ranker/internal/domain"
)

// TermMatch is a dictionary term found by a fuzzy scan.
type TermMatch struct {
	Term     string
	Distance int
}

// IndexReader is the read side of a committed index snapshot.
type IndexReader interface {
	TotalDocuments() uint32

	// Postings returns an empty list when the term is absent.
	Postings(field, term string) (domain.PostingsList, error)

	DocumentFrequency(field, term string) (int, error)

	// PrefixScan returns the terms matching an anchored wildcard pattern.
	PrefixScan(ctx context.Context, field, pattern string) ([]string, error)

	// FuzzyScan returns the terms within maxEdits of text.
	FuzzyScan(ctx context.Context, field, text string, maxEdits int) ([]TermMatch, error)

	Document(id uint32) (domain.DocumentInfo, error)

	Stats() domain.IndexStats
}

// IndexWriter is a builder session over one index directory.
type IndexWriter interface {
	AddDocument(doc domain.Document) (uint32, error)

	Commit(ctx context.Context) (domain.IndexStats, error)

	Abort() error
}

// DocumentSource owns traversal of the document collection. List returns
// paths in the order documents must be added.
type DocumentSource interface {
	List(ctx context.Context) ([]string, error)

	Load(path string) (domain.Document, error)
}
