package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Field names produced by the document source.
const (
	FieldPath      = "PATH"
	FieldContent   = "CONTENT"
	FieldFirstLine = "FIRST_LINE"
)

// BuildMode selects how a builder treats an existing index.
type BuildMode int

const (
	// ModeCreate discards any prior index and builds fresh.
	ModeCreate BuildMode = iota
	// ModeAppend merges new documents into the current index.
	ModeAppend
)

func (m BuildMode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeAppend:
		return "append"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseBuildMode parses "create" or "append".
func ParseBuildMode(s string) (BuildMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "create", "":
		return ModeCreate, nil
	case "append":
		return ModeAppend, nil
	default:
		return 0, fmt.Errorf("%w: unknown build mode %q", ErrInput, s)
	}
}

// Document is one unit of indexing. ID is assigned by the builder.
type Document struct {
	ID     uint32
	Path   string
	Fields map[string]string
}

// Name is the display name written to run files.
func (d Document) Name() string {
	return filepath.Base(d.Path)
}

// DocumentInfo is the stored metadata of an indexed document.
type DocumentInfo struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

type Token struct {
	Term     string
	Position int
}

// Posting records the occurrences of a term in one document.
// Frequency always equals len(Positions).
type Posting struct {
	DocID     uint32
	Frequency int
	Positions []int
}

// PostingsList is ordered by ascending DocID with no duplicates.
type PostingsList []Posting

type TermEntry struct {
	Term              string
	DocumentFrequency int
	Postings          PostingsList
}

type ScoredDocument struct {
	DocID uint32
	Score float64
}

// SearchResult is a scored document joined with its stored metadata.
type SearchResult struct {
	DocID uint32  `json:"doc_id"`
	Path  string  `json:"path"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// IndexStats describes one committed snapshot.
type IndexStats struct {
	TotalDocuments uint32    `json:"total_documents"`
	Fields         []string  `json:"fields"`
	Generation     uint64    `json:"generation"`
	SchemaVersion  int       `json:"schema_version"`
	CreatedAt      time.Time `json:"created_at"`
}
