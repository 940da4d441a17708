package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the indexing and search paths.
var (
	// ErrInput is returned for unreadable or malformed input files.
	ErrInput = errors.New("invalid input")

	// ErrParse is returned when a query string is not valid query syntax.
	ErrParse = errors.New("query parse error")

	// ErrIndexCorrupt is returned when a snapshot violates an index invariant.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrCancelled is returned when a search is cancelled or times out.
	ErrCancelled = errors.New("search cancelled")

	// ErrWriterLocked is returned when another builder holds the index.
	ErrWriterLocked = errors.New("index is locked by another writer")

	// ErrIndexNotFound is returned when no committed snapshot exists.
	ErrIndexNotFound = errors.New("index not found")
)

// InputError locates a problem in an input file. Line is 1-based, 0 when
// the whole file is affected.
type InputError struct {
	Path string
	Line int
	Err  error
}

func (e *InputError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *InputError) Unwrap() []error {
	return []error{ErrInput, e.Err}
}

// Corruptf builds an ErrIndexCorrupt with detail.
func Corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIndexCorrupt, fmt.Sprintf(format, args...))
}
