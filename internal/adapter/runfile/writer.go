package runfile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"ranker/internal/domain"
)

// Writer streams run lines into a staging file next to the destination
// and renames it into place on Commit. Readers of the destination never
// see a partially written run.
type Writer struct {
	path      string
	file      *os.File
	buf       *bufio.Writer
	formatter *Formatter
	lines     int
}

func Create(path string, formatter *Formatter) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path + ".tmp")
	if err != nil {
		return nil, fmt.Errorf("create run file: %w", err)
	}
	return &Writer{path: path, file: f, buf: bufio.NewWriter(f), formatter: formatter}, nil
}

// WriteResults appends one line per result, ranks starting at 0.
func (w *Writer) WriteResults(queryID string, results []domain.SearchResult) error {
	for _, line := range w.formatter.Lines(queryID, results) {
		if _, err := w.buf.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("write run line: %w", err)
		}
		w.lines++
	}
	return nil
}

// Lines returns how many result lines have been written.
func (w *Writer) Lines() int {
	return w.lines
}

func (w *Writer) Path() string {
	return w.path
}

func (w *Writer) Commit() error {
	if err := w.buf.Flush(); err != nil {
		w.Abort()
		return fmt.Errorf("flush run file: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		w.Abort()
		return fmt.Errorf("sync run file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.file.Name())
		return fmt.Errorf("close run file: %w", err)
	}
	if err := os.Rename(w.file.Name(), w.path); err != nil {
		os.Remove(w.file.Name())
		return fmt.Errorf("publish run file: %w", err)
	}
	return nil
}

// Abort discards the staging file and leaves any previous run in place.
func (w *Writer) Abort() error {
	w.file.Close()
	if err := os.Remove(w.file.Name()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
