package fs

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/microcosm-cc/bluemonday"
	"ranker/internal/domain"
)

// Walker is the document source for a directory tree. Each regular file
// that matches an include glob and no exclude glob becomes one document.
type Walker struct {
	root        string
	includes    []string
	excludes    []string
	stripMarkup bool
	policy      *bluemonday.Policy
}

type Option func(*Walker)

// WithMarkupStripping removes tags from .html, .htm and .xml files before
// they are indexed.
func WithMarkupStripping(enabled bool) Option {
	return func(w *Walker) {
		w.stripMarkup = enabled
	}
}

func NewWalker(root string, includes, excludes []string, opts ...Option) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	w := &Walker{
		root:     root,
		includes: includes,
		excludes: excludes,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.stripMarkup {
		w.policy = bluemonday.StripTagsPolicy()
	}
	return w
}

func (w *Walker) Root() string {
	return w.root
}

// List returns matching file paths in lexical order, so document ids are
// assigned the same way on every build of the same tree.
func (w *Walker) List(ctx context.Context) ([]string, error) {
	info, err := os.Stat(w.root)
	if err != nil {
		return nil, &domain.InputError{Path: w.root, Err: err}
	}
	if !info.IsDir() {
		return nil, &domain.InputError{Path: w.root, Err: errors.New("document source is not a directory")}
	}

	var files []string
	err = filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, err := filepath.Rel(w.root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if relPath != "." && w.shouldExclude(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		if w.shouldInclude(relPath) && !w.shouldExclude(relPath) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &domain.InputError{Path: w.root, Err: err}
	}

	sort.Strings(files)
	return files, nil
}

func (w *Walker) shouldInclude(path string) bool {
	for _, pattern := range w.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Walker) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// Load reads one file into a document with PATH, CONTENT and FIRST_LINE
// fields. The id is assigned later by the builder.
func (w *Walker) Load(path string) (domain.Document, error) {
	content, err := ReadFile(path)
	if err != nil {
		return domain.Document{}, &domain.InputError{Path: path, Err: err}
	}
	if w.policy != nil && isMarkup(path) {
		content = html.UnescapeString(w.policy.Sanitize(content))
	}
	return domain.Document{
		Path: path,
		Fields: map[string]string{
			domain.FieldPath:      path,
			domain.FieldContent:   content,
			domain.FieldFirstLine: FirstLine(content),
		},
	}, nil
}

func isMarkup(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xml":
		return true
	}
	return false
}

// FirstLine returns the first line that is not blank, trimmed.
func FirstLine(content string) string {
	for line := range strings.Lines(content) {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return string(data), nil
}
