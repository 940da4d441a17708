package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ranker/internal/adapter/analyzer"
	"ranker/internal/adapter/fs"
	"ranker/internal/adapter/store"
	"ranker/internal/domain"
)

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}
	return root
}

func buildIndex(t *testing.T, indexDir, sourceDir string, mode domain.BuildMode) *IndexResult {
	t.Helper()
	uc := NewIndexUseCase(indexDir, fs.NewWalker(sourceDir, nil, nil), analyzer.NewTokenizer(),
		IndexOptions{Mode: mode, Workers: 2, Builder: store.BuilderOptions{KeepSnapshots: 2}}, nil)
	result, err := uc.Index(context.Background(), nil)
	require.NoError(t, err)
	return result
}

func TestIndexUseCase_Create(t *testing.T) {
	source := writeCorpus(t, map[string]string{
		"c.txt": "cat",
		"a.txt": "cat dog",
		"b.txt": "dog",
	})
	indexDir := t.TempDir()

	var seen []string
	uc := NewIndexUseCase(indexDir, fs.NewWalker(source, nil, nil), analyzer.NewTokenizer(),
		IndexOptions{Mode: domain.ModeCreate, Workers: 3}, nil)
	result, err := uc.Index(context.Background(), func(processed, total int, file string) {
		assert.Equal(t, 3, total)
		seen = append(seen, filepath.Base(file))
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.FilesIndexed)
	assert.Equal(t, uint32(3), result.Stats.TotalDocuments)
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, seen)

	snap, err := store.OpenSnapshot(indexDir, store.SnapshotOptions{Verify: true})
	require.NoError(t, err)
	defer snap.Close()

	info, err := snap.Document(0)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", info.Name, "ids follow sorted path order")

	list, err := snap.Postings(domain.FieldFirstLine, "dog")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestIndexUseCase_Append(t *testing.T) {
	indexDir := t.TempDir()
	buildIndex(t, indexDir, writeCorpus(t, map[string]string{"a.txt": "cat"}), domain.ModeCreate)
	result := buildIndex(t, indexDir, writeCorpus(t, map[string]string{"b.txt": "cat"}), domain.ModeAppend)

	assert.Equal(t, 1, result.FilesIndexed)
	assert.Equal(t, uint32(2), result.Stats.TotalDocuments)
	assert.Equal(t, uint64(2), result.Stats.Generation)
}

func TestIndexUseCase_MissingSource(t *testing.T) {
	indexDir := t.TempDir()
	uc := NewIndexUseCase(indexDir, fs.NewWalker(filepath.Join(t.TempDir(), "nope"), nil, nil),
		analyzer.NewTokenizer(), IndexOptions{Mode: domain.ModeCreate}, nil)

	_, err := uc.Index(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInput)

	_, err = store.OpenSnapshot(indexDir, store.SnapshotOptions{})
	assert.ErrorIs(t, err, domain.ErrIndexNotFound)
}

type failingSource struct {
	*fs.Walker
	fail string
}

func (s failingSource) Load(path string) (domain.Document, error) {
	if filepath.Base(path) == s.fail {
		return domain.Document{}, &domain.InputError{Path: path, Err: errors.New("unreadable")}
	}
	return s.Walker.Load(path)
}

func TestIndexUseCase_LoadFailureKeepsIndex(t *testing.T) {
	indexDir := t.TempDir()
	buildIndex(t, indexDir, writeCorpus(t, map[string]string{"a.txt": "cat"}), domain.ModeCreate)

	source := writeCorpus(t, map[string]string{"x.txt": "x", "y.txt": "y", "z.txt": "z"})
	uc := NewIndexUseCase(indexDir, failingSource{Walker: fs.NewWalker(source, nil, nil), fail: "y.txt"},
		analyzer.NewTokenizer(), IndexOptions{Mode: domain.ModeCreate, Workers: 2}, nil)
	_, err := uc.Index(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInput)

	snap, err := store.OpenSnapshot(indexDir, store.SnapshotOptions{})
	require.NoError(t, err)
	defer snap.Close()
	assert.Equal(t, uint32(1), snap.TotalDocuments(), "previous snapshot stays current")
}

func TestIndexUseCase_CreateIsIdempotent(t *testing.T) {
	source := writeCorpus(t, map[string]string{"a.txt": "alpha beta", "b.txt": "beta gamma"})

	terms := func(dir string) map[string]domain.PostingsList {
		snap, err := store.OpenSnapshot(dir, store.SnapshotOptions{})
		require.NoError(t, err)
		defer snap.Close()
		out := map[string]domain.PostingsList{}
		require.NoError(t, snap.ForEachTerm(domain.FieldContent, func(e domain.TermEntry) error {
			out[e.Term] = e.Postings
			return nil
		}))
		return out
	}

	first, second := t.TempDir(), t.TempDir()
	buildIndex(t, first, source, domain.ModeCreate)
	buildIndex(t, second, source, domain.ModeCreate)
	buildIndex(t, second, source, domain.ModeCreate)
	assert.Equal(t, terms(first), terms(second))
}
