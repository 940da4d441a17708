package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ranker/internal/domain"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitInput, exitCode(&domain.InputError{Path: "t", Line: 3, Err: errors.New("bad")}))
	assert.Equal(t, exitInput, exitCode(fmt.Errorf("search failed: %w", domain.ErrParse)))
	assert.Equal(t, exitCorrupt, exitCode(domain.Corruptf("df mismatch")))
	assert.Equal(t, exitFailure, exitCode(domain.ErrWriterLocked))
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	cfgFile, rootDir, logLevel = "", "", ""
	buildMode, buildSource, buildQuiet = "create", "", false
	searchOutput, searchTopK, searchRunTag, searchFailFast = "", 0, "", false
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func TestBuildAndSearch(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "documents")
	require.NoError(t, os.MkdirAll(docs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "a.txt"), []byte("Obama met Hillary\ncat dog"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "b.txt"), []byte("dog"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "c.txt"), []byte("cat"), 0o644))

	topics := filepath.Join(dir, "air.topics")
	require.NoError(t, os.WriteFile(topics, []byte("1 cat AND NOT dog\n2 FIRST_LINE:Obama AND Hillary\n"), 0o644))

	require.NoError(t, run(t, "--dir", dir, "--log-level", "error", "build-index", "--quiet"))
	require.NoError(t, run(t, "--dir", dir, "--log-level", "error", "verify"))

	out := filepath.Join(dir, "run.txt")
	require.NoError(t, run(t, "--dir", dir, "--log-level", "error", "search", topics, "-o", out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := string(data)
	assert.Contains(t, lines, "1 Q0 c.txt 0 ")
	assert.Contains(t, lines, "2 Q0 a.txt 0 ")
	assert.NotContains(t, lines, "b.txt")
}

func TestSearchRejectsMalformedTopics(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "documents")
	require.NoError(t, os.MkdirAll(docs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "a.txt"), []byte("cat"), 0o644))
	topics := filepath.Join(dir, "bad.topics")
	require.NoError(t, os.WriteFile(topics, []byte("1 cat\nnot a topic\n"), 0o644))

	require.NoError(t, run(t, "--dir", dir, "--log-level", "error", "build-index", "--quiet"))

	out := filepath.Join(dir, "run.txt")
	err := run(t, "--dir", dir, "--log-level", "error", "search", topics, "-o", out)
	assert.ErrorIs(t, err, domain.ErrInput)
	assert.Equal(t, exitInput, exitCode(err))
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestQueryWithoutIndex(t *testing.T) {
	err := run(t, "--dir", t.TempDir(), "--log-level", "error", "query", "-q", "cat")
	assert.ErrorIs(t, err, domain.ErrIndexNotFound)
}
