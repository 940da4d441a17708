package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, 4, cfg.Search.Precision)
	assert.Equal(t, "myname", cfg.Search.RunTag)
	assert.Equal(t, "CONTENT", cfg.Search.DefaultField)
	assert.Equal(t, 200*time.Millisecond, cfg.Index.LockTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_ValidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "ranker.yaml")
	content := `
index:
  path: /var/lib/ranker
  lock_timeout: 2s
search:
  top_k: 10
  query_timeout: 1m30s
  run_tag: baseline
topics:
  skip_malformed: true
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/ranker", cfg.Index.Path)
	assert.Equal(t, 2*time.Second, cfg.Index.LockTimeout)
	assert.Equal(t, 10, cfg.Search.TopK)
	assert.Equal(t, 90*time.Second, cfg.Search.QueryTimeout)
	assert.Equal(t, "baseline", cfg.Search.RunTag)
	assert.True(t, cfg.Topics.SkipMalformed)
	assert.Equal(t, 4, cfg.Search.Precision, "unset keys keep defaults")
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "ranker.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("search: [unclosed"), 0644))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, ".ranker"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".ranker", "config.yaml"), []byte("output:\n  path: run.txt\n"), 0644))

	cfg, err := LoadFromDir(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "run.txt", cfg.Output.Path)

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "ranker.yaml"), []byte("output:\n  path: top.txt\n"), 0644))
	cfg, err = LoadFromDir(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "top.txt", cfg.Output.Path, "ranker.yaml takes precedence")

	cfg, err = LoadFromDir(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranker.yaml")
	cfg := DefaultConfig()
	cfg.Search.QueryTimeout = 5 * time.Second
	cfg.Metrics.Textfile = "/tmp/ranker.prom"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero top_k", func(c *Config) { c.Search.TopK = 0 }},
		{"precision too large", func(c *Config) { c.Search.Precision = 11 }},
		{"empty run tag", func(c *Config) { c.Search.RunTag = "" }},
		{"run tag with space", func(c *Config) { c.Search.RunTag = "my run" }},
		{"no workers", func(c *Config) { c.Index.Workers = 0 }},
		{"keep no snapshots", func(c *Config) { c.Index.KeepSnapshots = 0 }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"negative cache", func(c *Config) { c.Search.CacheSize = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestResolve(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Path = "/abs/out.txt"
	cfg.Resolve("/work")

	assert.Equal(t, filepath.Join("/work", "index"), cfg.Index.Path)
	assert.Equal(t, filepath.Join("/work", "topics", "air.topics"), cfg.Topics.Path)
	assert.Equal(t, "/abs/out.txt", cfg.Output.Path)
	assert.Equal(t, "", cfg.Metrics.Textfile)
}
