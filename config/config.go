package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the ranker tool.
type Config struct {
	Index   IndexConfig   `yaml:"index"`
	Source  SourceConfig  `yaml:"source"`
	Search  SearchConfig  `yaml:"search"`
	Topics  TopicsConfig  `yaml:"topics"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// IndexConfig holds index location and build configuration.
type IndexConfig struct {
	Path          string        `yaml:"path"`
	Workers       int           `yaml:"workers"`
	LockTimeout   time.Duration `yaml:"lock_timeout"`
	KeepSnapshots int           `yaml:"keep_snapshots"`
	VerifyOnOpen  bool          `yaml:"verify_on_open"`
}

// SourceConfig describes the document collection.
type SourceConfig struct {
	Path        string   `yaml:"path"`
	Includes    []string `yaml:"includes"`
	Excludes    []string `yaml:"excludes"`
	StripMarkup bool     `yaml:"strip_markup"` // .html/.htm/.xml only
}

// SearchConfig holds ranking and run formatting configuration.
type SearchConfig struct {
	DefaultField string        `yaml:"default_field"`
	TopK         int           `yaml:"top_k"`
	Precision    int           `yaml:"precision"`
	RunTag       string        `yaml:"run_tag"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	FailFast     bool          `yaml:"fail_fast"`
	CacheSize    int           `yaml:"cache_size"` // decoded postings lists, 0 disables
}

// TopicsConfig holds the batch query input.
type TopicsConfig struct {
	Path          string `yaml:"path"`
	SkipMalformed bool   `yaml:"skip_malformed"`
}

// OutputConfig holds the run file location.
type OutputConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// MetricsConfig holds metrics export configuration.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Path:          "./index",
			Workers:       4,
			LockTimeout:   200 * time.Millisecond,
			KeepSnapshots: 2,
			VerifyOnOpen:  true,
		},
		Source: SourceConfig{
			Path:        "./documents",
			Includes:    []string{"**/*"},
			Excludes:    []string{"**/.git/**", "**/.*"},
			StripMarkup: true,
		},
		Search: SearchConfig{
			DefaultField: "CONTENT",
			TopK:         5,
			Precision:    4,
			RunTag:       "myname",
			QueryTimeout: 30 * time.Second,
			FailFast:     false,
			CacheSize:    4096,
		},
		Topics: TopicsConfig{
			Path: "./topics/air.topics",
		},
		Output: OutputConfig{
			Path: "out.txt",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Index.Path == "" {
		errs = append(errs, errors.New("index.path must be set"))
	}
	if c.Index.Workers < 1 {
		errs = append(errs, fmt.Errorf("index.workers must be at least 1, got %d", c.Index.Workers))
	}
	if c.Index.KeepSnapshots < 1 {
		errs = append(errs, fmt.Errorf("index.keep_snapshots must be at least 1, got %d", c.Index.KeepSnapshots))
	}
	if c.Search.TopK < 1 {
		errs = append(errs, fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK))
	}
	if c.Search.Precision < 0 || c.Search.Precision > 10 {
		errs = append(errs, fmt.Errorf("search.precision must be between 0 and 10, got %d", c.Search.Precision))
	}
	if strings.TrimSpace(c.Search.RunTag) == "" || strings.ContainsAny(c.Search.RunTag, " \t\n") {
		errs = append(errs, fmt.Errorf("search.run_tag must be a single non-empty word, got %q", c.Search.RunTag))
	}
	if c.Search.DefaultField == "" {
		errs = append(errs, errors.New("search.default_field must be set"))
	}
	if c.Search.QueryTimeout < 0 {
		errs = append(errs, errors.New("search.query_timeout must not be negative"))
	}
	if c.Search.CacheSize < 0 {
		errs = append(errs, errors.New("search.cache_size must not be negative"))
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for ranker.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "ranker.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".ranker", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Resolve makes relative paths absolute against dir, the directory the
// configuration was loaded for.
func (c *Config) Resolve(dir string) {
	for _, p := range []*string{&c.Index.Path, &c.Source.Path, &c.Topics.Path, &c.Output.Path, &c.Metrics.Textfile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}
