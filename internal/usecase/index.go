package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"ranker/internal/adapter/logger"
	"ranker/internal/adapter/metrics"
	"ranker/internal/adapter/store"
	"ranker/internal/domain"
	"ranker/internal/port"
)

// loadBatchPerWorker bounds how many loaded documents wait in memory per
// worker before they are handed to the builder.
const loadBatchPerWorker = 16

// ProgressFunc reports build progress after each added document.
type ProgressFunc func(processed, total int, currentFile string)

// IndexOptions configures a build.
type IndexOptions struct {
	Mode    domain.BuildMode
	Workers int
	Builder store.BuilderOptions
}

// IndexUseCase builds or extends the index in one directory from a
// document source.
type IndexUseCase struct {
	dir       string
	source    port.DocumentSource
	tokenizer port.Tokenizer
	opts      IndexOptions
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// NewIndexUseCase creates a new index use case. m may be nil.
func NewIndexUseCase(
	dir string,
	source port.DocumentSource,
	tokenizer port.Tokenizer,
	opts IndexOptions,
	m *metrics.Metrics,
) *IndexUseCase {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	log := logger.WithComponent("index")
	if opts.Builder.Logger == nil {
		opts.Builder.Logger = logger.WithComponent("builder")
	}
	return &IndexUseCase{
		dir:       dir,
		source:    source,
		tokenizer: tokenizer,
		opts:      opts,
		metrics:   m,
		log:       log,
	}
}

// IndexResult contains the results of an indexing operation.
type IndexResult struct {
	Mode         domain.BuildMode
	FilesIndexed int
	Stats        domain.IndexStats
	Duration     time.Duration
}

// Index lists the source, loads documents concurrently and adds them in
// listing order, so ids do not depend on scheduling. Nothing becomes
// visible to readers unless the final commit succeeds.
func (u *IndexUseCase) Index(ctx context.Context, progress ProgressFunc) (result *IndexResult, err error) {
	start := time.Now()
	added := 0
	defer func() {
		u.metrics.ObserveBuild(added, time.Since(start), err)
	}()

	builder, err := store.OpenBuilder(u.dir, u.opts.Mode, u.tokenizer, u.opts.Builder)
	if err != nil {
		return nil, fmt.Errorf("failed to open index for writing: %w", err)
	}
	defer builder.Abort()

	paths, err := u.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	u.log.Info("building index", "mode", u.opts.Mode.String(), "documents", len(paths), "workers", u.opts.Workers)

	batch := u.opts.Workers * loadBatchPerWorker
	for lo := 0; lo < len(paths); lo += batch {
		hi := min(lo+batch, len(paths))
		docs, err := u.load(ctx, paths[lo:hi])
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if _, err := builder.AddDocument(doc); err != nil {
				return nil, fmt.Errorf("failed to add %s: %w", doc.Path, err)
			}
			added++
			if progress != nil {
				progress(added, len(paths), doc.Path)
			}
		}
	}

	stats, err := builder.Commit(ctx)
	if err != nil {
		added = 0
		return nil, fmt.Errorf("commit failed: %w", err)
	}

	return &IndexResult{
		Mode:         u.opts.Mode,
		FilesIndexed: added,
		Stats:        stats,
		Duration:     time.Since(start),
	}, nil
}

// load reads paths with at most Workers files in flight and returns the
// documents in input order. The first failure cancels the rest.
func (u *IndexUseCase) load(ctx context.Context, paths []string) ([]domain.Document, error) {
	docs := make([]domain.Document, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.opts.Workers)

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := u.source.Load(path)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	return docs, nil
}
