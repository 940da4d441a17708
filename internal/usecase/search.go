package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ranker/internal/adapter/logger"
	"ranker/internal/adapter/metrics"
	"ranker/internal/adapter/query"
	"ranker/internal/adapter/retriever"
	"ranker/internal/adapter/runfile"
	"ranker/internal/domain"
	"ranker/internal/port"
)

// SearchOptions configures query evaluation.
type SearchOptions struct {
	DefaultField string
	TopK         int
	// QueryTimeout bounds a single query, 0 means no limit.
	QueryTimeout time.Duration
	// FailFast aborts a batch on the first failing query instead of
	// recording it and moving on.
	FailFast bool
}

// SearchUseCase answers queries against one snapshot. It is safe for
// concurrent use.
type SearchUseCase struct {
	index   port.IndexReader
	parser  *query.Parser
	scorer  *retriever.Scorer
	opts    SearchOptions
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewSearchUseCase creates a new search use case. m may be nil.
func NewSearchUseCase(index port.IndexReader, tokenizer port.Tokenizer, opts SearchOptions, m *metrics.Metrics) *SearchUseCase {
	if opts.DefaultField == "" {
		opts.DefaultField = domain.FieldContent
	}
	if opts.TopK <= 0 {
		opts.TopK = retriever.DefaultTopK
	}
	return &SearchUseCase{
		index:   index,
		parser:  query.NewParser(tokenizer),
		scorer:  retriever.NewScorer(index, opts.DefaultField),
		opts:    opts,
		metrics: m,
		log:     logger.WithComponent("search"),
	}
}

func (u *SearchUseCase) Parse(q string) (query.Node, error) {
	return u.parser.Parse(q)
}

// Retrieve parses q and returns at most k ranked results; k <= 0 uses the
// configured TopK.
func (u *SearchUseCase) Retrieve(ctx context.Context, q string, k int) ([]domain.SearchResult, error) {
	start := time.Now()
	results, err := u.retrieve(ctx, q, k)
	u.metrics.ObserveQuery(queryStatus(results, err), time.Since(start), len(results))
	return results, err
}

func (u *SearchUseCase) retrieve(ctx context.Context, q string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = u.opts.TopK
	}
	node, err := u.parser.Parse(q)
	if err != nil {
		return nil, err
	}

	if u.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.opts.QueryTimeout)
		defer cancel()
	}

	hits, err := u.scorer.Search(ctx, node, k)
	if err != nil {
		return nil, err
	}

	results := make([]domain.SearchResult, len(hits))
	for i, h := range hits {
		info, err := u.index.Document(h.DocID)
		if err != nil {
			return nil, err
		}
		results[i] = domain.SearchResult{DocID: h.DocID, Path: info.Path, Name: info.Name, Score: h.Score}
	}
	return results, nil
}

func queryStatus(results []domain.SearchResult, err error) string {
	switch {
	case err == nil && len(results) == 0:
		return metrics.StatusEmpty
	case err == nil:
		return metrics.StatusOK
	case errors.Is(err, domain.ErrParse):
		return metrics.StatusParse
	case errors.Is(err, domain.ErrCancelled):
		return metrics.StatusCancelled
	default:
		return metrics.StatusError
	}
}

// QueryFailure records a topic whose query could not be answered.
type QueryFailure struct {
	QueryID string
	Line    int
	Err     error
}

// BatchReport summarizes a batch run.
type BatchReport struct {
	Queries   int
	Succeeded int
	Failed    []QueryFailure
	Lines     int
	Output    string
}

// RunBatch answers every topic and writes the run to outputPath. Parse
// errors and timeouts are recorded per topic; any other error, or any
// failure with FailFast set, aborts the run and leaves outputPath as it
// was.
func (u *SearchUseCase) RunBatch(ctx context.Context, topics []runfile.Topic, outputPath string, formatter *runfile.Formatter) (*BatchReport, error) {
	w, err := runfile.Create(outputPath, formatter)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{Queries: len(topics), Output: outputPath}
	for _, topic := range topics {
		qctx := logger.WithQueryID(ctx, topic.ID)
		results, err := u.Retrieve(qctx, topic.Text, u.opts.TopK)
		if err != nil {
			if ctx.Err() != nil || !isQueryScoped(err) || u.opts.FailFast {
				w.Abort()
				return nil, fmt.Errorf("query %s (line %d): %w", topic.ID, topic.Line, err)
			}
			logger.FromContext(qctx).Warn("query failed", "line", topic.Line, "error", err)
			report.Failed = append(report.Failed, QueryFailure{QueryID: topic.ID, Line: topic.Line, Err: err})
			continue
		}

		if err := w.WriteResults(topic.ID, results); err != nil {
			w.Abort()
			return nil, err
		}
		report.Succeeded++
		logger.FromContext(qctx).Debug("query answered", "results", len(results))
	}

	if err := w.Commit(); err != nil {
		return nil, err
	}
	report.Lines = w.Lines()
	u.log.Info("batch complete",
		"queries", report.Queries,
		"failed", len(report.Failed),
		"lines", report.Lines,
		"output", outputPath,
	)
	return report, nil
}

// isQueryScoped reports whether err concerns only the query that raised it.
func isQueryScoped(err error) bool {
	return errors.Is(err, domain.ErrParse) || errors.Is(err, domain.ErrCancelled)
}
