package cli

import (
	"errors"
	"fmt"

	"ranker/internal/adapter/analyzer"
	"ranker/internal/adapter/store"
	"ranker/internal/domain"
	"ranker/internal/usecase"
)

// openIndex opens the current snapshot named by the configured index
// directory.
func openIndex(verify bool) (*store.Snapshot, error) {
	cfg := GetConfig()
	snap, err := store.OpenSnapshot(cfg.Index.Path, store.SnapshotOptions{
		CacheSize: cfg.Search.CacheSize,
		Verify:    verify,
	})
	if errors.Is(err, domain.ErrIndexNotFound) {
		return nil, fmt.Errorf("no index found at %s, run 'ranker build-index' first: %w", cfg.Index.Path, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	return snap, nil
}

func newSearchUseCase(snap *store.Snapshot, topK int) *usecase.SearchUseCase {
	cfg := GetConfig()
	if topK <= 0 {
		topK = cfg.Search.TopK
	}
	return usecase.NewSearchUseCase(snap, analyzer.NewTokenizer(), usecase.SearchOptions{
		DefaultField: cfg.Search.DefaultField,
		TopK:         topK,
		QueryTimeout: cfg.Search.QueryTimeout,
		FailFast:     cfg.Search.FailFast,
	}, appStats)
}

// recordCache copies the snapshot's postings cache counters into metrics.
func recordCache(snap *store.Snapshot) {
	hits, misses := snap.CacheStats()
	appStats.ObserveCache(hits, misses)
}
