package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"ranker/config"
	"ranker/internal/adapter/analyzer"
	"ranker/internal/adapter/runfile"
	"ranker/internal/adapter/store"
	"ranker/internal/usecase"
)

type sample struct {
	id      string
	elapsed time.Duration
	hits    int
	err     error
}

func main() {
	dir := flag.String("dir", ".", "Directory holding ranker.yaml")
	topicPath := flag.String("topics", "", "Topic file (default from config)")
	rounds := flag.Int("rounds", 3, "Times each topic is evaluated")
	topK := flag.Int("k", 0, "Results per query (default from config)")
	cacheSize := flag.Int("cache", -1, "Postings cache size (default from config, 0 disables)")
	flag.Parse()

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.Resolve(*dir)
	if *topicPath == "" {
		*topicPath = cfg.Topics.Path
	}
	if *cacheSize >= 0 {
		cfg.Search.CacheSize = *cacheSize
	}
	if *topK <= 0 {
		*topK = cfg.Search.TopK
	}

	topics, err := runfile.ReadTopics(*topicPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading topics: %v\n", err)
		os.Exit(2)
	}
	if len(topics.Topics) == 0 {
		fmt.Fprintf(os.Stderr, "No usable topics in %s\n", *topicPath)
		os.Exit(2)
	}

	snap, err := store.OpenSnapshot(cfg.Index.Path, store.SnapshotOptions{CacheSize: cfg.Search.CacheSize})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}
	defer snap.Close()

	searchUC := usecase.NewSearchUseCase(snap, analyzer.NewTokenizer(), usecase.SearchOptions{
		DefaultField: cfg.Search.DefaultField,
		TopK:         *topK,
		QueryTimeout: cfg.Search.QueryTimeout,
	}, nil)

	fmt.Println("QUERY LATENCY BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Snapshot:   %s\n", snap.Path())
	fmt.Printf("Documents:  %d\n", snap.TotalDocuments())
	fmt.Printf("Topics:     %d x %d rounds, top-%d\n", len(topics.Topics), *rounds, *topK)
	fmt.Printf("Cache size: %d\n", cfg.Search.CacheSize)
	fmt.Println()

	ctx := context.Background()
	var samples []sample
	for round := 0; round < *rounds; round++ {
		for _, topic := range topics.Topics {
			start := time.Now()
			results, err := searchUC.Retrieve(ctx, topic.Text, *topK)
			samples = append(samples, sample{id: topic.ID, elapsed: time.Since(start), hits: len(results), err: err})
		}
	}

	fmt.Printf("Last round:\n\n")
	for _, s := range samples[len(samples)-len(topics.Topics):] {
		status := fmt.Sprintf("%d hits", s.hits)
		if s.err != nil {
			status = "ERROR " + s.err.Error()
		}
		fmt.Printf("  %-6s %10s  %s\n", s.id, s.elapsed.Round(time.Microsecond), status)
	}

	latencies := make([]time.Duration, 0, len(samples))
	var total time.Duration
	failed := 0
	for _, s := range samples {
		if s.err != nil {
			failed++
			continue
		}
		latencies = append(latencies, s.elapsed)
		total += s.elapsed
	}
	slices.Sort(latencies)

	hits, misses := snap.CacheStats()

	fmt.Println()
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("LATENCY:\n")
	if len(latencies) > 0 {
		fmt.Printf("  Mean: %s\n", (total / time.Duration(len(latencies))).Round(time.Microsecond))
		fmt.Printf("  p50:  %s\n", percentile(latencies, 0.50).Round(time.Microsecond))
		fmt.Printf("  p95:  %s\n", percentile(latencies, 0.95).Round(time.Microsecond))
		fmt.Printf("  Max:  %s\n", latencies[len(latencies)-1].Round(time.Microsecond))
	}
	fmt.Printf("  Failed queries: %d\n", failed)
	if hits+misses > 0 {
		fmt.Printf("  Postings cache hit rate: %.1f%% (%d/%d)\n", 100*float64(hits)/float64(hits+misses), hits, hits+misses)
	}
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	i := int(p * float64(len(sorted)-1))
	return sorted[i]
}
