package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"ranker/internal/adapter/logger"
	"ranker/internal/adapter/runfile"
)

var (
	searchOutput   string
	searchTopK     int
	searchRunTag   string
	searchFailFast bool
)

var searchCmd = &cobra.Command{
	Use:   "search [topic-file]",
	Short: "Run every topic of a topic file and write a ranked run",
	Long: `Read "<id> <query>" lines from the topic file, rank the index for each
query and write "<id> Q0 <name> <rank> <score> <tag>" lines to the output
file. The output only replaces the previous file once every topic ran.

A malformed topic line aborts the run before anything is written unless
topics.skip_malformed is set. A query that fails to parse or times out is
reported and skipped unless --fail-fast is given.

Examples:
  ranker search                                # topics.path -> output.path
  ranker search topics/air.topics -o run.txt
  ranker search topics/air.topics -k 100 --run-tag bm`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchOutput, "output", "o", "", "run file (default from config)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "results per query (default from config)")
	searchCmd.Flags().StringVar(&searchRunTag, "run-tag", "", "run tag written on every line (default from config)")
	searchCmd.Flags().BoolVar(&searchFailFast, "fail-fast", false, "abort on the first query that fails")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	log := logger.WithComponent("cli")

	topicPath := cfg.Topics.Path
	if len(args) > 0 {
		topicPath = args[0]
	}
	output := cfg.Output.Path
	if searchOutput != "" {
		output = searchOutput
	}
	runTag := cfg.Search.RunTag
	if searchRunTag != "" {
		runTag = searchRunTag
	}
	if searchFailFast {
		cfg.Search.FailFast = true
	}

	topics, err := runfile.ReadTopics(topicPath)
	if err != nil {
		return err
	}
	if len(topics.Malformed) > 0 {
		if !cfg.Topics.SkipMalformed {
			return topics.Err()
		}
		for _, e := range topics.Malformed {
			log.Warn("skipping malformed topic line", "error", e)
		}
	}

	snap, err := openIndex(cfg.Index.VerifyOnOpen)
	if err != nil {
		return err
	}
	defer snap.Close()
	defer recordCache(snap)

	searchUC := newSearchUseCase(snap, searchTopK)
	formatter := runfile.NewFormatter(cfg.Search.Precision, runTag)

	report, err := searchUC.RunBatch(cmd.Context(), topics.Topics, output, formatter)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fmt.Printf("Search complete:\n")
	fmt.Printf("  Topics:      %d\n", report.Queries)
	fmt.Printf("  Answered:    %d\n", report.Succeeded)
	fmt.Printf("  Failed:      %d\n", len(report.Failed))
	fmt.Printf("  Skipped:     %d (malformed lines)\n", len(topics.Malformed))
	fmt.Printf("  Run lines:   %d\n", report.Lines)

	if len(report.Failed) > 0 {
		fmt.Printf("\nFailed queries:\n")
		for _, f := range report.Failed {
			fmt.Printf("  - %s (line %d): %v\n", f.QueryID, f.Line, f.Err)
		}
	}

	fmt.Printf("\nRun written to: %s\n", report.Output)
	return nil
}
