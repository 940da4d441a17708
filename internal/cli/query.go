package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	queryText    string
	queryTopK    int
	queryJSON    bool
	queryExplain bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run one query against the index",
	Long: `Parse and rank a single query and print the top results.

Query syntax:
  cat AND dog, cat OR dog, cat dog (OR), NOT dog, (a OR b) AND c
  "barack obama"~5   phrase with slop
  ob*ma, obam?       wildcard
  obama~, obama~1, obama~0.6   fuzzy (default 2 edits, edits, or similarity)
  FIRST_LINE:obama   field (PATH, CONTENT, FIRST_LINE)
  x^10               boost

Examples:
  ranker query -q 'FIRST_LINE:Obama AND Hillary'
  ranker query -q '(FIRST_LINE:"Barack Obama")^10 OR Hillary^0.1' --top-k 10 --json
  ranker query -q 'Obama~.4' --explain`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().BoolVar(&queryExplain, "explain", false, "print the parsed query before the results")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	snap, err := openIndex(cfg.Index.VerifyOnOpen)
	if err != nil {
		return err
	}
	defer snap.Close()
	defer recordCache(snap)

	searchUC := newSearchUseCase(snap, queryTopK)

	if queryExplain {
		node, err := searchUC.Parse(queryText)
		if err != nil {
			return err
		}
		fmt.Printf("Parsed query: %s\n", node)
		fmt.Printf("Default field: %s\n\n", cfg.Search.DefaultField)
	}

	results, err := searchUC.Retrieve(cmd.Context(), queryText, queryTopK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		output, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(results), queryText)
	for i, r := range results {
		fmt.Printf("%d. %s  [%.4f]\n", i+1, r.Name, r.Score)
		fmt.Printf("   %s (doc %d)\n", r.Path, r.DocID)
	}
	return nil
}
