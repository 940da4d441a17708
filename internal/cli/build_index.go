package cli

import (
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"ranker/internal/adapter/analyzer"
	"ranker/internal/adapter/fs"
	"ranker/internal/adapter/logger"
	"ranker/internal/adapter/store"
	"ranker/internal/domain"
	"ranker/internal/usecase"
)

var (
	buildMode   string
	buildSource string
	buildQuiet  bool
)

var buildIndexCmd = &cobra.Command{
	Use:   "build-index",
	Short: "Build or extend the index from a document folder",
	Long: `Index every file of the document folder as one document with PATH,
CONTENT and FIRST_LINE fields.

CREATE discards the previous index. APPEND keeps it and adds the new
documents after the existing ones. Either way the new snapshot becomes
visible only when the build completes.

Examples:
  ranker build-index                          # CREATE from source.path
  ranker build-index --source ./corpus        # CREATE from another folder
  ranker build-index --mode append -s ./more  # APPEND`,
	Args: cobra.NoArgs,
	RunE: runBuildIndex,
}

func init() {
	rootCmd.AddCommand(buildIndexCmd)
	buildIndexCmd.Flags().StringVarP(&buildMode, "mode", "m", "create", "build mode: create or append")
	buildIndexCmd.Flags().StringVarP(&buildSource, "source", "s", "", "document folder (default from config)")
	buildIndexCmd.Flags().BoolVar(&buildQuiet, "quiet", false, "disable the progress bar")
}

func runBuildIndex(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	mode, err := domain.ParseBuildMode(buildMode)
	if err != nil {
		return err
	}
	source := cfg.Source.Path
	if buildSource != "" {
		source = buildSource
	}

	walker := fs.NewWalker(source, cfg.Source.Includes, cfg.Source.Excludes,
		fs.WithMarkupStripping(cfg.Source.StripMarkup))

	indexUC := usecase.NewIndexUseCase(cfg.Index.Path, walker, analyzer.NewTokenizer(), usecase.IndexOptions{
		Mode:    mode,
		Workers: cfg.Index.Workers,
		Builder: store.BuilderOptions{
			LockTimeout:   cfg.Index.LockTimeout,
			KeepSnapshots: cfg.Index.KeepSnapshots,
			Logger:        logger.WithComponent("builder"),
		},
	}, appStats)

	fmt.Printf("Indexing %s (%s)...\n", source, mode)

	var progress usecase.ProgressFunc
	if !buildQuiet {
		progress = newProgress()
	}

	result, err := indexUC.Index(cmd.Context(), progress)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Mode:             %s\n", result.Mode)
	fmt.Printf("  Files indexed:    %d\n", result.FilesIndexed)
	fmt.Printf("  Total documents:  %d\n", result.Stats.TotalDocuments)
	fmt.Printf("  Generation:       %d\n", result.Stats.Generation)
	fmt.Printf("  Duration:         %s\n", formatDuration(result.Duration))
	fmt.Printf("\nIndex stored at: %s\n", cfg.Index.Path)
	return nil
}

// newProgress returns a callback that lazily creates a progress bar once
// the total is known and shows an ETA.
func newProgress() usecase.ProgressFunc {
	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var startTime time.Time

	return func(processed, total int, currentFile string) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		bar.Set(processed)

		if processed > 0 {
			elapsed := time.Since(startTime)
			rate := float64(processed) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-processed) / rate * float64(time.Second))
				bar.Describe(fmt.Sprintf("[cyan]Indexing[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
