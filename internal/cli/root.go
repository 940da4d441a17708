package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"ranker/config"
	"ranker/internal/adapter/logger"
	"ranker/internal/adapter/metrics"
	"ranker/internal/domain"
)

// Process exit codes.
const (
	exitFailure = 1
	exitInput   = 2
	exitCorrupt = 3
)

var (
	cfgFile  string
	cfg      *config.Config
	rootDir  string
	logLevel string
	appStats *metrics.Metrics
)

var rootCmd = &cobra.Command{
	Use:   "ranker",
	Short: "Build an inverted index over a document folder and rank queries against it",
	Long: `ranker indexes a folder of text documents into an on-disk inverted index,
parses boolean, phrase, wildcard, fuzzy, field and boost queries, ranks the
matches with TF-IDF and writes runs in the six-column evaluation format.

Example usage:
  ranker build-index --source ./documents        # Build a fresh index
  ranker build-index --mode append --source new  # Add documents
  ranker search topics/air.topics -o out.txt     # Batch run
  ranker query -q 'FIRST_LINE:Obama AND Hillary' # Ad-hoc query`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return &domain.InputError{Path: "config", Err: err}
		}
		cfg.Resolve(rootDir)
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return &domain.InputError{Path: "config", Err: err}
		}

		logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
		appStats = metrics.New()
		return nil
	},
}

// Execute runs the root command and exits with a code derived from the
// error: 2 for bad input, 3 for a corrupt index, 1 otherwise.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	// Failed runs still export their counters.
	if cfg != nil {
		if merr := appStats.WriteTextfile(cfg.Metrics.Textfile); merr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write metrics: %v\n", merr)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrIndexCorrupt):
		return exitCorrupt
	case errors.Is(err, domain.ErrInput), errors.Is(err, domain.ErrParse):
		return exitInput
	default:
		return exitFailure
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ranker.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory for relative config paths (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
