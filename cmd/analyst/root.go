package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/analyst/internal/config"
	"github.com/ShayCichocki/analyst/internal/logging"
	"github.com/ShayCichocki/analyst/internal/tui"
)

var (
	verbose    bool
	configPath string

	// Set by PersistentPreRunE for every command except version.
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "analyst",
	Short: "Answer business questions with SQL",
	Long: `Analyst answers business questions asked in plain language.

Each question is translated into a SQL statement by a language model, run
against the configured database, and the result is summarized as a short
answer. Failed statements are rewritten and retried up to pipeline.max_retries
times before the question is given up with "Failed after multiple retries."

With no arguments, launches interactive mode where you can type questions and
watch each one move through translation, execution and composition.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(cmd.Context())
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show pipeline events, token usage and debug logs")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/analyst/config.yaml)")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads configuration and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	logger, err = logging.New(logging.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Verbose: verbose,
	})
	return err
}

// runInteractive starts the TUI. Console logging would draw over the
// screen, so logs only go to log.file when one is configured.
func runInteractive(ctx context.Context) error {
	if cfg.Log.File == "" {
		logger = zap.NewNop()
	}

	a, err := newApp(ctx, cfg, logger, appOptions{events: true, watchSchema: true})
	if err != nil {
		return err
	}
	defer a.Close()

	model := tui.NewApp(ctx, a.ask, a.emitter.Events())
	_, err = tui.NewProgram(model).Run()
	return err
}
