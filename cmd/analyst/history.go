package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/analyst/internal/config"
	"github.com/ShayCichocki/analyst/internal/history"
)

var (
	historyLimit     int
	historyFailed    bool
	historyOlderThan time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent questions",
	Long: `List recently answered questions, newest first.

Failed questions keep the last underlying error, so the cause behind
"Failed after multiple retries." can be looked up here.

Examples:
  analyst history --failed
  analyst history show <run-id>
  analyst history purge --older-than 720h`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.Recent(historyLimit, historyFailed)
		if err != nil {
			return err
		}
		printRuns(cmd.OutOrStdout(), runs)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Long:  "Show one recorded run. The id may be shortened to any unique prefix.",
	Short: "Show one recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := db.Find(args[0])
		if errors.Is(err, history.ErrNotFound) {
			return fmt.Errorf("no run with id %s", args[0])
		}
		if errors.Is(err, history.ErrAmbiguousID) {
			return fmt.Errorf("%q matches several runs, use more of the id", args[0])
		}
		if err != nil {
			return err
		}
		printRun(cmd.OutOrStdout(), run)
		return nil
	},
}

var historyPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete old runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.Purge(historyOlderThan)
		if err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), "✓", fmt.Sprintf("Deleted %d runs older than %s", n, historyOlderThan), color.FgGreen)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list")
	historyCmd.Flags().BoolVar(&historyFailed, "failed", false, "Only list failed runs")
	historyPurgeCmd.Flags().DurationVar(&historyOlderThan, "older-than", 30*24*time.Hour, "Delete runs older than this")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPurgeCmd)
}

func openHistory() (*history.DB, error) {
	path := cfg.History.Path
	if path == "" {
		path = config.DefaultHistoryPath()
	}
	return history.Open(path)
}

func printRuns(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, r := range runs {
		symbol, attr := "✓", color.FgGreen
		if !r.Succeeded() {
			symbol, attr = "✗", color.FgRed
		}
		line := fmt.Sprintf("%s  %s  %s", r.StartedAt.Local().Format("2006-01-02 15:04"), shortID(r.ID), r.Question)
		printStatus(w, symbol, line, attr)
		if !r.Succeeded() && r.Failure != "" {
			fmt.Fprintf(w, "    %s %s\n", color.YellowString("last error:"), r.Failure)
		}
	}
}

func printRun(w io.Writer, r *history.Run) {
	fmt.Fprintf(w, "Run:        %s\n", r.ID)
	fmt.Fprintf(w, "Question:   %s\n", r.Question)
	fmt.Fprintf(w, "Outcome:    %s\n", r.Outcome)
	fmt.Fprintf(w, "Started:    %s\n", r.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "Duration:   %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Retries:    %d\n", r.RetryCount)
	fmt.Fprintf(w, "Steps:      %d\n", r.Steps)
	if r.StepLimit {
		fmt.Fprintln(w, "Step limit: reached")
	}
	fmt.Fprintf(w, "Trace:      %s\n", strings.Join(r.Trace, " → "))
	if r.Query != "" {
		fmt.Fprintf(w, "Query:\n  %s\n", strings.ReplaceAll(r.Query, "\n", "\n  "))
	}
	if r.Answer != "" {
		fmt.Fprintf(w, "Answer:\n  %s\n", r.Answer)
	}
	if r.Failure != "" {
		fmt.Fprintf(w, "Failure:\n  %s\n", r.Failure)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
