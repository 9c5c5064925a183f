package main

import (
	"github.com/spf13/cobra"
)

// demoQuestions run against the sample ecommerce database.
var demoQuestions = []string{
	"What is the total sales revenue in 2025?",
	"Which product sold the most units?",
	"Summarize sales trends for March 2025.",
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Answer the sample questions",
	Long: `Answer three sample questions against the configured database.

The questions expect the sample schema with products and sales tables.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd.Context(), cmd.OutOrStdout(), demoQuestions, 1)
	},
}
