package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/analyst/internal/tui"
)

var (
	askFile     string
	askParallel int
)

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Answer one or more questions",
	Long: `Answer business questions and print each answer.

Every argument is a separate question. Questions can also be read from a YAML
file holding either a list of strings or a "questions:" list.

Examples:
  analyst ask "What is the total sales revenue in 2025?"
  analyst ask --file questions.yaml --parallel 4
  analyst ask -v "Which product sold the most units?"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		questions := append([]string(nil), args...)
		if askFile != "" {
			fromFile, err := loadQuestions(askFile)
			if err != nil {
				return err
			}
			questions = append(questions, fromFile...)
		}
		if len(questions) == 0 {
			return fmt.Errorf("no questions given (pass them as arguments or with --file)")
		}
		return runAsk(cmd.Context(), cmd.OutOrStdout(), questions, askParallel)
	},
}

func init() {
	askCmd.Flags().StringVarP(&askFile, "file", "f", "", "YAML file of questions")
	askCmd.Flags().IntVarP(&askParallel, "parallel", "p", 1, "Number of questions answered concurrently")
}

// questionFile is the mapping form of a questions file.
type questionFile struct {
	Questions []string `yaml:"questions"`
}

// loadQuestions reads a YAML list of questions, or a mapping with a
// questions key.
func loadQuestions(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}

	var list []string
	if err := yaml.Unmarshal(data, &list); err != nil {
		var doc questionFile
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse questions %s: %w", path, err)
		}
		list = doc.Questions
	}

	questions := make([]string, 0, len(list))
	for _, q := range list {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("no questions in %s", path)
	}
	return questions, nil
}

// runAsk builds the pipeline and answers questions, at most parallel at a
// time. It fails when any question could not be answered.
func runAsk(ctx context.Context, w io.Writer, questions []string, parallel int) error {
	a, err := newApp(ctx, cfg, logger, appOptions{events: verbose})
	if err != nil {
		return err
	}

	var printed sync.WaitGroup
	if a.emitter != nil {
		printed.Add(1)
		go func() {
			defer printed.Done()
			for ev := range a.emitter.Events() {
				fmt.Fprintln(os.Stderr, formatEvent(ev))
			}
		}()
	}

	failed := answerAll(ctx, w, a.ask, questions, parallel)

	closeErr := a.Close()
	printed.Wait()

	if verbose {
		printUsage(w, a.client.Model(), a.client.Tracker())
	}
	if closeErr != nil {
		logger.Warn("failed to release resources", zap.Error(closeErr))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d questions failed", failed, len(questions))
	}
	return nil
}

// answerAll runs every question through ask and prints the outcomes.
// A failed question does not stop the others. It returns the number of
// failed questions.
func answerAll(ctx context.Context, w io.Writer, ask tui.AskFunc, questions []string, parallel int) int {
	if parallel < 1 {
		parallel = 1
	}

	var (
		mu     sync.Mutex
		failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for _, q := range questions {
		g.Go(func() error {
			report, err := ask(gctx, q)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
			}
			printOutcome(w, q, report, err)
			return nil
		})
	}
	_ = g.Wait()

	return failed
}
