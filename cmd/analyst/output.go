package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ShayCichocki/analyst/internal/llm"
	"github.com/ShayCichocki/analyst/internal/pipeline"
)

// printStatus prints a status line with a colored symbol.
func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}

// printOutcome prints the answer or failure for one question.
func printOutcome(w io.Writer, question string, report *pipeline.Report, err error) {
	printStatus(w, "?", color.New(color.Bold).Sprint(question), color.FgCyan)

	if report != nil && report.State.GeneratedQuery != "" {
		fmt.Fprintf(w, "  %s\n", color.HiBlackString("%s", oneLine(report.State.GeneratedQuery)))
	}

	if err != nil {
		var tf *pipeline.TerminalFailure
		if errors.As(err, &tf) {
			printStatus(w, "✗", tf.Message, color.FgRed)
			if tf.Cause != nil {
				fmt.Fprintf(w, "  %s %v\n", color.YellowString("last error:"), tf.Cause)
			}
			details := fmt.Sprintf("retries %d, steps %d", tf.RetryCount, tf.Steps)
			if report != nil {
				details += ", run " + report.ID
			}
			fmt.Fprintf(w, "  %s\n", color.HiBlackString("%s", details))
		} else {
			printStatus(w, "✗", err.Error(), color.FgRed)
		}
		fmt.Fprintln(w)
		return
	}

	printStatus(w, "✓", report.State.FinalAnswer, color.FgGreen)
	if report.State.RetryCount > 0 {
		fmt.Fprintf(w, "  %s\n", color.HiBlackString("answered after %d retries", report.State.RetryCount))
	}
	fmt.Fprintln(w)
}

// formatEvent renders a pipeline event as a single verbose line.
func formatEvent(ev pipeline.Event) string {
	runID := ev.RunID
	if len(runID) > 8 {
		runID = runID[:8]
	}

	switch ev.Type {
	case pipeline.EventStageEntered:
		line := fmt.Sprintf("[%s] → %s", runID, ev.Stage)
		if ev.RetryCount > 0 {
			line += fmt.Sprintf(" (retry %d)", ev.RetryCount)
		}
		return line
	case pipeline.EventStepFailed:
		return fmt.Sprintf("[%s] ! %s failed: %v", runID, ev.Stage, ev.Error)
	case pipeline.EventSucceeded:
		return fmt.Sprintf("[%s] ✓ answered", runID)
	case pipeline.EventFailed:
		return fmt.Sprintf("[%s] ✗ gave up: %v", runID, ev.Error)
	}
	return fmt.Sprintf("[%s] %s", runID, ev.Type)
}

// printUsage prints token usage and estimated cost.
func printUsage(w io.Writer, model string, tracker *llm.TokenTracker) {
	if tracker == nil {
		return
	}
	in, out := tracker.Total()
	fmt.Fprintf(w, "%s %s: %d calls, %d input / %d output tokens (~$%.4f)\n",
		color.HiBlackString("%s", "tokens"), model, tracker.Calls(), in, out, tracker.Cost())
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
