// Package tui provides the interactive terminal interface for analyst.
//
// The App model reads one question at a time from an input box, runs it
// through an AskFunc, and shows the pipeline's progress while the run is in
// flight:
//   - the current stage with a spinner and the retry count
//   - an activity log fed by pipeline events
//   - earlier questions with their statement and answer or failure
//
// Esc cancels the question in flight; Ctrl+C quits.
//
// Usage:
//
//	emitter := pipeline.NewEventEmitter(100, logger)
//	app := tui.NewApp(ctx, ask, emitter.Events())
//	if _, err := tui.NewProgram(app).Run(); err != nil {
//	    return err
//	}
package tui
