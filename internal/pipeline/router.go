package pipeline

// Stage identifies where a pipeline run is in its state machine.
type Stage int

const (
	// StageStart is the initial stage; it always moves to StageTranslating.
	StageStart Stage = iota
	// StageTranslating runs the translator.
	StageTranslating
	// StageExecuting runs the generated query.
	StageExecuting
	// StageComposing turns the result data into prose.
	StageComposing
	// StageFailed is terminal: the retry budget is spent.
	StageFailed
	// StageSucceeded is terminal: a final answer exists.
	StageSucceeded
)

// String returns a human-readable representation of the stage.
func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageTranslating:
		return "translating"
	case StageExecuting:
		return "executing"
	case StageComposing:
		return "composing"
	case StageFailed:
		return "failed"
	case StageSucceeded:
		return "succeeded"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further steps run after this stage.
func (s Stage) IsTerminal() bool {
	return s == StageFailed || s == StageSucceeded
}

// Route decides which stage runs next given the current stage and state.
// It is pure and is consulted after every step.
//
// Rules, in priority order:
//  1. failure with budget left: restart at translation
//  2. failure with budget spent: fail
//  3. result data without an answer: compose
//  4. answer present: succeed
//  5. query present: execute, otherwise translate
func Route(current Stage, s *State, maxRetries int) Stage {
	switch {
	case current.IsTerminal():
		return current
	case current == StageStart:
		return StageTranslating
	}

	switch {
	case s.Failure != nil && s.RetryCount < maxRetries:
		return StageTranslating
	case s.Failure != nil:
		return StageFailed
	case s.ResultData != nil && s.FinalAnswer == "":
		return StageComposing
	case s.FinalAnswer != "":
		return StageSucceeded
	case s.GeneratedQuery != "":
		return StageExecuting
	default:
		return StageTranslating
	}
}
