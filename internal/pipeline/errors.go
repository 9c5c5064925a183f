package pipeline

import "errors"

// Sentinel errors for pipeline failures. Step failures wrap one of the first
// three together with the collaborator's error.
var (
	ErrTranslationFailed = errors.New("query translation failed")
	ErrExecutionFailed   = errors.New("query execution failed")
	ErrCompositionFailed = errors.New("answer composition failed")
	ErrRetriesExhausted  = errors.New("retries exhausted")

	// ErrStepLimit is the cause recorded when the step ceiling ends a run
	// that carries no step failure.
	ErrStepLimit = errors.New("step limit reached")
	// ErrEmptyQuestion is returned when Run is called without a question.
	ErrEmptyQuestion = errors.New("question is empty")
)

// RetriesExhaustedMessage is the fixed, user-facing message of a terminal failure.
const RetriesExhaustedMessage = "Failed after multiple retries."

// TerminalFailure is returned when a run ends without an answer.
// Error() yields the fixed user-facing message; the underlying cause stays
// reachable through errors.Is / errors.As.
type TerminalFailure struct {
	// Message is the human-readable failure message.
	Message string
	// Cause is the last step failure (or context error) seen by the run.
	Cause error
	// RetryCount is the retry counter at termination.
	RetryCount int
	// Steps is the number of step invocations made.
	Steps int
	// StepLimitReached is set when the step ceiling, not the router, ended the run.
	StepLimitReached bool
}

// Error implements error.
func (f *TerminalFailure) Error() string {
	return f.Message
}

// Unwrap exposes ErrRetriesExhausted and the last cause.
func (f *TerminalFailure) Unwrap() []error {
	if f.Cause == nil {
		return []error{ErrRetriesExhausted}
	}
	return []error{ErrRetriesExhausted, f.Cause}
}
