package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Translator turns a question into a single executable statement.
type Translator interface {
	Translate(ctx context.Context, question string) (string, error)
}

// Executor runs a statement and returns Rows or a Status acknowledgment.
type Executor interface {
	Execute(ctx context.Context, query string) (Result, error)
}

// Composer summarizes result data as prose free of query text and column names.
type Composer interface {
	Compose(ctx context.Context, question string, data Result) (string, error)
}

// translateStep produces a fresh query. Result data from an earlier attempt
// is dropped so the router cannot compose from stale rows.
func (o *Orchestrator) translateStep(ctx context.Context, s *State) Update {
	query, err := o.translator.Translate(ctx, s.Question)
	if err != nil {
		return Update{Failure: fmt.Errorf("%w: %w", ErrTranslationFailed, err)}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return Update{Failure: fmt.Errorf("%w: empty statement", ErrTranslationFailed)}
	}
	return Update{GeneratedQuery: query, ClearResult: true, ClearFailure: true}
}

// executeStep runs the generated query. It is the only step that charges the
// retry budget unconditionally.
func (o *Orchestrator) executeStep(ctx context.Context, s *State) Update {
	if s.GeneratedQuery == "" {
		return Update{Failure: fmt.Errorf("%w: no query to execute", ErrExecutionFailed), CountRetry: true}
	}
	data, err := o.executor.Execute(ctx, s.GeneratedQuery)
	if err != nil {
		return Update{Failure: fmt.Errorf("%w: %w", ErrExecutionFailed, err), CountRetry: true}
	}
	if data == nil {
		return Update{Failure: fmt.Errorf("%w: executor returned no result", ErrExecutionFailed), CountRetry: true}
	}
	return Update{ResultData: data, ClearFailure: true}
}

// composeStep turns result data into the final answer.
func (o *Orchestrator) composeStep(ctx context.Context, s *State) Update {
	if s.ResultData == nil {
		return Update{Failure: fmt.Errorf("%w: no result data", ErrCompositionFailed)}
	}
	answer, err := o.composer.Compose(ctx, s.Question, s.ResultData)
	if err != nil {
		return Update{Failure: fmt.Errorf("%w: %w", ErrCompositionFailed, err)}
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return Update{Failure: fmt.Errorf("%w: empty answer", ErrCompositionFailed)}
	}
	return Update{FinalAnswer: answer}
}

// runStep invokes the step for the given stage under the per-step timeout.
func (o *Orchestrator) runStep(ctx context.Context, stage Stage, s *State) Update {
	stepCtx, cancel := context.WithTimeout(ctx, o.policy.StepTimeout)
	defer cancel()

	var u Update
	switch stage {
	case StageTranslating:
		u = o.translateStep(stepCtx, s)
	case StageExecuting:
		u = o.executeStep(stepCtx, s)
	case StageComposing:
		u = o.composeStep(stepCtx, s)
	default:
		return Update{Failure: fmt.Errorf("no step for stage %s", stage)}
	}

	// Report an expired step as a timeout even if the collaborator masked it.
	if u.Failure != nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) && !errors.Is(u.Failure, context.DeadlineExceeded) {
		u.Failure = fmt.Errorf("%w (step timed out after %s)", u.Failure, o.policy.StepTimeout)
	}
	return u
}
