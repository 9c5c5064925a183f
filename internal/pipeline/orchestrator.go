package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShayCichocki/analyst/internal/pipeline/policy"
)

// Orchestrator drives questions through the translate, execute and compose
// steps. Route alone decides which step runs next.
//
// An Orchestrator keeps no per-question state: every Run owns its State, so a
// single instance may serve concurrent runs.
type Orchestrator struct {
	translator Translator
	executor   Executor
	composer   Composer
	policy     *policy.Config
	logger     *zap.Logger
	emitter    *EventEmitter
}

// Report describes a finished run.
type Report struct {
	// ID uniquely identifies the run.
	ID string
	// State is the final pipeline state.
	State State
	// Trace lists the stages that ran, in order.
	Trace []Stage
	// Steps is the number of step invocations.
	Steps int
	// Outcome is the terminal stage.
	Outcome Stage
	// StartedAt is when the run began.
	StartedAt time.Time
	// Duration is the wall-clock time of the run.
	Duration time.Duration
}

// Succeeded reports whether the run produced an answer.
func (r *Report) Succeeded() bool {
	return r.Outcome == StageSucceeded
}

// New creates an Orchestrator from its collaborators and options.
func New(req RequiredConfig, opts ...Option) (*Orchestrator, error) {
	if req.Translator == nil {
		return nil, errors.New("translator is required")
	}
	if req.Executor == nil {
		return nil, errors.New("executor is required")
	}
	if req.Composer == nil {
		return nil, errors.New("composer is required")
	}

	o := &orchestratorOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.policyConfig == nil {
		o.policyConfig = policy.Default()
	}
	if err := o.policyConfig.Validate(); err != nil {
		return nil, fmt.Errorf("validate policy: %w", err)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	return &Orchestrator{
		translator: req.Translator,
		executor:   req.Executor,
		composer:   req.Composer,
		policy:     o.policyConfig,
		logger:     o.logger,
		emitter:    o.emitter,
	}, nil
}

// Process answers a single question. It returns the final answer, or a
// *TerminalFailure once the retry budget is spent.
func (o *Orchestrator) Process(ctx context.Context, question string) (string, error) {
	report, err := o.Run(ctx, question)
	if err != nil {
		return "", err
	}
	return report.State.FinalAnswer, nil
}

// Run answers a question and returns a Report of the run. The Report is
// non-nil for every non-empty question, including failed runs.
func (o *Orchestrator) Run(ctx context.Context, question string) (*Report, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	report := &Report{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}
	log := o.logger.With(zap.String("run_id", report.ID))
	state := NewState(question)
	maxSteps := o.policy.MaxSteps()

	log.Info("processing question", zap.String("question", question))

	var stopCause error
	stage := Route(StageStart, state, o.policy.MaxRetries)
	for !stage.IsTerminal() {
		if report.Steps >= maxSteps {
			log.Warn("step limit reached", zap.Int("steps", report.Steps), zap.Int("retry_count", state.RetryCount))
			stopCause = ErrStepLimit
			break
		}
		if err := ctx.Err(); err != nil {
			stopCause = err
			break
		}

		log.Debug("entering stage", zap.Stringer("stage", stage), zap.Int("retry_count", state.RetryCount))
		o.emit(report, state, EventStageEntered, stage)

		update := o.runStep(ctx, stage, state)
		report.Steps++
		report.Trace = append(report.Trace, stage)
		o.merge(state, update)

		if state.Failure != nil {
			log.Warn("step failed",
				zap.Stringer("stage", stage),
				zap.Int("retry_count", state.RetryCount),
				zap.Error(state.Failure))
			o.emit(report, state, EventStepFailed, stage)
		}

		stage = Route(stage, state, o.policy.MaxRetries)
	}

	report.Duration = time.Since(report.StartedAt)

	if stage == StageSucceeded {
		report.Outcome = StageSucceeded
		report.State = state.Snapshot()
		log.Info("question answered", zap.Int("steps", report.Steps), zap.Duration("duration", report.Duration))
		o.emit(report, state, EventSucceeded, stage)
		return report, nil
	}

	return report, o.fail(report, state, stopCause, log)
}

// fail builds the terminal failure and leaves it as the state's failure.
func (o *Orchestrator) fail(report *Report, state *State, stopCause error, log *zap.Logger) error {
	cause := state.Failure
	if cause == nil {
		cause = stopCause
	}
	if cause == nil {
		cause = ErrStepLimit
	}

	failure := &TerminalFailure{
		Message:          RetriesExhaustedMessage,
		Cause:            cause,
		RetryCount:       state.RetryCount,
		Steps:            report.Steps,
		StepLimitReached: errors.Is(stopCause, ErrStepLimit),
	}
	state.Failure = cause

	report.Outcome = StageFailed
	report.State = state.Snapshot()

	log.Error("question failed",
		zap.Int("steps", report.Steps),
		zap.Int("retry_count", state.RetryCount),
		zap.Bool("step_limit", failure.StepLimitReached),
		zap.NamedError("last_cause", cause))

	o.emit(report, state, EventFailed, StageFailed)
	return failure
}

// merge applies a step update, charging the retry budget for every failure
// when the policy unifies the counter.
func (o *Orchestrator) merge(s *State, u Update) {
	if u.Failure != nil && o.policy.CountAllFailures {
		u.CountRetry = true
	}
	s.Apply(u)
}

func (o *Orchestrator) emit(report *Report, s *State, typ EventType, stage Stage) {
	if o.emitter == nil {
		return
	}
	ev := Event{
		Type:       typ,
		RunID:      report.ID,
		Question:   s.Question,
		Stage:      stage,
		RetryCount: s.RetryCount,
		Query:      s.GeneratedQuery,
		Error:      s.Failure,
		Timestamp:  time.Now(),
	}
	if typ == EventSucceeded {
		ev.Message = s.FinalAnswer
	}
	o.emitter.Emit(ev)
}
