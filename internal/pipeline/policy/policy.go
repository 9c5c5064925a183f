// Package policy defines the retry and timeout parameters that bound a pipeline run.
package policy

import "time"

const (
	// DefaultMaxRetries is the number of execution failures tolerated before
	// the pipeline gives up.
	DefaultMaxRetries = 3
	// DefaultStepTimeout bounds a single collaborator call.
	DefaultStepTimeout = 60 * time.Second
	// DefaultEventBufferSize is the buffer size of the pipeline event channel.
	DefaultEventBufferSize = 64

	// stepsPerAttempt is the number of steps a full attempt runs
	// (translate, execute, compose).
	stepsPerAttempt = 3
)

// Config contains the configurable policy parameters for a pipeline run.
type Config struct {
	// MaxRetries is the retry budget: once RetryCount reaches this value a
	// failed step ends the run.
	MaxRetries int

	// StepTimeout bounds every collaborator call. Expiry is treated as an
	// ordinary step failure.
	StepTimeout time.Duration

	// CountAllFailures charges translation and composition failures against
	// the retry budget too. When false only execution failures count, and
	// repeated translation failures are bounded by MaxSteps alone.
	CountAllFailures bool

	// EventBufferSize is the buffer size for the event emitter channel.
	EventBufferSize int
}

// Default returns the default policy configuration.
func Default() *Config {
	return &Config{
		MaxRetries:      DefaultMaxRetries,
		StepTimeout:     DefaultStepTimeout,
		EventBufferSize: DefaultEventBufferSize,
	}
}

// MaxSteps returns the hard ceiling on step invocations for one question.
// Every retry re-runs at most all three steps, so the worst case is
// (MaxRetries+1)*3.
func (c *Config) MaxSteps() int {
	return (c.MaxRetries + 1) * stepsPerAttempt
}

// Validate checks that policy values are within acceptable ranges.
// Out-of-range values are reset to their defaults.
func (c *Config) Validate() error {
	if c.MaxRetries < 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = DefaultStepTimeout
	}
	if c.EventBufferSize < 1 {
		c.EventBufferSize = DefaultEventBufferSize
	}
	return nil
}
