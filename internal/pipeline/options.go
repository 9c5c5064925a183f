package pipeline

import (
	"go.uber.org/zap"

	"github.com/ShayCichocki/analyst/internal/pipeline/policy"
)

// RequiredConfig contains the collaborators an Orchestrator cannot run without.
// All fields are required and have no defaults.
type RequiredConfig struct {
	// Translator turns questions into statements.
	Translator Translator
	// Executor runs statements against the database.
	Executor Executor
	// Composer turns result data into prose.
	Composer Composer
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

type orchestratorOptions struct {
	policyConfig *policy.Config
	logger       *zap.Logger
	emitter      *EventEmitter
}

// WithPolicy sets the retry and timeout policy.
func WithPolicy(p *policy.Config) Option {
	return func(o *orchestratorOptions) { o.policyConfig = p }
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithEventEmitter sets the emitter that receives run progress events.
func WithEventEmitter(e *EventEmitter) Option {
	return func(o *orchestratorOptions) { o.emitter = e }
}
