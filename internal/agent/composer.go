package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/ShayCichocki/analyst/internal/llm"
	"github.com/ShayCichocki/analyst/internal/pipeline"
)

// DefaultMaxRows bounds how many rows are shown to the model.
const DefaultMaxRows = 200

// ComposerConfig configures a Composer.
type ComposerConfig struct {
	Temperature float64
	MaxTokens   int
	// MaxRows bounds the rows rendered into the prompt.
	MaxRows int
	Logger  *zap.Logger
}

// Composer writes a prose answer from query results with a language model.
type Composer struct {
	llm         llm.Completer
	temperature float64
	maxTokens   int
	maxRows     int
	logger      *zap.Logger
}

// NewComposer creates a Composer backed by the given completer.
func NewComposer(c llm.Completer, cfg ComposerConfig) *Composer {
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = DefaultMaxRows
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Composer{
		llm:         c,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		maxRows:     cfg.MaxRows,
		logger:      cfg.Logger,
	}
}

// Compose summarizes data as an answer to question.
func (c *Composer) Compose(ctx context.Context, question string, data pipeline.Result) (string, error) {
	rendered, err := RenderResult(data, c.maxRows)
	if err != nil {
		return "", err
	}

	prompt, err := BuildComposePrompt(question, rendered)
	if err != nil {
		return "", err
	}

	answer, err := c.llm.Complete(ctx, llm.Request{
		System:      ComposeSystemPrompt,
		Prompt:      prompt,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("compose answer: %w", err)
	}
	c.logger.Debug("composed answer", zap.Int("data_bytes", len(rendered)))
	return answer, nil
}

// RenderResult renders result data as JSON for the answer prompt. Row sets
// longer than maxRows are cut and annotated with the full count.
func RenderResult(data pipeline.Result, maxRows int) (string, error) {
	var v any
	note := ""

	switch d := data.(type) {
	case pipeline.Rows:
		rows := d
		if rows == nil {
			rows = pipeline.Rows{}
		}
		if maxRows > 0 && len(rows) > maxRows {
			note = fmt.Sprintf(" (first %d of %d rows)", maxRows, len(rows))
			rows = rows[:maxRows]
		}
		v = rows
	case pipeline.Status:
		v = d
	default:
		return "", fmt.Errorf("unsupported result type %T", data)
	}

	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("render result: %w", err)
	}
	return string(out) + note, nil
}
