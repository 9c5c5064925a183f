// Package llm provides the language model clients used to translate questions
// into SQL and to summarize query results.
//
// Two providers are supported: Anthropic (directly or through AWS Bedrock) and
// Google Gemini. Both report token usage to a TokenTracker.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/ShayCichocki/analyst/internal/config"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("model returned no text")

// Request is a single-turn completion request.
type Request struct {
	// System is the system instruction.
	System string
	// Prompt is the user message.
	Prompt string
	// Temperature controls sampling randomness.
	Temperature float64
	// MaxTokens caps the response length. Zero uses the client default.
	MaxTokens int
}

// Completer produces text for a prompt.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Client is a Completer bound to a provider and model.
type Client interface {
	Completer
	// Model returns the model name requests are sent to.
	Model() string
	// Tracker returns the token tracker for this client.
	Tracker() *TokenTracker
}

// New builds the client selected by cfg.LLM.Provider.
func New(ctx context.Context, cfg *config.Config) (Client, error) {
	switch cfg.LLM.Provider {
	case config.ProviderAnthropic, "":
		acfg := AnthropicConfig{
			Model:         cfg.LLM.Model,
			MaxTokens:     cfg.LLM.MaxTokens,
			UseAWSBedrock: cfg.LLM.Bedrock.Enabled,
			AWSRegion:     cfg.LLM.Bedrock.Region,
			AWSProfile:    cfg.LLM.Bedrock.Profile,
		}
		if !acfg.UseAWSBedrock {
			key, err := config.GetAPIKey(cfg)
			if err != nil {
				return nil, err
			}
			acfg.APIKey = key
		}
		return NewAnthropicClient(ctx, acfg)

	case config.ProviderGemini:
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, err
		}
		return NewGeminiClient(ctx, GeminiConfig{
			Model:     cfg.LLM.Model,
			APIKey:    key,
			MaxTokens: cfg.LLM.MaxTokens,
		})

	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLM.Provider)
	}
}
