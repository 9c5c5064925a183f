// Package config provides API key management utilities.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured for the provider.
var ErrNoAPIKey = errors.New("no LLM API key configured")

// envKeys lists the environment variables checked for each provider, in order.
var envKeys = map[string][]string{
	ProviderAnthropic: {"ANTHROPIC_API_KEY"},
	ProviderGemini:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// EnvKeysFor returns the environment variables consulted for a provider.
func EnvKeysFor(provider string) []string {
	return envKeys[provider]
}

// GetAPIKey returns the API key for the configured provider.
// It checks in order: provider environment variables, config file.
func GetAPIKey(cfg *Config) (string, error) {
	provider := ProviderAnthropic
	if cfg != nil && cfg.LLM.Provider != "" {
		provider = cfg.LLM.Provider
	}

	for _, name := range envKeys[provider] {
		if key := os.Getenv(name); key != "" {
			return key, nil
		}
	}

	if cfg != nil && cfg.LLM.APIKey != "" {
		key := os.ExpandEnv(cfg.LLM.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, nil
		}
	}

	return "", fmt.Errorf("%w for %s (set %s or llm.api_key)", ErrNoAPIKey, provider, strings.Join(envKeys[provider], " or "))
}

// ValidateAPIKey performs basic validation on an API key.
// It checks format but does not verify the key with the provider.
func ValidateAPIKey(provider, key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	switch provider {
	case ProviderAnthropic:
		if !strings.HasPrefix(key, "sk-ant-") {
			return errors.New("invalid API key format: expected 'sk-ant-' prefix")
		}
	case ProviderGemini:
		if strings.ContainsAny(key, " \t\n") {
			return errors.New("invalid API key format: contains whitespace")
		}
	}

	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}

	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// MaskURL hides the password of a database URL for display.
func MaskURL(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return raw
	}
	user, _, hasPassword := strings.Cut(creds, ":")
	if !hasPassword {
		return raw
	}
	return scheme + "://" + user + ":***@" + host
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the API key was sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	provider := ProviderAnthropic
	if cfg != nil && cfg.LLM.Provider != "" {
		provider = cfg.LLM.Provider
	}

	for _, name := range envKeys[provider] {
		if os.Getenv(name) != "" {
			return KeySourceEnv
		}
	}

	if cfg != nil && cfg.LLM.APIKey != "" {
		key := os.ExpandEnv(cfg.LLM.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return KeySourceConfig
		}
	}

	return KeySourceNone
}
