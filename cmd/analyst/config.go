package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/analyst/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify analyst configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/analyst/config.yaml
Project-specific overrides can be placed in .analyst.yaml`,
	Args: cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		switch len(args) {
		case 0:
			displayAllConfig(cmd.OutOrStdout(), cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// configKeys lists every key in display order.
var configKeys = []string{
	"llm.provider",
	"llm.model",
	"llm.api_key",
	"llm.max_tokens",
	"llm.translate_temperature",
	"llm.compose_temperature",
	"llm.bedrock.enabled",
	"llm.bedrock.region",
	"llm.bedrock.profile",
	"database.driver",
	"database.url",
	"database.dialect",
	"database.ping_timeout",
	"database.max_open_conns",
	"database.max_idle_conns",
	"database.conn_max_lifetime",
	"database.conn_max_idle_time",
	"pipeline.max_retries",
	"pipeline.step_timeout",
	"pipeline.count_all_failures",
	"schema.path",
	"history.enabled",
	"history.path",
	"log.level",
	"log.file",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(w io.Writer, cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Fprintf(w, "%s: %s\n", key, value)
	}
	fmt.Fprintf(w, "# api key source: %s\n", config.GetAPIKeySource(cfg))
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	display, _ := getConfigValue(cfg, key)
	fmt.Printf("Set %s = %s\n", key, display)
}

// getConfigValue retrieves a configuration value by dot-notation key.
// Secrets are masked.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "llm.provider":
		return cfg.LLM.Provider, nil
	case "llm.model":
		return orUnset(cfg.LLM.Model), nil
	case "llm.api_key":
		if cfg.LLM.APIKey == "" {
			return "(not set)", nil
		}
		return config.MaskAPIKey(cfg.LLM.APIKey), nil
	case "llm.max_tokens":
		return strconv.Itoa(cfg.LLM.MaxTokens), nil
	case "llm.translate_temperature":
		return strconv.FormatFloat(cfg.LLM.TranslateTemperature, 'g', -1, 64), nil
	case "llm.compose_temperature":
		return strconv.FormatFloat(cfg.LLM.ComposeTemperature, 'g', -1, 64), nil
	case "llm.bedrock.enabled":
		return strconv.FormatBool(cfg.LLM.Bedrock.Enabled), nil
	case "llm.bedrock.region":
		return orUnset(cfg.LLM.Bedrock.Region), nil
	case "llm.bedrock.profile":
		return orUnset(cfg.LLM.Bedrock.Profile), nil
	case "database.driver":
		return cfg.Database.Driver, nil
	case "database.url":
		return config.MaskURL(cfg.Database.URL), nil
	case "database.dialect":
		return cfg.Database.Dialect, nil
	case "database.ping_timeout":
		return cfg.Database.PingTimeout.String(), nil
	case "database.max_open_conns":
		return strconv.Itoa(cfg.Database.MaxOpenConns), nil
	case "database.max_idle_conns":
		return strconv.Itoa(cfg.Database.MaxIdleConns), nil
	case "database.conn_max_lifetime":
		return cfg.Database.ConnMaxLifetime.String(), nil
	case "database.conn_max_idle_time":
		return cfg.Database.ConnMaxIdleTime.String(), nil
	case "pipeline.max_retries":
		return strconv.Itoa(cfg.Pipeline.MaxRetries), nil
	case "pipeline.step_timeout":
		return cfg.Pipeline.StepTimeout.String(), nil
	case "pipeline.count_all_failures":
		return strconv.FormatBool(cfg.Pipeline.CountAllFailures), nil
	case "schema.path":
		return orUnset(cfg.Schema.Path), nil
	case "history.enabled":
		return strconv.FormatBool(cfg.History.Enabled), nil
	case "history.path":
		return orUnset(cfg.History.Path), nil
	case "log.level":
		return cfg.Log.Level, nil
	case "log.file":
		return orUnset(cfg.Log.File), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "llm.provider":
		cfg.LLM.Provider = value
	case "llm.model":
		cfg.LLM.Model = value
	case "llm.api_key":
		cfg.LLM.APIKey = value
	case "llm.max_tokens":
		return setInt(&cfg.LLM.MaxTokens, key, value)
	case "llm.translate_temperature":
		return setFloat(&cfg.LLM.TranslateTemperature, key, value)
	case "llm.compose_temperature":
		return setFloat(&cfg.LLM.ComposeTemperature, key, value)
	case "llm.bedrock.enabled":
		return setBool(&cfg.LLM.Bedrock.Enabled, key, value)
	case "llm.bedrock.region":
		cfg.LLM.Bedrock.Region = value
	case "llm.bedrock.profile":
		cfg.LLM.Bedrock.Profile = value
	case "database.driver":
		cfg.Database.Driver = value
		cfg.Database.Dialect = config.DialectFor(value)
	case "database.url":
		cfg.Database.URL = value
	case "database.dialect":
		cfg.Database.Dialect = value
	case "database.ping_timeout":
		return setDuration(&cfg.Database.PingTimeout, key, value)
	case "database.max_open_conns":
		return setInt(&cfg.Database.MaxOpenConns, key, value)
	case "database.max_idle_conns":
		return setInt(&cfg.Database.MaxIdleConns, key, value)
	case "database.conn_max_lifetime":
		return setDuration(&cfg.Database.ConnMaxLifetime, key, value)
	case "database.conn_max_idle_time":
		return setDuration(&cfg.Database.ConnMaxIdleTime, key, value)
	case "pipeline.max_retries":
		return setInt(&cfg.Pipeline.MaxRetries, key, value)
	case "pipeline.step_timeout":
		return setDuration(&cfg.Pipeline.StepTimeout, key, value)
	case "pipeline.count_all_failures":
		return setBool(&cfg.Pipeline.CountAllFailures, key, value)
	case "schema.path":
		cfg.Schema.Path = value
	case "history.enabled":
		return setBool(&cfg.History.Enabled, key, value)
	case "history.path":
		cfg.History.Path = value
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key, value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid number for %s: %w", key, err)
	}
	*dst = f
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid boolean for %s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	*dst = d
	return nil
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
