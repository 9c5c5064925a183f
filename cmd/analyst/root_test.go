package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"

	"github.com/ShayCichocki/analyst/internal/config"
	"github.com/ShayCichocki/analyst/internal/history"
	"github.com/ShayCichocki/analyst/internal/pipeline"
)

func init() {
	color.NoColor = true
}

func TestRootCmd_Subcommands(t *testing.T) {
	want := []string{"ask", "config", "demo", "history", "version"}

	var got []string
	for _, c := range rootCmd.Commands() {
		if c.Name() == "help" || c.Name() == "completion" {
			continue
		}
		got = append(got, c.Name())
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("subcommands mismatch (-want +got):\n%s", diff)
	}
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	if !strings.HasPrefix(out.String(), "analyst version ") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestLoadQuestions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
		wantErr bool
	}{
		{
			name:    "list",
			content: "- What is the total sales revenue in 2025?\n- \"  Which product sold the most units?  \"\n",
			want:    []string{"What is the total sales revenue in 2025?", "Which product sold the most units?"},
		},
		{
			name:    "mapping",
			content: "questions:\n  - How many products are there?\n  - \"\"\n",
			want:    []string{"How many products are there?"},
		},
		{
			name:    "empty list",
			content: "[]\n",
			wantErr: true,
		},
		{
			name:    "not yaml",
			content: "questions: [unclosed\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "questions.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			got, err := loadQuestions(path)
			if tt.wantErr {
				if err == nil {
					t.Errorf("loadQuestions() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("loadQuestions() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("questions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadQuestions_MissingFile(t *testing.T) {
	if _, err := loadQuestions(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func fakeAsk(failOn string) func(ctx context.Context, question string) (*pipeline.Report, error) {
	return func(ctx context.Context, question string) (*pipeline.Report, error) {
		report := &pipeline.Report{
			ID: "0123456789abcdef",
			State: pipeline.State{
				Question:       question,
				GeneratedQuery: "SELECT\n  1;",
			},
		}
		if question == failOn {
			report.Outcome = pipeline.StageFailed
			return report, &pipeline.TerminalFailure{
				Message:    pipeline.RetriesExhaustedMessage,
				Cause:      errors.New("relation \"orders\" does not exist"),
				RetryCount: 3,
				Steps:      8,
			}
		}
		report.Outcome = pipeline.StageSucceeded
		report.State.FinalAnswer = "answer to " + question
		return report, nil
	}
}

func TestAnswerAll(t *testing.T) {
	var out bytes.Buffer
	questions := []string{"one", "two", "three"}

	failed := answerAll(context.Background(), &out, fakeAsk("two"), questions, 1)

	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	text := out.String()
	for _, want := range []string{
		"✓ answer to one",
		"✓ answer to three",
		"✗ " + pipeline.RetriesExhaustedMessage,
		`last error: relation "orders" does not exist`,
		"retries 3, steps 8, run 0123456789abcdef",
		"SELECT 1;",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Index(text, "one") > strings.Index(text, "three") {
		t.Error("sequential runs should print in order")
	}
}

func TestAnswerAll_Parallel(t *testing.T) {
	var inFlight, peak atomic.Int32
	ask := func(ctx context.Context, question string) (*pipeline.Report, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return fakeAsk("")(ctx, question)
	}

	var out bytes.Buffer
	failed := answerAll(context.Background(), &out, ask, []string{"a", "b", "c", "d", "e", "f"}, 2)

	if failed != 0 {
		t.Errorf("failed = %d, want 0", failed)
	}
	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
	if got := strings.Count(out.String(), "✓"); got != 6 {
		t.Errorf("printed %d answers, want 6", got)
	}
}

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		ev   pipeline.Event
		want string
	}{
		{pipeline.Event{Type: pipeline.EventStageEntered, RunID: "0123456789", Stage: pipeline.StageTranslating}, "[01234567] → translating"},
		{pipeline.Event{Type: pipeline.EventStageEntered, RunID: "abc", Stage: pipeline.StageExecuting, RetryCount: 2}, "[abc] → executing (retry 2)"},
		{pipeline.Event{Type: pipeline.EventStepFailed, RunID: "abc", Stage: pipeline.StageExecuting, Error: errors.New("boom")}, "[abc] ! executing failed: boom"},
		{pipeline.Event{Type: pipeline.EventSucceeded, RunID: "abc"}, "[abc] ✓ answered"},
		{pipeline.Event{Type: pipeline.EventFailed, RunID: "abc", Error: errors.New("boom")}, "[abc] ✗ gave up: boom"},
	}

	for _, tt := range tests {
		if got := formatEvent(tt.ev); got != tt.want {
			t.Errorf("formatEvent(%s) = %q, want %q", tt.ev.Type, got, tt.want)
		}
	}
}

func TestConfigValues(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "sk-ant-REDACTED"

	tests := []struct {
		key   string
		value string
		want  string
	}{
		{"llm.provider", "gemini", "gemini"},
		{"llm.max_tokens", "2048", "2048"},
		{"llm.compose_temperature", "0.7", "0.7"},
		{"llm.bedrock.enabled", "true", "true"},
		{"database.url", "postgresql://app:secret@db:5432/shop", "postgresql://app:***@db:5432/shop"},
		{"pipeline.max_retries", "5", "5"},
		{"pipeline.step_timeout", "30s", "30s"},
		{"pipeline.count_all_failures", "true", "true"},
		{"log.file", "", "(not set)"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if err := setConfigValue(cfg, tt.key, tt.value); err != nil {
				t.Fatalf("setConfigValue(%q) error = %v", tt.key, err)
			}
			got, err := getConfigValue(cfg, tt.key)
			if err != nil {
				t.Fatalf("getConfigValue(%q) error = %v", tt.key, err)
			}
			if got != tt.want {
				t.Errorf("getConfigValue(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestConfigValues_APIKeyMasked(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "sk-ant-REDACTED"

	got, _ := getConfigValue(cfg, "llm.api_key")
	if strings.Contains(got, "abcdefghijk") {
		t.Errorf("api key not masked: %q", got)
	}
}

func TestConfigValues_DriverSetsDialect(t *testing.T) {
	cfg := config.Default()

	if err := setConfigValue(cfg, "database.driver", "sqlite"); err != nil {
		t.Fatal(err)
	}
	if cfg.Database.Dialect != "SQLite" {
		t.Errorf("Dialect = %q, want SQLite", cfg.Database.Dialect)
	}
}

func TestConfigValues_Invalid(t *testing.T) {
	cfg := config.Default()

	tests := []struct{ key, value string }{
		{"llm.max_tokens", "many"},
		{"pipeline.step_timeout", "soon"},
		{"history.enabled", "maybe"},
		{"llm.translate_temperature", "hot"},
		{"no.such.key", "x"},
	}
	for _, tt := range tests {
		if err := setConfigValue(cfg, tt.key, tt.value); err == nil {
			t.Errorf("setConfigValue(%q, %q) should fail", tt.key, tt.value)
		}
	}
	if _, err := getConfigValue(cfg, "no.such.key"); err == nil {
		t.Error("getConfigValue should reject unknown keys")
	}
}

func TestDisplayAllConfig_EveryKey(t *testing.T) {
	var out bytes.Buffer
	displayAllConfig(&out, config.Default())

	for _, key := range configKeys {
		if !strings.Contains(out.String(), key+": ") {
			t.Errorf("output missing key %s", key)
		}
	}
}

func TestPrintRuns(t *testing.T) {
	var out bytes.Buffer
	printRuns(&out, []history.Run{
		{ID: "11111111-2222", Question: "good question", Outcome: "succeeded", StartedAt: time.Now()},
		{ID: "33333333-4444", Question: "bad question", Outcome: "failed", Failure: "query execution failed: timeout", StartedAt: time.Now()},
	})

	text := out.String()
	for _, want := range []string{"✓", "11111111", "good question", "✗", "33333333", "last error: query execution failed: timeout"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "11111111-2222") {
		t.Error("list should show short ids")
	}
}

func TestPrintRuns_Empty(t *testing.T) {
	var out bytes.Buffer
	printRuns(&out, nil)

	if out.String() != "No runs recorded.\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestPrintRun(t *testing.T) {
	var out bytes.Buffer
	printRun(&out, &history.Run{
		ID:        "run-1",
		Question:  "q",
		Outcome:   "failed",
		Failure:   "boom",
		StepLimit: true,
		Trace:     []string{"translating", "executing"},
		Query:     "SELECT 1;",
	})

	text := out.String()
	for _, want := range []string{"Run:        run-1", "Step limit: reached", "translating → executing", "SELECT 1;", "Failure:\n  boom"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}
