package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ShayCichocki/analyst/internal/llm"
)

// TranslatorConfig configures a Translator.
type TranslatorConfig struct {
	// Dialect names the SQL dialect in the prompt (PostgreSQL, SQLite).
	Dialect string
	// Schema supplies the table listing. Nil uses DefaultSchema.
	Schema SchemaSource
	// Temperature for SQL generation; 0 keeps output deterministic.
	Temperature float64
	// MaxTokens caps the response. Zero uses the client default.
	MaxTokens int
	// Logger receives debug output. Nil disables logging.
	Logger *zap.Logger
}

// Translator writes a SQL statement for a question with a language model.
type Translator struct {
	llm         llm.Completer
	schema      SchemaSource
	dialect     string
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// NewTranslator creates a Translator backed by the given completer.
func NewTranslator(c llm.Completer, cfg TranslatorConfig) *Translator {
	if cfg.Schema == nil {
		cfg.Schema = DefaultSchema()
	}
	if cfg.Dialect == "" {
		cfg.Dialect = "PostgreSQL"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Translator{
		llm:         c,
		schema:      cfg.Schema,
		dialect:     cfg.Dialect,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      cfg.Logger,
	}
}

// Translate returns a single SQL statement answering the question.
func (t *Translator) Translate(ctx context.Context, question string) (string, error) {
	prompt, err := BuildTranslatePrompt(t.dialect, t.schema.Current(), question)
	if err != nil {
		return "", err
	}

	raw, err := t.llm.Complete(ctx, llm.Request{
		System:      TranslateSystemPrompt,
		Prompt:      prompt,
		Temperature: t.temperature,
		MaxTokens:   t.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generate sql: %w", err)
	}

	stmt := ExtractStatement(raw)
	if stmt == "" {
		return "", fmt.Errorf("model response contains no SQL statement: %q", truncate(raw, 120))
	}
	t.logger.Debug("generated sql", zap.String("question", question), zap.String("sql", stmt))
	return stmt, nil
}

var (
	fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")

	// statementPattern finds where a statement starts: at the beginning of a
	// line or right after a colon. Keywords that double as English words only
	// count in their SQL shape, so "With the schema above" is prose.
	statementPattern = regexp.MustCompile(`(?im)(?:^|:)[ \t]*(` +
		`select\b|` +
		`with\s+(?:recursive\s+)?\S+(?:\s*\([^)]*\))?\s+as\s*(?:not\s+)?(?:materialized\s+)?\(|` +
		`insert\s+into\b|` +
		`update\s+\S+\s+set\b|` +
		`delete\s+from\b|` +
		`(?:create|alter|drop)\s+(?:table|view|index|schema)\b|` +
		`explain\s+(?:analyze\s+)?(?:select|with)\b|` +
		`show\s+(?:tables|columns|databases|search_path|timezone)\b|` +
		`values\s*\(|` +
		`pragma\s+\w+)`)
)

// ExtractStatement pulls the first SQL statement out of a model response.
// It strips markdown fences, skips leading prose, and drops anything after
// the first top-level semicolon. A response with no SQL keyword yields "".
func ExtractStatement(raw string) string {
	text := raw
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	} else {
		text = strings.TrimPrefix(strings.TrimSpace(text), "```")
	}

	loc := statementPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return ""
	}
	text = text[loc[2]:]

	return strings.TrimSpace(firstStatement(text))
}

// firstStatement cuts text at the first semicolon outside quotes, keeping the
// semicolon. Without one, it stops at the first blank line.
func firstStatement(text string) string {
	var quote rune
	for i, r := range text {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ';':
			return text[:i+1]
		}
	}
	if i := strings.Index(text, "\n\n"); i >= 0 {
		return text[:i]
	}
	return text
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
