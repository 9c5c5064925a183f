package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExtractStatement(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "SELECT SUM(quantity) FROM sales;", "SELECT SUM(quantity) FROM sales;"},
		{"whitespace", "\n  SELECT 1;  \n", "SELECT 1;"},
		{"sql fence", "```sql\nSELECT COUNT(id) FROM sales;\n```", "SELECT COUNT(id) FROM sales;"},
		{"bare fence", "```\nSELECT 1;\n```", "SELECT 1;"},
		{"leading prose", "Here is the query:\n\nSELECT * FROM products;", "SELECT * FROM products;"},
		{"trailing prose", "SELECT 1;\nThis returns one.", "SELECT 1;"},
		{"two statements", "SELECT 1; SELECT 2;", "SELECT 1;"},
		{"semicolon in string", "SELECT * FROM products WHERE product_name = 'a;b';", "SELECT * FROM products WHERE product_name = 'a;b';"},
		{"doubled quote", "SELECT 'it''s'; DROP TABLE x;", "SELECT 'it''s';"},
		{"no semicolon stops at blank line", "SELECT 1\n\nThis query counts.", "SELECT 1"},
		{"cte", "WITH t AS (SELECT 1) SELECT * FROM t;", "WITH t AS (SELECT 1) SELECT * FROM t;"},
		{"empty", "   ", ""},
		{"prose starting with with", "With the schema above, this query answers it:\nSELECT SUM(quantity) FROM sales;", "SELECT SUM(quantity) FROM sales;"},
		{"prose and sql on one line", "Here is the query: SELECT COUNT(*) FROM products;", "SELECT COUNT(*) FROM products;"},
		{"recursive cte", "WITH RECURSIVE n(x) AS (SELECT 1) SELECT x FROM n;", "WITH RECURSIVE n(x) AS (SELECT 1) SELECT x FROM n;"},
		{"show prose", "Show me the top product.\nSELECT product_name FROM products LIMIT 1;", "SELECT product_name FROM products LIMIT 1;"},
		{"update", "UPDATE products SET unit_price = 10 WHERE product_id = 1;", "UPDATE products SET unit_price = 10 WHERE product_id = 1;"},
		{"only prose", "Values differ by region.\nTable stakes.", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractStatement(tt.raw); got != tt.want {
				t.Errorf("ExtractStatement(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestTranslator_Translate(t *testing.T) {
	fc := &fakeCompleter{response: "```sql\nSELECT SUM(quantity) FROM sales;\n```"}
	tr := NewTranslator(fc, TranslatorConfig{Dialect: "PostgreSQL", Temperature: 0, MaxTokens: 300})

	got, err := tr.Translate(context.Background(), "total units sold")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if got != "SELECT SUM(quantity) FROM sales;" {
		t.Errorf("Translate() = %q", got)
	}

	req := fc.last()
	if req.Temperature != 0 {
		t.Errorf("Temperature = %v, want 0", req.Temperature)
	}
	if req.MaxTokens != 300 {
		t.Errorf("MaxTokens = %d, want 300", req.MaxTokens)
	}
	if req.System != TranslateSystemPrompt {
		t.Error("system prompt should be the translate prompt")
	}
	if !strings.Contains(req.Prompt, "Question: total units sold") {
		t.Error("prompt should carry the question")
	}
}

func TestTranslator_EmptyResponse(t *testing.T) {
	fc := &fakeCompleter{response: "I cannot answer that."}
	tr := NewTranslator(fc, TranslatorConfig{})

	if _, err := tr.Translate(context.Background(), "q"); err == nil {
		t.Error("Translate should fail when no statement can be extracted")
	}
}

func TestTranslator_CompleterError(t *testing.T) {
	boom := errors.New("rate limited")
	tr := NewTranslator(&fakeCompleter{err: boom}, TranslatorConfig{})

	if _, err := tr.Translate(context.Background(), "q"); !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}
