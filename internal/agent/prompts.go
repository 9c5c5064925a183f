// Package agent turns questions into SQL and query results into answers
// using a language model.
package agent

import (
	"bytes"
	"fmt"
	"text/template"
)

// dialectHints holds the dialect-specific prompt rules.
type dialectHints struct {
	DateFunctions string
	Now           string
	TextMatch     string
}

var hintsByDialect = map[string]dialectHints{
	"PostgreSQL": {
		DateFunctions: "DATE_TRUNC, EXTRACT",
		Now:           "NOW()",
		TextMatch:     "ILIKE",
	},
	"SQLite": {
		DateFunctions: "strftime, date",
		Now:           "date('now')",
		TextMatch:     "LIKE",
	},
}

func hintsFor(dialect string) dialectHints {
	if h, ok := hintsByDialect[dialect]; ok {
		return h
	}
	return hintsByDialect["PostgreSQL"]
}

// TranslateSystemPrompt frames the model as a SQL writer.
const TranslateSystemPrompt = `You are an expert at converting natural language questions into SQL queries.
Reply with exactly one SQL statement and nothing else: no explanation, no markdown.`

// ComposeSystemPrompt frames the model as a business analyst.
const ComposeSystemPrompt = `You are a business analyst. You explain data to people who do not read SQL.`

var translateTemplate = template.Must(template.New("translate").Funcs(template.FuncMap{
	"add": func(a, b int) int { return a + b },
}).Parse(
	`You are converting a natural language question into a SQL query for a {{.Dialect}} database.
Your goal is to write a single, valid, and executable SQL query based on the user's question.

Here is the database schema:

{{.Schema}}
{{- if .Relationships}}

Relationships:
{{- range .Relationships}}
- {{.}}
{{- end}}
{{- end}}

**Important Rules:**
1. Only use the tables and columns provided above.
2. Do not use functions that are not standard SQL, unless necessary for date operations (e.g., {{.Hints.DateFunctions}}).
3. If the query requires a join, use ` + "`JOIN`" + `.
4. If a date-related question is asked (e.g., 'last month', 'last 6 months'), use the date column of the relevant table and {{.Hints.Now}} or specific dates to filter the data.
5. For multi-word product names, use {{.Hints.TextMatch}}.
{{- range $i, $n := .Notes}}
{{add $i 6}}. {{$n}}
{{- end}}

Question: {{.Question}}

Example query:
SELECT COUNT(id) AS total_sales FROM sales;
`))

var composeTemplate = template.Must(template.New("compose").Parse(
	`Your task is to provide a clear, concise, and helpful summary of the data results to the user.

Here are the user's question and the data you retrieved:
- **Question:** {{.Question}}
- **Data:** {{.Data}}

Based on this, summarize the findings and provide a human-readable answer. Do not include any technical details like SQL code or column names. Focus on the business insight. If the data is empty, mention that no results were found.
`))

// BuildTranslatePrompt renders the SQL generation prompt.
func BuildTranslatePrompt(dialect string, schema *Schema, question string) (string, error) {
	var buf bytes.Buffer
	err := translateTemplate.Execute(&buf, struct {
		Dialect       string
		Schema        string
		Relationships []string
		Notes         []string
		Hints         dialectHints
		Question      string
	}{
		Dialect:       dialect,
		Schema:        schema.Describe(),
		Relationships: schema.Relationships,
		Notes:         schema.Notes,
		Hints:         hintsFor(dialect),
		Question:      question,
	})
	if err != nil {
		return "", fmt.Errorf("render translate prompt: %w", err)
	}
	return buf.String(), nil
}

// BuildComposePrompt renders the answer prompt. data is the JSON rendering of
// the query result.
func BuildComposePrompt(question, data string) (string, error) {
	var buf bytes.Buffer
	err := composeTemplate.Execute(&buf, struct {
		Question string
		Data     string
	}{question, data})
	if err != nil {
		return "", fmt.Errorf("render compose prompt: %w", err)
	}
	return buf.String(), nil
}
