package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/ShayCichocki/analyst/internal/pipeline"
)

// SuccessMessage acknowledges a statement that returned no rows.
const SuccessMessage = "Query executed successfully."

// QueryError is returned when a statement fails. The transaction has been
// rolled back.
type QueryError struct {
	Query string
	// SQLState is the Postgres error code, when known.
	SQLState string
	Err      error
}

func (e *QueryError) Error() string {
	return "SQL query failed: " + describe(e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Executor runs statements inside a transaction per call.
type Executor struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExecutor wraps an open database.
func NewExecutor(db *sql.DB, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{db: db, logger: logger}
}

// Execute runs query in its own transaction. Statements that return rows
// yield pipeline.Rows; anything else is committed and acknowledged with a
// pipeline.Status. Failures roll back.
func (e *Executor) Execute(ctx context.Context, query string) (pipeline.Result, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, e.fail(query, fmt.Errorf("begin transaction: %w", err))
	}

	result, err := runInTx(ctx, tx, query)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			e.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return nil, e.fail(query, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, e.fail(query, fmt.Errorf("commit: %w", err))
	}

	if rows, ok := result.(pipeline.Rows); ok {
		e.logger.Debug("query returned rows", zap.Int("rows", len(rows)))
	} else {
		e.logger.Info("statement committed", zap.String("sql", query))
	}
	return result, nil
}

func (e *Executor) fail(query string, err error) error {
	qe := &QueryError{Query: query, Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		qe.SQLState = pgErr.Code
	}
	e.logger.Debug("query failed", zap.String("sql", query), zap.String("sqlstate", qe.SQLState), zap.Error(err))
	return qe
}

func runInTx(ctx context.Context, tx *sql.Tx, query string) (pipeline.Result, error) {
	if !ReturnsRows(query) {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return nil, err
		}
		return pipeline.Status{Message: SuccessMessage}, nil
	}

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := pipeline.Rows{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		rec := make(pipeline.Record, len(cols))
		for i, col := range cols {
			rec[col] = normalize(values[i])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// normalize turns driver byte slices into strings so results render as text.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

var (
	readKeywords     = []string{"select", "with", "show", "explain", "values", "table", "pragma"}
	returningPattern = regexp.MustCompile(`(?i)\breturning\b`)
)

// ReturnsRows reports whether query produces a row set: read statements, and
// writes with a RETURNING clause outside literals and comments.
func ReturnsRows(query string) bool {
	return IsReadStatement(query) || returningPattern.MatchString(blankLiterals(query))
}

// IsReadStatement reports whether query starts with a read-only keyword.
// Leading comments and parentheses are skipped.
func IsReadStatement(query string) bool {
	q := skipLeading(query)
	end := strings.IndexAny(q, " \t\r\n(;")
	if end < 0 {
		end = len(q)
	}
	word := strings.ToLower(q[:end])
	for _, kw := range readKeywords {
		if word == kw {
			return true
		}
	}
	return false
}

// skipLeading drops whitespace, opening parentheses, line comments and block
// comments from the start of query. An unterminated comment leaves nothing.
func skipLeading(query string) string {
	q := query
	for {
		q = strings.TrimLeft(q, " \t\r\n(")
		switch {
		case strings.HasPrefix(q, "--"):
			nl := strings.IndexByte(q, '\n')
			if nl < 0 {
				return ""
			}
			q = q[nl+1:]
		case strings.HasPrefix(q, "/*"):
			end := strings.Index(q[2:], "*/")
			if end < 0 {
				return ""
			}
			q = q[end+4:]
		default:
			return q
		}
	}
}

// blankLiterals replaces quoted strings, quoted identifiers and comments with
// spaces so keyword matching only sees statement text.
func blankLiterals(query string) string {
	b := []byte(query)
	var quote byte
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			b[i] = ' '
		case c == '\'' || c == '"':
			quote = c
			b[i] = ' '
		case c == '-' && i+1 < len(b) && b[i+1] == '-':
			for i < len(b) && b[i] != '\n' {
				b[i] = ' '
				i++
			}
		case c == '/' && i+1 < len(b) && b[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			stop := len(b)
			if end >= 0 {
				stop = i + 2 + end + 2
			}
			for ; i < stop; i++ {
				b[i] = ' '
			}
			i--
		}
	}
	return string(b)
}

// describe renders err with the Postgres detail and hint when available.
func describe(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err.Error()
	}
	var b strings.Builder
	b.WriteString(pgErr.Message)
	if pgErr.Detail != "" {
		b.WriteString(" (detail: " + pgErr.Detail + ")")
	}
	if pgErr.Hint != "" {
		b.WriteString(" (hint: " + pgErr.Hint + ")")
	}
	b.WriteString(" [SQLSTATE " + pgErr.Code + "]")
	return b.String()
}
