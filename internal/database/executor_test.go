package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/analyst/internal/pipeline"
)

func TestExecutor_Select(t *testing.T) {
	ex := NewExecutor(openShop(t), nil)

	result, err := ex.Execute(context.Background(), "SELECT SUM(quantity) AS total FROM sales;")
	require.NoError(t, err)

	rows, ok := result.(pipeline.Rows)
	require.True(t, ok, "expected Rows, got %T", result)
	require.Len(t, rows, 1)
	require.EqualValues(t, 42, rows[0]["total"])
}

func TestExecutor_SelectJoin(t *testing.T) {
	ex := NewExecutor(openShop(t), nil)

	result, err := ex.Execute(context.Background(), `
		SELECT p.product_name, SUM(s.quantity) AS units
		FROM sales s JOIN products p ON p.product_id = s.product_id
		GROUP BY p.product_name ORDER BY units DESC LIMIT 1`)
	require.NoError(t, err)

	rows := result.(pipeline.Rows)
	require.Len(t, rows, 1)
	require.Equal(t, "Desk Lamp", rows[0]["product_name"])
}

func TestExecutor_EmptyResult(t *testing.T) {
	ex := NewExecutor(openShop(t), nil)

	result, err := ex.Execute(context.Background(), "SELECT * FROM sales WHERE quantity > 1000")
	require.NoError(t, err)
	require.Equal(t, pipeline.Rows{}, result)
}

func TestExecutor_WriteCommits(t *testing.T) {
	db := openShop(t)
	ex := NewExecutor(db, nil)

	result, err := ex.Execute(context.Background(), "INSERT INTO products VALUES (3, 'Monitor', '27 inch')")
	require.NoError(t, err)
	require.Equal(t, pipeline.Status{Message: SuccessMessage}, result)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM products").Scan(&n))
	require.Equal(t, 3, n)
}

func TestExecutor_ReturningYieldsRows(t *testing.T) {
	ex := NewExecutor(openShop(t), nil)

	result, err := ex.Execute(context.Background(), "INSERT INTO products VALUES (4, 'Desk', 'Oak') RETURNING product_name")
	require.NoError(t, err)

	rows, ok := result.(pipeline.Rows)
	require.True(t, ok, "expected Rows, got %T", result)
	require.Equal(t, "Desk", rows[0]["product_name"])
}

func TestExecutor_BlockCommentBeforeSelect(t *testing.T) {
	ex := NewExecutor(openShop(t), nil)

	result, err := ex.Execute(context.Background(), "/* total */ SELECT 42 AS total;")
	require.NoError(t, err)

	rows, ok := result.(pipeline.Rows)
	require.True(t, ok, "expected Rows, got %T", result)
	require.EqualValues(t, 42, rows[0]["total"])
}

func TestExecutor_ReturningInsideLiteralIsAWrite(t *testing.T) {
	db := openShop(t)
	ex := NewExecutor(db, nil)

	result, err := ex.Execute(context.Background(), "UPDATE products SET description = 'returning customer' WHERE product_id = 1")
	require.NoError(t, err)
	require.Equal(t, pipeline.Status{Message: SuccessMessage}, result)

	var desc string
	require.NoError(t, db.QueryRow("SELECT description FROM products WHERE product_id = 1").Scan(&desc))
	require.Equal(t, "returning customer", desc)
}

func TestExecutor_FailureRollsBack(t *testing.T) {
	db := openShop(t)
	ex := NewExecutor(db, nil)

	_, err := ex.Execute(context.Background(), "INSERT INTO products VALUES (1, 'Duplicate', 'pk clash')")
	require.Error(t, err)

	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	require.Contains(t, err.Error(), "SQL query failed: ")

	var name string
	require.NoError(t, db.QueryRow("SELECT product_name FROM products WHERE product_id = 1").Scan(&name))
	require.Equal(t, "Desk Lamp", name)
}

func TestExecutor_UnknownTable(t *testing.T) {
	ex := NewExecutor(openShop(t), nil)

	_, err := ex.Execute(context.Background(), "SELECT * FROM customers")
	require.Error(t, err)
	require.Contains(t, err.Error(), "customers")
}

func TestExecutor_CancelledContext(t *testing.T) {
	ex := NewExecutor(openShop(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ex.Execute(ctx, "SELECT 1")
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsReadStatement(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"SELECT 1", true},
		{"  select * from sales", true},
		{"(SELECT 1) UNION (SELECT 2)", true},
		{"WITH t AS (SELECT 1) SELECT * FROM t", true},
		{"-- top products\nSELECT 1", true},
		{"EXPLAIN SELECT 1", true},
		{"PRAGMA table_info(sales)", true},
		{"INSERT INTO sales VALUES (1)", false},
		{"UPDATE sales SET quantity = 0", false},
		{"selection", false},
		{"-- only a comment", false},
		{"/* total */ SELECT 42", true},
		{"/* multi\nline */\n-- then a line\n(SELECT 1)", true},
		{"/* unterminated SELECT 1", false},
		{"/* note */ DELETE FROM sales", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsReadStatement(tt.query); got != tt.want {
			t.Errorf("IsReadStatement(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestReturnsRows(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"SELECT 1", true},
		{"INSERT INTO products VALUES (4, 'Desk', 'Oak') RETURNING product_id", true},
		{"DELETE FROM sales\nreturning id", true},
		{"UPDATE products SET description = 'returning customer'", false},
		{`UPDATE products SET "returning" = 1`, false},
		{"UPDATE products SET description = 'x' -- returning later", false},
		{"DELETE FROM sales /* returning */ WHERE id = 1", false},
		{"UPDATE products SET description = 'it''s' RETURNING description", true},
		{"INSERT INTO products VALUES (5, 'Lamp', 'x')", false},
	}

	for _, tt := range tests {
		if got := ReturnsRows(tt.query); got != tt.want {
			t.Errorf("ReturnsRows(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestQueryError_PostgresDetail(t *testing.T) {
	pgErr := &pgconn.PgError{
		Severity: "ERROR",
		Code:     "42P01",
		Message:  `relation "customers" does not exist`,
		Hint:     "Check the table name.",
	}
	ex := NewExecutor(nil, nil)

	err := ex.fail("SELECT * FROM customers", pgErr)

	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	require.Equal(t, "42P01", qe.SQLState)
	require.Equal(t,
		`SQL query failed: relation "customers" does not exist (hint: Check the table name.) [SQLSTATE 42P01]`,
		err.Error())
	require.ErrorIs(t, err, pgErr)
}
