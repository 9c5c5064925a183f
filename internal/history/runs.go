package history

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/analyst/internal/pipeline"
)

var (
	// ErrNotFound is returned when a run does not exist.
	ErrNotFound = errors.New("run not found")
	// ErrAmbiguousID is returned when an ID prefix matches several runs.
	ErrAmbiguousID = errors.New("run id prefix matches several runs")
)

// Run is a recorded pipeline run.
type Run struct {
	ID         string
	Question   string
	Query      string
	Outcome    string
	Answer     string
	// Failure is the underlying cause of a failed run.
	Failure    string
	RetryCount int
	Steps      int
	StepLimit  bool
	Trace      []string
	StartedAt  time.Time
	Duration   time.Duration
}

// Succeeded reports whether the run produced an answer.
func (r Run) Succeeded() bool {
	return r.Outcome == pipeline.StageSucceeded.String()
}

// FromReport converts a finished pipeline report. err is the error Run
// returned, if any.
func FromReport(report *pipeline.Report, err error) Run {
	run := Run{
		ID:         report.ID,
		Question:   report.State.Question,
		Query:      report.State.GeneratedQuery,
		Outcome:    report.Outcome.String(),
		Answer:     report.State.FinalAnswer,
		RetryCount: report.State.RetryCount,
		Steps:      report.Steps,
		StartedAt:  report.StartedAt,
		Duration:   report.Duration,
	}
	for _, stage := range report.Trace {
		run.Trace = append(run.Trace, stage.String())
	}
	if report.State.Failure != nil {
		run.Failure = report.State.Failure.Error()
	}

	var tf *pipeline.TerminalFailure
	if errors.As(err, &tf) {
		run.StepLimit = tf.StepLimitReached
	}
	return run
}

// Record stores a run.
func (db *DB) Record(r Run) error {
	stepLimit := 0
	if r.StepLimit {
		stepLimit = 1
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.conn.Exec(`
		INSERT INTO runs (id, question, generated_query, outcome, answer, failure,
			retry_count, steps, step_limit, trace, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Question, nullString(r.Query), r.Outcome, nullString(r.Answer), nullString(r.Failure),
		r.RetryCount, r.Steps, stepLimit, strings.Join(r.Trace, ","), formatTime(r.StartedAt), r.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Get returns the run with the given ID or ErrNotFound.
func (db *DB) Get(id string) (*Run, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRow(selectRuns+` WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// Find returns the run whose ID is id or starts with id.
func (db *DB) Find(id string) (*Run, error) {
	if r, err := db.Get(id); !errors.Is(err, ErrNotFound) {
		return r, err
	}
	if id == "" || strings.ContainsAny(id, "%_") {
		return nil, ErrNotFound
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(selectRuns+` WHERE id LIKE ? LIMIT 2`, id+"%")
	if err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return found[0], nil
	default:
		return nil, ErrAmbiguousID
	}
}

// Recent returns up to limit runs, newest first. failedOnly restricts the
// list to runs without an answer.
func (db *DB) Recent(limit int, failedOnly bool) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := selectRuns
	var args []any
	if failedOnly {
		query += ` WHERE outcome != ?`
		args = append(args, pipeline.StageSucceeded.String())
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// Purge deletes runs older than the specified duration.
// Returns the number of runs deleted.
func (db *DB) Purge(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	db.mu.Lock()
	defer db.mu.Unlock()

	result, err := db.conn.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old runs: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}

const selectRuns = `
	SELECT id, question, generated_query, outcome, answer, failure,
		retry_count, steps, step_limit, trace, started_at, duration_ms
	FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		r                      Run
		query, answer, failure sql.NullString
		trace                  sql.NullString
		stepLimit              int
		startedAt              string
		durationMS             int64
	)
	err := s.Scan(&r.ID, &r.Question, &query, &r.Outcome, &answer, &failure,
		&r.RetryCount, &r.Steps, &stepLimit, &trace, &startedAt, &durationMS)
	if err != nil {
		return nil, err
	}

	r.Query = query.String
	r.Answer = answer.String
	r.Failure = failure.String
	r.StepLimit = stepLimit != 0
	if trace.String != "" {
		r.Trace = strings.Split(trace.String, ",")
	}
	r.Duration = time.Duration(durationMS) * time.Millisecond

	t, err := parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	r.StartedAt = t
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
