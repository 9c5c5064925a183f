// Package pipeline turns a business question into a prose answer by driving
// three collaborator steps (translate, execute, compose) through an explicit
// state machine with a bounded retry policy.
package pipeline

// Record is a single result row keyed by column name. Column order is not
// significant.
type Record map[string]any

// Result is the data an executed statement produces. It is either Rows (read
// statements) or Status (write statements); no other implementations exist.
type Result interface {
	isResult()
}

// Rows is the ordered record set returned by a read statement.
type Rows []Record

// Status acknowledges a statement that returned no rows.
type Status struct {
	Message string `json:"status"`
}

func (Rows) isResult()   {}
func (Status) isResult() {}

// State is the mutable record threaded through one pipeline run.
// Only the Orchestrator mutates it, by applying step Updates.
type State struct {
	// Question is the user's question. It is set once and never changes.
	Question string
	// GeneratedQuery is the statement produced by the latest translation.
	GeneratedQuery string
	// ResultData is the output of the latest successful execution.
	ResultData Result
	// FinalAnswer is set by a successful composition and marks success.
	FinalAnswer string
	// Failure is the error from the most recent failed step.
	Failure error
	// RetryCount counts failures charged against the retry budget.
	RetryCount int
}

// NewState creates the initial state for a question.
func NewState(question string) *State {
	return &State{Question: question}
}

// Update is the partial state change a step returns.
type Update struct {
	// GeneratedQuery replaces the query when non-empty.
	GeneratedQuery string
	// ResultData replaces the result data when non-nil.
	ResultData Result
	// ClearResult drops result data left over from an earlier attempt.
	ClearResult bool
	// FinalAnswer sets the answer when non-empty.
	FinalAnswer string
	// Failure records a step failure when non-nil.
	Failure error
	// ClearFailure drops the failure of an earlier attempt.
	ClearFailure bool
	// CountRetry charges this update against the retry budget.
	CountRetry bool
}

// Apply merges an update into the state.
func (s *State) Apply(u Update) {
	if u.GeneratedQuery != "" {
		s.GeneratedQuery = u.GeneratedQuery
	}
	if u.ClearResult {
		s.ResultData = nil
	}
	if u.ResultData != nil {
		s.ResultData = u.ResultData
	}
	if u.FinalAnswer != "" {
		s.FinalAnswer = u.FinalAnswer
	}
	if u.ClearFailure {
		s.Failure = nil
	}
	if u.Failure != nil {
		s.Failure = u.Failure
	}
	if u.CountRetry {
		s.RetryCount++
	}
}

// Snapshot returns a copy of the state. Result rows are shared, not cloned;
// they are never modified after execution.
func (s *State) Snapshot() State {
	return *s
}
