package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// EventType represents the type of pipeline event.
type EventType string

const (
	// EventStageEntered indicates a step is about to run.
	EventStageEntered EventType = "stage_entered"
	// EventStepFailed indicates a step returned a failure.
	EventStepFailed EventType = "step_failed"
	// EventSucceeded indicates the run produced an answer.
	EventSucceeded EventType = "succeeded"
	// EventFailed indicates the run ended without an answer.
	EventFailed EventType = "failed"
)

// Event is emitted by the orchestrator as a run progresses.
// Subscribers (the CLI's verbose mode, the TUI) use it to show progress.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// RunID identifies the run that emitted the event.
	RunID string
	// Question is the question being processed.
	Question string
	// Stage is the stage the event refers to.
	Stage Stage
	// RetryCount is the retry counter at the time of the event.
	RetryCount int
	// Query is the current generated query, if any.
	Query string
	// Message carries the answer on success.
	Message string
	// Error contains failure details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// EventEmitter delivers pipeline events to a single subscriber.
// It is safe for concurrent use by multiple runs.
type EventEmitter struct {
	events       chan Event
	droppedCount atomic.Uint64
	logger       *zap.Logger

	// mu guards closed; Emit holds it for reading while sending.
	mu     sync.RWMutex
	closed bool
}

// NewEventEmitter creates a new EventEmitter with the given buffer size.
// Dropped events are reported to logger, which may be nil.
func NewEventEmitter(bufferSize int, logger *zap.Logger) *EventEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventEmitter{
		events: make(chan Event, bufferSize),
		logger: logger,
	}
}

// Emit sends an event to the events channel.
// If the channel is full, it waits briefly before dropping the event.
func (e *EventEmitter) Emit(event Event) {
	if e == nil {
		return
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}

	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			e.logger.Warn("event channel full, dropping event",
				zap.Uint64("dropped", count),
				zap.String("type", string(event.Type)))
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel. Events emitted after Close are discarded.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.events)
}
