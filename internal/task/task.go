// Package task runs background work off the consuming context and routes each
// outcome back onto it exactly once.
//
// A Task is submitted to a Pool, executed by one worker under its own timeout,
// and its terminal Event is handed to the Router, which dispatches the consumer
// onto the single consuming context (a Loop, or the TUI bridge) and then
// releases the task's bookkeeping.
package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind categorizes tasks for logging and stats
type Kind string

const (
	KindSearch Kind = "search" // Catalog keyword search
	KindDetail Kind = "detail" // Title detail fetch
	KindImage  Kind = "image"  // Thumbnail or poster fetch
	KindVideo  Kind = "video"  // Episode stream resolve/download
)

var (
	// ErrPoolClosed is delivered to tasks submitted after, or still queued at, Stop
	ErrPoolClosed = errors.New("worker pool is shut down")

	// ErrNoWork is delivered when a task has no execution function
	ErrNoWork = errors.New("task has no work function")

	// ErrPanic wraps a panic raised by a work function
	ErrPanic = errors.New("task panicked")
)

// Func is the execution function bound to a task
type Func func(ctx context.Context) (any, error)

// Task is one unit of background work with a single success or failure outcome.
// Tasks are never reused; submit a new one for every action.
type Task struct {
	Kind        Kind
	Description string // Human-readable: "search Frieren"

	// Slot names the logical target this task fills ("detail", "row:abc").
	// Consumers use it to discard results superseded by a newer task.
	Slot string

	// Generation is the navigation generation at submission time
	Generation uint64

	// Timeout bounds Run; zero means no per-task deadline
	Timeout time.Duration

	Run Func
}

// New builds a task
func New(kind Kind, desc string, timeout time.Duration, run Func) *Task {
	return &Task{
		Kind:        kind,
		Description: desc,
		Timeout:     timeout,
		Run:         run,
	}
}

// InSlot tags the task with its slot and generation and returns it
func (t *Task) InSlot(slot string, generation uint64) *Task {
	t.Slot = slot
	t.Generation = generation
	return t
}

// Handle identifies a submitted task. IDs are never reused.
type Handle struct {
	ID         uuid.UUID
	Kind       Kind
	Slot       string
	Generation uint64
}

// IsZero reports whether h refers to no task
func (h Handle) IsZero() bool {
	return h.ID == uuid.Nil
}

// String returns a short form for logs
func (h Handle) String() string {
	if h.IsZero() {
		return "none"
	}
	return fmt.Sprintf("%s/%s", h.Kind, h.ID.String()[:8])
}

// Event is the terminal outcome of a task: Success(Payload) when Err is nil,
// Failure(Err) otherwise.
type Event struct {
	Handle   Handle
	Payload  any
	Err      error
	Duration time.Duration
}

// OK reports whether the task succeeded
func (e Event) OK() bool {
	return e.Err == nil
}

// Consumer receives a task's event on the consuming context
type Consumer func(Event)

// Dispatcher runs closures serially on the single consuming context.
// Dispatch returns false if the context no longer accepts work.
type Dispatcher interface {
	Dispatch(fn func()) bool
}

// Stats tracks pool and router metrics
type Stats struct {
	Workers   int
	Active    int
	Pending   int
	InFlight  int // Submitted but not yet released
	Submitted int64
	Completed int64
	Failed    int64
	Delivered int64 // Consumer callbacks invoked
	Released  int64
	Dropped   int64 // Duplicate completions rejected by the router
}

// String returns a summary string for stats
func (s Stats) String() string {
	return fmt.Sprintf("Active: %d/%d  Pending: %d  Done: %d  Failed: %d  Delivered: %d  Dropped: %d",
		s.Active, s.Workers, s.Pending, s.Completed, s.Failed, s.Delivered, s.Dropped)
}
