package executor

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidTask is returned by Submit for a task without an ID or target.
	ErrInvalidTask = errors.New("invalid task")

	// ErrDuplicateTask is returned by Submit when the task ID is already known.
	ErrDuplicateTask = errors.New("duplicate task id")
)

// Handle addresses the external process spawned for a single task.
// The timeout supervisor uses it to snapshot and kill exactly that process.
type Handle interface {
	// Snapshot captures best-effort diagnostic state (typically a core file).
	Snapshot(ctx context.Context) error

	// Kill forcefully terminates the process.
	Kill(ctx context.Context) error
}

// AttachFunc is handed to a Target so it can register the handle of the
// process it spawned. It may be called at most once per execution.
type AttachFunc func(Handle)

// Target is the work a task performs. It runs synchronously on a worker unit
// and returns the raw wait status of the external action it drove.
// A returned error means the target itself faulted, not that the process
// exited nonzero.
type Target func(ctx context.Context, args []string, attach AttachFunc) (Status, error)

// Task is an immutable description of one unit of work.
type Task struct {
	// ID is the stable identity of the task within a scheduler
	ID string

	// Args are passed to Target unchanged
	Args []string

	// Target performs the work
	Target Target

	// Callback is invoked by the scheduler for every outcome that is not an
	// execution error. It runs on the scheduler goroutine.
	Callback func(task *Task, outcome Outcome)
}

func (t *Task) validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil task", ErrInvalidTask)
	}
	if t.ID == "" {
		return fmt.Errorf("%w: task must have an id", ErrInvalidTask)
	}
	if t.Target == nil {
		return fmt.Errorf("%w: task %q must have a target", ErrInvalidTask, t.ID)
	}
	return nil
}

// TaskError wraps a fault raised by a task's target, including recovered panics.
type TaskError struct {
	TaskID string
	Err    error
}

// Error implements the error interface
func (e *TaskError) Error() string {
	return fmt.Sprintf("task %q: %v", e.TaskID, e.Err)
}

// Unwrap returns the wrapped error for errors.Is/As compatibility
func (e *TaskError) Unwrap() error {
	return e.Err
}

// Cause names what ended a task.
type Cause int

const (
	// CauseCompleted means the target returned on its own
	CauseCompleted Cause = iota
	// CauseTimedOut means the timeout supervisor ended the task
	CauseTimedOut
	// CauseError means the target faulted
	CauseError
)

// String returns the lower-case cause name
func (c Cause) String() string {
	switch c {
	case CauseCompleted:
		return "completed"
	case CauseTimedOut:
		return "timed_out"
	case CauseError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is produced exactly once per task and is read-only afterwards.
type Outcome struct {
	TaskID   string
	Status   Status
	TimedOut bool
	Start    time.Time
	End      time.Time

	// Err is set when the target faulted; Status is meaningless then.
	Err error
}

// Duration returns End - Start.
func (o Outcome) Duration() time.Duration {
	return o.End.Sub(o.Start)
}

// Cause returns the recorded terminal cause.
func (o Outcome) Cause() Cause {
	switch {
	case o.TimedOut:
		return CauseTimedOut
	case o.Err != nil:
		return CauseError
	default:
		return CauseCompleted
	}
}

// Completion is what a worker unit publishes after executing a task.
type Completion struct {
	Task   *Task
	Status Status
	Err    error
	End    time.Time
}
