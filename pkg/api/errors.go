package api

import (
	"errors"
	"fmt"
	"time"
)

// Sentinels for errors.Is matching. The typed errors below wrap the ones
// that describe a category rather than a single condition.
var (
	// ErrTimeout marks a Get or GetAll that hit its deadline. The awaited
	// tasks keep running; the call may be retried.
	ErrTimeout = errors.New("ttsched: timed out")

	// ErrCancelled marks a task failed by Cancel rather than by running.
	ErrCancelled = errors.New("ttsched: cancelled")

	// ErrClosed is returned by Submit and Put after Drain or Close.
	ErrClosed = errors.New("ttsched: scheduler closed")

	// ErrQueueFull is returned by Submit when the admission bound is hit.
	ErrQueueFull = errors.New("ttsched: pending queue full")

	// ErrNoSuchFunction is returned by Submit for an unregistered name.
	ErrNoSuchFunction = errors.New("ttsched: no such function")

	// ErrNoSuchHandle is returned when a handle has no store entry, e.g. a
	// handle minted by a different scheduler instance.
	ErrNoSuchHandle = errors.New("ttsched: no such handle")
)

// ExecutionError wraps the error, or the recovered panic, produced by a
// task's own function.
type ExecutionError struct {
	Task  uint64
	Fn    string
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("task %d (%s): %v", e.Task, e.Fn, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// DependencyFailedError marks a task failed without execution because one of
// its input futures resolved Failed. Cause carries the upstream error, so
// errors.As walks the chain back to the task that actually ran and failed.
type DependencyFailedError struct {
	Task  uint64
	Fn    string
	Dep   Handle
	Cause error
}

func (e *DependencyFailedError) Error() string {
	return fmt.Sprintf("task %d (%s): input %s failed: %v", e.Task, e.Fn, e.Dep, e.Cause)
}

func (e *DependencyFailedError) Unwrap() error { return e.Cause }

// TimeoutError reports a blocking retrieval that gave up. It is local to
// the call: no task state changes.
type TimeoutError struct {
	Op      string // "get" or "getall"
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Op, e.Elapsed)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// CancelledError is stored as the failure of a cancelled task.
type CancelledError struct {
	Task   uint64
	Reason string
}

func (e *CancelledError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("task %d cancelled", e.Task)
	}
	return fmt.Sprintf("task %d cancelled: %s", e.Task, e.Reason)
}

func (e *CancelledError) Unwrap() error { return ErrCancelled }

// DuplicateWriteError reports a second terminal write to a store entry. The
// first write stays intact; seeing this error means a scheduler bug, not a
// recoverable condition.
type DuplicateWriteError struct {
	Handle Handle
	Status EntryStatus // status the entry already had
}

func (e *DuplicateWriteError) Error() string {
	return fmt.Sprintf("duplicate write to %s (already %s)", e.Handle, e.Status)
}
