package api

import (
	"context"
	"time"
)

// Runtime is the client surface of one scheduler instance.
type Runtime interface {
	// Submit schedules the registered function fn with args and returns the
	// handle of its future result immediately. Args of type Handle are
	// inputs: the task stays blocked until each one is terminal, and the
	// function receives the resolved values in their place. ctx bounds only
	// the submission call; the task itself runs detached.
	Submit(ctx context.Context, fn string, args ...any) (Handle, error)

	// Put stores a literal value and returns its handle, already resolved.
	Put(v any) (Handle, error)

	// Get blocks until h is terminal, then returns its value or its error.
	// A ctx deadline turns into *TimeoutError.
	Get(ctx context.Context, h Handle) (any, error)

	// GetAll is Get generalized over a list; values come back in input
	// order and a ctx deadline covers the whole batch.
	GetAll(ctx context.Context, hs []Handle) ([]any, error)

	// Wait blocks until numReady of hs are terminal or timeout elapses,
	// then partitions hs into (terminal, rest) keeping input order.
	// timeout <= 0 waits without limit; an elapsed timeout is a normal
	// return, not an error.
	Wait(ctx context.Context, hs []Handle, numReady int, timeout time.Duration) (ready, pending []Handle, err error)

	// Cancel fails a not-yet-finished task with *CancelledError and
	// reports whether anything changed. Cancelling a terminal or unknown
	// handle is a no-op.
	Cancel(h Handle, reason string) bool

	// Snapshot returns a point-in-time copy of observable state.
	Snapshot() Snapshot

	// Drain stops admissions and waits until every admitted task is
	// terminal, or ctx fails.
	Drain(ctx context.Context) error

	// Close stops admissions, cancels admitted work and releases the pool.
	Close() error
}

// Snapshot is a point-in-time copy of observable scheduler state.
type Snapshot struct {
	Origin     string     `json:"origin"`
	Workers    int        `json:"workers"`
	QueueDepth int        `json:"queue_depth"` // ready tasks not yet assigned
	Blocked    int        `json:"blocked"`
	Running    int        `json:"running"`
	Submitted  uint64     `json:"submitted"`
	Completed  uint64     `json:"completed"`
	Failed     uint64     `json:"failed"`
	Cancelled  uint64     `json:"cancelled"`
	Slots      []SlotInfo `json:"slots"`
	Tasks      []TaskInfo `json:"tasks,omitempty"`
	Taken      time.Time  `json:"taken"`
}

// SlotInfo describes one worker slot at snapshot time.
type SlotInfo struct {
	ID    int       `json:"id"`
	Task  uint64    `json:"task,omitempty"` // 0 when idle
	Fn    string    `json:"fn,omitempty"`
	Since time.Time `json:"since,omitempty"`
}

// TaskInfo describes one task known to the scheduler.
type TaskInfo struct {
	ID        uint64    `json:"id"`
	Fn        string    `json:"fn"`
	State     TaskState `json:"state"`
	Result    Handle    `json:"result"`
	DepsLeft  int       `json:"deps_left,omitempty"`
	Submitted time.Time `json:"submitted"`
}
