package sched

import (
	"context"
	"time"

	"ttsched/pkg/api"
	"ttsched/pkg/registry"
)

// task is the scheduler-side descriptor of one submission. All fields are
// guarded by the scheduler mutex except id, fn, call, args, deps and
// result, which are immutable after admission.
type task struct {
	id     uint64
	fn     string
	call   registry.Func
	args   []any        // as submitted; handle-typed entries are inputs
	deps   []api.Handle // unique handle inputs
	result api.Handle

	state        api.TaskState
	waiting      int    // inputs not yet terminal
	readyAt      uint64 // readiness event ordinal, keys the ready heap
	slot         int    // occupied slot, -1 otherwise
	cancel       context.CancelFunc // set while running
	cancelled    bool               // cancel requested while running
	cancelReason string

	submitted time.Time
	started   time.Time
}

// settled pairs a task with its outcome for the resolution worklist.
type settled struct {
	t   *task
	val any
	err error // non-nil marks failure
}

// assignment is what a worker slot receives: the task plus the context its
// function runs under.
type assignment struct {
	t   *task
	ctx context.Context
}

// slotState mirrors one worker slot for introspection.
type slotState struct {
	task  uint64 // 0 when idle
	fn    string
	since time.Time
}

// readyHeap orders runnable tasks by readiness event, then submission id.
// Tasks cancelled while queued stay in the heap and are skipped at pop.
type readyHeap []*task

func (h readyHeap) Len() int { return len(h) }

func (h readyHeap) Less(i, j int) bool {
	if h[i].readyAt != h[j].readyAt {
		return h[i].readyAt < h[j].readyAt
	}
	return h[i].id < h[j].id
}

func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *readyHeap) Push(x any) { *h = append(*h, x.(*task)) }

func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}
