package sched

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"ttsched/pkg/api"
)

// worker is the body of one slot goroutine. It loops over assignments
// until the scheduler closes its channel.
func (s *Scheduler) worker(slot int) {
	defer s.wg.Done()
	for a := range s.work[slot] {
		val, err := s.runTask(a.ctx, a.t)
		a.t.cancel()
		s.finish(slot, a.t, val, err)
	}
}

// runTask materializes the task's arguments and invokes its function,
// converting a panic into an error at the slot boundary.
func (s *Scheduler) runTask(ctx context.Context, t *task) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			val = nil
			err = fmt.Errorf("panic: %v", r)
			zap.L().Warn("task panicked",
				zap.Uint64("task", t.id), zap.String("fn", t.fn), zap.Any("panic", r))
		}
	}()

	args, err := s.materialize(t)
	if err != nil {
		return nil, err
	}
	return t.call(ctx, args...)
}

// materialize replaces handle-typed arguments with their resolved values.
// Every input is terminal and non-failed by the time a task is dispatched,
// so a pending or failed input here means a scheduler bug.
func (s *Scheduler) materialize(t *task) ([]any, error) {
	args := make([]any, len(t.args))
	for i, a := range t.args {
		h, isHandle := a.(api.Handle)
		if !isHandle {
			args[i] = a
			continue
		}
		view, ok := s.store.Peek(h)
		if !ok || !view.Status.Terminal() || view.Err != nil {
			return nil, fmt.Errorf("input %s not resolved at dispatch (status %s)", h, view.Status)
		}
		args[i] = view.Value
	}
	return args, nil
}

// finish releases the slot, settles the task and refills idle slots. This
// is the only path through which workers touch scheduler state.
func (s *Scheduler) finish(slot int, t *task, val any, err error) {
	s.mu.Lock()
	s.slots[slot] = slotState{}
	t.slot = -1
	t.cancel = nil

	out := settled{t: t, val: val}
	if err != nil {
		switch {
		case t.cancelled:
			out.err = &api.CancelledError{Task: t.id, Reason: t.cancelReason}
		case s.stopped && errors.Is(err, context.Canceled):
			out.err = &api.CancelledError{Task: t.id, Reason: "scheduler closed"}
		default:
			out.err = &api.ExecutionError{Task: t.id, Fn: t.fn, Cause: err}
		}
	}
	s.settleLocked(out)
	if !s.stopped {
		s.dispatchLocked()
	}
	s.mu.Unlock()
}
