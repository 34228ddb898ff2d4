package sched

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ttsched/pkg/api"
	"ttsched/pkg/codec"
	"ttsched/pkg/config"
	"ttsched/pkg/objstore"
	"ttsched/pkg/registry"
)

// Scheduler owns the task table, the ready queue, the blocked index and the
// worker slots of one scheduling domain. It implements api.Runtime.
type Scheduler struct {
	origin     uuid.UUID
	reg        *registry.Registry
	store      *objstore.Store
	maxPending int

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu       sync.Mutex
	seq      uint64
	epoch    uint64 // readiness event ordinal
	tasks    map[uint64]*task
	byHandle map[api.Handle]uint64
	blocked  map[api.Handle][]uint64 // producer handle -> waiting task ids
	ready    readyHeap
	slots    []slotState
	work     []chan assignment

	pending int // admitted, not yet running
	live    int // admitted, not yet terminal
	closed  bool
	stopped bool
	quiet   chan struct{} // closed and replaced when live drops to zero

	cSubmitted uint64
	cCompleted uint64
	cFailed    uint64
	cCancelled uint64

	wg sync.WaitGroup
}

var _ api.Runtime = (*Scheduler)(nil)

// New builds a scheduler from cfg and starts its worker slots. A nil cfg
// means config.Default(); the registry is required.
func New(cfg *config.Config, reg *registry.Registry) (*Scheduler, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if reg == nil {
		return nil, fmt.Errorf("sched: nil registry")
	}

	var iso codec.Codec
	if cfg.Store.Isolation != "" && cfg.Store.Isolation != "off" {
		c, err := codec.ByName(cfg.Store.Isolation)
		if err != nil {
			return nil, err
		}
		iso = c
	}

	workers := cfg.PoolSize()
	s := &Scheduler{
		origin:     uuid.New(),
		reg:        reg,
		store:      objstore.New(objstore.Options{Shards: cfg.Store.Shards, Isolate: iso}),
		maxPending: cfg.MaxPending,
		tasks:      make(map[uint64]*task),
		byHandle:   make(map[api.Handle]uint64),
		blocked:    make(map[api.Handle][]uint64),
		slots:      make([]slotState, workers),
		work:       make([]chan assignment, workers),
		quiet:      make(chan struct{}),
	}
	s.baseCtx, s.baseCancel = context.WithCancel(context.Background())
	for i := range s.work {
		s.work[i] = make(chan assignment, 1)
		s.wg.Add(1)
		go s.worker(i)
	}

	zap.L().Info("scheduler started",
		zap.String("origin", s.origin.String()),
		zap.Int("workers", workers),
		zap.Int("max_pending", cfg.MaxPending),
		zap.String("isolation", cfg.Store.Isolation))
	return s, nil
}

// Submit admits fn with args and returns the handle of its future result.
// Handle-typed args are inputs; the task runs once all of them are terminal
// and none failed. The handle also comes back when an input is already
// failed at submission: the task is then failed without running, and Get
// surfaces the propagated error.
func (s *Scheduler) Submit(ctx context.Context, fn string, args ...any) (api.Handle, error) {
	if err := ctx.Err(); err != nil {
		return api.Handle{}, err
	}
	call, ok := s.reg.Lookup(fn)
	if !ok {
		return api.Handle{}, fmt.Errorf("%w: %q", api.ErrNoSuchFunction, fn)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return api.Handle{}, api.ErrClosed
	}
	if s.maxPending > 0 && s.pending >= s.maxPending {
		s.mu.Unlock()
		return api.Handle{}, fmt.Errorf("%w: %d admitted", api.ErrQueueFull, s.maxPending)
	}

	var deps []api.Handle
	seen := make(map[api.Handle]struct{})
	for _, a := range args {
		h, isHandle := a.(api.Handle)
		if !isHandle {
			continue
		}
		if !s.store.Contains(h) {
			s.mu.Unlock()
			return api.Handle{}, fmt.Errorf("%w: %s", api.ErrNoSuchHandle, h)
		}
		if _, dup := seen[h]; !dup {
			seen[h] = struct{}{}
			deps = append(deps, h)
		}
	}

	s.seq++
	t := &task{
		id:        s.seq,
		fn:        fn,
		call:      call,
		args:      append(make([]any, 0, len(args)), args...),
		deps:      deps,
		result:    api.NewHandle(s.origin, s.seq),
		slot:      -1,
		submitted: time.Now(),
	}
	if err := s.store.Declare(t.result); err != nil {
		s.mu.Unlock()
		return api.Handle{}, err
	}

	for _, h := range deps {
		if st, _ := s.store.Status(h); !st.Terminal() {
			t.waiting++
			s.blocked[h] = append(s.blocked[h], t.id)
		}
	}
	s.tasks[t.id] = t
	s.byHandle[t.result] = t.id
	s.cSubmitted++
	s.pending++
	s.live++

	switch {
	case t.waiting > 0:
		t.state = api.TaskBlocked
		zap.L().Debug("task blocked",
			zap.Uint64("task", t.id), zap.String("fn", fn), zap.Int("inputs", t.waiting))
	default:
		if dep, cause := s.failedDepLocked(t); cause != nil {
			s.settleLocked(settled{t: t, err: &api.DependencyFailedError{
				Task: t.id, Fn: t.fn, Dep: dep, Cause: cause,
			}})
		} else {
			s.epoch++
			t.readyAt = s.epoch
			t.state = api.TaskReady
			heap.Push(&s.ready, t)
			s.dispatchLocked()
		}
	}
	result := t.result
	s.mu.Unlock()
	return result, nil
}

// Put stores a literal value and returns its handle, already resolved.
func (s *Scheduler) Put(v any) (api.Handle, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return api.Handle{}, api.ErrClosed
	}
	s.seq++
	h := api.NewHandle(s.origin, s.seq)
	if err := s.store.Declare(h); err != nil {
		s.mu.Unlock()
		return api.Handle{}, err
	}
	err := s.store.Put(h, v)
	if err != nil {
		// keep the declared entry terminal so no reader can hang on it
		_ = s.store.PutError(h, err)
	}
	s.mu.Unlock()
	if err != nil {
		return api.Handle{}, err
	}
	return h, nil
}

// Get blocks until h is terminal and returns its value or stored error.
func (s *Scheduler) Get(ctx context.Context, h api.Handle) (any, error) {
	return s.store.Get(ctx, h)
}

// GetAll is Get over a list with a shared deadline.
func (s *Scheduler) GetAll(ctx context.Context, hs []api.Handle) ([]any, error) {
	return s.store.GetAll(ctx, hs)
}

// Wait partitions hs into (terminal, rest) once numReady entries resolved
// or timeout elapsed.
func (s *Scheduler) Wait(ctx context.Context, hs []api.Handle, numReady int, timeout time.Duration) ([]api.Handle, []api.Handle, error) {
	return s.store.Wait(ctx, hs, numReady, timeout)
}

// Store exposes the backing value store, mainly for its metrics.
func (s *Scheduler) Store() *objstore.Store { return s.store }

// Cancel fails a not-yet-finished task with *api.CancelledError. Blocked
// and queued tasks settle immediately; a running task has its context
// cancelled and keeps its normal completion path, so a function that
// ignores its context may still finish with a value. Terminal and unknown
// handles are no-ops.
func (s *Scheduler) Cancel(h api.Handle, reason string) bool {
	s.mu.Lock()
	id, ok := s.byHandle[h]
	if !ok {
		s.mu.Unlock()
		return false
	}
	t := s.tasks[id]
	switch t.state {
	case api.TaskBlocked, api.TaskReady:
		s.settleLocked(settled{t: t, err: &api.CancelledError{Task: t.id, Reason: reason}})
		s.mu.Unlock()
		return true
	case api.TaskRunning:
		t.cancelled = true
		t.cancelReason = reason
		cancel := t.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		zap.L().Debug("task cancel requested", zap.Uint64("task", id), zap.String("reason", reason))
		return true
	default:
		s.mu.Unlock()
		return false
	}
}

// Drain stops admissions and waits until every admitted task is terminal.
func (s *Scheduler) Drain(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	zap.L().Info("scheduler draining", zap.String("origin", s.origin.String()))
	return s.awaitQuiet(ctx)
}

// Close stops admissions, cancels all admitted work and releases the
// worker slots. Running functions get context cancellation and Close waits
// for them to return.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.stopped = true

	doomed := make([]*task, 0, s.pending)
	for _, t := range s.tasks {
		if t.state == api.TaskBlocked || t.state == api.TaskReady {
			doomed = append(doomed, t)
		}
	}
	sort.Slice(doomed, func(i, j int) bool { return doomed[i].id < doomed[j].id })
	for _, t := range doomed {
		if t.state.Terminal() {
			continue // already swept by an earlier cascade
		}
		s.settleLocked(settled{t: t, err: &api.CancelledError{Task: t.id, Reason: "scheduler closed"}})
	}
	s.baseCancel()
	s.mu.Unlock()

	_ = s.awaitQuiet(context.Background())
	for i := range s.work {
		close(s.work[i])
	}
	s.wg.Wait()
	zap.L().Info("scheduler closed", zap.String("origin", s.origin.String()))
	return nil
}

func (s *Scheduler) awaitQuiet(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.live == 0 {
			s.mu.Unlock()
			return nil
		}
		ch := s.quiet
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Snapshot returns a point-in-time copy of scheduler state.
func (s *Scheduler) Snapshot() api.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := api.Snapshot{
		Origin:    s.origin.String(),
		Workers:   len(s.slots),
		Submitted: s.cSubmitted,
		Completed: s.cCompleted,
		Failed:    s.cFailed,
		Cancelled: s.cCancelled,
		Taken:     time.Now(),
	}
	snap.Slots = make([]api.SlotInfo, len(s.slots))
	for i, sl := range s.slots {
		snap.Slots[i] = api.SlotInfo{ID: i, Task: sl.task, Fn: sl.fn, Since: sl.since}
	}

	ids := make([]uint64, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	snap.Tasks = make([]api.TaskInfo, 0, len(ids))
	for _, id := range ids {
		t := s.tasks[id]
		switch t.state {
		case api.TaskReady:
			snap.QueueDepth++
		case api.TaskBlocked:
			snap.Blocked++
		case api.TaskRunning:
			snap.Running++
		}
		snap.Tasks = append(snap.Tasks, api.TaskInfo{
			ID:        t.id,
			Fn:        t.fn,
			State:     t.state,
			Result:    t.result,
			DepsLeft:  t.waiting,
			Submitted: t.submitted,
		})
	}
	return snap
}

// settleLocked drives one task to its terminal state, writes its store
// entry, and ripples through dependents whose last input just resolved.
// Transitive failures are processed iteratively on the same worklist, all
// within one readiness event.
func (s *Scheduler) settleLocked(first settled) {
	s.epoch++
	work := []settled{first}
	for len(work) > 0 {
		it := work[0]
		work = work[1:]
		t := it.t
		if t.state.Terminal() {
			continue
		}
		if t.state != api.TaskRunning {
			s.pending--
		}

		outcome := it.err
		if outcome == nil {
			if werr := s.store.Put(t.result, it.val); werr != nil {
				// the value could not be stored (isolation encode refusal)
				outcome = &api.ExecutionError{Task: t.id, Fn: t.fn, Cause: werr}
			}
		}
		if outcome != nil {
			if werr := s.store.PutError(t.result, outcome); werr != nil {
				zap.L().Error("terminal write rejected",
					zap.Uint64("task", t.id), zap.String("handle", t.result.String()), zap.Error(werr))
			}
			t.state = api.TaskFailed
			s.cFailed++
			if errors.Is(outcome, api.ErrCancelled) {
				s.cCancelled++
			}
			zap.L().Debug("task failed",
				zap.Uint64("task", t.id), zap.String("fn", t.fn), zap.Error(outcome))
		} else {
			t.state = api.TaskCompleted
			s.cCompleted++
			zap.L().Debug("task completed", zap.Uint64("task", t.id), zap.String("fn", t.fn))
		}
		s.live--

		waiters := s.blocked[t.result]
		delete(s.blocked, t.result)
		for _, wid := range waiters {
			w, ok := s.tasks[wid]
			if !ok || w.state != api.TaskBlocked {
				continue
			}
			w.waiting--
			if w.waiting > 0 {
				continue
			}
			if dep, cause := s.failedDepLocked(w); cause != nil {
				work = append(work, settled{t: w, err: &api.DependencyFailedError{
					Task: w.id, Fn: w.fn, Dep: dep, Cause: cause,
				}})
				continue
			}
			w.readyAt = s.epoch
			w.state = api.TaskReady
			heap.Push(&s.ready, w)
		}
	}

	if s.live == 0 {
		close(s.quiet)
		s.quiet = make(chan struct{})
	}
}

// failedDepLocked returns the first failed input of t, scanning inputs in
// argument order so the reported dependency is deterministic.
func (s *Scheduler) failedDepLocked(t *task) (api.Handle, error) {
	for _, h := range t.deps {
		view, ok := s.store.Peek(h)
		if ok && view.Status == api.StatusFailed {
			return h, view.Err
		}
	}
	return api.Handle{}, nil
}

// dispatchLocked pairs runnable tasks with idle slots, lowest slot id
// first, until one side runs out.
func (s *Scheduler) dispatchLocked() {
	for s.ready.Len() > 0 {
		slot := s.idleSlotLocked()
		if slot < 0 {
			return
		}
		t := heap.Pop(&s.ready).(*task)
		if t.state != api.TaskReady {
			continue // cancelled while queued
		}
		ctx, cancel := context.WithCancel(s.baseCtx)
		t.state = api.TaskRunning
		t.slot = slot
		t.started = time.Now()
		t.cancel = cancel
		s.pending--
		s.slots[slot] = slotState{task: t.id, fn: t.fn, since: t.started}
		s.work[slot] <- assignment{t: t, ctx: ctx}
		zap.L().Debug("task dispatched",
			zap.Uint64("task", t.id), zap.String("fn", t.fn), zap.Int("slot", slot))
	}
}

func (s *Scheduler) idleSlotLocked() int {
	for i := range s.slots {
		if s.slots[i].task == 0 {
			return i
		}
	}
	return -1
}
