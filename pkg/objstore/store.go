package objstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ttsched/pkg/api"
	"ttsched/pkg/codec"
)

// Options tunes a Store.
type Options struct {
	Shards  int         // number of map shards (default: 64)
	Isolate codec.Codec // nil stores references; non-nil copies values through the codec
}

func (o *Options) withDefaults() Options {
	res := *o
	if res.Shards <= 0 {
		res.Shards = 64
	}
	return res
}

// Store holds one entry per declared handle.
type Store struct {
	opts   Options
	shards []shard
	iso    codec.Codec

	nowFn func() time.Time

	// resolve broadcast for Wait: closed and replaced on every terminal
	// write so parked waiters re-scan their handle sets
	bmu    sync.Mutex
	notify chan struct{}

	// metrics
	mDeclared atomic.Uint64
	mPuts     atomic.Uint64
	mFails    atomic.Uint64
	mGets     atomic.Uint64
	mHits     atomic.Uint64
	mMisses   atomic.Uint64
	mWaits    atomic.Uint64
	mTimeouts atomic.Uint64
	mEncBytes atomic.Uint64
}

type shard struct {
	mu sync.RWMutex
	m  map[api.Handle]*entry
}

// entry fields other than status are written exactly once, before done is
// closed; readers that passed the done barrier may read them without locks.
type entry struct {
	status     api.EntryStatus
	val        any
	enc        []byte
	err        error
	resolvedAt time.Time
	done       chan struct{}
}

// View is a non-blocking read of one entry.
type View struct {
	Handle api.Handle
	Status api.EntryStatus
	Value  any
	Err    error
}

func New(opts Options) *Store {
	opts = opts.withDefaults()
	s := &Store{
		opts:   opts,
		shards: make([]shard, opts.Shards),
		iso:    opts.Isolate,
		nowFn:  time.Now,
		notify: make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i].m = make(map[api.Handle]*entry, 64)
	}
	return s
}

func (s *Store) shardFor(h api.Handle) *shard {
	// FNV-1a over origin bytes then sequence bytes
	var x uint64 = 1469598103934665603
	origin := h.Origin()
	for _, b := range origin {
		x ^= uint64(b)
		x *= 1099511628211
	}
	seq := h.Seq()
	for i := 0; i < 8; i++ {
		x ^= (seq >> (8 * i)) & 0xff
		x *= 1099511628211
	}
	return &s.shards[int(x%uint64(len(s.shards)))]
}

func (s *Store) notifyCh() <-chan struct{} {
	s.bmu.Lock()
	ch := s.notify
	s.bmu.Unlock()
	return ch
}

func (s *Store) broadcast() {
	s.bmu.Lock()
	close(s.notify)
	s.notify = make(chan struct{})
	s.bmu.Unlock()
}

// Declare creates the Pending entry for h. Handles are never reused, so an
// existing entry of any status makes Declare fail with DuplicateWriteError.
func (s *Store) Declare(h api.Handle) error {
	if h.IsZero() {
		return fmt.Errorf("%w: zero handle", api.ErrNoSuchHandle)
	}
	sh := s.shardFor(h)
	sh.mu.Lock()
	if e, ok := sh.m[h]; ok {
		st := e.status
		sh.mu.Unlock()
		return &api.DuplicateWriteError{Handle: h, Status: st}
	}
	sh.m[h] = &entry{status: api.StatusPending, done: make(chan struct{})}
	sh.mu.Unlock()
	s.mDeclared.Add(1)
	return nil
}

// Put resolves h to v. Exactly one terminal write per handle is accepted.
func (s *Store) Put(h api.Handle, v any) error {
	var enc []byte
	if s.iso != nil {
		b, err := s.iso.Marshal(v)
		if err != nil {
			return fmt.Errorf("isolate %s: %w", h, err)
		}
		enc = b
	}

	sh := s.shardFor(h)
	sh.mu.Lock()
	e, ok := sh.m[h]
	if !ok {
		sh.mu.Unlock()
		return fmt.Errorf("%w: %s", api.ErrNoSuchHandle, h)
	}
	if e.status != api.StatusPending {
		st := e.status
		sh.mu.Unlock()
		return &api.DuplicateWriteError{Handle: h, Status: st}
	}
	if s.iso != nil {
		e.enc = enc
	} else {
		e.val = v
	}
	e.resolvedAt = s.nowFn()
	e.status = api.StatusReady
	close(e.done)
	sh.mu.Unlock()

	s.mPuts.Add(1)
	if enc != nil {
		s.mEncBytes.Add(uint64(len(enc)))
	}
	s.broadcast()
	return nil
}

// PutError resolves h to a failure. err must be non-nil.
func (s *Store) PutError(h api.Handle, err error) error {
	if err == nil {
		return fmt.Errorf("objstore: nil error for %s", h)
	}
	sh := s.shardFor(h)
	sh.mu.Lock()
	e, ok := sh.m[h]
	if !ok {
		sh.mu.Unlock()
		return fmt.Errorf("%w: %s", api.ErrNoSuchHandle, h)
	}
	if e.status != api.StatusPending {
		st := e.status
		sh.mu.Unlock()
		return &api.DuplicateWriteError{Handle: h, Status: st}
	}
	e.err = err
	e.resolvedAt = s.nowFn()
	e.status = api.StatusFailed
	close(e.done)
	sh.mu.Unlock()

	s.mFails.Add(1)
	s.broadcast()
	return nil
}

// Contains reports whether h has an entry of any status.
func (s *Store) Contains(h api.Handle) bool {
	_, ok := s.Status(h)
	return ok
}

// Status returns the entry status for h.
func (s *Store) Status(h api.Handle) (api.EntryStatus, bool) {
	sh := s.shardFor(h)
	sh.mu.RLock()
	e, ok := sh.m[h]
	var st api.EntryStatus
	if ok {
		st = e.status
	}
	sh.mu.RUnlock()
	return st, ok
}

// Peek reads h without blocking. Pending entries come back with only the
// status set.
func (s *Store) Peek(h api.Handle) (View, bool) {
	sh := s.shardFor(h)
	sh.mu.RLock()
	e, ok := sh.m[h]
	sh.mu.RUnlock()
	if !ok {
		return View{}, false
	}
	v := View{Handle: h, Status: e.status}
	if !e.status.Terminal() {
		return v, true
	}
	val, err := s.read(e)
	v.Value, v.Err = val, err
	return v, true
}

// Get blocks until h is terminal, then returns its value or its stored
// error. A ctx deadline turns into *api.TimeoutError; plain cancellation
// comes back as ctx.Err().
func (s *Store) Get(ctx context.Context, h api.Handle) (any, error) {
	return s.get(ctx, h, s.nowFn(), "get")
}

// GetAll is Get over a list: values in input order, first failure wins, and
// the ctx deadline covers the whole batch.
func (s *Store) GetAll(ctx context.Context, hs []api.Handle) ([]any, error) {
	start := s.nowFn()
	out := make([]any, len(hs))
	for i, h := range hs {
		v, err := s.get(ctx, h, start, "getall")
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *Store) get(ctx context.Context, h api.Handle, start time.Time, op string) (any, error) {
	sh := s.shardFor(h)
	sh.mu.RLock()
	e, ok := sh.m[h]
	sh.mu.RUnlock()
	s.mGets.Add(1)
	if !ok {
		s.mMisses.Add(1)
		return nil, fmt.Errorf("%w: %s", api.ErrNoSuchHandle, h)
	}

	select {
	case <-e.done:
	default:
		s.mWaits.Add(1)
		select {
		case <-e.done:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				s.mTimeouts.Add(1)
				return nil, &api.TimeoutError{Op: op, Elapsed: s.nowFn().Sub(start)}
			}
			return nil, ctx.Err()
		}
	}

	s.mHits.Add(1)
	return s.read(e)
}

// read extracts the terminal result. Entry fields are immutable once a
// terminal status has been observed, whether through the done channel or
// under the shard lock, so read takes no lock.
func (s *Store) read(e *entry) (any, error) {
	if e.status == api.StatusFailed {
		return nil, e.err
	}
	if s.iso == nil {
		return e.val, nil
	}
	var out any
	if err := s.iso.Unmarshal(e.enc, &out); err != nil {
		return nil, fmt.Errorf("isolate decode: %w", err)
	}
	return out, nil
}

// Wait blocks until numReady of hs are terminal or timeout elapses, then
// partitions hs into (terminal, rest) preserving input order. An elapsed
// timeout is a normal return; timeout <= 0 means no limit. numReady must be
// within [1, len(hs)] and every handle must have an entry.
func (s *Store) Wait(ctx context.Context, hs []api.Handle, numReady int, timeout time.Duration) (ready, pending []api.Handle, err error) {
	if numReady < 1 || numReady > len(hs) {
		return nil, nil, fmt.Errorf("objstore: numReady %d out of range [1,%d]", numReady, len(hs))
	}
	for _, h := range hs {
		if !s.Contains(h) {
			return nil, nil, fmt.Errorf("%w: %s", api.ErrNoSuchHandle, h)
		}
	}

	var timech <-chan time.Time
	if timeout > 0 {
		tm := time.NewTimer(timeout)
		defer tm.Stop()
		timech = tm.C
	}

	blocked := false
	for {
		// snapshot the broadcast channel before scanning so a resolve
		// between scan and park is never missed
		notify := s.notifyCh()

		ready, pending = ready[:0], pending[:0]
		for _, h := range hs {
			if st, _ := s.Status(h); st.Terminal() {
				ready = append(ready, h)
			} else {
				pending = append(pending, h)
			}
		}
		if len(ready) >= numReady {
			return ready, pending, nil
		}
		if !blocked {
			blocked = true
			s.mWaits.Add(1)
		}

		select {
		case <-notify:
		case <-timech:
			return ready, pending, nil
		case <-ctx.Done():
			return ready, pending, ctx.Err()
		}
	}
}

// Stats is a point-in-time copy of store counters.
type Stats struct {
	Declared     uint64
	Ready        uint64
	Failed       uint64
	Gets         uint64
	Hits         uint64
	Misses       uint64
	Waits        uint64
	Timeouts     uint64
	EncodedBytes uint64
}

// Metrics returns a counter snapshot without blocking store operations.
func (s *Store) Metrics() Stats {
	return Stats{
		Declared:     s.mDeclared.Load(),
		Ready:        s.mPuts.Load(),
		Failed:       s.mFails.Load(),
		Gets:         s.mGets.Load(),
		Hits:         s.mHits.Load(),
		Misses:       s.mMisses.Load(),
		Waits:        s.mWaits.Load(),
		Timeouts:     s.mTimeouts.Load(),
		EncodedBytes: s.mEncBytes.Load(),
	}
}
