package api

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestHandleIdentity(t *testing.T) {
	origin := uuid.New()
	a := NewHandle(origin, 1)
	b := NewHandle(origin, 2)
	if a == b {
		t.Fatalf("distinct seq must give distinct handles")
	}
	if a != NewHandle(origin, 1) {
		t.Fatalf("same origin+seq must compare equal")
	}
	if a.IsZero() || !(Handle{}).IsZero() {
		t.Fatalf("IsZero: got %v / %v", a.IsZero(), (Handle{}).IsZero())
	}
	if a.Seq() != 1 || a.Origin() != origin {
		t.Fatalf("accessors: seq=%d origin=%s", a.Seq(), a.Origin())
	}
}

func TestHandleText(t *testing.T) {
	h := NewHandle(uuid.New(), 7)
	txt, err := h.MarshalText()
	if err != nil || string(txt) != h.String() {
		t.Fatalf("MarshalText: %q err=%v", txt, err)
	}
}

func TestErrorChains(t *testing.T) {
	cause := errors.New("boom")
	exec := &ExecutionError{Task: 3, Fn: "work", Cause: cause}
	dep := &DependencyFailedError{Task: 4, Fn: "sum", Dep: NewHandle(uuid.New(), 3), Cause: exec}
	if !errors.Is(dep, cause) {
		t.Fatalf("dependency chain must reach the root cause")
	}
	var ee *ExecutionError
	if !errors.As(dep, &ee) || ee.Task != 3 {
		t.Fatalf("errors.As lost the upstream ExecutionError")
	}
	to := &TimeoutError{Op: "get", Elapsed: time.Second}
	if !errors.Is(to, ErrTimeout) {
		t.Fatalf("TimeoutError must match ErrTimeout")
	}
	ce := &CancelledError{Task: 9, Reason: "shutdown"}
	if !errors.Is(ce, ErrCancelled) {
		t.Fatalf("CancelledError must match ErrCancelled")
	}
}

func TestStateStrings(t *testing.T) {
	if TaskRunning.String() != "running" || TaskRunning.Terminal() {
		t.Fatalf("TaskRunning: %q terminal=%v", TaskRunning, TaskRunning.Terminal())
	}
	if !TaskFailed.Terminal() || !StatusReady.Terminal() || StatusPending.Terminal() {
		t.Fatalf("terminal classification wrong")
	}
}
