package registry

import (
	"context"
	"testing"
)

func noop(ctx context.Context, args ...any) (any, error) { return nil, nil }

func TestRegisterLookup(t *testing.T) {
	r := New()
	if err := r.Register("work", noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if fn, ok := r.Lookup("work"); !ok || fn == nil {
		t.Fatalf("lookup failed after register")
	}
	if _, ok := r.Lookup("absent"); ok {
		t.Fatalf("lookup of absent name must miss")
	}
	if r.Len() != 1 {
		t.Fatalf("len: %d", r.Len())
	}
}

func TestRegisterRejects(t *testing.T) {
	r := New()
	if err := r.Register("", noop); err == nil {
		t.Fatalf("empty name must fail")
	}
	if err := r.Register("x", nil); err == nil {
		t.Fatalf("nil func must fail")
	}
	if err := r.Register("x", noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("x", noop); err == nil {
		t.Fatalf("duplicate must fail")
	}
}

func TestListSorted(t *testing.T) {
	r := New()
	for _, n := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(n, noop); err != nil {
			t.Fatalf("register %q: %v", n, err)
		}
	}
	got := r.List()
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("list: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("list order: %v", got)
		}
	}
}

func TestDeregister(t *testing.T) {
	r := New()
	r.MustRegister("gone", noop)
	if !r.Deregister("gone") {
		t.Fatalf("deregister must report presence")
	}
	if r.Deregister("gone") {
		t.Fatalf("second deregister must report absence")
	}
	if _, ok := r.Lookup("gone"); ok {
		t.Fatalf("lookup after deregister must miss")
	}
}

func TestMustRegisterPanics(t *testing.T) {
	r := New()
	r.MustRegister("a", noop)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate")
		}
	}()
	r.MustRegister("a", noop)
}
