package objstore

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"ttsched/pkg/api"
	"ttsched/pkg/codec"
)

func isoStore(t *testing.T, name string) *Store {
	t.Helper()
	c, err := codec.ByName(name)
	if err != nil {
		t.Fatalf("codec %q: %v", name, err)
	}
	return New(Options{Isolate: c})
}

func TestIsolationCopies(t *testing.T) {
	s := isoStore(t, "json")
	h := api.NewHandle(uuid.New(), 1)
	if err := s.Declare(h); err != nil {
		t.Fatalf("declare: %v", err)
	}
	if err := s.Put(h, map[string]any{"n": 1, "tag": "a"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	v1, err := s.Get(context.Background(), h)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// mutating one read must not leak into the next
	v1.(map[string]any)["tag"] = "mutated"
	v2, err := s.Get(context.Background(), h)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v2.(map[string]any)["tag"].(string) != "a" {
		t.Fatalf("reader mutation leaked into the store: %v", v2)
	}
	// JSON widens numbers to float64 on decode
	if v2.(map[string]any)["n"].(float64) != 1 {
		t.Fatalf("decoded number: %v", v2)
	}
	if st := s.Metrics(); st.EncodedBytes == 0 {
		t.Fatalf("EncodedBytes must grow in isolation mode")
	}
}

func TestIsolationRejectsUnencodable(t *testing.T) {
	s := isoStore(t, "json")
	h := api.NewHandle(uuid.New(), 1)
	if err := s.Declare(h); err != nil {
		t.Fatalf("declare: %v", err)
	}
	if err := s.Put(h, make(chan int)); err == nil {
		t.Fatalf("unencodable value must be rejected")
	}
	// the entry stays pending and accepts a good value
	if st, _ := s.Status(h); st != api.StatusPending {
		t.Fatalf("status after rejected put: %v", st)
	}
	if err := s.Put(h, "ok"); err != nil {
		t.Fatalf("put after rejection: %v", err)
	}
}

func TestIsolationCBOR(t *testing.T) {
	s := isoStore(t, "cbor")
	h := api.NewHandle(uuid.New(), 1)
	if err := s.Declare(h); err != nil {
		t.Fatalf("declare: %v", err)
	}
	if err := s.Put(h, map[string]any{"k": "v"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, err := s.Get(context.Background(), h)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	m, ok := v.(map[any]any)
	if !ok {
		// decoder may choose string keys depending on input
		ms, ok2 := v.(map[string]any)
		if !ok2 || ms["k"].(string) != "v" {
			t.Fatalf("cbor roundtrip: %#v", v)
		}
		return
	}
	if m["k"].(string) != "v" {
		t.Fatalf("cbor roundtrip: %#v", v)
	}
}
