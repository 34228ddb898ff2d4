package api

import (
	"fmt"

	"github.com/google/uuid"
)

// Handle identifies the future result of one submitted task or one value
// stored with Put. Handles are opaque, immutable and never reused: the
// origin half names the scheduler instance that minted the handle, the
// sequence half is monotonic within that instance.
//
// Handles are comparable and safe to use as map keys. The zero Handle is
// invalid everywhere.
type Handle struct {
	origin uuid.UUID
	seq    uint64
}

// NewHandle assembles a handle from an origin id and a sequence number.
// Schedulers mint sequence numbers starting at 1.
func NewHandle(origin uuid.UUID, seq uint64) Handle {
	return Handle{origin: origin, seq: seq}
}

// Origin returns the id of the scheduler instance that minted h.
func (h Handle) Origin() uuid.UUID { return h.origin }

// Seq returns the per-origin sequence number.
func (h Handle) Seq() uint64 { return h.seq }

// IsZero reports whether h is the invalid zero handle.
func (h Handle) IsZero() bool { return h == Handle{} }

// String renders h as "f<origin prefix>-<seq>", e.g. "f9f2c01ab-7".
func (h Handle) String() string {
	if h.IsZero() {
		return "f0-0"
	}
	return fmt.Sprintf("f%x-%d", h.origin[:4], h.seq)
}

// MarshalText keeps handles readable inside JSON-encoded snapshots.
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}
