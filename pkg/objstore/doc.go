// Package objstore is the in-process value store backing future handles.
//
// Every handle owns exactly one entry. Entries are created Pending by
// Declare and move exactly once to Ready (Put) or Failed (PutError); any
// second terminal write is rejected with api.DuplicateWriteError and leaves
// the first write intact. Entries have no expiry and live for the lifetime
// of the store.
//
// Handles are hashed onto a fixed set of map shards so unrelated writes do
// not contend. Blocking readers park on a per-entry channel closed by the
// terminal write; Wait additionally observes a store-wide broadcast so it
// can re-scan its handle set whenever any entry resolves.
//
// With an isolation codec configured, Put encodes the value once and every
// Get decodes a fresh copy, so readers can never alias a stored value.
// Values must round-trip through the chosen codec; concrete Go types are
// widened the way that codec decodes into interface values.
package objstore
