// Package codec provides the serialization codecs used by the value store's
// isolation mode and by snapshot export.
package codec

import "fmt"

// Content types understood by the registry.
const (
	ContentJSON  = "application/json"
	ContentCBOR  = "application/cbor"
	ContentProto = "application/x-protobuf"
)

// Codec defines a simple interface for marshaling typed values.
// Implementations are deterministic: equal inputs produce identical bytes.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Registry maps content types to codecs.
type Registry struct{ byType map[string]Codec }

// NewRegistry constructs a registry preloaded with the built-in codecs that
// need no initialization: JSON and Protobuf. CBOR can be added explicitly
// via Register.
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[string]Codec)}
	r.Register(JSON())
	r.Register(Proto())
	return r
}

// Register adds or replaces a codec.
func (r *Registry) Register(c Codec) { r.byType[c.ContentType()] = c }

// Get returns a codec by content type, or nil.
func (r *Registry) Get(contentType string) Codec { return r.byType[contentType] }

// ByName resolves the short codec names accepted in configuration.
func ByName(name string) (Codec, error) {
	switch name {
	case "json":
		return JSON(), nil
	case "cbor":
		return CBOR()
	default:
		return nil, fmt.Errorf("codec: unknown name %q", name)
	}
}
