// Package codec holds the payload serializers used for commit events.
package codec

import (
    "fmt"
    "sort"
    "sync"
)

// Codec marshals typed values for cross-node exchange.
// Implementations must produce output decodable by any peer running the same codec.
type Codec interface {
    ContentType() string
    Marshal(v any) ([]byte, error)
    Unmarshal(data []byte, v any) error
}

const (
    ContentJSON  = "application/json"
    ContentCBOR  = "application/cbor"
    ContentProto = "application/x-protobuf"
)

// Registry maps content types to codecs. Safe for concurrent use.
type Registry struct {
    mu     sync.RWMutex
    byType map[string]Codec
}

// NewRegistry returns a registry preloaded with JSON, CBOR and Protobuf.
func NewRegistry() (*Registry, error) {
    r := &Registry{byType: make(map[string]Codec)}
    r.Register(JSON())
    r.Register(Proto())
    c, err := CBOR()
    if err != nil { return nil, fmt.Errorf("init cbor: %w", err) }
    r.Register(c)
    return r, nil
}

// Register adds or replaces a codec.
func (r *Registry) Register(c Codec) {
    r.mu.Lock(); defer r.mu.Unlock()
    r.byType[c.ContentType()] = c
}

// Get returns a codec by content type, or nil.
func (r *Registry) Get(contentType string) Codec {
    r.mu.RLock(); defer r.mu.RUnlock()
    return r.byType[contentType]
}

// ContentTypes lists registered content types in sorted order.
func (r *Registry) ContentTypes() []string {
    r.mu.RLock(); defer r.mu.RUnlock()
    out := make([]string, 0, len(r.byType))
    for ct := range r.byType { out = append(out, ct) }
    sort.Strings(out)
    return out
}
