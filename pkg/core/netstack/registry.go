package netstack

import (
    "errors"
    "fmt"
    "net"
    "sort"
    "sync"

    "go.uber.org/zap"

    "commitcast/pkg/event"
    "commitcast/pkg/peers"
    "commitcast/pkg/protocol"
    "commitcast/pkg/protocol/codec"
)

// DefaultMaxInbound caps concurrently open inbound connections per listener.
const DefaultMaxInbound = 256

var ErrListenerMismatch = errors.New("listener port mismatch")

// Provider is a local transport attached to a port. Every event received on
// the port is delivered to every provider, except that a provider does not
// receive its own packets back.
type Provider interface {
    ID() uint64
    Deliver(event.Event)
}

// Registry maps ports to the listeners shared by the providers bound to them.
type Registry struct {
    mu         sync.Mutex
    listeners  map[int]*PortListener
    maxInbound int
    localIP    net.IP
    decoder    *protocol.EventCodec
}

type RegistryOption func(*Registry)

// WithMaxInbound sets the per-listener inbound connection cap. n <= 0 disables it.
func WithMaxInbound(n int) RegistryOption { return func(r *Registry) { r.maxInbound = n } }

// WithLocalIP overrides the address used to recognise a provider's own packets.
func WithLocalIP(ip net.IP) RegistryOption { return func(r *Registry) { r.localIP = ip } }

func NewRegistry(opts ...RegistryOption) (*Registry, error) {
    creg, err := codec.NewRegistry()
    if err != nil { return nil, err }
    dec, err := protocol.NewEventCodec(creg, protocol.FormatCBOR, false)
    if err != nil { return nil, err }
    r := &Registry{listeners: make(map[int]*PortListener), maxInbound: DefaultMaxInbound, decoder: dec}
    for _, o := range opts { o(r) }
    if r.localIP == nil { r.localIP = peers.LocalIP() }
    return r, nil
}

var (
    defaultOnce sync.Once
    defaultReg  *Registry
)

// Default returns the process-wide registry.
func Default() *Registry {
    defaultOnce.Do(func() {
        r, err := NewRegistry()
        if err != nil { panic(fmt.Sprintf("netstack: default registry: %v", err)) }
        defaultReg = r
    })
    return defaultReg
}

// LocalIP is the address providers advertise as sender.
func (r *Registry) LocalIP() net.IP { return r.localIP }

// Acquire attaches p to the listener on port, binding a new one when none is
// running. A listener is keyed by the port it was requested for, or by the
// port actually bound when port is 0, which always binds a fresh ephemeral
// port. A running listener whose bound port differs from its key is fatal.
func (r *Registry) Acquire(port int, p Provider) (*PortListener, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    if port != 0 {
        if l := r.listeners[port]; l != nil {
            if l.Running() {
                if l.Port() != port {
                    return nil, fmt.Errorf("%w: listener for %d bound to %d", ErrListenerMismatch, port, l.Port())
                }
                l.add(p)
                return l, nil
            }
            delete(r.listeners, port)
        }
    }
    l, err := listen(port, r.maxInbound, r.localIP, r.decoder)
    if err != nil { return nil, fmt.Errorf("bind port %d: %w", port, err) }
    key := port
    if key == 0 { key = l.Port() }
    l.add(p)
    r.listeners[key] = l
    zap.L().Info("broadcast listener started", zap.Int("port", l.Port()), zap.Int("max_inbound", r.maxInbound))
    return l, nil
}

// Release detaches p from its listener and tears the listener down once no
// provider is left. It reports whether p was attached.
func (r *Registry) Release(p Provider) bool {
    r.mu.Lock()
    var found, empty *PortListener
    for port, l := range r.listeners {
        if !l.remove(p) { continue }
        found = l
        if l.providerCount() == 0 {
            delete(r.listeners, port)
            l.stop()
            empty = l
        }
        break
    }
    r.mu.Unlock()
    if empty != nil {
        empty.wait()
        zap.L().Info("broadcast listener stopped", zap.Int("port", empty.Port()))
    }
    return found != nil
}

// Get returns the listener on port, or nil.
func (r *Registry) Get(port int) *PortListener {
    r.mu.Lock(); defer r.mu.Unlock()
    return r.listeners[port]
}

// Ports lists the ports with a running listener.
func (r *Registry) Ports() []int {
    r.mu.Lock()
    out := make([]int, 0, len(r.listeners))
    for p := range r.listeners { out = append(out, p) }
    r.mu.Unlock()
    sort.Ints(out)
    return out
}

// Close tears down every listener regardless of attached providers.
func (r *Registry) Close() {
    r.mu.Lock()
    ls := r.listeners
    r.listeners = make(map[int]*PortListener)
    for _, l := range ls { l.stop() }
    r.mu.Unlock()
    for _, l := range ls { l.wait() }
}
