package transport

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "sync/atomic"
    "time"

    "go.uber.org/zap"

    "commitcast/pkg/core/bcastq"
    "commitcast/pkg/core/netstack"
    "commitcast/pkg/event"
    "commitcast/pkg/peers"
    "commitcast/pkg/pipeline"
    "commitcast/pkg/protocol"
    "commitcast/pkg/protocol/codec"
    "commitcast/pkg/transport/tcp"
)

var (
    ErrStarted = errors.New("transport already started")
    ErrClosed  = errors.New("transport closed")
)

// senderSeq hands out sender ids. Seeding with the start time keeps ids of
// successive processes on one host apart.
var senderSeq atomic.Uint64

func init() { senderSeq.Store(uint64(time.Now().UnixNano())) }

func nextSenderID() uint64 { return senderSeq.Add(1) }

type state int

const (
    stateNew state = iota
    stateStarted
    stateClosed
)

// Transport broadcasts events to its peers and delivers events received on
// its port to the local listener.
type Transport struct {
    id       uint64
    listener event.Listener
    reg      *netstack.Registry
    resolve  peers.Resolver
    now      func() time.Time
    set      *peers.Set

    mu         sync.RWMutex
    st         state
    configured bool
    opts       Options
    self       peers.Self
    enc        *protocol.EventCodec
    pl         *netstack.PortListener
    port       int
    pipe       *pipeline.Pipeline
}

// New creates an unconfigured transport delivering received events to l.
func New(l event.Listener, opts ...Option) *Transport {
    t := &Transport{id: nextSenderID(), listener: l, set: peers.NewSet(), resolve: peers.DefaultResolver, now: time.Now}
    for _, o := range opts {
        if o != nil { o(t) }
    }
    if t.reg == nil { t.reg = netstack.Default() }
    return t
}

// ID is the sender id stamped on every packet this transport sends.
func (t *Transport) ID() uint64 { return t.id }

// Deliver hands an event received from a peer to the local listener.
func (t *Transport) Deliver(ev event.Event) {
    if t.listener != nil { t.listener.Deliver(ev) }
}

// Configure parses the peer list and prepares the codec. Entries naming this
// process are skipped; an entry that cannot be parsed or resolved fails the
// whole call. It may be called again until Start. A repeated call that changes
// the pool, recovery or dial settings rebuilds every peer; otherwise peers
// named again keep their pools.
func (t *Transport) Configure(o Options) error {
    if err := o.validate(); err != nil { return err }
    f, _ := protocol.ParseFormat(o.Format)
    creg, err := codec.NewRegistry()
    if err != nil { return err }
    enc, err := protocol.NewEventCodec(creg, f, o.Compress)
    if err != nil { return err }

    t.mu.Lock()
    defer t.mu.Unlock()
    switch t.st {
    case stateStarted:
        return ErrStarted
    case stateClosed:
        return ErrClosed
    }
    self := t.selfFor(o.Port)
    ctx := context.Background()
    if o.DialTimeout > 0 {
        var cancel context.CancelFunc
        ctx, cancel = context.WithTimeout(ctx, o.DialTimeout)
        defer cancel()
    }
    targets, err := peers.Resolve(ctx, peers.SplitList(o.Peers), o.Port, self, t.resolve)
    if err != nil { return fmt.Errorf("configure peers: %w", err) }

    rebuild := t.configured && hostSettingsChanged(t.opts, o)
    t.opts, t.self, t.enc, t.configured = o, self, enc, true
    ho := t.hostOptionsLocked()
    if rebuild { t.set.Replace(nil, nil) }
    added, removed := t.set.Replace(targets, func(tg peers.Target) *peers.HostAddress {
        return peers.NewHostAddress(tg.Host, tg.IP, tg.Port, ho)
    })
    zap.L().Info("transport configured", zap.Uint64("sender_id", t.id), zap.Int("port", o.Port),
        zap.Int("peers", t.set.Len()), zap.Int("added", len(added)), zap.Int("removed", len(removed)),
        zap.Stringer("format", enc.Format()), zap.Int("workers", o.Workers))
    return nil
}

func hostSettingsChanged(a, b Options) bool {
    return a.PoolMaxTotal != b.PoolMaxTotal || a.PoolMaxIdle != b.PoolMaxIdle ||
        a.RecoveryInterval != b.RecoveryInterval || a.DialTimeout != b.DialTimeout
}

func (t *Transport) selfFor(port int) peers.Self { return peers.LocalSelf(port, t.reg.LocalIP()) }

// HostFactory returns a constructor for peers with the transport's pool and
// recovery settings. The settings are captured when HostFactory is called, so
// the constructor is safe to use under the peer set lock.
func (t *Transport) HostFactory() func(peers.Target) *peers.HostAddress {
    t.mu.RLock()
    ho := t.hostOptionsLocked()
    t.mu.RUnlock()
    return func(tg peers.Target) *peers.HostAddress { return peers.NewHostAddress(tg.Host, tg.IP, tg.Port, ho) }
}

func (t *Transport) hostOptionsLocked() peers.HostOptions {
    return peers.HostOptions{
        PoolMaxTotal:     t.opts.PoolMaxTotal,
        PoolMaxIdle:      t.opts.PoolMaxIdle,
        RecoveryInterval: t.opts.RecoveryInterval,
        Dialer:           tcp.Dialer{Timeout: t.opts.DialTimeout},
        Now:              t.now,
    }
}

// Start binds or joins the listener for the configured port and starts the
// send workers. A transport that was never configured uses DefaultOptions.
func (t *Transport) Start() error {
    t.mu.Lock()
    if !t.configured && t.st == stateNew {
        t.mu.Unlock()
        if err := t.Configure(DefaultOptions()); err != nil { return err }
        t.mu.Lock()
    }
    defer t.mu.Unlock()
    switch t.st {
    case stateStarted:
        return ErrStarted
    case stateClosed:
        return ErrClosed
    }
    pl, err := t.reg.Acquire(t.opts.Port, t)
    if err != nil { return err }
    t.pl, t.port = pl, pl.Port()
    if t.opts.Port == 0 { t.self.Port = t.port }
    if t.opts.Workers > 0 { t.pipe = pipeline.New(bcastq.New(), t.sendToAllPeers, t.opts.Workers) }
    t.st = stateStarted
    zap.L().Info("transport started", zap.Uint64("sender_id", t.id), zap.Int("port", t.port), zap.Int("workers", t.opts.Workers))
    return nil
}

// Broadcast encodes ev and sends it to every peer, either from a worker or,
// with no workers, before returning. Failures are logged, never returned.
// Broadcast is a no-op unless the transport is started.
func (t *Transport) Broadcast(ev event.Event) {
    t.mu.RLock()
    if t.st != stateStarted { t.mu.RUnlock(); return }
    enc, port, pipe := t.enc, t.port, t.pipe
    t.mu.RUnlock()

    payload, err := enc.Encode(ev)
    if err != nil {
        zap.L().Error("encode event failed", zap.Uint64("sender_id", t.id), zap.String("kind", string(ev.Kind)), zap.Error(err))
        return
    }
    pkt := protocol.Packet{Header: protocol.NewHeader(t.id, port, t.reg.LocalIP()), Payload: payload}
    frame, err := pkt.EncodeFrame()
    if err != nil {
        zap.L().Error("encode frame failed", zap.Uint64("sender_id", t.id), zap.Error(err))
        return
    }
    if pipe == nil {
        t.sendToAllPeers(frame)
        return
    }
    if !pipe.Submit(frame) { zap.L().Debug("broadcast dropped after close", zap.Uint64("sender_id", t.id)) }
}

// sendToAllPeers sends to a snapshot of the peer set so membership changes
// never wait on the network.
func (t *Transport) sendToAllPeers(b []byte) {
    for _, h := range t.set.Snapshot() { h.Send(b) }
}

// Close detaches from the listener, lets the workers drain queued packets
// and closes every peer pool. It is idempotent.
func (t *Transport) Close() {
    t.mu.Lock()
    if t.st == stateClosed { t.mu.Unlock(); return }
    started := t.st == stateStarted
    t.st = stateClosed
    pipe := t.pipe
    t.mu.Unlock()

    if started { t.reg.Release(t) }
    if pipe != nil { pipe.Close() }
    t.set.Close()
    zap.L().Info("transport closed", zap.Uint64("sender_id", t.id))
}

// Port is the bound port once started, otherwise the configured one.
func (t *Transport) Port() int {
    t.mu.RLock(); defer t.mu.RUnlock()
    if t.st == stateStarted { return t.port }
    return t.opts.Port
}

// Self describes this transport's endpoint for self-entry detection.
func (t *Transport) Self() peers.Self {
    t.mu.RLock(); defer t.mu.RUnlock()
    return t.self
}

func (t *Transport) Resolver() peers.Resolver { return t.resolve }

// AddressSet exposes the live peer set for membership updates.
func (t *Transport) AddressSet() *peers.Set { return t.set }

// Peers returns a status snapshot of every peer.
func (t *Transport) Peers() []peers.Status {
    hs := t.set.Snapshot()
    out := make([]peers.Status, 0, len(hs))
    for _, h := range hs { out = append(out, h.Status()) }
    return out
}

// Pending is the number of queued packets not yet picked up by a worker.
func (t *Transport) Pending() int {
    t.mu.RLock(); defer t.mu.RUnlock()
    if t.pipe == nil { return 0 }
    return t.pipe.Pending()
}

// Inbound is the number of open connections on the listener this transport
// is attached to. Transports sharing a port report the same count.
func (t *Transport) Inbound() int {
    t.mu.RLock(); defer t.mu.RUnlock()
    if t.st != stateStarted || t.pl == nil { return 0 }
    return t.pl.Conns()
}

// Started reports whether Start succeeded and Close has not been called.
func (t *Transport) Started() bool {
    t.mu.RLock(); defer t.mu.RUnlock()
    return t.st == stateStarted
}
