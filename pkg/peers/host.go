package peers

import (
    "context"
    "errors"
    "net"
    "strconv"
    "sync"
    "time"

    "go.uber.org/zap"

    "commitcast/pkg/transport/tcp"
)

const (
    DefaultPoolMaxTotal     = 2
    DefaultPoolMaxIdle      = 2
    DefaultRecoveryInterval = 15 * time.Second

    // maxInfosIssued caps the follow-up diagnostics logged while a peer stays down.
    maxInfosIssued = 5
)

// HostOptions tune a HostAddress. Zero values fall back to the defaults.
type HostOptions struct {
    PoolMaxTotal     int
    PoolMaxIdle      int
    RecoveryInterval time.Duration
    Dialer           tcp.Dialer
    // Factory overrides dialing; used by tests.
    Factory Factory
    // Now overrides the clock; used by tests.
    Now func() time.Time
}

func (o HostOptions) withDefaults() HostOptions {
    if o.PoolMaxTotal == 0 { o.PoolMaxTotal = DefaultPoolMaxTotal }
    if o.PoolMaxIdle == 0 { o.PoolMaxIdle = DefaultPoolMaxIdle }
    if o.RecoveryInterval <= 0 { o.RecoveryInterval = DefaultRecoveryInterval }
    if o.Now == nil { o.Now = time.Now }
    return o
}

// HostAddress is one remote peer: its resolved address, a connection pool and
// the availability state used to back off from peers that are down.
type HostAddress struct {
    name     string
    ip       net.IP
    port     int
    pool     *Pool
    recovery time.Duration
    nowFn    func() time.Time

    mu          sync.Mutex
    available   bool
    probing     bool
    lastError   time.Time
    infosIssued int
    sent        uint64
    failed      uint64
}

// NewHostAddress creates an available peer with an empty pool. name is the
// host as configured and is only used for display.
func NewHostAddress(name string, ip net.IP, port int, opts HostOptions) *HostAddress {
    opts = opts.withDefaults()
    h := &HostAddress{name: name, ip: ip, port: port, recovery: opts.RecoveryInterval, nowFn: opts.Now, available: true}
    f := opts.Factory
    if f == nil {
        d := opts.Dialer
        f = func(ctx context.Context) (Conn, error) {
            c, err := d.Dial(ctx, ip, port)
            if err != nil { return nil, err }
            return c, nil
        }
    }
    h.pool = NewPool(f, opts.PoolMaxTotal, opts.PoolMaxIdle)
    return h
}

func (h *HostAddress) Key() Key      { return Key{IP: h.ip.String(), Port: h.port} }
func (h *HostAddress) Name() string  { return h.name }
func (h *HostAddress) IP() net.IP    { return h.ip }
func (h *HostAddress) Port() int     { return h.port }
func (h *HostAddress) Pool() *Pool   { return h.pool }
func (h *HostAddress) String() string { return net.JoinHostPort(h.ip.String(), strconv.Itoa(h.port)) }

// Available reports whether the last send attempt succeeded.
func (h *HostAddress) Available() bool {
    h.mu.Lock(); defer h.mu.Unlock()
    return h.available
}

// Send writes one encoded packet to the peer. It never returns an error:
// failures mark the peer unavailable and are logged. While unavailable, sends
// before the recovery deadline are dropped silently, and after it a single
// probe is let through at a time.
func (h *HostAddress) Send(b []byte) {
    h.mu.Lock()
    if !h.available {
        if h.probing || h.nowFn().Sub(h.lastError) < h.recovery { h.mu.Unlock(); return }
        h.probing = true
    }
    h.mu.Unlock()

    err := h.send(b)

    h.mu.Lock()
    defer h.mu.Unlock()
    h.probing = false
    if err == nil {
        h.sent++
        if !h.available {
            zap.L().Info("peer recovered", zap.String("peer", h.String()), zap.String("host", h.name))
        }
        h.available = true
        h.infosIssued = 0
        return
    }
    if errors.Is(err, ErrPoolClosed) { return }
    h.failed++
    if h.available {
        zap.L().Warn("peer unavailable", zap.String("peer", h.String()), zap.String("host", h.name),
            zap.Duration("retry_after", h.recovery), zap.Error(err))
    } else if h.infosIssued < maxInfosIssued {
        h.infosIssued++
        zap.L().Info("peer still unavailable", zap.String("peer", h.String()), zap.Int("notice", h.infosIssued),
            zap.Int("max_notices", maxInfosIssued), zap.Error(err))
    }
    h.available = false
    h.lastError = h.nowFn()
}

func (h *HostAddress) send(b []byte) error {
    c, err := h.pool.Get(context.Background())
    if err != nil {
        if !errors.Is(err, ErrPoolClosed) { h.pool.Clear() }
        return err
    }
    if err := c.Send(b); err != nil {
        h.pool.Invalidate(c)
        h.pool.Clear()
        return err
    }
    h.pool.Put(c)
    return nil
}

// Close closes the pool. Sends in flight fail without changing availability.
func (h *HostAddress) Close() { h.pool.Close() }

// Status is a point-in-time view of a peer for diagnostics.
type Status struct {
    Address     string    `json:"address"`
    Host        string    `json:"host"`
    Available   bool      `json:"available"`
    LastError   time.Time `json:"last_error,omitempty"`
    InfosIssued int       `json:"infos_issued"`
    Sent        uint64    `json:"sent"`
    Failed      uint64    `json:"failed"`
    Pool        PoolStats `json:"pool"`
}

func (h *HostAddress) Status() Status {
    h.mu.Lock()
    st := Status{Address: h.String(), Host: h.name, Available: h.available, LastError: h.lastError,
        InfosIssued: h.infosIssued, Sent: h.sent, Failed: h.failed}
    h.mu.Unlock()
    st.Pool = h.pool.Stats()
    return st
}
