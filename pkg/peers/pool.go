package peers

import (
    "context"
    "errors"
    "sync"
)

var ErrPoolClosed = errors.New("connection pool closed")

// Conn is a connection the pool hands out.
type Conn interface {
    Send([]byte) error
    Close() error
}

// Factory opens a new connection to the pool's peer.
type Factory func(ctx context.Context) (Conn, error)

// Pooled is a connection borrowed from a Pool. It must be handed back with
// Put or Invalidate exactly once.
type Pooled struct {
    Conn
    gen uint64
}

// Pool bounds the outbound connections to one peer.
//
// Get never times out while waiting for a slot: maxTotal bounds concurrency
// and peer failure is handled by HostAddress availability, not by the pool.
type Pool struct {
    mu       sync.Mutex
    cond     *sync.Cond
    factory  Factory
    maxTotal int
    maxIdle  int

    idle     []*Pooled
    borrowed map[*Pooled]struct{}
    dialing  int
    gen      uint64 // bumped by Clear; older connections are retired on return
    closed   bool
}

// NewPool builds a lazy pool. maxTotal <= 0 means unbounded; maxIdle < 0 is treated as 0.
func NewPool(f Factory, maxTotal, maxIdle int) *Pool {
    if maxIdle < 0 { maxIdle = 0 }
    p := &Pool{factory: f, maxTotal: maxTotal, maxIdle: maxIdle, borrowed: make(map[*Pooled]struct{})}
    p.cond = sync.NewCond(&p.mu)
    return p
}

func (p *Pool) open() int { return len(p.idle) + len(p.borrowed) + p.dialing }

// Get returns an idle connection or dials a new one, blocking until a slot is
// free or the pool is closed. ctx only bounds dialing.
func (p *Pool) Get(ctx context.Context) (*Pooled, error) {
    p.mu.Lock()
    for {
        if p.closed { p.mu.Unlock(); return nil, ErrPoolClosed }
        if n := len(p.idle); n > 0 {
            pc := p.idle[n-1]
            p.idle = p.idle[:n-1]
            p.borrowed[pc] = struct{}{}
            p.mu.Unlock()
            return pc, nil
        }
        if p.maxTotal <= 0 || p.open() < p.maxTotal { break }
        p.cond.Wait()
    }
    p.dialing++
    p.mu.Unlock()

    c, err := p.factory(ctx)

    p.mu.Lock()
    p.dialing--
    if err != nil {
        p.cond.Signal()
        p.mu.Unlock()
        return nil, err
    }
    if p.closed {
        p.cond.Signal()
        p.mu.Unlock()
        _ = c.Close()
        return nil, ErrPoolClosed
    }
    pc := &Pooled{Conn: c, gen: p.gen}
    p.borrowed[pc] = struct{}{}
    p.mu.Unlock()
    return pc, nil
}

// Put returns a healthy connection. It is closed instead of kept when the
// pool is closed, was cleared since the connection was created, or already
// holds maxIdle idle connections.
func (p *Pool) Put(pc *Pooled) {
    p.mu.Lock()
    if _, ok := p.borrowed[pc]; !ok { p.mu.Unlock(); return }
    delete(p.borrowed, pc)
    keep := !p.closed && pc.gen == p.gen && len(p.idle) < p.maxIdle
    if keep { p.idle = append(p.idle, pc) }
    p.cond.Signal()
    p.mu.Unlock()
    if !keep { _ = pc.Close() }
}

// Invalidate discards a broken connection and frees its slot.
func (p *Pool) Invalidate(pc *Pooled) {
    p.mu.Lock()
    delete(p.borrowed, pc)
    p.cond.Signal()
    p.mu.Unlock()
    _ = pc.Close()
}

// Clear closes every idle connection and retires the borrowed ones when they
// come back.
func (p *Pool) Clear() {
    p.mu.Lock()
    p.gen++
    idle := p.idle
    p.idle = nil
    p.cond.Broadcast()
    p.mu.Unlock()
    for _, pc := range idle { _ = pc.Close() }
}

// Close closes all idle and borrowed connections and wakes every blocked Get.
// In-flight sends on borrowed connections fail. Close is idempotent.
func (p *Pool) Close() {
    p.mu.Lock()
    if p.closed { p.mu.Unlock(); return }
    p.closed = true
    p.gen++
    conns := p.idle
    p.idle = nil
    for pc := range p.borrowed { conns = append(conns, pc) }
    p.cond.Broadcast()
    p.mu.Unlock()
    for _, pc := range conns { _ = pc.Close() }
}

// Closed reports whether Close was called.
func (p *Pool) Closed() bool {
    p.mu.Lock(); defer p.mu.Unlock()
    return p.closed
}

// PoolStats is a snapshot of pool occupancy.
type PoolStats struct {
    Idle     int `json:"idle"`
    Borrowed int `json:"borrowed"`
    Open     int `json:"open"`
}

func (p *Pool) Stats() PoolStats {
    p.mu.Lock(); defer p.mu.Unlock()
    return PoolStats{Idle: len(p.idle), Borrowed: len(p.borrowed), Open: p.open()}
}
