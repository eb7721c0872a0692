package netstack

import (
    "errors"
    "net"
    "sync"
    "sync/atomic"
    "time"

    "go.uber.org/zap"

    "commitcast/pkg/protocol"
    "commitcast/pkg/transport/tcp"
)

// PortListener accepts inbound broadcast connections on one port and fans
// decoded events out to the providers attached to it.
type PortListener struct {
    port    int
    ln      net.Listener
    localIP net.IP
    decoder *protocol.EventCodec
    running atomic.Bool

    pmu       sync.RWMutex
    providers []Provider

    cmu   sync.Mutex
    conns map[net.Conn]struct{}
    conWG sync.WaitGroup

    loopDone chan struct{}
}

func listen(port, maxInbound int, localIP net.IP, dec *protocol.EventCodec) (*PortListener, error) {
    ln, err := tcp.Listen(port, maxInbound)
    if err != nil { return nil, err }
    l := &PortListener{port: tcp.Port(ln.Addr()), ln: ln, localIP: localIP, decoder: dec,
        conns: make(map[net.Conn]struct{}), loopDone: make(chan struct{})}
    l.running.Store(true)
    go l.acceptLoop()
    return l, nil
}

func (l *PortListener) Port() int        { return l.port }
func (l *PortListener) Addr() net.Addr   { return l.ln.Addr() }
func (l *PortListener) Running() bool    { return l.running.Load() }

// Conns is the number of open inbound connections.
func (l *PortListener) Conns() int {
    l.cmu.Lock(); defer l.cmu.Unlock()
    return len(l.conns)
}

func (l *PortListener) add(p Provider) {
    l.pmu.Lock(); defer l.pmu.Unlock()
    for _, x := range l.providers {
        if x == p { return }
    }
    l.providers = append(l.providers, p)
}

func (l *PortListener) remove(p Provider) bool {
    l.pmu.Lock(); defer l.pmu.Unlock()
    for i, x := range l.providers {
        if x == p {
            l.providers = append(l.providers[:i], l.providers[i+1:]...)
            return true
        }
    }
    return false
}

func (l *PortListener) providerCount() int {
    l.pmu.RLock(); defer l.pmu.RUnlock()
    return len(l.providers)
}

func (l *PortListener) snapshot() []Provider {
    l.pmu.RLock(); defer l.pmu.RUnlock()
    return append([]Provider(nil), l.providers...)
}

func (l *PortListener) acceptLoop() {
    defer close(l.loopDone)
    var delay time.Duration
    for {
        c, err := l.ln.Accept()
        if err != nil {
            if !l.running.Load() || errors.Is(err, net.ErrClosed) { return }
            if delay == 0 { delay = 5 * time.Millisecond } else { delay *= 2 }
            if delay > time.Second { delay = time.Second }
            zap.L().Warn("accept failed", zap.Int("port", l.port), zap.Duration("retry_in", delay), zap.Error(err))
            time.Sleep(delay)
            continue
        }
        delay = 0
        if !l.track(c) { _ = c.Close(); continue }
        go l.handleConn(c)
    }
}

func (l *PortListener) track(c net.Conn) bool {
    l.cmu.Lock(); defer l.cmu.Unlock()
    if !l.running.Load() { return false }
    l.conns[c] = struct{}{}
    l.conWG.Add(1)
    return true
}

func (l *PortListener) untrack(c net.Conn) {
    l.cmu.Lock()
    delete(l.conns, c)
    l.cmu.Unlock()
    l.conWG.Done()
}

// stop marks the listener stopped, closes the socket to unblock Accept and
// closes every live inbound connection.
func (l *PortListener) stop() {
    if !l.running.CompareAndSwap(true, false) { return }
    _ = l.ln.Close()
    l.cmu.Lock()
    for c := range l.conns { _ = c.Close() }
    l.cmu.Unlock()
}

// wait blocks until the accept loop and every receiver have exited.
func (l *PortListener) wait() {
    <-l.loopDone
    l.conWG.Wait()
}
