// Package tcp provides the outbound connection and inbound listener
// primitives used by the broadcast transport.
package tcp

import (
    "bufio"
    "context"
    "net"
    "strconv"
    "sync"
    "time"

    "golang.org/x/net/netutil"
)

// DefaultDialTimeout bounds connection establishment to a peer.
const DefaultDialTimeout = 10 * time.Second

// Dialer opens outbound connections to peers.
type Dialer struct {
    Timeout   time.Duration
    KeepAlive time.Duration
}

// Dial connects to host:port. The returned Conn buffers writes until Send flushes.
func (d Dialer) Dial(ctx context.Context, ip net.IP, port int) (*Conn, error) {
    to := d.Timeout
    if to <= 0 { to = DefaultDialTimeout }
    nd := &net.Dialer{Timeout: to, KeepAlive: d.KeepAlive}
    c, err := nd.DialContext(ctx, "tcp", net.JoinHostPort(ip.String(), strconv.Itoa(port)))
    if err != nil { return nil, err }
    return NewConn(c), nil
}

// Conn is an outbound broadcast connection. Send writes one complete frame and flushes.
type Conn struct {
    mu sync.Mutex
    c  net.Conn
    bw *bufio.Writer
}

// NewConn wraps an established connection.
func NewConn(c net.Conn) *Conn { return &Conn{c: c, bw: bufio.NewWriter(c)} }

// Send writes all of b and flushes it as one unit.
func (c *Conn) Send(b []byte) error {
    c.mu.Lock(); defer c.mu.Unlock()
    if _, err := c.bw.Write(b); err != nil { return err }
    return c.bw.Flush()
}

func (c *Conn) Close() error { return c.c.Close() }

// Listen binds a TCP listener on port across all interfaces. Accepted
// connections have Nagle buffering disabled: the receiving side never
// replies, so there is nothing to coalesce. When maxInbound is positive, at
// most that many accepted connections are open at once.
func Listen(port, maxInbound int) (net.Listener, error) {
    l, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(port)))
    if err != nil { return nil, err }
    var out net.Listener = noDelayListener{l.(*net.TCPListener)}
    if maxInbound > 0 { out = netutil.LimitListener(out, maxInbound) }
    return out, nil
}

type noDelayListener struct{ *net.TCPListener }

func (l noDelayListener) Accept() (net.Conn, error) {
    c, err := l.AcceptTCP()
    if err != nil { return nil, err }
    _ = c.SetNoDelay(true)
    return c, nil
}

// Port returns the TCP port of a listener address, or 0.
func Port(a net.Addr) int {
    if ta, ok := a.(*net.TCPAddr); ok { return ta.Port }
    _, p, err := net.SplitHostPort(a.String())
    if err != nil { return 0 }
    n, _ := strconv.Atoi(p)
    return n
}
