// Package stream reads broadcast frames from a byte stream.
package stream

import (
    "bufio"
    "io"
    "net"

    "commitcast/pkg/protocol"
)

// Conn reads protocol.Packet frames from a buffered stream. The receiving
// side never writes back, so there is no send half.
type Conn struct {
    br *bufio.Reader
}

func New(r io.Reader) *Conn { return &Conn{br: bufio.NewReader(r)} }

func NewNetConn(c net.Conn) *Conn { return New(c) }

// Recv reads the next complete frame into p whatever its version, so the
// caller decides whether to skip it. A clean end of stream returns io.EOF.
func (c *Conn) Recv(p *protocol.Packet) error {
    _, err := p.ReadFrom(c.br)
    return err
}
