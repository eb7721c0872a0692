package netstack

import (
    "errors"
    "io"
    "net"

    "go.uber.org/zap"

    "commitcast/pkg/event"
    "commitcast/pkg/protocol"
    "commitcast/pkg/protocol/stream"
)

// handleConn reads frames until the peer closes the connection. Frames from
// another protocol version are skipped; a payload that cannot be decoded
// ends this connection only.
func (l *PortListener) handleConn(c net.Conn) {
    defer l.untrack(c)
    defer c.Close()
    raddr := c.RemoteAddr().String()
    zap.L().Debug("inbound connection", zap.Int("port", l.port), zap.String("remote", raddr))
    sc := stream.NewNetConn(c)
    for {
        var pkt protocol.Packet
        if err := sc.Recv(&pkt); err != nil {
            if errors.Is(err, io.EOF) || !l.running.Load() {
                zap.L().Debug("inbound connection closed", zap.String("remote", raddr))
                return
            }
            zap.L().Warn("read frame failed", zap.Int("port", l.port), zap.String("remote", raddr), zap.Error(err))
            return
        }
        if err := pkt.CheckVersion(); err != nil {
            zap.L().Warn("dropping frame", zap.String("remote", raddr), zap.Uint64("sender_id", pkt.Header.SenderID), zap.Error(err))
            continue
        }
        ev, err := l.decoder.Decode(pkt.Payload)
        if err != nil {
            zap.L().Warn("decode event failed, closing connection", zap.String("remote", raddr),
                zap.Uint64("sender_id", pkt.Header.SenderID), zap.Error(err))
            return
        }
        l.dispatch(pkt.Header, ev)
    }
}

// dispatch delivers ev to every attached provider. A packet is only
// recognised as a provider's own when sender id, port and address all match.
func (l *PortListener) dispatch(h protocol.Header, ev event.Event) {
    fromSelf := int(h.SenderPort) == l.port && h.SenderIP().Equal(l.localIP)
    for _, p := range l.snapshot() {
        if fromSelf && p.ID() == h.SenderID { continue }
        p.Deliver(ev)
    }
}
