package protocol

import (
    "encoding/binary"
    "fmt"
    "io"
    "net"
)

// Header layout at the start of every frame. All integers are little-endian.
//
//  0 ..7   Version    u64
//  8 ..15  SenderID   u64
//  16..19  SenderPort u32
//  20      AddrLen    u8
//  21..    SenderAddr [AddrLen]byte  raw IP bytes (4 or 16)
const fixedHeaderSize = 21

// Header identifies the sender of a frame.
type Header struct {
    Version    uint64
    SenderID   uint64
    SenderPort uint32
    SenderAddr []byte
}

// NewHeader builds a header for the current protocol version.
// IPv4 addresses are carried in their 4-byte form.
func NewHeader(senderID uint64, port int, ip net.IP) Header {
    addr := []byte(ip)
    if v4 := ip.To4(); v4 != nil { addr = []byte(v4) }
    return Header{Version: ProtocolVersion, SenderID: senderID, SenderPort: uint32(port), SenderAddr: append([]byte(nil), addr...)}
}

// Size returns the encoded header length.
func (h *Header) Size() int { return fixedHeaderSize + len(h.SenderAddr) }

// MarshalBinary encodes the header.
func (h *Header) MarshalBinary() ([]byte, error) {
    if len(h.SenderAddr) > 255 { return nil, fmt.Errorf("%w: %d bytes", ErrBadAddress, len(h.SenderAddr)) }
    buf := make([]byte, h.Size())
    binary.LittleEndian.PutUint64(buf[0:8], h.Version)
    binary.LittleEndian.PutUint64(buf[8:16], h.SenderID)
    binary.LittleEndian.PutUint32(buf[16:20], h.SenderPort)
    buf[20] = byte(len(h.SenderAddr))
    copy(buf[fixedHeaderSize:], h.SenderAddr)
    return buf, nil
}

// ReadFrom decodes a header from r. A clean EOF before the first byte is
// returned as io.EOF; a truncated header as io.ErrUnexpectedEOF.
func (h *Header) ReadFrom(r io.Reader) (int64, error) {
    var fixed [fixedHeaderSize]byte
    n, err := io.ReadFull(r, fixed[:])
    if err != nil { return int64(n), err }
    h.Version = binary.LittleEndian.Uint64(fixed[0:8])
    h.SenderID = binary.LittleEndian.Uint64(fixed[8:16])
    h.SenderPort = binary.LittleEndian.Uint32(fixed[16:20])
    h.SenderAddr = make([]byte, int(fixed[20]))
    m, err := io.ReadFull(r, h.SenderAddr)
    if err == io.EOF { err = io.ErrUnexpectedEOF }
    return int64(n + m), err
}

// SenderIP returns the sender address as a net.IP.
func (h *Header) SenderIP() net.IP { return net.IP(h.SenderAddr) }
