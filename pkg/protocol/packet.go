package protocol

import (
    "encoding/binary"
    "fmt"
    "io"
)

// Packet is one frame on a broadcast connection: a Header, a u32 payload
// length and the payload bytes produced by an EventCodec.
type Packet struct {
    Header  Header
    Payload []byte
}

// CheckVersion reports ErrVersionMismatch when the packet was built for another protocol version.
func (p *Packet) CheckVersion() error {
    if p.Header.Version != ProtocolVersion {
        return fmt.Errorf("%w: got %#x want %#x", ErrVersionMismatch, p.Header.Version, ProtocolVersion)
    }
    return nil
}

// EncodeFrame returns the complete frame as a single byte slice.
func (p *Packet) EncodeFrame() ([]byte, error) {
    hb, err := p.Header.MarshalBinary()
    if err != nil { return nil, err }
    out := make([]byte, len(hb)+4+len(p.Payload))
    copy(out, hb)
    binary.LittleEndian.PutUint32(out[len(hb):], uint32(len(p.Payload)))
    copy(out[len(hb)+4:], p.Payload)
    return out, nil
}

// WriteTo writes the frame to w.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
    b, err := p.EncodeFrame()
    if err != nil { return 0, err }
    n, err := w.Write(b)
    return int64(n), err
}

// ReadFrom reads one complete frame from r regardless of its version, so a
// caller can drop a mismatched frame and keep reading the stream.
func (p *Packet) ReadFrom(r io.Reader) (int64, error) {
    n, err := p.Header.ReadFrom(r)
    if err != nil { return n, err }
    var lenbuf [4]byte
    m, err := io.ReadFull(r, lenbuf[:])
    n += int64(m)
    if err != nil { return n, unexpected(err) }
    size := binary.LittleEndian.Uint32(lenbuf[:])
    if size > MaxPayload { return n, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size) }
    p.Payload = make([]byte, int(size))
    m, err = io.ReadFull(r, p.Payload)
    n += int64(m)
    if err != nil { return n, unexpected(err) }
    return n, nil
}

func unexpected(err error) error {
    if err == io.EOF { return io.ErrUnexpectedEOF }
    return err
}
