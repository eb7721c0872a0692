package protocol

import (
    "bytes"
    "errors"
    "io"
    "net"
    "reflect"
    "testing"

    "commitcast/pkg/event"
    "commitcast/pkg/protocol/codec"
)

func newCodec(t *testing.T, f Format, compress bool) *EventCodec {
    t.Helper()
    reg, err := codec.NewRegistry()
    if err != nil { t.Fatalf("registry: %v", err) }
    c, err := NewEventCodec(reg, f, compress)
    if err != nil { t.Fatalf("codec: %v", err) }
    return c
}

func TestHeaderRoundtrip(t *testing.T) {
    h := NewHeader(0x1122334455667788, 5636, net.ParseIP("10.1.2.3"))
    if len(h.SenderAddr) != 4 { t.Fatalf("ipv4 should be 4 bytes, got %d", len(h.SenderAddr)) }
    b, err := h.MarshalBinary()
    if err != nil { t.Fatalf("marshal: %v", err) }
    if len(b) != h.Size() { t.Fatalf("size = %d", len(b)) }
    var h2 Header
    if _, err := h2.ReadFrom(bytes.NewReader(b)); err != nil { t.Fatalf("read: %v", err) }
    if !reflect.DeepEqual(h, h2) { t.Fatalf("headers differ: %#v vs %#v", h2, h) }
    if !h2.SenderIP().Equal(net.ParseIP("10.1.2.3")) { t.Fatalf("ip mismatch") }
}

func TestEventRoundtripAllFormats(t *testing.T) {
    in := event.Event{Kind: event.KindOIDsWithAdds, Origin: "a", Added: []string{"1"}, Updated: []string{"2"}, Deleted: []string{"3"}, UpdatedTypes: []string{"Order"}}
    for _, f := range []Format{FormatJSON, FormatCBOR, FormatProto} {
        for _, compress := range []bool{false, true} {
            c := newCodec(t, f, compress)
            b, err := c.Encode(in)
            if err != nil { t.Fatalf("%s encode: %v", f, err) }
            out, err := c.Decode(b)
            if err != nil { t.Fatalf("%s decode: %v", f, err) }
            if !reflect.DeepEqual(in, out) { t.Fatalf("%s compress=%v mismatch: %#v", f, compress, out) }
        }
    }
}

func TestDecodeUsesPayloadFormat(t *testing.T) {
    jsonC := newCodec(t, FormatJSON, false)
    cborC := newCodec(t, FormatCBOR, true)
    b, err := jsonC.Encode(event.Event{Kind: event.KindExtents, UpdatedTypes: []string{"X"}})
    if err != nil { t.Fatalf("encode: %v", err) }
    out, err := cborC.Decode(b)
    if err != nil { t.Fatalf("decode: %v", err) }
    if out.UpdatedTypes[0] != "X" { t.Fatalf("unexpected %#v", out) }
}

func TestPacketStream(t *testing.T) {
    c := newCodec(t, FormatCBOR, false)
    payload, _ := c.Encode(event.Event{Kind: event.KindOIDs, Updated: []string{"u1"}})
    var buf bytes.Buffer
    p1 := Packet{Header: NewHeader(1, 7000, net.ParseIP("127.0.0.1")), Payload: payload}
    p2 := Packet{Header: NewHeader(2, 7001, net.ParseIP("::1")), Payload: payload}
    p2.Header.Version = 99
    for _, p := range []*Packet{&p1, &p2, &p1} {
        if _, err := p.WriteTo(&buf); err != nil { t.Fatalf("write: %v", err) }
    }

    r := bytes.NewReader(buf.Bytes())
    var got []uint64
    for {
        var p Packet
        if _, err := p.ReadFrom(r); err != nil {
            if err != io.EOF { t.Fatalf("read: %v", err) }
            break
        }
        if err := p.CheckVersion(); err != nil {
            if !errors.Is(err, ErrVersionMismatch) { t.Fatalf("unexpected error: %v", err) }
            continue
        }
        got = append(got, p.Header.SenderID)
    }
    if !reflect.DeepEqual(got, []uint64{1, 1}) { t.Fatalf("got senders %v", got) }
}

func TestPacketTruncated(t *testing.T) {
    p := Packet{Header: NewHeader(1, 1, net.ParseIP("127.0.0.1")), Payload: []byte{1, 2, 3}}
    b, _ := p.EncodeFrame()
    var q Packet
    if _, err := q.ReadFrom(bytes.NewReader(b[:len(b)-1])); err != io.ErrUnexpectedEOF {
        t.Fatalf("expected unexpected EOF, got %v", err)
    }
}

func TestParseFormat(t *testing.T) {
    if f, _ := ParseFormat(""); f != FormatCBOR { t.Fatalf("default format = %s", f) }
    if f, _ := ParseFormat("Protobuf"); f != FormatProto { t.Fatalf("protobuf alias = %s", f) }
    if _, err := ParseFormat("xml"); err == nil { t.Fatalf("expected error") }
}

func TestDecodeRejectsOversizedCompressedPayload(t *testing.T) {
    c := newCodec(t, FormatCBOR, true)
    payload := []byte{byte(FormatCBOR | formatCompressed), 0, 0, 0, 0x40, 0}
    if _, err := c.Decode(payload); !errors.Is(err, codec.ErrDecompressedTooLarge) {
        t.Fatalf("expected ErrDecompressedTooLarge, got %v", err)
    }
}
