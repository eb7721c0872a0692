package protocol

import (
    "fmt"
    "strings"

    "google.golang.org/protobuf/types/known/structpb"

    "commitcast/pkg/event"
    "commitcast/pkg/protocol/codec"
)

// Format is carried as the first payload byte and selects the codec used
// for the rest of the payload. The high bit marks LZ4 compression.
type Format uint8

const (
    FormatUnknown Format = iota
    FormatJSON
    FormatCBOR
    FormatProto
)

const formatCompressed Format = 0x80

func (f Format) String() string {
    switch f &^ formatCompressed {
    case FormatJSON:
        return "json"
    case FormatCBOR:
        return "cbor"
    case FormatProto:
        return "proto"
    default:
        return "unknown"
    }
}

// ParseFormat maps a configuration name to a Format.
func ParseFormat(s string) (Format, error) {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "", "cbor":
        return FormatCBOR, nil
    case "json":
        return FormatJSON, nil
    case "proto", "protobuf":
        return FormatProto, nil
    default:
        return FormatUnknown, fmt.Errorf("unknown format: %q", s)
    }
}

// CodecFor returns the codec for a format from r.
func CodecFor(r *codec.Registry, f Format) (codec.Codec, error) {
    var ct string
    switch f &^ formatCompressed {
    case FormatJSON:
        ct = codec.ContentJSON
    case FormatCBOR:
        ct = codec.ContentCBOR
    case FormatProto:
        ct = codec.ContentProto
    default:
        return nil, fmt.Errorf("unknown format: %d", f)
    }
    c := r.Get(ct)
    if c == nil { return nil, fmt.Errorf("no codec registered for %s", ct) }
    if f&formatCompressed != 0 { c = codec.LZ4(c) }
    return c, nil
}

// EventCodec encodes events with a fixed format and decodes any format it
// finds in the payload prefix.
type EventCodec struct {
    reg    *codec.Registry
    format Format
}

// NewEventCodec returns a codec writing format f, optionally LZ4-compressed.
func NewEventCodec(r *codec.Registry, f Format, compress bool) (*EventCodec, error) {
    if compress { f |= formatCompressed }
    if _, err := CodecFor(r, f); err != nil { return nil, err }
    return &EventCodec{reg: r, format: f}, nil
}

// Format returns the format written by Encode.
func (c *EventCodec) Format() Format { return c.format }

// Encode serializes ev and prefixes it with the format byte.
func (c *EventCodec) Encode(ev event.Event) ([]byte, error) {
    cd, err := CodecFor(c.reg, c.format)
    if err != nil { return nil, err }
    var v any = ev
    if c.format&^formatCompressed == FormatProto {
        s, err := ev.ToStruct()
        if err != nil { return nil, err }
        v = s
    }
    b, err := cd.Marshal(v)
    if err != nil { return nil, err }
    out := make([]byte, 1+len(b))
    out[0] = byte(c.format)
    copy(out[1:], b)
    return out, nil
}

// Decode parses a payload produced by Encode on any peer.
func (c *EventCodec) Decode(payload []byte) (event.Event, error) {
    if len(payload) == 0 { return event.Event{}, fmt.Errorf("empty payload") }
    f := Format(payload[0])
    cd, err := CodecFor(c.reg, f)
    if err != nil { return event.Event{}, err }
    if f&^formatCompressed == FormatProto {
        var s structpb.Struct
        if err := cd.Unmarshal(payload[1:], &s); err != nil { return event.Event{}, err }
        return event.FromStruct(&s)
    }
    var ev event.Event
    if err := cd.Unmarshal(payload[1:], &ev); err != nil { return event.Event{}, err }
    return ev, nil
}
