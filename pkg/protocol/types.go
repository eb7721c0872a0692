package protocol

import "errors"

// ProtocolVersion identifies the frame layout. Receivers drop frames carrying any other value.
const ProtocolVersion uint64 = 0x1234567

// MaxPayload bounds a single event payload on read.
const MaxPayload = 1 << 24

var (
    ErrVersionMismatch = errors.New("protocol version mismatch")
    ErrFrameTooLarge   = errors.New("frame too large")
    ErrBadAddress      = errors.New("bad sender address")
)
