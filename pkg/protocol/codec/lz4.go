package codec

import (
    "encoding/binary"
    "errors"
    "fmt"

    "github.com/bkaradzic/go-lz4"
)

// MaxDecompressed bounds the uncompressed size an LZ4 block may claim.
const MaxDecompressed = 1 << 24

var ErrDecompressedTooLarge = errors.New("lz4: decompressed size exceeds limit")

// LZ4Codec wraps a concrete codec and compresses its output.
type LZ4Codec struct {
    Codec // the concrete codec
}

// LZ4 wraps c with LZ4 block compression.
func LZ4(c Codec) Codec { return &LZ4Codec{Codec: c} }

func (c *LZ4Codec) ContentType() string { return c.Codec.ContentType() + "+lz4" }

func (c *LZ4Codec) Marshal(v any) ([]byte, error) {
    raw, err := c.Codec.Marshal(v)
    if err != nil { return nil, err }
    return lz4.Encode(nil, raw)
}

// Unmarshal checks the little-endian length prefix before lz4.Decode
// allocates the output buffer.
func (c *LZ4Codec) Unmarshal(data []byte, v any) error {
    if len(data) < 4 { return fmt.Errorf("lz4: block too short (%d bytes)", len(data)) }
    if n := binary.LittleEndian.Uint32(data); n > MaxDecompressed {
        return fmt.Errorf("%w: %d bytes", ErrDecompressedTooLarge, n)
    }
    raw, err := lz4.Decode(nil, data)
    if err != nil { return err }
    return c.Codec.Unmarshal(raw, v)
}
