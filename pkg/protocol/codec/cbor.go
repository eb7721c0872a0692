package codec

import (
    cbor "github.com/fxamacker/cbor/v2"
)

type cborCodec struct{ enc cbor.EncMode; dec cbor.DecMode }

// CBOR returns a deterministic CBOR codec (RFC 8949, core deterministic encoding).
// Decoding ignores map keys that do not match a struct field so newer peers may add fields.
func CBOR() (Codec, error) {
    em, err := cbor.CoreDetEncOptions().EncMode()
    if err != nil { return nil, err }
    dm, err := cbor.DecOptions{ExtraReturnErrors: cbor.ExtraDecErrorNone}.DecMode()
    if err != nil { return nil, err }
    return cborCodec{enc: em, dec: dm}, nil
}

func (c cborCodec) ContentType() string { return ContentCBOR }
func (c cborCodec) Marshal(v any) ([]byte, error) { return c.enc.Marshal(v) }
func (c cborCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }
