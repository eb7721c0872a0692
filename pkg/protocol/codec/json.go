package codec

import (
    "bytes"
    "encoding/json"
)

type jsonCodec struct{}

// JSON returns a JSON codec (RFC 8259). Unknown object keys are ignored on decode.
func JSON() Codec { return jsonCodec{} }

func (jsonCodec) ContentType() string { return ContentJSON }
func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error {
    dec := json.NewDecoder(bytes.NewReader(data))
    return dec.Decode(v)
}
