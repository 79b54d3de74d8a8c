package serialization

import (
	"bytes"
	"encoding/gob"
)

// GobCodec marshals values with encoding/gob. Compact for large concrete
// types, but both sides must agree on the stored Go type.
type GobCodec struct{}

// Marshal serializes v with gob encoding.
func (GobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal deserializes gob data into v.
func (GobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
