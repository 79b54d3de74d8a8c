package serialization

import "encoding/json"

// JSONCodec marshals values as JSON.
type JSONCodec struct{}

// Marshal serializes v to JSON.
func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal deserializes JSON data into v.
func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
