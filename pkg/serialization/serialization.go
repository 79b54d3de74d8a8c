// Package serialization converts cache values to and from their wire
// representation, transparently compressing payloads above a size threshold.
package serialization

import "errors"

const (
	// JSONType represents the serialization type for JSON format.
	JSONType = "json"

	// GobType represents the serialization type for Gob format.
	GobType = "gob"
)

// DefaultCompressionThreshold is the serialized size, in bytes, above which
// payloads are compressed.
const DefaultCompressionThreshold = 10 * 1024

var (
	// ErrEncode is returned when a value cannot be serialized.
	ErrEncode = errors.New("failed to encode value")
	// ErrDecode is returned when stored bytes cannot be deserialized.
	ErrDecode = errors.New("failed to decode value")
)

// Codec marshals values to bytes and back. Implementations must satisfy the
// round-trip law: Unmarshal(Marshal(v)) == v for every encodable v.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// NewCodec returns the codec registered under the given type name.
func NewCodec(codecType string) (Codec, error) {
	switch codecType {
	case JSONType:
		return JSONCodec{}, nil
	case GobType:
		return GobCodec{}, nil
	default:
		return nil, errors.New("unsupported serialization type: " + codecType)
	}
}
