package serialization

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// compressedMagic prefixes every compressed stream. The leading NUL byte can
// never begin a JSON or gob payload, so the marker is unambiguous on read.
var compressedMagic = []byte{0x00, 'H', 'Z', 'C'}

// Serializer encodes values with a Codec and compresses any payload whose
// serialized size exceeds the threshold.
type Serializer struct {
	codec     Codec
	threshold int
}

// NewSerializer creates a Serializer. A non-positive threshold falls back to
// DefaultCompressionThreshold.
func NewSerializer(codec Codec, threshold int) *Serializer {
	if threshold <= 0 {
		threshold = DefaultCompressionThreshold
	}
	return &Serializer{codec: codec, threshold: threshold}
}

// Encode serializes v, compressing the payload when it exceeds the threshold.
func (s *Serializer) Encode(v any) ([]byte, error) {
	data, err := s.codec.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	if len(data) <= s.threshold {
		return data, nil
	}

	var buf bytes.Buffer
	buf.Write(compressedMagic)
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// Decode deserializes data into v, decompressing first when the stream
// carries the compression marker.
func (s *Serializer) Decode(data []byte, v any) error {
	if IsCompressed(data) {
		zr, err := gzip.NewReader(bytes.NewReader(data[len(compressedMagic):]))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDecode, err)
		}
		defer func() {
			_ = zr.Close()
		}()

		if data, err = io.ReadAll(zr); err != nil {
			return fmt.Errorf("%w: %v", ErrDecode, err)
		}
	}

	if err := s.codec.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// IsCompressed reports whether data carries the compression marker.
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, compressedMagic)
}
