package serialization

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializer_RoundTrip(t *testing.T) {
	s := NewSerializer(JSONCodec{}, DefaultCompressionThreshold)

	type payload struct {
		Name  string   `json:"name"`
		Stars int      `json:"stars"`
		Tags  []string `json:"tags"`
	}

	in := payload{Name: "hearth", Stars: 42, Tags: []string{"cache", "redis"}}
	data, err := s.Encode(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, s.Decode(data, &out))
	assert.Equal(t, in, out)
}

func TestSerializer_RoundTripAtThresholdBoundary(t *testing.T) {
	const threshold = 256
	s := NewSerializer(JSONCodec{}, threshold)

	// A JSON string of n runes serializes to n+2 bytes; aim the encoded size
	// exactly at threshold-1, threshold, and threshold+1.
	for _, encodedSize := range []int{threshold - 1, threshold, threshold + 1} {
		in := strings.Repeat("x", encodedSize-2)
		data, err := s.Encode(in)
		require.NoError(t, err)

		if encodedSize > threshold {
			assert.True(t, IsCompressed(data), "size %d should compress", encodedSize)
		} else {
			assert.False(t, IsCompressed(data), "size %d should not compress", encodedSize)
		}

		var out string
		require.NoError(t, s.Decode(data, &out))
		assert.Equal(t, in, out)
	}
}

func TestSerializer_EmptyValues(t *testing.T) {
	s := NewSerializer(JSONCodec{}, DefaultCompressionThreshold)

	var emptyString string
	data, err := s.Encode("")
	require.NoError(t, err)
	require.NoError(t, s.Decode(data, &emptyString))
	assert.Equal(t, "", emptyString)

	var emptyMap map[string]int
	data, err = s.Encode(map[string]int{})
	require.NoError(t, err)
	require.NoError(t, s.Decode(data, &emptyMap))
	assert.Empty(t, emptyMap)
}

func TestSerializer_DecodeMalformed(t *testing.T) {
	s := NewSerializer(JSONCodec{}, DefaultCompressionThreshold)

	var out any
	err := s.Decode([]byte("{not json"), &out)
	assert.ErrorIs(t, err, ErrDecode)

	// Compression marker followed by garbage.
	err = s.Decode([]byte{0x00, 'H', 'Z', 'C', 0xde, 0xad}, &out)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestSerializer_CompressedSmallerForRepetitiveData(t *testing.T) {
	const threshold = 64
	s := NewSerializer(JSONCodec{}, threshold)

	in := strings.Repeat("abcdef", 4096)
	data, err := s.Encode(in)
	require.NoError(t, err)
	assert.True(t, IsCompressed(data))
	assert.Less(t, len(data), len(in))
}

func TestGobCodec_RoundTrip(t *testing.T) {
	s := NewSerializer(GobCodec{}, DefaultCompressionThreshold)

	type record struct {
		ID    int64
		Title string
	}

	in := record{ID: 7, Title: "listing"}
	data, err := s.Encode(in)
	require.NoError(t, err)

	var out record
	require.NoError(t, s.Decode(data, &out))
	assert.Equal(t, in, out)
}

func TestNewCodec_Unsupported(t *testing.T) {
	_, err := NewCodec("xml")
	assert.Error(t, err)
}
