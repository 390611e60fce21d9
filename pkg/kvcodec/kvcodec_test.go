package kvcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorRoundTrip(t *testing.T) {
	v := []float64{1.5, -2.25, 0, 3.333333}
	blob := EncodeVector(v)
	got, err := DecodeVector(blob)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestDecodeVectorEmptyYieldsNil(t *testing.T) {
	got, err := DecodeVector("")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDecodeVectorMalformedRejectsWhole(t *testing.T) {
	_, err := DecodeVector("1.0,abc,3.0")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedVector)
}

func TestMetadataRoundTrip(t *testing.T) {
	m := Metadata{
		"text":      "hello team",
		"user_id":   "U1",
		"timestamp": float64(100),
		"is_bot":    false,
	}
	blob, err := EncodeMetadata(m)
	require.NoError(t, err)

	got, err := DecodeMetadata(blob)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestDecodeMetadataEmptyYieldsNil(t *testing.T) {
	got, err := DecodeMetadata("")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEncodeMetadataEmptyMap(t *testing.T) {
	blob, err := EncodeMetadata(Metadata{})
	require.NoError(t, err)
	assert.Equal(t, "{}", blob)

	got, err := DecodeMetadata(blob)
	require.NoError(t, err)
	assert.Equal(t, Metadata{}, got)
}

func TestEncodeMetadataRejectsUnsupportedType(t *testing.T) {
	_, err := EncodeMetadata(Metadata{"bad": []int{1, 2}})
	require.Error(t, err)
}

func TestMetadataDeterministicEncoding(t *testing.T) {
	m := Metadata{"b": "2", "a": "1"}
	blob, err := EncodeMetadata(m)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"1","b":"2"}`, blob)
}
