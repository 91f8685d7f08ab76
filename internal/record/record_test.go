package record

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	buf, err := Encode([]byte("aa"), []byte{1, 2, 3, 4})
	require.NoError(t, err)

	header := DecodeHeader(buf[:HeaderSize])
	require.Equal(t, uint32(2), header.KeyLen)
	require.Equal(t, int32(4), header.ValueLenField)
	require.False(t, header.IsTombstone())
	require.Equal(t, uint32(4), header.ValueLen())

	key := buf[HeaderSize : HeaderSize+header.KeyLen]
	value := buf[HeaderSize+header.KeyLen:]
	require.Equal(t, []byte("aa"), key)
	require.Equal(t, []byte{1, 2, 3, 4}, value)
}

func TestEncodeTombstone(t *testing.T) {
	buf, err := EncodeTombstone([]byte("aa"))
	require.NoError(t, err)
	require.Len(t, buf, HeaderSize+2)

	header := DecodeHeader(buf[:HeaderSize])
	require.True(t, header.IsTombstone())
	require.Equal(t, uint32(0), header.ValueLen())
}

func TestEncodeEmptyKeyAndValue(t *testing.T) {
	buf, err := Encode(nil, nil)
	require.NoError(t, err)
	require.Len(t, buf, HeaderSize)

	header := DecodeHeader(buf)
	require.Equal(t, uint32(0), header.KeyLen)
	require.Equal(t, int32(0), header.ValueLenField)
	require.False(t, header.IsTombstone())
}

func TestDecodeHeaderNegativeFieldIsTombstone(t *testing.T) {
	encoded := EncodeHeader(3, -7)
	header := DecodeHeader(encoded[:])
	require.True(t, header.IsTombstone())
	require.Equal(t, int32(-7), header.ValueLenField)
}
