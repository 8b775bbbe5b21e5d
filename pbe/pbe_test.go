package pbe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutUint64(t *testing.T) {
	buf := make([]byte, 8)
	rest := PutUint64(buf, 0x0102030405060708)
	require.Empty(t, rest)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, buf)
}

func TestRoundTrips(t *testing.T) {
	buf := make([]byte, 2+4+8)
	b := buf
	b = PutUint16(b, 0xBEEF)
	b = PutUint32(b, 0xDEADBEEF)
	b = PutUint64(b, 0xCAFEBABEDEADBEEF)
	require.Empty(t, b)

	var v16 uint16
	var v32 uint32
	var v64 uint64
	b = buf
	v16, b = Uint16(b)
	v32, b = Uint32(b)
	v64, b = Uint64(b)
	require.Empty(t, b)
	require.Equal(t, uint16(0xBEEF), v16)
	require.Equal(t, uint32(0xDEADBEEF), v32)
	require.Equal(t, uint64(0xCAFEBABEDEADBEEF), v64)
}

func TestSignedRoundTrips(t *testing.T) {
	buf := make([]byte, 2+4+8)
	b := buf
	b = PutInt16(b, -2)
	b = PutInt32(b, -3)
	b = PutInt64(b, -4)
	require.Empty(t, b)

	var v16 int16
	var v32 int32
	var v64 int64
	b = buf
	v16, b = Int16(b)
	v32, b = Int32(b)
	v64, b = Int64(b)
	require.Empty(t, b)
	require.Equal(t, int16(-2), v16)
	require.Equal(t, int32(-3), v32)
	require.Equal(t, int64(-4), v64)
}

func TestBytes(t *testing.T) {
	buf := make([]byte, 4)
	rest := PutBytes(buf, []byte{9, 8, 7, 6})
	require.Empty(t, rest)

	out := make([]byte, 4)
	rest = Bytes(buf, out)
	require.Empty(t, rest)
	require.Equal(t, []byte{9, 8, 7, 6}, out)
}
