// Package pbe implements the plain binary encoding used for all on-disk
// headers and pointers: big-endian, unaligned integers plus raw byte blobs.
//
// Every Put function writes at the beginning of the given buffer and returns
// the buffer advanced past the written bytes, so encodings compose:
//
//	b = pbe.PutUint32(b, version)
//	b = pbe.PutUint64(b, nodeID)
package pbe

import "encoding/binary"

// PutUint16 encodes v at b[0:2] and returns b advanced past it.
func PutUint16(b []byte, v uint16) []byte {
	binary.BigEndian.PutUint16(b, v)
	return b[2:]
}

// PutUint32 encodes v at b[0:4] and returns b advanced past it.
func PutUint32(b []byte, v uint32) []byte {
	binary.BigEndian.PutUint32(b, v)
	return b[4:]
}

// PutUint64 encodes v at b[0:8] and returns b advanced past it.
func PutUint64(b []byte, v uint64) []byte {
	binary.BigEndian.PutUint64(b, v)
	return b[8:]
}

// Uint16 decodes a big-endian uint16 from b and returns b advanced past it.
func Uint16(b []byte) (uint16, []byte) {
	return binary.BigEndian.Uint16(b), b[2:]
}

// Uint32 decodes a big-endian uint32 from b and returns b advanced past it.
func Uint32(b []byte) (uint32, []byte) {
	return binary.BigEndian.Uint32(b), b[4:]
}

// Uint64 decodes a big-endian uint64 from b and returns b advanced past it.
func Uint64(b []byte) (uint64, []byte) {
	return binary.BigEndian.Uint64(b), b[8:]
}

// PutInt16 encodes a signed 16-bit integer as its two's complement image.
func PutInt16(b []byte, v int16) []byte { return PutUint16(b, uint16(v)) }

// PutInt32 encodes a signed 32-bit integer as its two's complement image.
func PutInt32(b []byte, v int32) []byte { return PutUint32(b, uint32(v)) }

// PutInt64 encodes a signed 64-bit integer as its two's complement image.
func PutInt64(b []byte, v int64) []byte { return PutUint64(b, uint64(v)) }

// Int16 decodes a signed 16-bit integer from its two's complement image.
func Int16(b []byte) (int16, []byte) {
	v, rest := Uint16(b)
	return int16(v), rest
}

// Int32 decodes a signed 32-bit integer from its two's complement image.
func Int32(b []byte) (int32, []byte) {
	v, rest := Uint32(b)
	return int32(v), rest
}

// Int64 decodes a signed 64-bit integer from its two's complement image.
func Int64(b []byte) (int64, []byte) {
	v, rest := Uint64(b)
	return int64(v), rest
}

// PutBytes copies src into b and returns b advanced past it.
func PutBytes(b, src []byte) []byte {
	copy(b, src)
	return b[len(src):]
}

// Bytes copies len(dst) bytes out of b into dst and returns b advanced past
// them.
func Bytes(b, dst []byte) []byte {
	copy(dst, b)
	return b[len(dst):]
}
