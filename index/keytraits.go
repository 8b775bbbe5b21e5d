package index

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// NumericKeyClass says how the raw key bytes map onto the numeric key space.
type NumericKeyClass uint8

const (
	// SignedInt keys are two's complement integers biased into the unsigned
	// range for addressing.
	SignedInt NumericKeyClass = iota + 1
	// UnsignedInt keys map onto the numeric key space directly.
	UnsignedInt
)

// KeyTraits describes the serialized key format of an index: its width, its
// numeric class, its extrema, and a total order over key byte images. Keys
// are stored big-endian, so unsigned keys order byte-wise and signed keys
// order byte-wise after flipping the sign bit.
type KeyTraits struct {
	KeySize int
	Class   NumericKeyClass
}

// IntKeyTraits returns traits for signed integer keys of the given byte
// width.
func IntKeyTraits(width int) KeyTraits {
	return KeyTraits{KeySize: width, Class: SignedInt}
}

// UintKeyTraits returns traits for unsigned integer keys of the given byte
// width.
func UintKeyTraits(width int) KeyTraits {
	return KeyTraits{KeySize: width, Class: UnsignedInt}
}

// Validate checks that the key width is one of the supported sizes.
func (t KeyTraits) Validate() error {
	switch t.KeySize {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("invalid key size %d: must be 1, 2, 4 or 8", t.KeySize)
	}
	switch t.Class {
	case SignedInt, UnsignedInt:
	default:
		return fmt.Errorf("invalid numeric key class %d", t.Class)
	}
	return nil
}

// MinKey returns the byte image of the minimum possible key.
func (t KeyTraits) MinKey() []byte {
	key := make([]byte, t.KeySize)
	if t.Class == SignedInt {
		key[0] = 0x80
	}
	return key
}

// MaxKey returns the byte image of the maximum possible key.
func (t KeyTraits) MaxKey() []byte {
	key := make([]byte, t.KeySize)
	for i := range key {
		key[i] = 0xff
	}
	if t.Class == SignedInt {
		key[0] = 0x7f
	}
	return key
}

// Compare is a three-way comparison over serialized key bytes.
func (t KeyTraits) Compare(a, b []byte) int {
	if t.Class == SignedInt {
		// Big-endian two's complement orders byte-wise once the sign bit
		// is flipped.
		if c := int(a[0]^0x80) - int(b[0]^0x80); c != 0 {
			if c < 0 {
				return -1
			}
			return 1
		}
		return bytes.Compare(a[1:t.KeySize], b[1:t.KeySize])
	}
	return bytes.Compare(a[:t.KeySize], b[:t.KeySize])
}

// NumericKey maps a key byte image onto the unsigned addressing space:
// unsigned keys map directly, signed keys are biased by 2^(8w-1) so the
// numeric order matches the key order.
func (t KeyTraits) NumericKey(key []byte) uint64 {
	var v uint64
	switch t.KeySize {
	case 1:
		v = uint64(key[0])
	case 2:
		v = uint64(binary.BigEndian.Uint16(key))
	case 4:
		v = uint64(binary.BigEndian.Uint32(key))
	case 8:
		v = binary.BigEndian.Uint64(key)
	}
	if t.Class == SignedInt {
		v ^= uint64(1) << (uint(t.KeySize)*8 - 1)
	}
	return v
}

// PutNumericKey writes the key byte image of a numeric key into key.
func (t KeyTraits) PutNumericKey(numeric uint64, key []byte) {
	if t.Class == SignedInt {
		numeric ^= uint64(1) << (uint(t.KeySize)*8 - 1)
	}
	switch t.KeySize {
	case 1:
		key[0] = byte(numeric)
	case 2:
		binary.BigEndian.PutUint16(key, uint16(numeric))
	case 4:
		binary.BigEndian.PutUint32(key, uint32(numeric))
	case 8:
		binary.BigEndian.PutUint64(key, numeric)
	}
}
