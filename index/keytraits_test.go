package index

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyTraitsValidate(t *testing.T) {
	require.NoError(t, IntKeyTraits(1).Validate())
	require.NoError(t, UintKeyTraits(8).Validate())
	require.Error(t, IntKeyTraits(3).Validate())
	require.Error(t, KeyTraits{KeySize: 4}.Validate())
}

func TestUnsignedKeyOrder(t *testing.T) {
	traits := UintKeyTraits(2)
	low := make([]byte, 2)
	high := make([]byte, 2)
	traits.PutNumericKey(5, low)
	traits.PutNumericKey(60000, high)
	require.Negative(t, traits.Compare(low, high))
	require.Positive(t, traits.Compare(high, low))
	require.Zero(t, traits.Compare(low, low))
}

func TestSignedKeyOrder(t *testing.T) {
	traits := IntKeyTraits(4)
	neg := []byte{0xff, 0xff, 0xff, 0xfb} // -5
	zero := []byte{0, 0, 0, 0}
	pos := []byte{0, 0, 0, 5}
	require.Negative(t, traits.Compare(neg, zero))
	require.Negative(t, traits.Compare(zero, pos))
	require.Negative(t, traits.Compare(neg, pos))
}

func TestNumericKeyBias(t *testing.T) {
	traits := IntKeyTraits(1)
	key := []byte{0x80} // -128
	require.Equal(t, uint64(0), traits.NumericKey(key))
	key = []byte{0x7f} // 127
	require.Equal(t, uint64(255), traits.NumericKey(key))
	key = []byte{0x00} // 0
	require.Equal(t, uint64(128), traits.NumericKey(key))

	out := make([]byte, 1)
	traits.PutNumericKey(0, out)
	require.Equal(t, []byte{0x80}, out)
	traits.PutNumericKey(255, out)
	require.Equal(t, []byte{0x7f}, out)
}

func TestNumericKeyRoundTrip(t *testing.T) {
	for _, traits := range []KeyTraits{
		IntKeyTraits(1), IntKeyTraits(2), IntKeyTraits(4), IntKeyTraits(8),
		UintKeyTraits(1), UintKeyTraits(2), UintKeyTraits(4), UintKeyTraits(8),
	} {
		for _, key := range [][]byte{traits.MinKey(), traits.MaxKey()} {
			out := make([]byte, traits.KeySize)
			traits.PutNumericKey(traits.NumericKey(key), out)
			require.Equal(t, key, out, "traits %+v", traits)
		}
		// Numeric order of the extrema matches key order.
		require.Less(t, traits.NumericKey(traits.MinKey()), traits.NumericKey(traits.MaxKey()))
	}
}

func TestMinMaxKeys(t *testing.T) {
	require.Equal(t, []byte{0x80, 0}, IntKeyTraits(2).MinKey())
	require.Equal(t, []byte{0x7f, 0xff}, IntKeyTraits(2).MaxKey())
	require.Equal(t, []byte{0, 0}, UintKeyTraits(2).MinKey())
	require.Equal(t, []byte{0xff, 0xff}, UintKeyTraits(2).MaxKey())
}
