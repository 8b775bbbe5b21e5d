package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRowStreamRoundTrip(t *testing.T) {
	var b RowBuilder
	b.WriteTRID(42)
	b.WriteNullBitmask([]bool{false, true})
	b.WriteFixed([]byte{0x01, 0x02, 0x03, 0x04})
	b.WriteBytes([]byte("hello world!!!"))

	var stream []byte
	stream = AppendRow(stream, b.Payload())
	stream = AppendEndOfRows(stream)

	payload, rest, done, err := ConsumeRow(stream)
	require.NoError(t, err)
	require.False(t, done)

	r := NewRowReader(payload)
	trid, err := r.ReadTRID()
	require.NoError(t, err)
	require.EqualValues(t, 42, trid)

	nulls, err := r.ReadNullBitmask(2)
	require.NoError(t, err)
	require.Equal(t, []bool{false, true}, nulls)

	fixed, err := r.ReadFixed(4)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, fixed)

	str, err := r.ReadBytes()
	require.NoError(t, err)
	require.Equal(t, []byte("hello world!!!"), str)
	require.Zero(t, r.Remaining())

	// The terminator follows.
	_, rest, done, err = ConsumeRow(rest)
	require.NoError(t, err)
	require.True(t, done)
	require.Empty(t, rest)
}

func TestMultipleRows(t *testing.T) {
	var stream []byte
	for trid := uint64(1); trid <= 3; trid++ {
		var b RowBuilder
		b.WriteTRID(trid)
		stream = AppendRow(stream, b.Payload())
	}
	stream = AppendEndOfRows(stream)

	var trids []uint64
	rest := stream
	for {
		payload, r, done, err := ConsumeRow(rest)
		require.NoError(t, err)
		if done {
			break
		}
		rest = r
		trid, err := NewRowReader(payload).ReadTRID()
		require.NoError(t, err)
		trids = append(trids, trid)
	}
	require.Equal(t, []uint64{1, 2, 3}, trids)
}

func TestNullBitmaskBits(t *testing.T) {
	var b RowBuilder
	nulls := []bool{true, false, false, false, false, false, false, false, true}
	b.WriteNullBitmask(nulls)
	// 9 nullable columns need 2 bytes; bit 0 of byte 0 and bit 0 of byte 1.
	require.Equal(t, []byte{0x01, 0x01}, b.Payload())

	r := NewRowReader(b.Payload())
	decoded, err := r.ReadNullBitmask(9)
	require.NoError(t, err)
	require.Equal(t, nulls, decoded)
}

func TestTruncatedRow(t *testing.T) {
	var b RowBuilder
	b.WriteTRID(7)
	b.WriteBytes([]byte("abc"))
	stream := AppendRow(nil, b.Payload())

	_, _, _, err := ConsumeRow(stream[:len(stream)-2])
	require.Error(t, err)
}

func TestBuilderReset(t *testing.T) {
	var b RowBuilder
	b.WriteTRID(1)
	require.NotEmpty(t, b.Payload())
	b.Reset()
	require.Empty(t, b.Payload())
}
