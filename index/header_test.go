package index

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testIndexID() FullIndexID {
	return FullIndexID{
		Database: uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		TableID:  7,
		IndexID:  42,
	}
}

func TestFileHeaderRoundTrip(t *testing.T) {
	header := NewFileHeader(TypeLinear, testIndexID())
	buf := make([]byte, FileHeaderSize)
	rest := header.MarshalTo(buf)
	require.Empty(t, rest)

	decoded := FileHeader{Type: TypeLinear}
	rest, err := decoded.UnmarshalFrom(buf)
	require.NoError(t, err)
	require.Empty(t, rest)
	require.Equal(t, header, decoded)
}

func TestFileHeaderEncoding(t *testing.T) {
	header := NewFileHeader(TypeBPlusTree, testIndexID())
	buf := make([]byte, FileHeaderSize)
	header.MarshalTo(buf)

	// version (u32 BE), type (u8), uuid (16 bytes), table (u32), index (u64)
	require.Equal(t, []byte{0, 0, 0, 1}, buf[:4])
	require.Equal(t, byte(TypeBPlusTree), buf[4])
	id := testIndexID()
	require.Equal(t, id.Database[:], buf[5:21])
	require.Equal(t, []byte{0, 0, 0, 7}, buf[21:25])
	require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 42}, buf[25:33])
}

func TestFileHeaderWrongType(t *testing.T) {
	header := NewFileHeader(TypeLinear, testIndexID())
	buf := make([]byte, FileHeaderSize)
	header.MarshalTo(buf)

	decoded := FileHeader{Type: TypeBPlusTree}
	_, err := decoded.UnmarshalFrom(buf)
	require.ErrorIs(t, err, ErrWrongIndexType)
}

func TestFileHeaderNewerVersion(t *testing.T) {
	header := NewFileHeader(TypeLinear, testIndexID())
	header.Version = FileHeaderVersion + 1
	buf := make([]byte, FileHeaderSize)
	header.MarshalTo(buf)

	decoded := FileHeader{Type: TypeLinear}
	_, err := decoded.UnmarshalFrom(buf)
	require.ErrorIs(t, err, ErrWrongFileHeaderVersion)
}
