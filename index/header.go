package index

import (
	"fmt"

	"github.com/corvusdb/corvusdb/pbe"
)

// FileHeaderVersion is the current version of the common file header.
const FileHeaderVersion = uint32(1)

// FileHeaderSize is the serialized size of FileHeader: version (u32), index
// type (u8), database UUID (16), table id (u32), index id (u64).
const FileHeaderSize = 4 + 1 + 16 + 4 + 8

// FileHeader is the record written at offset 0 of every index data file. It
// identifies the index type, the header version, and the owner triple.
type FileHeader struct {
	Version uint32
	Type    Type
	ID      FullIndexID
}

// NewFileHeader returns a header for the current version.
func NewFileHeader(typ Type, id FullIndexID) FileHeader {
	return FileHeader{Version: FileHeaderVersion, Type: typ, ID: id}
}

// MarshalTo serializes the header at b[0:FileHeaderSize] and returns b
// advanced past it.
func (h *FileHeader) MarshalTo(b []byte) []byte {
	b = pbe.PutUint32(b, h.Version)
	b[0] = byte(h.Type)
	b = b[1:]
	b = pbe.PutBytes(b, h.ID.Database[:])
	b = pbe.PutUint32(b, h.ID.TableID)
	b = pbe.PutUint64(b, h.ID.IndexID)
	return b
}

// UnmarshalFrom reads the header from b, validating that the stored version
// is not newer than the code and that the stored index type matches the
// expected one (h.Type must be set by the caller before the call).
func (h *FileHeader) UnmarshalFrom(b []byte) ([]byte, error) {
	var version uint32
	version, b = pbe.Uint32(b)
	if version > FileHeaderVersion {
		return nil, fmt.Errorf("%w: stored version %d is newer than %d",
			ErrWrongFileHeaderVersion, version, FileHeaderVersion)
	}
	storedType := Type(b[0])
	b = b[1:]
	if storedType != h.Type {
		return nil, fmt.Errorf("%w: stored type %s, expected %s",
			ErrWrongIndexType, storedType, h.Type)
	}
	h.Version = version
	b = pbe.Bytes(b, h.ID.Database[:])
	h.ID.TableID, b = pbe.Uint32(b)
	h.ID.IndexID, b = pbe.Uint64(b)
	return b, nil
}
