// Package index defines the common contract shared by the on-disk index
// implementations: index identity, the data file header, key traits, the
// error taxonomy, and the data-file lifecycle helpers (anonymous temp-file
// creation, directory scanning, the initialization flag file).
package index

import "github.com/google/uuid"

const (
	// NodeSize is the size of one on-disk index page. Node 0 of every data
	// file holds the file header; data nodes start at offset NodeSize.
	NodeSize = 8 * 1024

	// DataFilePrefix and DataFileExt surround the decimal file id in index
	// data file names.
	DataFilePrefix = "idx"
	DataFileExt    = ".dat"

	// TempFileExt is appended to the final path while a data file is being
	// created through the named-temp-file fallback path.
	TempFileExt = ".tmp"

	// InitFlagFileName is the sentinel written into the index data directory
	// after the first successful creation. Its absence on open means the
	// index never completed initialization.
	InitFlagFileName = ".initialized"
)

// Type tags the index implementation stored in a data file.
type Type uint8

const (
	// TypeBPlusTree is a B+ tree index: a single data file of fixed-size
	// nodes forming an ordered map.
	TypeBPlusTree Type = 1

	// TypeLinear is a unique linear index: integer keys addressed directly
	// into record slots spread over one or more data files.
	TypeLinear Type = 2
)

func (t Type) String() string {
	switch t {
	case TypeBPlusTree:
		return "bplustree"
	case TypeLinear:
		return "linear"
	default:
		return "unknown"
	}
}

// FullIndexID identifies an index across the whole installation.
type FullIndexID struct {
	Database uuid.UUID
	TableID  uint32
	IndexID  uint64
}

// SortDirection is the ordering of the indexed column.
type SortDirection uint8

const (
	Ascending SortDirection = iota
	Descending
)

// Index is the contract every index implementation satisfies. The caller
// serializes all operations on a given index; implementations are not safe
// for concurrent use.
type Index interface {
	// Insert stores value under key. It reports true if the key was not
	// present before the call. When the key exists and replaceExisting is
	// false the stored value is left untouched.
	Insert(key, value []byte, replaceExisting bool) (bool, error)

	// Erase removes the value stored under key and returns the number of
	// removed entries (0 or 1).
	Erase(key []byte) (uint64, error)

	// Update rewrites the value stored under key and returns the number of
	// updated entries (0 or 1).
	Update(key, value []byte) (uint64, error)

	// MarkAsDeleted rewrites the value and marks the record deleted. It
	// reports whether the key existed.
	MarkAsDeleted(key, value []byte) (bool, error)

	// Find copies the value stored under key into value and returns the
	// number of values copied (0 or 1).
	Find(key, value []byte) (uint64, error)

	// Count returns the number of values stored under key (0 or 1).
	Count(key []byte) (uint64, error)

	// MinKey and MaxKey copy the current extremum into key and report
	// whether the index is non-empty.
	MinKey(key []byte) (bool, error)
	MaxKey(key []byte) (bool, error)

	// FirstKey and LastKey read the index storage and copy the first/last
	// key in the column sort order.
	FirstKey(key []byte) (bool, error)
	LastKey(key []byte) (bool, error)

	// PrevKey and NextKey copy the neighbour of key in the column sort
	// order and report whether one exists.
	PrevKey(key, prev []byte) (bool, error)
	NextKey(key, next []byte) (bool, error)

	// Flush writes all cached modified nodes back to disk.
	Flush() error

	// Close flushes and releases the index. Errors during the final flush
	// are logged and swallowed.
	Close() error
}
