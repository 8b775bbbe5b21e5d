package index

import (
	"fmt"
)

type errorType string

func (e errorType) Error() string { return string(e) }

// ErrFileCorrupted indicates a structural problem with a data file: wrong
// size, short file, or inconsistent layout.
const ErrFileCorrupted = errorType("index file corrupted")

// ErrNodeCorrupted indicates a structurally invalid node image: bad node
// type byte or an internal node with fewer than two children.
const ErrNodeCorrupted = errorType("index node corrupted")

// ErrMissingRoot indicates the stored root node id does not refer to a node
// with a root type.
const ErrMissingRoot = errorType("cannot find index root")

// ErrMissingNode indicates a node that must exist was not found during
// traversal. This is a structural bug, not a user error.
const ErrMissingNode = errorType("missing node when expected")

// ErrNotInitialized indicates the initialization flag file is absent, i.e.
// index creation never completed.
const ErrNotInitialized = errorType("index initialization incomplete")

// ErrWrongIndexType indicates the data file header carries a different index
// type than the one being opened.
const ErrWrongIndexType = errorType("wrong index type")

// ErrWrongFileHeaderVersion indicates the data file header was written by a
// newer version of the code.
const ErrWrongFileHeaderVersion = errorType("unsupported index file header version")

// ErrNotImplemented marks operations that are not available yet.
const ErrNotImplemented = errorType("operation is not implemented")

// ErrNodeIDOutOfRange indicates a node id beyond the addressable key space.
const ErrNodeIDOutOfRange = errorType("index node id is out of range")

// IOError carries the full context of a failed system call against an index
// data file. The core returns structured values; human-readable formatting
// happens only at the boundary.
type IOError struct {
	// Op is the failed operation: "create", "open", "read", "write",
	// "link", "rename" or "stat".
	Op     string
	Path   string
	ID     FullIndexID
	Offset int64
	Size   int64
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("cannot %s index file %s (db %s, table %d, index %d, offset %d, size %d): %v",
		e.Op, e.Path, e.ID.Database, e.ID.TableID, e.ID.IndexID, e.Offset, e.Size, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
