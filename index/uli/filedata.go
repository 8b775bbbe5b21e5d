package uli

import (
	"fmt"
	"os"

	"github.com/corvusdb/corvusdb/index"
	"github.com/corvusdb/corvusdb/index/nodecache"
)

// fileData bundles one open data file with its node count and its node
// cache. The cache's lifetime is tied to the fileData: evicting the file
// from the file cache flushes and drops its nodes.
type fileData struct {
	index       *UniqueLinearIndex
	fileID      uint64
	file        *os.File
	path        string
	nodeCount   uint64
	lastNodeTag uint64
	nodes       *nodecache.Cache
}

var _ nodecache.Writer = (*fileData)(nil)

func newFileData(idx *UniqueLinearIndex, fileID uint64, file *os.File) (*fileData, error) {
	fd := &fileData{
		index:  idx,
		fileID: fileID,
		file:   file,
		path:   index.DataFilePath(idx.dataDir, fileID),
	}
	st, err := file.Stat()
	if err != nil {
		return nil, &index.IOError{Op: "stat", Path: fd.path, ID: idx.id, Err: err}
	}
	nodeCount := st.Size() / index.NodeSize
	if st.Size()%index.NodeSize != 0 || nodeCount < 2 {
		return nil, fmt.Errorf("%w: invalid size %d of %s", index.ErrFileCorrupted, st.Size(), fd.path)
	}
	fd.nodeCount = uint64(nodeCount)
	fd.nodes = nodecache.New(fd, idx.nodeCacheCapacity)
	return fd, nil
}

// findNode returns the node image, reading it from disk on a cache miss.
func (fd *fileData) findNode(nodeID uint64) (*nodecache.Node, error) {
	if node := fd.nodes.Get(nodeID); node != nil {
		return node, nil
	}
	return fd.readNode(nodeID)
}

func (fd *fileData) readNode(nodeID uint64) (*nodecache.Node, error) {
	fd.lastNodeTag++
	node := nodecache.NewNode(nodeID, fd.lastNodeTag)
	offset := fd.nodeOffset(nodeID)
	if _, err := fd.file.ReadAt(node.Data, offset); err != nil {
		return nil, &index.IOError{
			Op: "read", Path: fd.path, ID: fd.index.id,
			Offset: offset, Size: index.NodeSize, Err: err,
		}
	}
	if err := fd.nodes.Put(nodeID, node); err != nil {
		return nil, err
	}
	return node, nil
}

// nodeOffset maps a global node id onto its offset within this file. Node 0
// of the file is the header page.
func (fd *fileData) nodeOffset(nodeID uint64) int64 {
	return int64((nodeID-1)%fd.index.nodesPerFile+1) * index.NodeSize
}

// WriteNode implements nodecache.Writer.
func (fd *fileData) WriteNode(node *nodecache.Node) error {
	offset := fd.nodeOffset(node.ID)
	if _, err := fd.file.WriteAt(node.Data, offset); err != nil {
		return &index.IOError{
			Op: "write", Path: fd.path, ID: fd.index.id,
			Offset: offset, Size: index.NodeSize, Err: err,
		}
	}
	return nil
}

// close flushes the node cache (swallowing write-back errors) and closes the
// file.
func (fd *fileData) close() error {
	fd.nodes.Close()
	return fd.file.Close()
}
