// Package uli implements the unique linear index: a key-addressed store
// where each integer key deterministically maps to a record slot, spread
// over one or more fixed-size data files. It can hold a single value per
// key, so it is always unique.
package uli

import (
	"errors"
	"fmt"
	"os"

	logging "github.com/ipfs/go-log/v2"

	"github.com/corvusdb/corvusdb/index"
	"github.com/corvusdb/corvusdb/index/nodecache"
	"github.com/corvusdb/corvusdb/metrics"
)

var log = logging.Logger("uli")

const (
	// DefaultNodeCacheCapacity is the per-file node cache capacity.
	DefaultNodeCacheCapacity = 16
	// DefaultFileCacheCapacity is the bound on simultaneously open data
	// files.
	DefaultFileCacheCapacity = 20
)

// Record states. Each record is one state byte followed by the value bytes.
const (
	recordStateFree    byte = 0
	recordStateExists  byte = 1
	recordStateDeleted byte = 2
)

var (
	errMissingGreaterKey = errors.New("missing greater key when expected")
	errMissingLessKey    = errors.New("missing less key when expected")
)

type config struct {
	nodeCacheCapacity int
	fileCacheCapacity int
}

// Option adjusts index tunables on Create/Open.
type Option func(*config)

// NodeCacheCapacity bounds the per-file node cache.
func NodeCacheCapacity(n int) Option {
	return func(c *config) { c.nodeCacheCapacity = n }
}

// FileCacheCapacity bounds the number of simultaneously open data files.
func FileCacheCapacity(n int) Option {
	return func(c *config) { c.fileCacheCapacity = n }
}

// UniqueLinearIndex maps fixed-width integer keys to fixed-size values. The
// numeric key decides the record position: node id, file id, and in-node
// offset all derive from it. Not safe for concurrent use.
type UniqueLinearIndex struct {
	id             index.FullIndexID
	dataDir        string
	traits         index.KeyTraits
	valueSize      int
	sortDescending bool
	dataFileSize   uint32

	recordSize        int
	recordsPerNode    uint64
	nodesPerFile      uint64
	recordsPerFile    uint64
	minPossibleKey    []byte
	maxPossibleKey    []byte
	maxPossibleNodeID uint64

	nodeCacheCapacity int

	fileIDs []uint64 // sorted
	files   *fileCache

	minKey []byte
	maxKey []byte
}

var _ index.Index = (*UniqueLinearIndex)(nil)

func newIndex(dataDir string, id index.FullIndexID, traits index.KeyTraits, valueSize int,
	direction index.SortDirection, dataFileSize uint32, cfg config,
) (*UniqueLinearIndex, error) {
	if err := traits.Validate(); err != nil {
		return nil, fmt.Errorf("linear index key traits: %w", err)
	}
	if valueSize <= 0 || valueSize+1 > index.NodeSize {
		return nil, fmt.Errorf("invalid linear index value size %d", valueSize)
	}
	if dataFileSize%index.NodeSize != 0 || dataFileSize < 2*index.NodeSize {
		return nil, fmt.Errorf("invalid linear index data file size %d: must be a multiple of %d and hold at least one node",
			dataFileSize, index.NodeSize)
	}
	idx := &UniqueLinearIndex{
		id:                id,
		dataDir:           dataDir,
		traits:            traits,
		valueSize:         valueSize,
		sortDescending:    direction == index.Descending,
		dataFileSize:      dataFileSize,
		recordSize:        valueSize + 1,
		nodeCacheCapacity: cfg.nodeCacheCapacity,
	}
	idx.recordsPerNode = uint64(index.NodeSize / idx.recordSize)
	idx.nodesPerFile = uint64(dataFileSize)/index.NodeSize - 1
	idx.recordsPerFile = idx.nodesPerFile * idx.recordsPerNode
	idx.minPossibleKey = traits.MinKey()
	idx.maxPossibleKey = traits.MaxKey()
	idx.maxPossibleNodeID = idx.nodeIDForKey(traits.NumericKey(idx.maxPossibleKey))
	idx.files = newFileCache(cfg.fileCacheCapacity)
	return idx, nil
}

// Create initializes a new linear index in dataDir. Data files are created
// on demand by the first insert into their key range; creation itself only
// prepares the directory and writes the initialization flag file.
func Create(dataDir string, id index.FullIndexID, traits index.KeyTraits, valueSize int,
	direction index.SortDirection, dataFileSize uint32, opts ...Option,
) (*UniqueLinearIndex, error) {
	cfg := config{nodeCacheCapacity: DefaultNodeCacheCapacity, fileCacheCapacity: DefaultFileCacheCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	idx, err := newIndex(dataDir, id, traits, valueSize, direction, dataFileSize, cfg)
	if err != nil {
		return nil, err
	}
	if err = os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	idx.minKey = clone(idx.maxPossibleKey)
	idx.maxKey = clone(idx.minPossibleKey)
	if err = index.WriteInitFlagFile(dataDir); err != nil {
		return nil, err
	}
	log.Debugw("created linear index",
		"db", id.Database, "table", id.TableID, "index", id.IndexID, "dataDir", dataDir)
	return idx, nil
}

// Open opens an existing linear index, scanning dataDir for data files and
// re-deriving the current extrema from storage.
func Open(dataDir string, id index.FullIndexID, traits index.KeyTraits, valueSize int,
	direction index.SortDirection, dataFileSize uint32, opts ...Option,
) (*UniqueLinearIndex, error) {
	cfg := config{nodeCacheCapacity: DefaultNodeCacheCapacity, fileCacheCapacity: DefaultFileCacheCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	idx, err := newIndex(dataDir, id, traits, valueSize, direction, dataFileSize, cfg)
	if err != nil {
		return nil, err
	}
	initialized, err := index.HasInitFlagFile(dataDir)
	if err != nil {
		return nil, err
	}
	if !initialized {
		return nil, fmt.Errorf("%w: %s", index.ErrNotInitialized, dataDir)
	}
	if idx.fileIDs, err = index.ScanDataDir(dataDir); err != nil {
		return nil, err
	}
	if err = idx.computeExtrema(); err != nil {
		return nil, err
	}
	log.Debugw("opened linear index",
		"db", id.Database, "table", id.TableID, "index", id.IndexID,
		"fileCount", len(idx.fileIDs),
		"minKey", idx.traits.NumericKey(idx.minKey),
		"maxKey", idx.traits.NumericKey(idx.maxKey))
	return idx, nil
}

// Insert stores value under key, creating the covering data file when
// needed. It reports true if the key was not present before the call.
func (idx *UniqueLinearIndex) Insert(key, value []byte, replaceExisting bool) (bool, error) {
	metrics.IndexOps.WithLabelValues("linear", "insert").Inc()
	nk := idx.traits.NumericKey(key)
	node, err := idx.findNode(idx.nodeIDForKey(nk))
	if err != nil {
		return false, err
	}
	if node == nil {
		if node, err = idx.makeNode(idx.nodeIDForKey(nk)); err != nil {
			return false, err
		}
	}
	rec := idx.record(node, nk)
	existed := rec[0] == recordStateExists
	if !existed || replaceExisting {
		copy(rec[1:], value[:idx.valueSize])
		rec[0] = recordStateExists
		node.Modified = true
		if idx.traits.Compare(key, idx.minKey) < 0 {
			copy(idx.minKey, key[:idx.traits.KeySize])
		}
		if idx.traits.Compare(key, idx.maxKey) > 0 {
			copy(idx.maxKey, key[:idx.traits.KeySize])
		}
	}
	return !existed, nil
}

// Erase frees the record stored under key and returns the number of erased
// entries.
func (idx *UniqueLinearIndex) Erase(key []byte) (uint64, error) {
	metrics.IndexOps.WithLabelValues("linear", "erase").Inc()
	nk := idx.traits.NumericKey(key)
	nodeID := idx.nodeIDForKey(nk)
	node, err := idx.findNode(nodeID)
	if err != nil || node == nil {
		return 0, err
	}
	if idx.record(node, nk)[0] != recordStateExists {
		return 0, nil
	}
	if err = idx.updateMinMaxAfterRemoval(key); err != nil {
		return 0, err
	}
	// The extremum scan can evict this node's file from the file cache;
	// re-fetch so the mutation lands on the cache-resident page.
	node, err = idx.findNodeChecked(nodeID)
	if err != nil {
		return 0, err
	}
	rec := idx.record(node, nk)
	rec[0] = recordStateFree
	node.Modified = true
	return 1, nil
}

// Update rewrites the value stored under key and returns the number of
// updated entries.
func (idx *UniqueLinearIndex) Update(key, value []byte) (uint64, error) {
	metrics.IndexOps.WithLabelValues("linear", "update").Inc()
	nk := idx.traits.NumericKey(key)
	node, err := idx.findNode(idx.nodeIDForKey(nk))
	if err != nil || node == nil {
		return 0, err
	}
	rec := idx.record(node, nk)
	if rec[0] != recordStateExists {
		return 0, nil
	}
	copy(rec[1:], value[:idx.valueSize])
	node.Modified = true
	return 1, nil
}

// MarkAsDeleted rewrites the value and marks the record deleted, keeping the
// slot occupied. It reports whether the key existed.
func (idx *UniqueLinearIndex) MarkAsDeleted(key, value []byte) (bool, error) {
	metrics.IndexOps.WithLabelValues("linear", "mark_as_deleted").Inc()
	nk := idx.traits.NumericKey(key)
	nodeID := idx.nodeIDForKey(nk)
	node, err := idx.findNode(nodeID)
	if err != nil || node == nil {
		return false, err
	}
	if idx.record(node, nk)[0] != recordStateExists {
		return false, nil
	}
	if err = idx.updateMinMaxAfterRemoval(key); err != nil {
		return false, err
	}
	// The extremum scan can evict this node's file from the file cache;
	// re-fetch so the mutation lands on the cache-resident page.
	node, err = idx.findNodeChecked(nodeID)
	if err != nil {
		return false, err
	}
	rec := idx.record(node, nk)
	copy(rec[1:], value[:idx.valueSize])
	rec[0] = recordStateDeleted
	node.Modified = true
	return true, nil
}

// Find copies the value stored under key into value and returns the number
// of values copied.
func (idx *UniqueLinearIndex) Find(key, value []byte) (uint64, error) {
	metrics.IndexOps.WithLabelValues("linear", "find").Inc()
	nk := idx.traits.NumericKey(key)
	node, err := idx.findNode(idx.nodeIDForKey(nk))
	if err != nil || node == nil {
		return 0, err
	}
	rec := idx.record(node, nk)
	if rec[0] != recordStateExists {
		return 0, nil
	}
	copy(value[:idx.valueSize], rec[1:])
	return 1, nil
}

// Count returns 1 if key is stored, 0 otherwise.
func (idx *UniqueLinearIndex) Count(key []byte) (uint64, error) {
	nk := idx.traits.NumericKey(key)
	node, err := idx.findNode(idx.nodeIDForKey(nk))
	if err != nil || node == nil {
		return 0, err
	}
	if idx.record(node, nk)[0] == recordStateExists {
		return 1, nil
	}
	return 0, nil
}

// MinKey copies the minimum stored key into key. An empty index keeps its
// extrema inverted, which is what the comparison below detects.
func (idx *UniqueLinearIndex) MinKey(key []byte) (bool, error) {
	if idx.traits.Compare(idx.minKey, idx.maxKey) > 0 {
		return false, nil
	}
	copy(key[:idx.traits.KeySize], idx.minKey)
	return true, nil
}

// MaxKey copies the maximum stored key into key.
func (idx *UniqueLinearIndex) MaxKey(key []byte) (bool, error) {
	if idx.traits.Compare(idx.minKey, idx.maxKey) > 0 {
		return false, nil
	}
	copy(key[:idx.traits.KeySize], idx.maxKey)
	return true, nil
}

// FirstKey reads storage and copies the first key in the column sort order.
func (idx *UniqueLinearIndex) FirstKey(key []byte) (bool, error) {
	if idx.sortDescending {
		return idx.trailingKey(key)
	}
	return idx.leadingKey(key)
}

// LastKey reads storage and copies the last key in the column sort order.
func (idx *UniqueLinearIndex) LastKey(key []byte) (bool, error) {
	if idx.sortDescending {
		return idx.leadingKey(key)
	}
	return idx.trailingKey(key)
}

// PrevKey copies the predecessor of key in the column sort order.
func (idx *UniqueLinearIndex) PrevKey(key, prev []byte) (bool, error) {
	if idx.sortDescending {
		return idx.keyAfter(key, prev)
	}
	return idx.keyBefore(key, prev)
}

// NextKey copies the successor of key in the column sort order.
func (idx *UniqueLinearIndex) NextKey(key, next []byte) (bool, error) {
	if idx.sortDescending {
		return idx.keyBefore(key, next)
	}
	return idx.keyAfter(key, next)
}

// Flush writes back the cached modified nodes of every open data file.
func (idx *UniqueLinearIndex) Flush() error {
	return idx.files.flushAll()
}

// Close flushes and closes all open data files. Write-back errors during
// close are logged and swallowed.
func (idx *UniqueLinearIndex) Close() error {
	idx.files.clear()
	return nil
}

// NodesPerFile returns the number of data nodes each file holds.
func (idx *UniqueLinearIndex) NodesPerFile() uint64 { return idx.nodesPerFile }

// DataFileSize returns the configured data file size.
func (idx *UniqueLinearIndex) DataFileSize() uint32 { return idx.dataFileSize }

func (idx *UniqueLinearIndex) nodeIDForKey(numericKey uint64) uint64 {
	return numericKey/idx.recordsPerNode + 1
}

func (idx *UniqueLinearIndex) fileIDForNode(nodeID uint64) uint64 {
	return (nodeID-1)/idx.nodesPerFile + 1
}

// record returns the record slot of the numeric key inside the node image.
func (idx *UniqueLinearIndex) record(node *nodecache.Node, numericKey uint64) []byte {
	offset := int(numericKey%idx.recordsPerNode) * idx.recordSize
	return node.Data[offset : offset+idx.recordSize]
}

func (idx *UniqueLinearIndex) minAvailableNodeID() uint64 {
	if len(idx.fileIDs) == 0 {
		return 0
	}
	return idx.nodesPerFile*(idx.fileIDs[0]-1) + 1
}

func (idx *UniqueLinearIndex) maxAvailableNodeID() uint64 {
	if len(idx.fileIDs) == 0 {
		return 0
	}
	return idx.nodesPerFile * idx.fileIDs[len(idx.fileIDs)-1]
}

// findNode resolves a node through the file cache and the per-file node
// cache. It returns nil without error when the covering data file does not
// exist.
func (idx *UniqueLinearIndex) findNode(nodeID uint64) (*nodecache.Node, error) {
	if nodeID > idx.maxPossibleNodeID {
		return nil, fmt.Errorf("%w: node %d", index.ErrNodeIDOutOfRange, nodeID)
	}
	fileID := idx.fileIDForNode(nodeID)
	if !idx.hasFile(fileID) {
		return nil, nil
	}
	fd, err := idx.fileData(fileID)
	if err != nil {
		return nil, err
	}
	return fd.findNode(nodeID)
}

// findNodeChecked is findNode for nodes that must exist.
func (idx *UniqueLinearIndex) findNodeChecked(nodeID uint64) (*nodecache.Node, error) {
	node, err := idx.findNode(nodeID)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, fmt.Errorf("%w: node %d (db %s, table %d, index %d)",
			index.ErrMissingNode, nodeID, idx.id.Database, idx.id.TableID, idx.id.IndexID)
	}
	return node, nil
}

// makeNode creates the data file covering the node and returns the node.
func (idx *UniqueLinearIndex) makeNode(nodeID uint64) (*nodecache.Node, error) {
	fileID := idx.fileIDForNode(nodeID)
	log.Debugw("creating data file for node", "node", nodeID, "file", fileID)
	file, err := idx.createIndexFile(fileID)
	if err != nil {
		return nil, err
	}
	fd, err := newFileData(idx, fileID, file)
	if err != nil {
		file.Close()
		return nil, err
	}
	idx.insertFileID(fileID)
	idx.files.put(fileID, fd)
	return fd.findNode(nodeID)
}

// fileData returns the FileData of an existing data file, opening it and
// caching it when needed.
func (idx *UniqueLinearIndex) fileData(fileID uint64) (*fileData, error) {
	if fd := idx.files.get(fileID); fd != nil {
		return fd, nil
	}
	path := index.DataFilePath(idx.dataDir, fileID)
	file, err := index.OpenDataFile(path)
	if err != nil {
		return nil, &index.IOError{Op: "open", Path: path, ID: idx.id, Err: err}
	}
	fd, err := newFileData(idx, fileID, file)
	if err != nil {
		file.Close()
		return nil, err
	}
	idx.files.put(fileID, fd)
	return fd, nil
}

// createIndexFile writes a fresh data file: header page plus zero-filled
// nodes, staged through a temp file and linked into place.
func (idx *UniqueLinearIndex) createIndexFile(fileID uint64) (*os.File, error) {
	path := index.DataFilePath(idx.dataDir, fileID)
	builder, err := index.BuildDataFile(idx.dataDir, path, int64(idx.dataFileSize))
	if err != nil {
		return nil, &index.IOError{Op: "create", Path: path, ID: idx.id, Err: err}
	}
	buf := make([]byte, index.NodeSize)
	header := index.NewFileHeader(index.TypeLinear, idx.id)
	header.MarshalTo(buf)
	if _, err = builder.File.WriteAt(buf, 0); err != nil {
		builder.Abort()
		return nil, &index.IOError{Op: "write", Path: path, ID: idx.id, Size: index.NodeSize, Err: err}
	}
	zero := make([]byte, index.NodeSize)
	for i := uint64(0); i < idx.nodesPerFile; i++ {
		offset := int64(i+1) * index.NodeSize
		if _, err = builder.File.WriteAt(zero, offset); err != nil {
			builder.Abort()
			return nil, &index.IOError{Op: "write", Path: path, ID: idx.id, Offset: offset, Size: index.NodeSize, Err: err}
		}
	}
	file, err := builder.Commit()
	if err != nil {
		builder.Abort()
		return nil, &index.IOError{Op: "link", Path: path, ID: idx.id, Err: err}
	}
	return file, nil
}

func (idx *UniqueLinearIndex) hasFile(fileID uint64) bool {
	i := lowerBound(idx.fileIDs, fileID)
	return i < len(idx.fileIDs) && idx.fileIDs[i] == fileID
}

func (idx *UniqueLinearIndex) insertFileID(fileID uint64) {
	i := lowerBound(idx.fileIDs, fileID)
	if i < len(idx.fileIDs) && idx.fileIDs[i] == fileID {
		return
	}
	idx.fileIDs = append(idx.fileIDs, 0)
	copy(idx.fileIDs[i+1:], idx.fileIDs[i:])
	idx.fileIDs[i] = fileID
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
