// Package bpt implements the B+ tree index: an ordered map from fixed-size
// keys to fixed-size values persisted in a single data file of fixed-size
// nodes. Node 0 is the header page; its first 8 bytes hold the root node id.
// Leaves form a doubly-linked list in key order.
package bpt

import (
	"fmt"
	"os"
	"sort"

	logging "github.com/ipfs/go-log/v2"

	"github.com/corvusdb/corvusdb/index"
	"github.com/corvusdb/corvusdb/index/nodecache"
	"github.com/corvusdb/corvusdb/metrics"
	"github.com/corvusdb/corvusdb/pbe"
)

var log = logging.Logger("bpt")

// DefaultNodeCacheCapacity is the node cache capacity.
const DefaultNodeCacheCapacity = 16

// initialRootNodeID is the node id of the root leaf written on creation.
const initialRootNodeID = 1

// KeyCompareFunc is a three-way total order over serialized key bytes.
type KeyCompareFunc func(a, b []byte) int

type config struct {
	nodeCacheCapacity int
}

// Option adjusts index tunables on Create/Open.
type Option func(*config)

// NodeCacheCapacity bounds the node cache.
func NodeCacheCapacity(n int) Option {
	return func(c *config) { c.nodeCacheCapacity = n }
}

// BPlusTreeIndex is an ordered index over fixed-size keys. Not safe for
// concurrent use; the caller serializes all operations.
type BPlusTreeIndex struct {
	id      index.FullIndexID
	dataDir string
	path    string

	keySize            int
	valueSize          int
	compare            KeyCompareFunc
	kvPairSize         int
	internalKvPairSize int
	branchingFactor    int
	splitThreshold     int

	file           *os.File
	nodeCount      uint64
	rootNodeID     uint64
	nextFreeNodeID uint64
	lastNodeTag    uint64
	nodes          *nodecache.Cache
}

var _ index.Index = (*BPlusTreeIndex)(nil)

var _ nodecache.Writer = (*BPlusTreeIndex)(nil)

func newIndex(dataDir string, id index.FullIndexID, keySize, valueSize int,
	compare KeyCompareFunc, cfg config,
) (*BPlusTreeIndex, error) {
	if keySize <= 0 {
		return nil, fmt.Errorf("invalid b+ tree key size %d", keySize)
	}
	if valueSize <= 0 {
		return nil, fmt.Errorf("invalid b+ tree value size %d", valueSize)
	}
	if compare == nil {
		return nil, fmt.Errorf("b+ tree key compare function is required")
	}
	t := &BPlusTreeIndex{
		id:                 id,
		dataDir:            dataDir,
		path:               index.DataFilePath(dataDir, 0),
		keySize:            keySize,
		valueSize:          valueSize,
		compare:            compare,
		kvPairSize:         keySize + valueSize,
		internalKvPairSize: keySize + 8,
	}
	t.branchingFactor = min(
		(index.NodeSize-internalHeaderSize)/t.internalKvPairSize,
		(index.NodeSize-leafHeaderSize)/t.kvPairSize,
	)
	t.splitThreshold = (t.branchingFactor + 1) / 2
	if t.branchingFactor < 3 {
		return nil, fmt.Errorf("key size %d and value size %d leave branching factor %d: too large for %d byte nodes",
			keySize, valueSize, t.branchingFactor, index.NodeSize)
	}
	t.nodes = nodecache.New(t, cfg.nodeCacheCapacity)
	return t, nil
}

// Create initializes a new B+ tree index in dataDir: a two-page data file
// holding the header page and an empty root leaf, staged through a temp file
// and linked into place, then the initialization flag file.
func Create(dataDir string, id index.FullIndexID, keySize, valueSize int,
	compare KeyCompareFunc, opts ...Option,
) (*BPlusTreeIndex, error) {
	cfg := config{nodeCacheCapacity: DefaultNodeCacheCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	t, err := newIndex(dataDir, id, keySize, valueSize, compare, cfg)
	if err != nil {
		return nil, err
	}
	if err = os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	if t.file, err = t.createIndexFile(); err != nil {
		return nil, err
	}
	t.nodeCount = 1
	t.rootNodeID = initialRootNodeID
	t.nextFreeNodeID = t.nodeCount + 1
	if err = index.WriteInitFlagFile(dataDir); err != nil {
		return nil, err
	}
	log.Debugw("created b+ tree index",
		"db", id.Database, "table", id.TableID, "index", id.IndexID,
		"branchingFactor", t.branchingFactor, "splitThreshold", t.splitThreshold)
	return t, nil
}

// Open opens an existing B+ tree index, validating the file size, the stored
// root pointer and the root node type.
func Open(dataDir string, id index.FullIndexID, keySize, valueSize int,
	compare KeyCompareFunc, opts ...Option,
) (*BPlusTreeIndex, error) {
	cfg := config{nodeCacheCapacity: DefaultNodeCacheCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	t, err := newIndex(dataDir, id, keySize, valueSize, compare, cfg)
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
	if t.file, err = index.OpenDataFile(t.path); err != nil {
		return nil, &index.IOError{Op: "open", Path: t.path, ID: id, Err: err}
	}
	st, err := t.file.Stat()
	if err != nil {
		t.file.Close()
		return nil, &index.IOError{Op: "stat", Path: t.path, ID: id, Err: err}
	}
	if st.Size()%index.NodeSize != 0 || st.Size() < 2*index.NodeSize {
		t.file.Close()
		return nil, fmt.Errorf("%w: invalid size %d of %s", index.ErrFileCorrupted, st.Size(), t.path)
	}
	t.nodeCount = uint64(st.Size()/index.NodeSize) - 1
	t.nextFreeNodeID = t.nodeCount + 1
	if t.rootNodeID, err = t.readRootPointer(); err != nil {
		t.file.Close()
		return nil, err
	}
	root, err := t.findNode(t.rootNodeID)
	if err != nil {
		t.file.Close()
		return nil, err
	}
	if !isRootType(nodeType(root)) {
		t.file.Close()
		return nil, fmt.Errorf("%w: node %d has type %d (db %s, table %d, index %d)",
			index.ErrMissingRoot, t.rootNodeID, nodeType(root),
			id.Database, id.TableID, id.IndexID)
	}
	log.Debugw("opened b+ tree index",
		"db", id.Database, "table", id.TableID, "index", id.IndexID,
		"nodeCount", t.nodeCount, "root", t.rootNodeID)
	return t, nil
}

// createIndexFile writes the initial data file: the file header at offset 0,
// an empty root leaf as node 1, and the root node id over the first 8 bytes
// of the header page.
func (t *BPlusTreeIndex) createIndexFile() (*os.File, error) {
	builder, err := index.BuildDataFile(t.dataDir, t.path, 2*index.NodeSize)
	if err != nil {
		return nil, &index.IOError{Op: "create", Path: t.path, ID: t.id, Err: err}
	}
	buf := make([]byte, index.NodeSize)
	header := index.NewFileHeader(index.TypeBPlusTree, t.id)
	header.MarshalTo(buf)
	if _, err = builder.File.WriteAt(buf, 0); err != nil {
		builder.Abort()
		return nil, &index.IOError{Op: "write", Path: t.path, ID: t.id, Size: index.NodeSize, Err: err}
	}

	for i := range buf {
		buf[i] = 0
	}
	root := &nodecache.Node{ID: initialRootNodeID, Data: buf}
	setNodeType(root, nodeTypeRootLeaf)
	setStoredNodeID(root, initialRootNodeID)
	setChildCount(root, 0)
	if _, err = builder.File.WriteAt(buf, initialRootNodeID*index.NodeSize); err != nil {
		builder.Abort()
		return nil, &index.IOError{
			Op: "write", Path: t.path, ID: t.id,
			Offset: initialRootNodeID * index.NodeSize, Size: index.NodeSize, Err: err,
		}
	}

	var rootPointer [8]byte
	pbe.PutUint64(rootPointer[:], initialRootNodeID)
	if _, err = builder.File.WriteAt(rootPointer[:], 0); err != nil {
		builder.Abort()
		return nil, &index.IOError{Op: "write", Path: t.path, ID: t.id, Size: 8, Err: err}
	}

	file, err := builder.Commit()
	if err != nil {
		builder.Abort()
		return nil, &index.IOError{Op: "link", Path: t.path, ID: t.id, Err: err}
	}
	return file, nil
}

func (t *BPlusTreeIndex) readRootPointer() (uint64, error) {
	var buf [8]byte
	if _, err := t.file.ReadAt(buf[:], 0); err != nil {
		return 0, &index.IOError{Op: "read", Path: t.path, ID: t.id, Size: 8, Err: err}
	}
	rootNodeID, _ := pbe.Uint64(buf[:])
	if rootNodeID == 0 || rootNodeID > t.nodeCount {
		return 0, fmt.Errorf("%w: stored root node id %d is outside the file (db %s, table %d, index %d)",
			index.ErrMissingRoot, rootNodeID, t.id.Database, t.id.TableID, t.id.IndexID)
	}
	return rootNodeID, nil
}

func (t *BPlusTreeIndex) writeRootPointer() error {
	var buf [8]byte
	pbe.PutUint64(buf[:], t.rootNodeID)
	if _, err := t.file.WriteAt(buf[:], 0); err != nil {
		return &index.IOError{Op: "write", Path: t.path, ID: t.id, Size: 8, Err: err}
	}
	return nil
}

// findNode returns the node image, reading it from disk on a cache miss.
func (t *BPlusTreeIndex) findNode(nodeID uint64) (*nodecache.Node, error) {
	if nodeID == 0 || nodeID > t.nodeCount {
		return nil, fmt.Errorf("%w: node %d (db %s, table %d, index %d)",
			index.ErrMissingNode, nodeID, t.id.Database, t.id.TableID, t.id.IndexID)
	}
	if node := t.nodes.Get(nodeID); node != nil {
		return node, nil
	}
	return t.readNode(nodeID)
}

func (t *BPlusTreeIndex) readNode(nodeID uint64) (*nodecache.Node, error) {
	t.lastNodeTag++
	node := nodecache.NewNode(nodeID, t.lastNodeTag)
	offset := int64(nodeID) * index.NodeSize
	if _, err := t.file.ReadAt(node.Data, offset); err != nil {
		return nil, &index.IOError{
			Op: "read", Path: t.path, ID: t.id,
			Offset: offset, Size: index.NodeSize, Err: err,
		}
	}
	if nodeType(node) >= nodeTypeCount {
		return nil, fmt.Errorf("%w: node %d has invalid type %d (db %s, table %d, index %d)",
			index.ErrNodeCorrupted, nodeID, nodeType(node),
			t.id.Database, t.id.TableID, t.id.IndexID)
	}
	if err := t.nodes.Put(nodeID, node); err != nil {
		return nil, err
	}
	return node, nil
}

// WriteNode implements nodecache.Writer.
func (t *BPlusTreeIndex) WriteNode(node *nodecache.Node) error {
	offset := int64(node.ID) * index.NodeSize
	if _, err := t.file.WriteAt(node.Data, offset); err != nil {
		return &index.IOError{
			Op: "write", Path: t.path, ID: t.id,
			Offset: offset, Size: index.NodeSize, Err: err,
		}
	}
	return nil
}

// findLeafPath descends from the root to the leaf covering key and returns
// the chain of nodes from root to leaf.
func (t *BPlusTreeIndex) findLeafPath(key []byte) ([]*nodecache.Node, error) {
	node, err := t.findNode(t.rootNodeID)
	if err != nil {
		return nil, err
	}
	path := []*nodecache.Node{node}
	for !isLeafType(nodeType(node)) {
		n := childCount(node)
		if n < 2 {
			return nil, fmt.Errorf("%w: internal node %d has %d children (db %s, table %d, index %d)",
				index.ErrNodeCorrupted, node.ID, n, t.id.Database, t.id.TableID, t.id.IndexID)
		}
		// First separator >= key covers the key; a key greater than every
		// separator belongs to the last child.
		i := sort.Search(n, func(i int) bool { return t.compare(key, t.internalKey(node, i)) <= 0 })
		if i == n {
			i = n - 1
		}
		child, err := t.findNode(t.internalChildID(node, i))
		if err != nil {
			return nil, err
		}
		path = append(path, child)
		node = child
	}
	return path, nil
}

// Find copies the value stored under key into value and returns the number
// of values copied.
func (t *BPlusTreeIndex) Find(key, value []byte) (uint64, error) {
	metrics.IndexOps.WithLabelValues("bplustree", "find").Inc()
	path, err := t.findLeafPath(key)
	if err != nil {
		return 0, err
	}
	leaf := path[len(path)-1]
	n := childCount(leaf)
	pos := sort.Search(n, func(i int) bool { return t.compare(t.leafKey(leaf, i), key) >= 0 })
	if pos == n || t.compare(t.leafKey(leaf, pos), key) != 0 {
		return 0, nil
	}
	copy(value[:t.valueSize], t.leafValue(leaf, pos))
	return 1, nil
}

// Count returns 1 if key is stored, 0 otherwise.
func (t *BPlusTreeIndex) Count(key []byte) (uint64, error) {
	path, err := t.findLeafPath(key)
	if err != nil {
		return 0, err
	}
	leaf := path[len(path)-1]
	n := childCount(leaf)
	pos := sort.Search(n, func(i int) bool { return t.compare(t.leafKey(leaf, i), key) >= 0 })
	if pos == n || t.compare(t.leafKey(leaf, pos), key) != 0 {
		return 0, nil
	}
	return 1, nil
}

// MinKey descends to the leftmost leaf and copies its first key.
func (t *BPlusTreeIndex) MinKey(key []byte) (bool, error) {
	return t.edgeKey(key, false)
}

// MaxKey descends to the rightmost leaf and copies its last key.
func (t *BPlusTreeIndex) MaxKey(key []byte) (bool, error) {
	return t.edgeKey(key, true)
}

func (t *BPlusTreeIndex) edgeKey(key []byte, max bool) (bool, error) {
	node, err := t.findNode(t.rootNodeID)
	if err != nil {
		return false, err
	}
	for !isLeafType(nodeType(node)) {
		n := childCount(node)
		if n < 2 {
			return false, fmt.Errorf("%w: internal node %d has %d children (db %s, table %d, index %d)",
				index.ErrNodeCorrupted, node.ID, n, t.id.Database, t.id.TableID, t.id.IndexID)
		}
		i := 0
		if max {
			i = n - 1
		}
		if node, err = t.findNode(t.internalChildID(node, i)); err != nil {
			return false, err
		}
	}
	n := childCount(node)
	if n == 0 {
		return false, nil
	}
	if max {
		copy(key[:t.keySize], t.leafKey(node, n-1))
	} else {
		copy(key[:t.keySize], t.leafKey(node, 0))
	}
	return true, nil
}

// Erase is not implemented yet.
func (t *BPlusTreeIndex) Erase(key []byte) (uint64, error) {
	return 0, index.ErrNotImplemented
}

// Update is not implemented yet.
func (t *BPlusTreeIndex) Update(key, value []byte) (uint64, error) {
	return 0, index.ErrNotImplemented
}

// MarkAsDeleted is not implemented yet.
func (t *BPlusTreeIndex) MarkAsDeleted(key, value []byte) (bool, error) {
	return false, index.ErrNotImplemented
}

// FirstKey is not implemented yet.
func (t *BPlusTreeIndex) FirstKey(key []byte) (bool, error) {
	return false, index.ErrNotImplemented
}

// LastKey is not implemented yet.
func (t *BPlusTreeIndex) LastKey(key []byte) (bool, error) {
	return false, index.ErrNotImplemented
}

// PrevKey is not implemented yet.
func (t *BPlusTreeIndex) PrevKey(key, prev []byte) (bool, error) {
	return false, index.ErrNotImplemented
}

// NextKey is not implemented yet.
func (t *BPlusTreeIndex) NextKey(key, next []byte) (bool, error) {
	return false, index.ErrNotImplemented
}

// Flush writes back the cached modified nodes.
func (t *BPlusTreeIndex) Flush() error {
	if err := t.nodes.Flush(); err != nil {
		return fmt.Errorf("flushing b+ tree node cache (db %s, table %d, index %d): %w",
			t.id.Database, t.id.TableID, t.id.IndexID, err)
	}
	return nil
}

// Close flushes (swallowing write-back errors) and closes the data file.
func (t *BPlusTreeIndex) Close() error {
	t.nodes.Close()
	return t.file.Close()
}

// BranchingFactor returns the maximum number of entries per node.
func (t *BPlusTreeIndex) BranchingFactor() int { return t.branchingFactor }

// NodeCount returns the number of data nodes in the file.
func (t *BPlusTreeIndex) NodeCount() uint64 { return t.nodeCount }
