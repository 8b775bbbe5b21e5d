package bpt

import (
	"github.com/corvusdb/corvusdb/index/nodecache"
	"github.com/corvusdb/corvusdb/pbe"
)

// Node types. The node type byte is the first byte of every node image.
const (
	nodeTypeInternal     byte = 0
	nodeTypeLeaf         byte = 1
	nodeTypeRootInternal byte = 2
	nodeTypeRootLeaf     byte = 3
	nodeTypeCount        byte = 4
)

// Node header layout. The common part is node type (u8), node id (u64) and
// child count (u32); leaf nodes additionally store the prev/next node ids of
// the doubly-linked leaf list.
const (
	nodeTypeOffset   = 0
	nodeIDOffset     = 1
	childCountOffset = 9

	commonHeaderSize   = 13
	internalHeaderSize = commonHeaderSize

	prevNodeIDOffset = 13
	nextNodeIDOffset = 21
	leafHeaderSize   = 29
)

func isLeafType(t byte) bool {
	return t == nodeTypeLeaf || t == nodeTypeRootLeaf
}

func isRootType(t byte) bool {
	return t == nodeTypeRootInternal || t == nodeTypeRootLeaf
}

func nodeType(n *nodecache.Node) byte { return n.Data[nodeTypeOffset] }

func setNodeType(n *nodecache.Node, t byte) { n.Data[nodeTypeOffset] = t }

func storedNodeID(n *nodecache.Node) uint64 {
	id, _ := pbe.Uint64(n.Data[nodeIDOffset:])
	return id
}

func setStoredNodeID(n *nodecache.Node, id uint64) {
	pbe.PutUint64(n.Data[nodeIDOffset:], id)
}

func childCount(n *nodecache.Node) int {
	c, _ := pbe.Uint32(n.Data[childCountOffset:])
	return int(c)
}

func setChildCount(n *nodecache.Node, c int) {
	pbe.PutUint32(n.Data[childCountOffset:], uint32(c))
}

func prevNodeID(n *nodecache.Node) uint64 {
	id, _ := pbe.Uint64(n.Data[prevNodeIDOffset:])
	return id
}

func setPrevNodeID(n *nodecache.Node, id uint64) {
	pbe.PutUint64(n.Data[prevNodeIDOffset:], id)
}

func nextNodeID(n *nodecache.Node) uint64 {
	id, _ := pbe.Uint64(n.Data[nextNodeIDOffset:])
	return id
}

func setNextNodeID(n *nodecache.Node, id uint64) {
	pbe.PutUint64(n.Data[nextNodeIDOffset:], id)
}

// leafEntry returns the i-th (key, value) pair of a leaf node.
func (t *BPlusTreeIndex) leafEntry(n *nodecache.Node, i int) []byte {
	offset := leafHeaderSize + i*t.kvPairSize
	return n.Data[offset : offset+t.kvPairSize]
}

// leafKey returns the key bytes of the i-th leaf entry.
func (t *BPlusTreeIndex) leafKey(n *nodecache.Node, i int) []byte {
	return t.leafEntry(n, i)[:t.keySize]
}

// leafValue returns the value bytes of the i-th leaf entry.
func (t *BPlusTreeIndex) leafValue(n *nodecache.Node, i int) []byte {
	return t.leafEntry(n, i)[t.keySize:]
}

// internalEntry returns the i-th (separator key, child node id) pair of an
// internal node.
func (t *BPlusTreeIndex) internalEntry(n *nodecache.Node, i int) []byte {
	offset := internalHeaderSize + i*t.internalKvPairSize
	return n.Data[offset : offset+t.internalKvPairSize]
}

// internalKey returns the separator key of the i-th internal entry. The
// separator is the greatest key stored under the i-th child at the time the
// separator was set. Keys greater than every separator descend into the last
// child without updating its separator, so the last separator can be smaller
// than keys stored under the last child.
func (t *BPlusTreeIndex) internalKey(n *nodecache.Node, i int) []byte {
	return t.internalEntry(n, i)[:t.keySize]
}

// internalChildID returns the child node id of the i-th internal entry.
func (t *BPlusTreeIndex) internalChildID(n *nodecache.Node, i int) uint64 {
	id, _ := pbe.Uint64(t.internalEntry(n, i)[t.keySize:])
	return id
}

func (t *BPlusTreeIndex) setInternalEntry(n *nodecache.Node, i int, key []byte, childID uint64) {
	entry := t.internalEntry(n, i)
	copy(entry[:t.keySize], key)
	pbe.PutUint64(entry[t.keySize:], childID)
}
