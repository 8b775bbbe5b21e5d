package bpt

import (
	"fmt"
	"sort"

	"github.com/corvusdb/corvusdb/index"
	"github.com/corvusdb/corvusdb/index/nodecache"
	"github.com/corvusdb/corvusdb/metrics"
	"github.com/corvusdb/corvusdb/pbe"
)

// Insert stores value under key. It reports true if the key was not present
// before the call. When the key exists the stored value is only rewritten
// with replaceExisting.
func (t *BPlusTreeIndex) Insert(key, value []byte, replaceExisting bool) (bool, error) {
	metrics.IndexOps.WithLabelValues("bplustree", "insert").Inc()
	path, err := t.findLeafPath(key)
	if err != nil {
		return false, err
	}
	leaf := path[len(path)-1]
	n := childCount(leaf)
	pos := sort.Search(n, func(i int) bool { return t.compare(t.leafKey(leaf, i), key) >= 0 })
	if pos < n && t.compare(t.leafKey(leaf, pos), key) == 0 {
		if replaceExisting {
			copy(t.leafValue(leaf, pos), value[:t.valueSize])
			leaf.Modified = true
		}
		return false, nil
	}
	if n < t.branchingFactor {
		t.insertIntoLeafAt(leaf, pos, key, value)
		return true, nil
	}
	if err = t.insertIntoFullLeaf(path, pos, key, value); err != nil {
		return false, err
	}
	return true, nil
}

// insertIntoLeafAt inserts an entry into a leaf with room, shifting the tail
// entries right by one pair.
func (t *BPlusTreeIndex) insertIntoLeafAt(leaf *nodecache.Node, pos int, key, value []byte) {
	n := childCount(leaf)
	base := leafHeaderSize
	copy(leaf.Data[base+(pos+1)*t.kvPairSize:base+(n+1)*t.kvPairSize],
		leaf.Data[base+pos*t.kvPairSize:base+n*t.kvPairSize])
	entry := t.leafEntry(leaf, pos)
	copy(entry[:t.keySize], key)
	copy(entry[t.keySize:], value[:t.valueSize])
	setChildCount(leaf, n+1)
	leaf.Modified = true
}

// insertIntoFullLeaf splits a full leaf around the new entry: the merged
// entry sequence is distributed over the old leaf and a new right sibling,
// the leaf list is relinked, and the separators propagate up the path.
func (t *BPlusTreeIndex) insertIntoFullLeaf(path []*nodecache.Node, pos int, key, value []byte) error {
	// The node allocations below can evict clean pages. Re-resolve the
	// descent path through the cache and mark it dirty so every page this
	// split writes to stays resident.
	for i := range path {
		node, err := t.findNode(path[i].ID)
		if err != nil {
			return err
		}
		node.Modified = true
		path[i] = node
	}
	leaf := path[len(path)-1]
	n := childCount(leaf)
	total := n + 1

	// Merged entry sequence with the new entry applied.
	scratch := make([]byte, total*t.kvPairSize)
	entries := leaf.Data[leafHeaderSize : leafHeaderSize+n*t.kvPairSize]
	copy(scratch, entries[:pos*t.kvPairSize])
	copy(scratch[pos*t.kvPairSize:], key[:t.keySize])
	copy(scratch[pos*t.kvPairSize+t.keySize:], value[:t.valueSize])
	copy(scratch[(pos+1)*t.kvPairSize:], entries[pos*t.kvPairSize:])

	leftCount := (total + 1) / 2
	rightCount := total - leftCount

	right, err := t.getNewNode()
	if err != nil {
		return err
	}
	right.Modified = true
	setNodeType(right, nodeTypeLeaf)
	copy(right.Data[leafHeaderSize:], scratch[leftCount*t.kvPairSize:])
	setChildCount(right, rightCount)

	wasRoot := isRootType(nodeType(leaf))
	copy(leaf.Data[leafHeaderSize:], scratch[:leftCount*t.kvPairSize])
	setChildCount(leaf, leftCount)
	setNodeType(leaf, nodeTypeLeaf)

	// Relink the leaf list around the new sibling.
	oldNext := nextNodeID(leaf)
	setPrevNodeID(right, leaf.ID)
	setNextNodeID(right, oldNext)
	setNextNodeID(leaf, right.ID)
	if oldNext != 0 {
		next, err := t.findNode(oldNext)
		if err != nil {
			return err
		}
		setPrevNodeID(next, right.ID)
		next.Modified = true
	}
	leaf.Modified = true
	right.Modified = true

	leftMax := cloneKey(t.leafKey(leaf, leftCount-1))
	rightMax := cloneKey(t.leafKey(right, rightCount-1))
	if wasRoot {
		return t.growRoot(leaf, right, leftMax, rightMax)
	}
	return t.insertIntoParent(path[:len(path)-1], leaf, right, leftMax, rightMax)
}

// insertIntoParent records a child split in the parent: the split child's
// separator is reset to its new greatest key and the new right sibling is
// inserted after it. A full parent splits in turn.
func (t *BPlusTreeIndex) insertIntoParent(path []*nodecache.Node, left, right *nodecache.Node, leftMax, rightMax []byte) error {
	parent := path[len(path)-1]
	n := childCount(parent)
	pos := -1
	for i := 0; i < n; i++ {
		if t.internalChildID(parent, i) == left.ID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return fmt.Errorf("%w: internal node %d has no entry for child %d (db %s, table %d, index %d)",
			index.ErrNodeCorrupted, parent.ID, left.ID, t.id.Database, t.id.TableID, t.id.IndexID)
	}
	copy(t.internalKey(parent, pos), leftMax)
	parent.Modified = true

	if n < t.branchingFactor {
		base := internalHeaderSize
		at := pos + 1
		copy(parent.Data[base+(at+1)*t.internalKvPairSize:base+(n+1)*t.internalKvPairSize],
			parent.Data[base+at*t.internalKvPairSize:base+n*t.internalKvPairSize])
		t.setInternalEntry(parent, at, rightMax, right.ID)
		setChildCount(parent, n+1)
		return nil
	}
	return t.insertIntoFullInternal(path, pos+1, rightMax, right.ID)
}

// insertIntoFullInternal splits a full internal node around a new
// (separator, child) entry and propagates further up.
func (t *BPlusTreeIndex) insertIntoFullInternal(path []*nodecache.Node, pos int, key []byte, childID uint64) error {
	node := path[len(path)-1]
	n := childCount(node)
	total := n + 1

	scratch := make([]byte, total*t.internalKvPairSize)
	entries := node.Data[internalHeaderSize : internalHeaderSize+n*t.internalKvPairSize]
	copy(scratch, entries[:pos*t.internalKvPairSize])
	newEntry := scratch[pos*t.internalKvPairSize:]
	copy(newEntry[:t.keySize], key)
	pbe.PutUint64(newEntry[t.keySize:], childID)
	copy(scratch[(pos+1)*t.internalKvPairSize:], entries[pos*t.internalKvPairSize:])

	leftCount := (total + 1) / 2
	rightCount := total - leftCount

	right, err := t.getNewNode()
	if err != nil {
		return err
	}
	setNodeType(right, nodeTypeInternal)
	copy(right.Data[internalHeaderSize:], scratch[leftCount*t.internalKvPairSize:])
	setChildCount(right, rightCount)

	wasRoot := isRootType(nodeType(node))
	copy(node.Data[internalHeaderSize:], scratch[:leftCount*t.internalKvPairSize])
	setChildCount(node, leftCount)
	setNodeType(node, nodeTypeInternal)
	node.Modified = true
	right.Modified = true

	leftMax := cloneKey(t.internalKey(node, leftCount-1))
	rightMax := cloneKey(t.internalKey(right, rightCount-1))
	if wasRoot {
		return t.growRoot(node, right, leftMax, rightMax)
	}
	return t.insertIntoParent(path[:len(path)-1], node, right, leftMax, rightMax)
}

// growRoot replaces a split root with a fresh root-internal node holding the
// two halves and persists the new root pointer.
func (t *BPlusTreeIndex) growRoot(left, right *nodecache.Node, leftMax, rightMax []byte) error {
	root, err := t.getNewNode()
	if err != nil {
		return err
	}
	setNodeType(root, nodeTypeRootInternal)
	t.setInternalEntry(root, 0, leftMax, left.ID)
	t.setInternalEntry(root, 1, rightMax, right.ID)
	setChildCount(root, 2)
	root.Modified = true
	t.rootNodeID = root.ID
	log.Debugw("b+ tree root grew", "root", root.ID, "left", left.ID, "right", right.ID)
	return t.writeRootPointer()
}

// getNewNode hands out the next node slot: a freed slot when one is
// available, otherwise a fresh node appended to the file.
func (t *BPlusTreeIndex) getNewNode() (*nodecache.Node, error) {
	if t.nextFreeNodeID > t.nodeCount {
		return t.makeNode(t.nextFreeNodeID)
	}
	node, err := t.findNode(t.nextFreeNodeID)
	if err != nil {
		return nil, err
	}
	t.nextFreeNodeID++
	for i := range node.Data {
		node.Data[i] = 0
	}
	setStoredNodeID(node, node.ID)
	return node, nil
}

// makeNode appends a zeroed node to the data file and caches it.
func (t *BPlusTreeIndex) makeNode(nodeID uint64) (*nodecache.Node, error) {
	t.lastNodeTag++
	node := nodecache.NewNode(nodeID, t.lastNodeTag)
	setStoredNodeID(node, nodeID)
	if err := t.WriteNode(node); err != nil {
		return nil, err
	}
	t.nodeCount = nodeID
	t.nextFreeNodeID = t.nodeCount + 1
	if err := t.nodes.Put(nodeID, node); err != nil {
		return nil, err
	}
	return node, nil
}

func cloneKey(key []byte) []byte {
	out := make([]byte, len(key))
	copy(out, key)
	return out
}
