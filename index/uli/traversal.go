package uli

import (
	"fmt"
	"sort"
)

// lowerBound returns the position of the first element of the sorted slice
// that is >= v.
func lowerBound(fileIDs []uint64, v uint64) int {
	return sort.Search(len(fileIDs), func(i int) bool { return fileIDs[i] >= v })
}

// computeExtrema re-derives the stored min/max keys by scanning storage. An
// empty index gets inverted extrema (min = max possible, max = min possible)
// so that Compare(min, max) > 0 encodes "empty".
func (idx *UniqueLinearIndex) computeExtrema() error {
	key := make([]byte, idx.traits.KeySize)
	found, err := idx.leadingKey(key)
	if err != nil {
		return err
	}
	if found {
		idx.minKey = clone(key)
	} else {
		idx.minKey = clone(idx.maxPossibleKey)
	}
	found, err = idx.trailingKey(key)
	if err != nil {
		return err
	}
	if found {
		idx.maxKey = clone(key)
	} else {
		idx.maxKey = clone(idx.minPossibleKey)
	}
	return nil
}

// leadingKey scans storage forward and copies the minimal stored key.
func (idx *UniqueLinearIndex) leadingKey(key []byte) (bool, error) {
	for _, fileID := range idx.fileIDs {
		nodeID := (fileID-1)*idx.nodesPerFile + 1
		for j := uint64(0); j < idx.nodesPerFile; j++ {
			node, err := idx.findNodeChecked(nodeID)
			if err != nil {
				return false, err
			}
			for r := uint64(0); r < idx.recordsPerNode; r++ {
				if node.Data[int(r)*idx.recordSize] == recordStateExists {
					idx.traits.PutNumericKey((nodeID-1)*idx.recordsPerNode+r, key)
					return true, nil
				}
			}
			nodeID++
		}
	}
	return false, nil
}

// trailingKey scans storage backward and copies the maximal stored key.
func (idx *UniqueLinearIndex) trailingKey(key []byte) (bool, error) {
	for i := len(idx.fileIDs) - 1; i >= 0; i-- {
		fileID := idx.fileIDs[i]
		nodeID := fileID * idx.nodesPerFile
		for j := uint64(0); j < idx.nodesPerFile; j++ {
			node, err := idx.findNodeChecked(nodeID)
			if err != nil {
				return false, err
			}
			for r := int(idx.recordsPerNode) - 1; r >= 0; r-- {
				if node.Data[r*idx.recordSize] == recordStateExists {
					idx.traits.PutNumericKey((nodeID-1)*idx.recordsPerNode+uint64(r), key)
					return true, nil
				}
			}
			nodeID--
		}
	}
	return false, nil
}

// keyBefore copies the greatest stored key less than key. File-id gaps are
// skipped through the sorted file-id set; within a file, nodes are walked
// backward and records scanned linearly.
func (idx *UniqueLinearIndex) keyBefore(key, keyBefore []byte) (bool, error) {
	if idx.traits.Compare(key, idx.minKey) == 0 || idx.traits.Compare(key, idx.minPossibleKey) == 0 {
		return false, nil
	}
	numericKey := idx.traits.NumericKey(key)
	nodeID := idx.nodeIDForKey(numericKey)
	minNodeID := idx.minAvailableNodeID()
	if minNodeID == 0 || nodeID < minNodeID {
		return false, nil
	}

	recordID := int64(numericKey % idx.recordsPerNode)
	fileID := idx.fileIDForNode(nodeID)
	firstNodeID := (fileID-1)*idx.nodesPerFile + 1
	pos := lowerBound(idx.fileIDs, fileID)
	if pos == len(idx.fileIDs) || idx.fileIDs[pos] > fileID {
		// Key belongs to a missing file: restart at the end of the nearest
		// file before it.
		pos--
		fileID = idx.fileIDs[pos]
		firstNodeID = (fileID-1)*idx.nodesPerFile + 1
		nodeID = firstNodeID + idx.nodesPerFile - 1
		recordID = int64(idx.recordsPerNode)
	}

	for {
		node, err := idx.findNodeChecked(nodeID)
		if err != nil {
			return false, err
		}
		for r := recordID - 1; r >= 0; r-- {
			if node.Data[int(r)*idx.recordSize] == recordStateExists {
				idx.traits.PutNumericKey((nodeID-1)*idx.recordsPerNode+uint64(r), keyBefore)
				return true, nil
			}
		}
		if nodeID > firstNodeID {
			nodeID--
		} else {
			if pos == 0 {
				return false, nil
			}
			pos--
			fileID = idx.fileIDs[pos]
			firstNodeID = (fileID-1)*idx.nodesPerFile + 1
			nodeID = firstNodeID + idx.nodesPerFile - 1
		}
		recordID = int64(idx.recordsPerNode)
	}
}

// keyAfter copies the smallest stored key greater than key.
func (idx *UniqueLinearIndex) keyAfter(key, keyAfter []byte) (bool, error) {
	if idx.traits.Compare(key, idx.maxKey) == 0 || idx.traits.Compare(key, idx.maxPossibleKey) == 0 {
		return false, nil
	}
	numericKey := idx.traits.NumericKey(key)
	nodeID := idx.nodeIDForKey(numericKey)
	maxNodeID := idx.maxAvailableNodeID()
	if maxNodeID == 0 || nodeID > maxNodeID {
		return false, nil
	}

	recordID := numericKey % idx.recordsPerNode
	fileID := idx.fileIDForNode(nodeID)
	lastNodeID := fileID * idx.nodesPerFile
	pos := lowerBound(idx.fileIDs, fileID)
	if pos == len(idx.fileIDs) {
		// nodeID <= maxNodeID guarantees a file at or after fileID.
		return false, nil
	}
	if idx.fileIDs[pos] > fileID {
		// Key belongs to a missing file: restart at the beginning of the
		// nearest file after it.
		fileID = idx.fileIDs[pos]
		lastNodeID = fileID * idx.nodesPerFile
		nodeID = lastNodeID - idx.nodesPerFile + 1
		recordID = 0
	} else {
		recordID++
	}

	for {
		node, err := idx.findNodeChecked(nodeID)
		if err != nil {
			return false, err
		}
		for r := recordID; r < idx.recordsPerNode; r++ {
			if node.Data[int(r)*idx.recordSize] == recordStateExists {
				idx.traits.PutNumericKey((nodeID-1)*idx.recordsPerNode+r, keyAfter)
				return true, nil
			}
		}
		if nodeID < lastNodeID {
			nodeID++
		} else {
			pos++
			if pos == len(idx.fileIDs) {
				return false, nil
			}
			fileID = idx.fileIDs[pos]
			lastNodeID = fileID * idx.nodesPerFile
			nodeID = lastNodeID - idx.nodesPerFile + 1
		}
		recordID = 0
	}
}

// updateMinMaxAfterRemoval adjusts the stored extrema before a record in
// state Exists is removed. Both replacement keys are computed into locals
// first and swapped into place only after every lookup succeeded, so a
// failed traversal leaves the extrema untouched.
func (idx *UniqueLinearIndex) updateMinMaxAfterRemoval(key []byte) error {
	isMinKey := idx.traits.Compare(key, idx.minKey) == 0
	isMaxKey := idx.traits.Compare(key, idx.maxKey) == 0
	if !isMinKey && !isMaxKey {
		return nil
	}
	var newMinKey, newMaxKey []byte
	if isMinKey && isMaxKey {
		newMinKey = clone(idx.maxPossibleKey)
		newMaxKey = clone(idx.minPossibleKey)
	} else {
		if isMinKey {
			buf := make([]byte, idx.traits.KeySize)
			found, err := idx.keyAfter(key, buf)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%w (db %s, table %d, index %d)",
					errMissingGreaterKey, idx.id.Database, idx.id.TableID, idx.id.IndexID)
			}
			newMinKey = buf
		}
		if isMaxKey {
			buf := make([]byte, idx.traits.KeySize)
			found, err := idx.keyBefore(key, buf)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%w (db %s, table %d, index %d)",
					errMissingLessKey, idx.id.Database, idx.id.TableID, idx.id.IndexID)
			}
			newMaxKey = buf
		}
	}
	if newMinKey != nil {
		idx.minKey = newMinKey
	}
	if newMaxKey != nil {
		idx.maxKey = newMaxKey
	}
	return nil
}
