package uli

import (
	"container/list"
	"fmt"

	"github.com/corvusdb/corvusdb/metrics"
)

// fileCache is a bounded LRU of fileData keyed by file id. There is no dirty
// bookkeeping at this layer: dirty state lives in each fileData's node
// cache, which is flushed when the fileData is evicted or closed.
type fileCache struct {
	capacity int
	ll       *list.List // front is most recently used
	items    map[uint64]*list.Element
}

type fileCacheEntry struct {
	fileID uint64
	fd     *fileData
}

func newFileCache(capacity int) *fileCache {
	return &fileCache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[uint64]*list.Element, capacity),
	}
}

func (c *fileCache) get(fileID uint64) *fileData {
	elem, ok := c.items[fileID]
	if !ok {
		return nil
	}
	c.ll.MoveToFront(elem)
	return elem.Value.(*fileCacheEntry).fd
}

func (c *fileCache) put(fileID uint64, fd *fileData) {
	if elem, ok := c.items[fileID]; ok {
		elem.Value.(*fileCacheEntry).fd = fd
		c.ll.MoveToFront(elem)
		return
	}
	c.items[fileID] = c.ll.PushFront(&fileCacheEntry{fileID: fileID, fd: fd})
	if c.ll.Len() <= c.capacity {
		return
	}
	elem := c.ll.Back()
	ent := elem.Value.(*fileCacheEntry)
	c.ll.Remove(elem)
	delete(c.items, ent.fileID)
	metrics.FileCacheEvictions.Inc()
	if err := ent.fd.close(); err != nil {
		log.Errorw("cannot close evicted data file", "file", ent.fileID, "error", err)
	}
}

// flushAll writes back the cached modified nodes of every open file,
// stopping at the first failing file.
func (c *fileCache) flushAll() error {
	for elem := c.ll.Front(); elem != nil; elem = elem.Next() {
		ent := elem.Value.(*fileCacheEntry)
		if err := ent.fd.nodes.Flush(); err != nil {
			return fmt.Errorf("flushing node cache of data file %d: %w", ent.fileID, err)
		}
	}
	return nil
}

// clear flushes and closes every open file, swallowing errors.
func (c *fileCache) clear() {
	for elem := c.ll.Front(); elem != nil; elem = elem.Next() {
		ent := elem.Value.(*fileCacheEntry)
		if err := ent.fd.close(); err != nil {
			log.Debugw("ignoring data file close error", "file", ent.fileID, "error", err)
		}
	}
	c.ll.Init()
	c.items = make(map[uint64]*list.Element)
}
