// Package nodecache provides the bounded LRU of in-memory index pages shared
// by the index implementations. Entries carry a modified flag; dirty pages
// are written back through the owner-supplied Writer on flush, on eviction
// pressure, and on close.
//
// The cache is not safe for concurrent use; the owning index serializes
// access.
package nodecache

import (
	"container/list"
	"fmt"

	logging "github.com/ipfs/go-log/v2"

	"github.com/corvusdb/corvusdb/index"
	"github.com/corvusdb/corvusdb/metrics"
)

var log = logging.Logger("nodecache")

// ErrNoEvictableEntry is returned when the cache is over capacity, no entry
// can be evicted, and the last-chance cleanup found nothing to write back.
var ErrNoEvictableEntry = fmt.Errorf("node cache is full and has no evictable entry")

// Node is one fixed-size in-memory page image.
type Node struct {
	// ID is the node id the page belongs to.
	ID uint64
	// Tag distinguishes page images read at different times for the same
	// node id.
	Tag uint64
	// Data is the page image, index.NodeSize bytes.
	Data []byte
	// Modified marks the page dirty. Dirty pages are never evicted; they
	// are written back first.
	Modified bool
}

// NewNode returns a zeroed page image for the given node id.
func NewNode(id, tag uint64) *Node {
	return &Node{ID: id, Tag: tag, Data: make([]byte, index.NodeSize)}
}

// Writer persists a page image. It is supplied by the cache owner and
// carries whatever context (file handle, path, index identity) error
// reporting needs.
type Writer interface {
	WriteNode(n *Node) error
}

// Cache is a bounded LRU of node pages keyed by node id.
type Cache struct {
	writer   Writer
	capacity int
	ll       *list.List // front is most recently used
	items    map[uint64]*list.Element
}

type entry struct {
	id   uint64
	node *Node
}

// New returns a cache holding up to capacity pages, writing dirty pages back
// through writer.
func New(writer Writer, capacity int) *Cache {
	return &Cache{
		writer:   writer,
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[uint64]*list.Element, capacity),
	}
}

// Len returns the number of resident pages.
func (c *Cache) Len() int { return c.ll.Len() }

// Get returns the cached page for the given node id, or nil. A hit touches
// the LRU order.
func (c *Cache) Get(id uint64) *Node {
	elem, ok := c.items[id]
	if !ok {
		metrics.NodeCacheMisses.Inc()
		return nil
	}
	metrics.NodeCacheHits.Inc()
	c.ll.MoveToFront(elem)
	return elem.Value.(*entry).node
}

// Put inserts the page under the given node id, evicting the coldest clean
// page when the cache is over capacity. If every resident page is dirty the
// last-chance cleanup writes them back first; a write failure or an empty
// cleanup fails the insert.
func (c *Cache) Put(id uint64, n *Node) error {
	if elem, ok := c.items[id]; ok {
		elem.Value.(*entry).node = n
		c.ll.MoveToFront(elem)
		return nil
	}
	c.items[id] = c.ll.PushFront(&entry{id: id, node: n})
	if c.ll.Len() <= c.capacity {
		return nil
	}
	if c.evictOne() {
		return nil
	}
	// No clean page to evict: write back every dirty page, then retry.
	saved, err := c.lastChanceCleanup()
	if err != nil {
		return err
	}
	if saved == 0 {
		return ErrNoEvictableEntry
	}
	if !c.evictOne() {
		// Cleanup cleared at least one flag, so this cannot happen.
		return ErrNoEvictableEntry
	}
	return nil
}

// evictOne removes the coldest non-modified page, skipping the just-inserted
// front element. It reports whether a page was evicted.
func (c *Cache) evictOne() bool {
	for elem := c.ll.Back(); elem != nil && elem != c.ll.Front(); elem = elem.Prev() {
		ent := elem.Value.(*entry)
		if ent.node.Modified {
			continue
		}
		c.ll.Remove(elem)
		delete(c.items, ent.id)
		return true
	}
	return false
}

// lastChanceCleanup writes back every dirty page and clears its modified
// flag. The first write failure aborts the scan; pages already written stay
// clean.
func (c *Cache) lastChanceCleanup() (int, error) {
	log.Debugw("node cache last-chance cleanup", "resident", c.ll.Len())
	var saved int
	for elem := c.ll.Front(); elem != nil; elem = elem.Next() {
		ent := elem.Value.(*entry)
		if !ent.node.Modified {
			continue
		}
		if err := c.saveNode(ent.node); err != nil {
			return saved, err
		}
		saved++
	}
	return saved, nil
}

// Flush writes back every dirty page and clears its modified flag. Failures
// are logged per page and surfaced as a single aggregated error after the
// scan completes.
func (c *Cache) Flush() error {
	var failed int
	var firstErr error
	for elem := c.ll.Front(); elem != nil; elem = elem.Next() {
		ent := elem.Value.(*entry)
		if !ent.node.Modified {
			continue
		}
		if err := c.saveNode(ent.node); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			log.Errorw("cannot write back index node", "node", ent.id, "error", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("node cache flush failed for %d node(s): %w", failed, firstErr)
	}
	return nil
}

// Close flushes the cache, swallowing write-back errors, and drops all
// resident pages.
func (c *Cache) Close() error {
	if err := c.Flush(); err != nil {
		log.Debugw("ignoring node cache flush error on close", "error", err)
	}
	c.ll.Init()
	c.items = make(map[uint64]*list.Element)
	return nil
}

func (c *Cache) saveNode(n *Node) error {
	if !n.Modified {
		return nil
	}
	if err := c.writer.WriteNode(n); err != nil {
		metrics.NodeWriteBackFailures.Inc()
		return err
	}
	metrics.NodeWriteBacks.Inc()
	n.Modified = false
	return nil
}
