package nodecache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	writes  map[uint64]int
	failing map[uint64]bool
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{writes: make(map[uint64]int), failing: make(map[uint64]bool)}
}

var errWriteFailed = errors.New("write failed")

func (w *fakeWriter) WriteNode(n *Node) error {
	if w.failing[n.ID] {
		return errWriteFailed
	}
	w.writes[n.ID]++
	return nil
}

func put(t *testing.T, c *Cache, id uint64, modified bool) *Node {
	t.Helper()
	n := NewNode(id, id)
	n.Modified = modified
	require.NoError(t, c.Put(id, n))
	return n
}

func TestGetMiss(t *testing.T) {
	c := New(newFakeWriter(), 4)
	require.Nil(t, c.Get(1))
}

func TestPutGet(t *testing.T) {
	c := New(newFakeWriter(), 4)
	n := put(t, c, 1, false)
	require.Same(t, n, c.Get(1))
	require.Equal(t, 1, c.Len())
}

func TestEvictColdestClean(t *testing.T) {
	c := New(newFakeWriter(), 2)
	put(t, c, 1, false)
	put(t, c, 2, false)
	put(t, c, 3, false)
	require.Equal(t, 2, c.Len())
	require.Nil(t, c.Get(1))
	require.NotNil(t, c.Get(2))
	require.NotNil(t, c.Get(3))
}

func TestEvictionHonorsLRUTouch(t *testing.T) {
	c := New(newFakeWriter(), 2)
	put(t, c, 1, false)
	put(t, c, 2, false)
	c.Get(1) // 2 becomes coldest
	put(t, c, 3, false)
	require.NotNil(t, c.Get(1))
	require.Nil(t, c.Get(2))
}

func TestDirtyPagesAreNotEvicted(t *testing.T) {
	w := newFakeWriter()
	c := New(w, 2)
	put(t, c, 1, true)
	put(t, c, 2, false)
	put(t, c, 3, false)
	// 2 was the coldest clean page; the dirty page 1 stays resident.
	require.NotNil(t, c.Get(1))
	require.Nil(t, c.Get(2))
	require.Zero(t, w.writes[1])
}

func TestLastChanceCleanup(t *testing.T) {
	w := newFakeWriter()
	c := New(w, 2)
	n1 := put(t, c, 1, true)
	n2 := put(t, c, 2, true)
	// No clean page: the cleanup writes both dirty pages, then eviction
	// proceeds.
	put(t, c, 3, false)
	require.Equal(t, 1, w.writes[1])
	require.Equal(t, 1, w.writes[2])
	require.False(t, n1.Modified)
	require.False(t, n2.Modified)
	require.Equal(t, 2, c.Len())
}

func TestCleanupWriteFailureFailsPut(t *testing.T) {
	w := newFakeWriter()
	w.failing[1] = true
	w.failing[2] = true
	c := New(w, 2)
	put(t, c, 1, true)
	put(t, c, 2, true)
	n := NewNode(3, 3)
	require.ErrorIs(t, c.Put(3, n), errWriteFailed)
}

func TestFlushWritesAllDirty(t *testing.T) {
	w := newFakeWriter()
	c := New(w, 8)
	n1 := put(t, c, 1, true)
	put(t, c, 2, false)
	n3 := put(t, c, 3, true)

	require.NoError(t, c.Flush())
	require.Equal(t, 1, w.writes[1])
	require.Zero(t, w.writes[2])
	require.Equal(t, 1, w.writes[3])
	require.False(t, n1.Modified)
	require.False(t, n3.Modified)

	// Idempotent: nothing is dirty anymore.
	require.NoError(t, c.Flush())
	require.Equal(t, 1, w.writes[1])
	require.Equal(t, 1, w.writes[3])
}

func TestFlushAggregatesFailures(t *testing.T) {
	w := newFakeWriter()
	w.failing[1] = true
	c := New(w, 8)
	n1 := put(t, c, 1, true)
	n2 := put(t, c, 2, true)

	err := c.Flush()
	require.ErrorIs(t, err, errWriteFailed)
	// The failing page stays dirty, the other one was still written.
	require.True(t, n1.Modified)
	require.False(t, n2.Modified)
	require.Equal(t, 1, w.writes[2])
}

func TestCloseSwallowsErrors(t *testing.T) {
	w := newFakeWriter()
	w.failing[1] = true
	c := New(w, 8)
	put(t, c, 1, true)
	require.NoError(t, c.Close())
	require.Equal(t, 0, c.Len())
}
