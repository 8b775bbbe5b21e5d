package bpt_test

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/corvusdb/corvusdb/index"
	"github.com/corvusdb/corvusdb/index/bpt"
)

var testID = index.FullIndexID{
	Database: uuid.MustParse("1f0d12ee-5a41-4f45-b318-6b4f267c1a30"),
	TableID:  5,
	IndexID:  2,
}

var traits = index.UintKeyTraits(8)

func key(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func value(valueSize int, v uint64) []byte {
	out := make([]byte, valueSize)
	binary.BigEndian.PutUint64(out, v)
	for i := 8; i < len(out); i++ {
		out[i] = byte(v)
	}
	return out
}

func create(t *testing.T, valueSize int) (*bpt.BPlusTreeIndex, string) {
	t.Helper()
	dir := t.TempDir()
	idx, err := bpt.Create(dir, testID, 8, valueSize, traits.Compare)
	require.NoError(t, err)
	return idx, dir
}

func TestCreateEmpty(t *testing.T) {
	idx, dir := create(t, 8)
	defer idx.Close()

	st, err := os.Stat(index.DataFilePath(dir, 0))
	require.NoError(t, err)
	require.EqualValues(t, 2*index.NodeSize, st.Size())

	out := make([]byte, 8)
	n, err := idx.Find(key(1), out)
	require.NoError(t, err)
	require.Zero(t, n)

	ok, err := idx.MinKey(out)
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = idx.MaxKey(out)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInsertFind(t *testing.T) {
	idx, _ := create(t, 8)
	defer idx.Close()

	for v := uint64(1); v <= 50; v++ {
		inserted, err := idx.Insert(key(v), value(8, v*100), false)
		require.NoError(t, err)
		require.True(t, inserted)
	}
	out := make([]byte, 8)
	for v := uint64(1); v <= 50; v++ {
		n, err := idx.Find(key(v), out)
		require.NoError(t, err)
		require.EqualValues(t, 1, n, "key %d", v)
		require.Equal(t, value(8, v*100), out)
	}
	n, err := idx.Find(key(51), out)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestInsertDuplicate(t *testing.T) {
	idx, _ := create(t, 8)
	defer idx.Close()

	inserted, err := idx.Insert(key(1), value(8, 1), false)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = idx.Insert(key(1), value(8, 2), false)
	require.NoError(t, err)
	require.False(t, inserted)

	// The stored value is untouched.
	out := make([]byte, 8)
	_, err = idx.Find(key(1), out)
	require.NoError(t, err)
	require.Equal(t, value(8, 1), out)

	// With replace the value is overwritten, but the key still existed.
	inserted, err = idx.Insert(key(1), value(8, 3), true)
	require.NoError(t, err)
	require.False(t, inserted)
	_, err = idx.Find(key(1), out)
	require.NoError(t, err)
	require.Equal(t, value(8, 3), out)
}

func TestLeafSplits(t *testing.T) {
	// valueSize 2000 leaves room for 4 entries per node, so inserts split
	// early and the tree grows several levels.
	idx, _ := create(t, 2000)
	defer idx.Close()
	require.Equal(t, 4, idx.BranchingFactor())

	const total = 100
	// Insert a fixed permutation of 0..99.
	for i := uint64(0); i < total; i++ {
		v := (i*37 + 11) % total
		inserted, err := idx.Insert(key(v), value(2000, v), false)
		require.NoError(t, err)
		require.True(t, inserted, "key %d", v)
	}
	require.Greater(t, idx.NodeCount(), uint64(1))

	out := make([]byte, 2000)
	for v := uint64(0); v < total; v++ {
		n, err := idx.Find(key(v), out)
		require.NoError(t, err)
		require.EqualValues(t, 1, n, "key %d", v)
		require.Equal(t, value(2000, v), out)
	}

	keyOut := make([]byte, 8)
	ok, err := idx.MinKey(keyOut)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, key(0), keyOut)
	ok, err = idx.MaxKey(keyOut)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, key(total-1), keyOut)

	// Duplicates are still detected after splitting.
	inserted, err := idx.Insert(key(42), value(2000, 1), false)
	require.NoError(t, err)
	require.False(t, inserted)

	n, err := idx.Count(key(42))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	idx, dir := create(t, 2000)

	const total = 40
	for v := uint64(0); v < total; v++ {
		_, err := idx.Insert(key(v), value(2000, v), false)
		require.NoError(t, err)
	}
	require.NoError(t, idx.Flush())
	require.NoError(t, idx.Close())

	// The file size stays a whole number of pages.
	st, err := os.Stat(index.DataFilePath(dir, 0))
	require.NoError(t, err)
	require.Zero(t, st.Size()%index.NodeSize)

	idx, err = bpt.Open(dir, testID, 8, 2000, traits.Compare)
	require.NoError(t, err)
	defer idx.Close()

	out := make([]byte, 2000)
	for v := uint64(0); v < total; v++ {
		n, err := idx.Find(key(v), out)
		require.NoError(t, err)
		require.EqualValues(t, 1, n, "key %d", v)
		require.Equal(t, value(2000, v), out)
	}

	// The reopened index keeps accepting inserts.
	inserted, err := idx.Insert(key(total), value(2000, total), false)
	require.NoError(t, err)
	require.True(t, inserted)
}

func TestFlushIsIdempotent(t *testing.T) {
	idx, _ := create(t, 8)
	defer idx.Close()
	_, err := idx.Insert(key(1), value(8, 1), false)
	require.NoError(t, err)
	require.NoError(t, idx.Flush())
	require.NoError(t, idx.Flush())
}

func TestOpenWithoutInitFlag(t *testing.T) {
	dir := t.TempDir()
	_, err := bpt.Open(dir, testID, 8, 8, traits.Compare)
	require.ErrorIs(t, err, index.ErrNotInitialized)
}

func TestOpenShortFile(t *testing.T) {
	idx, dir := create(t, 8)
	require.NoError(t, idx.Close())

	path := index.DataFilePath(dir, 0)
	require.NoError(t, os.Truncate(path, index.NodeSize))
	_, err := bpt.Open(dir, testID, 8, 8, traits.Compare)
	require.ErrorIs(t, err, index.ErrFileCorrupted)
}

func TestOpenUnalignedFile(t *testing.T) {
	idx, dir := create(t, 8)
	require.NoError(t, idx.Close())

	path := index.DataFilePath(dir, 0)
	require.NoError(t, os.Truncate(path, 2*index.NodeSize+100))
	_, err := bpt.Open(dir, testID, 8, 8, traits.Compare)
	require.ErrorIs(t, err, index.ErrFileCorrupted)
}

func TestOpenBadRootPointer(t *testing.T) {
	idx, dir := create(t, 8)
	require.NoError(t, idx.Close())

	path := index.DataFilePath(dir, 0)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt(make([]byte, 8), 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = bpt.Open(dir, testID, 8, 8, traits.Compare)
	require.ErrorIs(t, err, index.ErrMissingRoot)
}

func TestOpenNonRootNodeType(t *testing.T) {
	idx, dir := create(t, 8)
	require.NoError(t, idx.Close())

	// Demote the root leaf to a plain leaf on disk.
	path := index.DataFilePath(dir, 0)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{1}, index.NodeSize)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = bpt.Open(dir, testID, 8, 8, traits.Compare)
	require.ErrorIs(t, err, index.ErrMissingRoot)
}

func TestUnimplementedOperations(t *testing.T) {
	idx, _ := create(t, 8)
	defer idx.Close()

	_, err := idx.Erase(key(1))
	require.ErrorIs(t, err, index.ErrNotImplemented)
	_, err = idx.Update(key(1), value(8, 1))
	require.ErrorIs(t, err, index.ErrNotImplemented)
	_, err = idx.MarkAsDeleted(key(1), value(8, 1))
	require.ErrorIs(t, err, index.ErrNotImplemented)
	_, err = idx.FirstKey(key(1))
	require.ErrorIs(t, err, index.ErrNotImplemented)
	_, err = idx.LastKey(key(1))
	require.ErrorIs(t, err, index.ErrNotImplemented)
	_, err = idx.PrevKey(key(1), key(2))
	require.ErrorIs(t, err, index.ErrNotImplemented)
	_, err = idx.NextKey(key(1), key(2))
	require.ErrorIs(t, err, index.ErrNotImplemented)
}
