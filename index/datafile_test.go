package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildDataFile(t *testing.T) {
	dir := t.TempDir()
	path := DataFilePath(dir, 1)

	builder, err := BuildDataFile(dir, path, 2*NodeSize)
	require.NoError(t, err)

	// Not linked yet.
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))

	_, err = builder.File.WriteAt([]byte("header"), 0)
	require.NoError(t, err)

	f, err := builder.Commit()
	require.NoError(t, err)
	defer f.Close()

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.EqualValues(t, 2*NodeSize, st.Size())

	buf := make([]byte, 6)
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("header"), buf)

	// No temp file left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestBuildDataFileAbort(t *testing.T) {
	dir := t.TempDir()
	path := DataFilePath(dir, 1)

	builder, err := BuildDataFile(dir, path, NodeSize)
	require.NoError(t, err)
	builder.Abort()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestScanDataDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"idx3.dat", "idx1.dat", "idx20.dat",
		"idx.dat",        // no file id
		"idx2.dat.tmp",   // temp leftover
		"idxfoo.dat",     // non-decimal id
		"notes.txt",      // unrelated
		InitFlagFileName, // sentinel
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	fileIDs, err := ScanDataDir(dir)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 3, 20}, fileIDs)
}

func TestInitFlagFile(t *testing.T) {
	dir := t.TempDir()

	ok, err := HasInitFlagFile(dir)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, WriteInitFlagFile(dir))

	ok, err = HasInitFlagFile(dir)
	require.NoError(t, err)
	require.True(t, ok)
}
