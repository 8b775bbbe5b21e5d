package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corvusdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/corvusdb
data_file_size: 65536
node_cache_capacity: 8
`)
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/corvusdb", c.DataDir)
	require.EqualValues(t, 65536, c.DataFileSize)
	require.Equal(t, 8, c.NodeCacheCapacity)
	// Unset fields keep their defaults.
	require.Equal(t, DefaultFileCacheCapacity, c.FileCacheCapacity)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	c := Default()
	c.DataDir = "/data"
	require.NoError(t, c.Validate())

	c.DataFileSize = 1000 // not page aligned
	require.Error(t, c.Validate())

	c = Default()
	c.DataDir = ""
	require.Error(t, c.Validate())

	c = Default()
	c.DataDir = "/data"
	c.NodeCacheCapacity = 0
	require.Error(t, c.Validate())
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, `
data_dir: /data
data_file_size: 12345
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "data_file_size")
}
