package index

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sys/unix"
)

var log = logging.Logger("index")

// dataFileMode is the creation mode of index data files.
const dataFileMode = 0o644

// DataFilePath returns the path of a data file of the given index data
// directory: <dir>/<prefix><fileID><ext>.
func DataFilePath(dir string, fileID uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%s%d%s", DataFilePrefix, fileID, DataFileExt))
}

// DataFileBuilder stages a new index data file. The file starts out either
// as an anonymous temp file (linked into the namespace on Commit) or, when
// the platform does not support anonymous files, as a named temp file
// renamed into place on Commit. Until Commit succeeds the final path does
// not exist.
type DataFileBuilder struct {
	// File is the staged data file, opened read-write with synchronous
	// data writes.
	File *os.File

	finalPath string
	tmpPath   string // empty on the anonymous path
}

// BuildDataFile stages a data file of the given size for finalPath inside
// dir. The returned builder's File is sized and zero-filled by the
// filesystem; the caller writes the header and initial nodes, then calls
// Commit.
func BuildDataFile(dir, finalPath string, size int64) (*DataFileBuilder, error) {
	f, supported, err := openAnonTempFile(dir)
	if err != nil {
		return nil, err
	}
	b := &DataFileBuilder{finalPath: finalPath}
	if supported {
		b.File = f
	} else {
		b.tmpPath = finalPath + TempFileExt
		f, err = os.OpenFile(b.tmpPath, os.O_RDWR|os.O_CREATE|os.O_EXCL|unix.O_DSYNC, dataFileMode)
		if err != nil {
			return nil, err
		}
		b.File = f
	}
	if err = b.File.Truncate(size); err != nil {
		b.Abort()
		return nil, err
	}
	return b, nil
}

// Commit links the staged file into the namespace under the final path and
// returns the still-open file.
func (b *DataFileBuilder) Commit() (*os.File, error) {
	if b.tmpPath == "" {
		if err := linkTempFile(b.File, b.finalPath); err != nil {
			return nil, err
		}
		return b.File, nil
	}
	if err := os.Rename(b.tmpPath, b.finalPath); err != nil {
		return nil, err
	}
	return b.File, nil
}

// Abort closes the staged file and removes the named temp file if one was
// created. Safe to call after a failed Commit.
func (b *DataFileBuilder) Abort() {
	b.File.Close()
	if b.tmpPath != "" {
		if err := os.Remove(b.tmpPath); err != nil && !os.IsNotExist(err) {
			log.Debugw("cannot remove temp data file", "path", b.tmpPath, "error", err)
		}
	}
}

// OpenDataFile opens an existing data file with synchronous data writes.
func OpenDataFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDWR|unix.O_DSYNC, 0)
}

// ScanDataDir enumerates dir and returns the sorted set of data file ids
// present. Only names of the form <prefix><decimal><ext> are accepted;
// anything else is ignored.
func ScanDataDir(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var fileIDs []uint64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, DataFilePrefix) || !strings.HasSuffix(name, DataFileExt) {
			continue
		}
		idStr := name[len(DataFilePrefix) : len(name)-len(DataFileExt)]
		fileID, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil {
			continue
		}
		fileIDs = append(fileIDs, fileID)
	}
	sort.Slice(fileIDs, func(i, j int) bool { return fileIDs[i] < fileIDs[j] })
	return fileIDs, nil
}

// WriteInitFlagFile marks the index data directory as fully initialized.
func WriteInitFlagFile(dir string) error {
	return os.WriteFile(filepath.Join(dir, InitFlagFileName), nil, dataFileMode)
}

// HasInitFlagFile reports whether the index data directory carries the
// initialization flag file.
func HasInitFlagFile(dir string) (bool, error) {
	_, err := os.Stat(filepath.Join(dir, InitFlagFileName))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
