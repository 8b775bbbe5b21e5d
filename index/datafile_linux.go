package index

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// openAnonTempFile opens an anonymous temporary file inside dir. The second
// return value reports whether the platform/filesystem supports anonymous
// files; when false the caller falls back to a named temp file.
func openAnonTempFile(dir string) (*os.File, bool, error) {
	fd, err := unix.Open(dir, unix.O_TMPFILE|unix.O_RDWR|unix.O_DSYNC, dataFileMode)
	if err != nil {
		if errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EOPNOTSUPP) ||
			errors.Is(err, unix.EINVAL) || errors.Is(err, unix.EISDIR) {
			return nil, false, nil
		}
		return nil, false, &os.PathError{Op: "open", Path: dir, Err: err}
	}
	return os.NewFile(uintptr(fd), dir), true, nil
}

// linkTempFile links an anonymous temporary file into the namespace.
func linkTempFile(f *os.File, path string) error {
	fdPath := fmt.Sprintf("/proc/self/fd/%d", f.Fd())
	if err := unix.Linkat(unix.AT_FDCWD, fdPath, unix.AT_FDCWD, path, unix.AT_SYMLINK_FOLLOW); err != nil {
		return &os.LinkError{Op: "link", Old: fdPath, New: path, Err: err}
	}
	return nil
}
