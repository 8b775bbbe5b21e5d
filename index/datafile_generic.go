//go:build !linux

package index

import "os"

// openAnonTempFile reports that anonymous temporary files are unsupported,
// routing creation through the named-temp-file fallback.
func openAnonTempFile(dir string) (*os.File, bool, error) {
	return nil, false, nil
}

// linkTempFile is never reached on platforms without anonymous temp files.
func linkTempFile(f *os.File, path string) error {
	panic("index: linkTempFile called without anonymous temp file support")
}
