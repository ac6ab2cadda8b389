package fileops

import (
	"fmt"
	"path/filepath"

	"geotagger/internal/fileutil"
)

// CopyInto copies src into dir under its own name, adding a numbered suffix
// when the name is taken. It returns the destination path.
func CopyInto(src, dir string) (string, error) {
	dst, err := UniquePath(dir, filepath.Base(src))
	if err != nil {
		return "", err
	}
	if err := fileutil.CopyFile(src, dst); err != nil {
		return "", fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	return dst, nil
}

// Backup copies src to dst unless dst already exists. An existing backup is
// never overwritten; written reports whether a copy was made.
func Backup(src, dst string) (written bool, err error) {
	if exists(dst) {
		return false, nil
	}
	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		return false, fmt.Errorf("backup %s: %w", filepath.Base(src), err)
	}
	return true, nil
}
