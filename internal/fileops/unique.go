package fileops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxProbes bounds the numbered-suffix search for a free file name.
const MaxProbes = 10000

// ErrNoFreeName is returned when every probed name is taken.
var ErrNoFreeName = errors.New("no free file name")

// UniquePath returns dir/name when that path is free, otherwise the first
// free dir/<stem>_<n><ext> for n = 1..MaxProbes.
func UniquePath(dir, name string) (string, error) {
	candidate := filepath.Join(dir, name)
	if !exists(candidate) {
		return candidate, nil
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; n <= MaxProbes; n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
		if !exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w for %s in %s", ErrNoFreeName, name, dir)
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
