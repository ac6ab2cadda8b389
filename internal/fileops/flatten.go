package fileops

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"geotagger/internal/fileutil"
)

// FlattenInto moves each item's current file into flatDir, updating Path.
// It returns the distinct directories the files were moved out of, for
// PruneEmpty, and per-item errors.
func FlattenInto(ctx context.Context, items []Item, flatDir string) ([]string, []error) {
	errs := make([]error, len(items))
	vacated := map[string]struct{}{}
	for i := range items {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		it := &items[i]
		from := filepath.Dir(it.Path)
		if filepath.Clean(from) == filepath.Clean(flatDir) {
			continue
		}
		dst, err := UniquePath(flatDir, filepath.Base(it.Path))
		if err != nil {
			errs[i] = err
			continue
		}
		if err := fileutil.MoveFile(it.Path, dst); err != nil {
			errs[i] = err
			continue
		}
		it.Path = dst
		vacated[from] = struct{}{}
	}
	dirs := make([]string, 0, len(vacated))
	for d := range vacated {
		dirs = append(dirs, d)
	}
	slices.Sort(dirs)
	return dirs, errs
}

// junkFiles are platform artifacts that do not keep a directory alive.
var junkFiles = map[string]bool{
	".ds_store":   true,
	"thumbs.db":   true,
	"desktop.ini": true,
}

func isJunk(e os.DirEntry) bool {
	if e.IsDir() {
		return false
	}
	name := strings.ToLower(e.Name())
	return junkFiles[name] || strings.HasPrefix(name, "._")
}

// PruneEmpty removes each dir that is empty apart from platform junk, then
// walks upward doing the same. Only directories strictly inside one of
// scopes are touched; a scope root itself is never removed. It returns the
// directories removed.
func PruneEmpty(dirs, scopes []string) []string {
	var removed []string
	for _, dir := range dirs {
		for cur := filepath.Clean(dir); insideScope(cur, scopes); cur = filepath.Dir(cur) {
			entries, err := os.ReadDir(cur)
			if err != nil {
				break
			}
			keep := false
			for _, e := range entries {
				if !isJunk(e) {
					keep = true
					break
				}
			}
			if keep {
				break
			}
			for _, e := range entries {
				_ = os.Remove(filepath.Join(cur, e.Name()))
			}
			if err := os.Remove(cur); err != nil {
				break
			}
			removed = append(removed, cur)
		}
	}
	return removed
}

// insideScope reports whether path lies strictly below one of scopes.
func insideScope(path string, scopes []string) bool {
	for _, scope := range scopes {
		if scope == "" {
			continue
		}
		rel, err := filepath.Rel(filepath.Clean(scope), path)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if filepath.IsAbs(rel) {
			continue
		}
		return true
	}
	return false
}
