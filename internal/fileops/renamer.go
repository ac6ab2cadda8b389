package fileops

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"geotagger/internal/sensor"
	"geotagger/internal/textutil"
)

// Renamer assigns sequential template names to items.
type Renamer struct {
	Template   Template
	StartIndex int
	// CaptureTime reads a photo's capture time; nil disables EXIF lookups.
	CaptureTime func(path string) (time.Time, error)
}

// latest sorts items without any timestamp after every timestamped one.
var latest = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

type orderKey struct {
	pos  int
	dir  string
	name string
	at   time.Time
}

// Order returns item positions in rename order: items are grouped by the
// folder of their source, groups ordered by their earliest timestamp then
// folder path, and items within a group by timestamp then file name.
func (r Renamer) Order(items []Item) []int {
	keys := r.order(items)
	out := make([]int, len(keys))
	for i, k := range keys {
		out[i] = k.pos
	}
	return out
}

func (r Renamer) order(items []Item) []orderKey {
	keys := make([]orderKey, len(items))
	earliest := map[string]time.Time{}
	for i, it := range items {
		k := orderKey{
			pos:  i,
			dir:  filepath.Dir(it.Source),
			name: filepath.Base(it.Source),
			at:   r.timestamp(it),
		}
		keys[i] = k
		if cur, ok := earliest[k.dir]; !ok || k.at.Before(cur) {
			earliest[k.dir] = k.at
		}
	}
	slices.SortStableFunc(keys, func(a, b orderKey) int {
		if a.dir != b.dir {
			if c := earliest[a.dir].Compare(earliest[b.dir]); c != 0 {
				return c
			}
			return strings.Compare(a.dir, b.dir)
		}
		if c := a.at.Compare(b.at); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})
	return keys
}

func (r Renamer) timestamp(it Item) time.Time {
	if r.CaptureTime != nil {
		if t, err := r.CaptureTime(it.Path); err == nil && !t.IsZero() {
			return t
		}
	}
	if t, ok := sensor.FilenameTimestamp(it.Source); ok {
		return t
	}
	return latest
}

// Rename renames every item in place within its current directory. The
// returned slice holds a per-item error aligned with items. Cancellation is
// checked before each file.
func (r Renamer) Rename(ctx context.Context, items []Item) []error {
	errs := make([]error, len(items))
	index := r.StartIndex
	for _, k := range r.order(items) {
		pos := k.pos
		if err := ctx.Err(); err != nil {
			errs[pos] = err
			continue
		}
		it := &items[pos]
		ts := k.at
		if ts.Equal(latest) {
			ts = time.Time{}
		}
		ext := filepath.Ext(it.Path)
		stem := strings.TrimSuffix(filepath.Base(it.Source), filepath.Ext(it.Source))
		name := textutil.SanitizeFileName(r.Template.Render(Values{
			Index: index,
			PPM:   it.PPM,
			Lat:   it.Lat,
			Lon:   it.Lon,
			Stem:  stem,
			Time:  ts,
		}))
		index++
		if name == "" {
			errs[pos] = fmt.Errorf("rename template rendered an empty name")
			continue
		}
		name += ext
		if name == filepath.Base(it.Path) {
			continue
		}
		dst, err := UniquePath(filepath.Dir(it.Path), name)
		if err != nil {
			errs[pos] = err
			continue
		}
		if err := os.Rename(it.Path, dst); err != nil {
			errs[pos] = fmt.Errorf("rename %s: %w", filepath.Base(it.Path), err)
			continue
		}
		it.Path = dst
	}
	return errs
}
