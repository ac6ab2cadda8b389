package fileops

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
)

// Unspecified is the bucket used when no bin edges are configured.
const Unspecified = "UNSPECIFIED"

// BucketName names the PPM bucket for ppm against sorted edges.
func BucketName(ppm float64, edges []int) string {
	if len(edges) == 0 {
		return Unspecified
	}
	sorted := slices.Clone(edges)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	if ppm < float64(sorted[0]) {
		return fmt.Sprintf("LT%04dppm", sorted[0])
	}
	last := sorted[len(sorted)-1]
	if ppm >= float64(last) {
		return fmt.Sprintf("%04d+ppm", last)
	}
	for i := 0; i < len(sorted)-1; i++ {
		if ppm < float64(sorted[i+1]) {
			return fmt.Sprintf("%04d-%04dppm", sorted[i], sorted[i+1]-1)
		}
	}
	return fmt.Sprintf("%04d+ppm", last)
}

// SortInto copies each item's current file into root/<bucket>/. Items keep
// their current Path. It returns the copy destinations and per-item errors.
func SortInto(ctx context.Context, items []Item, root string, edges []int) ([]string, []error) {
	dests := make([]string, len(items))
	errs := make([]error, len(items))
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		dst, err := CopyInto(it.Path, filepath.Join(root, BucketName(it.PPM, edges)))
		if err != nil {
			errs[i] = err
			continue
		}
		dests[i] = dst
	}
	return dests, errs
}
