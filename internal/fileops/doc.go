// Package fileops implements the collision-safe file transforms applied to
// tagged photos: working copies and backups, template renaming, PPM bucket
// sorting and flattening with scoped pruning of emptied directories.
//
// Every operation works on Items addressed by position. Operations that
// move a file update Item.Path in place and report a per-item error, so one
// failing file never stops the rest.
package fileops

// Item is one photo handed to a file operation.
type Item struct {
	// Source is the original discovery path and never changes.
	Source string
	// Path is the current location of the output file.
	Path string
	PPM  float64
	Lat  float64
	Lon  float64
}
