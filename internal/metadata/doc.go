// Package metadata writes GPS and methane metadata into photos.
//
// Writer is the contract the pipeline drives. ExifToolWriter shells out to
// exiftool in batches and verifies the written coordinates by reading them
// back; DryRunWriter reports success without touching disk. CaptureTime
// reads EXIF DateTimeOriginal for rename ordering.
package metadata
